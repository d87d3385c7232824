package regression

import (
	"sync"
	"time"
)

// MockRegressor implements Regressor for testing
type MockRegressor struct {
	mu        sync.RWMutex
	fn        func(x []float64) float64
	latency   time.Duration
	err       error
	callCount int
}

// NewMockRegressor creates a mock that evaluates fn
func NewMockRegressor(fn func(x []float64) float64) *MockRegressor {
	return &MockRegressor{fn: fn}
}

// NewConstantRegressor creates a mock that always predicts v
func NewConstantRegressor(v float64) *MockRegressor {
	return NewMockRegressor(func([]float64) float64 { return v })
}

// SetLatency sets artificial latency for predictions
func (m *MockRegressor) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// SetError makes every subsequent prediction fail with err (nil clears it)
func (m *MockRegressor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// CallCount returns the number of predictions made
func (m *MockRegressor) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount
}

// Predict implements Regressor
func (m *MockRegressor) Predict(x []float64) (float64, error) {
	m.mu.Lock()
	m.callCount++
	latency, err, fn := m.latency, m.err, m.fn
	m.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}
	if err != nil {
		return 0, err
	}
	return fn(x), nil
}
