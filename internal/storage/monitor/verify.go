package monitor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/objones25/pkemu/internal/emulator"
	"github.com/objones25/pkemu/internal/storage/cache"
)

// ConsistencyVerifier checks cached spectra against fresh predictions. The
// reference predictor must not read from the cache being verified.
type ConsistencyVerifier struct {
	cache     cache.Cache
	keys      *cache.KeyGenerator
	reference Predictor
	config    VerifierConfig
}

type VerifierConfig struct {
	// Number of slider steps per parameter to check
	Steps int
	// Number of concurrent checks
	Workers int
	// Relative tolerance for a cached value to count as consistent
	Tolerance float64
	// Whether to overwrite inconsistent entries with the fresh prediction
	AutoRepair bool
	// Maximum time to wait for a consistency check
	Timeout time.Duration
}

type VerificationResult struct {
	Checked    int
	Missing    int
	Mismatches int
	Repaired   int
	Errors     []error
	Duration   time.Duration
	StartTime  time.Time
	EndTime    time.Time
}

func NewConsistencyVerifier(c cache.Cache, keys *cache.KeyGenerator, reference Predictor, cfg VerifierConfig) *ConsistencyVerifier {
	if cfg.Steps <= 0 {
		cfg.Steps = DefaultSteps
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1e-12
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	return &ConsistencyVerifier{
		cache:     c,
		keys:      keys,
		reference: reference,
		config:    cfg,
	}
}

// VerifyConsistency compares every cached slider-grid spectrum with a fresh prediction
func (cv *ConsistencyVerifier) VerifyConsistency(ctx context.Context) (*VerificationResult, error) {
	timer := prometheus.NewTimer(ConsistencyCheckLatency)
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(ctx, cv.config.Timeout)
	defer cancel()

	result := &VerificationResult{
		StartTime: time.Now(),
	}

	grid := SliderGrid(cv.reference.Bounds(), cv.reference.Defaults(), cv.config.Steps)

	var mu sync.Mutex
	record := func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cv.config.Workers)
	for _, params := range grid {
		g.Go(func() error {
			key := cv.keys.Key(params, string(emulator.UnitsH3))
			cached, err := cv.cache.Get(gctx, key)
			if err != nil {
				record(func() { result.Errors = append(result.Errors, fmt.Errorf("get %s: %w", key, err)) })
				return nil
			}
			if cached == nil {
				record(func() { result.Checked++; result.Missing++ })
				return nil
			}

			fresh, err := cv.reference.Predict(gctx, params)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				record(func() { result.Errors = append(result.Errors, fmt.Errorf("predict %v: %w", params, err)) })
				return nil
			}

			if isConsistent(fresh, cached, cv.config.Tolerance) {
				record(func() { result.Checked++ })
				return nil
			}
			ConsistencyErrors.WithLabelValues("mismatch").Inc()
			record(func() { result.Checked++; result.Mismatches++ })

			if cv.config.AutoRepair {
				if err := cv.cache.Set(gctx, key, fresh); err != nil {
					record(func() { result.Errors = append(result.Errors, fmt.Errorf("repair %s: %w", key, err)) })
					return nil
				}
				record(func() { result.Repaired++ })
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ConsistencyErrors.WithLabelValues("check_failed").Inc()
		return result, fmt.Errorf("consistency check interrupted: %w", err)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	return result, nil
}

// isConsistent reports whether two spectra agree to within a relative tolerance
func isConsistent(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		diff := math.Abs(a[i] - b[i])
		if !(diff <= tol*math.Max(math.Abs(a[i]), math.Abs(b[i]))) {
			return false
		}
	}
	return true
}
