package regression

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// ComponentError reports which ensemble member failed
type ComponentError struct {
	Index int
	Err   error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %d: %v", e.Index, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

// Ensemble is an ordered collection of regressors; member i predicts the
// coefficient of principal component i.
type Ensemble []Regressor

// PredictAll evaluates every member at x. With workers > 1 members are
// evaluated concurrently on at most that many goroutines; coefficients are
// always returned in member order. The first failure aborts the call.
func (e Ensemble) PredictAll(ctx context.Context, x []float64, workers int) ([]float64, error) {
	coeffs := make([]float64, len(e))

	if workers <= 1 {
		for i := range e {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			v, err := e.predictOne(i, x)
			if err != nil {
				return nil, err
			}
			coeffs[i] = v
		}
		return coeffs, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range e {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := e.predictOne(i, x)
			if err != nil {
				return err
			}
			coeffs[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return coeffs, nil
}

func (e Ensemble) predictOne(i int, x []float64) (float64, error) {
	label := strconv.Itoa(i)
	start := time.Now()
	v, err := e[i].Predict(x)
	ComponentDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err == nil {
		err = checkFinite(v)
	}
	if err != nil {
		ComponentErrors.WithLabelValues(label).Inc()
		return 0, &ComponentError{Index: i, Err: err}
	}
	return v, nil
}

// Close releases members holding native resources
func (e Ensemble) Close() error {
	var lastErr error
	for i, r := range e {
		if c, ok := r.(io.Closer); ok {
			if err := c.Close(); err != nil {
				lastErr = fmt.Errorf("failed to close component %d: %w", i, err)
			}
		}
	}
	return lastErr
}
