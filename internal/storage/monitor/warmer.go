package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/objones25/pkemu/internal/artifacts"
	"github.com/objones25/pkemu/internal/emulator"
	"github.com/objones25/pkemu/internal/storage/cache"
)

// Predictor is the part of the emulator the warmer drives. Predictions made
// through it are expected to populate the cache as a side effect.
type Predictor interface {
	Predict(ctx context.Context, params emulator.ParameterVector) (emulator.PowerSpectrum, error)
	Bounds() artifacts.Bounds
	Defaults() emulator.ParameterVector
}

// CacheWarmer precomputes the slider grid so interactive requests hit the cache
type CacheWarmer struct {
	predictor Predictor
	cache     cache.Cache
	config    WarmerConfig
	mu        sync.Mutex
	last      *WarmingResult
}

type WarmerConfig struct {
	// Number of slider steps per parameter
	Steps int
	// Number of concurrent predictions
	Workers int
	// How often to re-warm; zero warms only when asked
	Interval time.Duration
	// Maximum time for one warming run
	Timeout time.Duration
}

type WarmingResult struct {
	ItemsWarmed int
	GridSize    int
	Errors      []error
	Duration    time.Duration
	StartTime   time.Time
	EndTime     time.Time
}

// NewCacheWarmer creates a warmer. c is only used to report the cache size and may be nil.
func NewCacheWarmer(predictor Predictor, c cache.Cache, cfg WarmerConfig) *CacheWarmer {
	if cfg.Steps <= 0 {
		cfg.Steps = DefaultSteps
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	return &CacheWarmer{
		predictor: predictor,
		cache:     c,
		config:    cfg,
	}
}

// StartWarming warms once immediately and then every Interval until ctx is done
func (cw *CacheWarmer) StartWarming(ctx context.Context) {
	cw.runOnce(ctx)
	if cw.config.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(cw.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cw.runOnce(ctx)
		}
	}
}

func (cw *CacheWarmer) runOnce(ctx context.Context) {
	timer := prometheus.NewTimer(CacheLatency.WithLabelValues("warm"))
	result, err := cw.WarmCache(ctx)
	timer.ObserveDuration()

	if err != nil {
		ErrorsTotal.WithLabelValues("cache", "warm", "failed").Inc()
		log.Error().Err(err).Msg("Cache warming failed")
		return
	}

	log.Info().
		Int("warmed", result.ItemsWarmed).
		Int("grid_size", result.GridSize).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("Cache warming completed")
}

// WarmCache predicts every point of the slider grid. Individual prediction
// failures are collected in the result; only cancellation aborts the run.
func (cw *CacheWarmer) WarmCache(ctx context.Context) (*WarmingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, cw.config.Timeout)
	defer cancel()

	result := &WarmingResult{
		StartTime: time.Now(),
	}

	grid := SliderGrid(cw.predictor.Bounds(), cw.predictor.Defaults(), cw.config.Steps)
	result.GridSize = len(grid)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cw.config.Workers)
	for _, params := range grid {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := cw.predictor.Predict(gctx, params)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("warm %v: %w", params, err))
				CacheOperations.WithLabelValues("warm", "error").Inc()
				return nil
			}
			result.ItemsWarmed++
			CacheOperations.WithLabelValues("warm", "success").Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("cache warming interrupted: %w", err)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	if cw.cache != nil {
		if n, err := cw.cache.Len(ctx); err == nil {
			CacheSize.Set(float64(n))
		}
	}

	cw.mu.Lock()
	cw.last = result
	cw.mu.Unlock()
	return result, nil
}

// LastResult returns the result of the most recent completed run, or nil
func (cw *CacheWarmer) LastResult() *WarmingResult {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.last
}
