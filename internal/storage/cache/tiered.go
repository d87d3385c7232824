package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultMaxErrors     = 5
	defaultBreakDuration = 30 * time.Second
)

// Tiered serves reads from a local cache first and falls back to a remote
// one, promoting remote hits into the local tier. Remote failures are
// logged and treated as misses. After MaxErrors consecutive remote failures
// the remote tier is skipped for BreakDuration.
type Tiered struct {
	local  Cache
	remote Cache

	mu            sync.Mutex
	maxErrors     int
	breakDuration time.Duration
	errorCount    int
	openUntil     time.Time
	now           func() time.Time
}

// NewTiered combines a local and a remote cache. Either may be nil.
func NewTiered(local, remote Cache) *Tiered {
	return &Tiered{
		local:         local,
		remote:        remote,
		maxErrors:     defaultMaxErrors,
		breakDuration: defaultBreakDuration,
		now:           time.Now,
	}
}

// WithCircuitBreaker overrides the remote failure threshold and break duration
func (t *Tiered) WithCircuitBreaker(maxErrors int, breakDuration time.Duration) *Tiered {
	t.mu.Lock()
	defer t.mu.Unlock()
	if maxErrors > 0 {
		t.maxErrors = maxErrors
	}
	if breakDuration > 0 {
		t.breakDuration = breakDuration
	}
	return t
}

// remoteAvailable reports whether the remote tier should be tried
func (t *Tiered) remoteAvailable() bool {
	if t.remote == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.now().Before(t.openUntil)
}

func (t *Tiered) recordRemote(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err == nil {
		t.errorCount = 0
		CircuitBreakerState.Set(0)
		return
	}

	t.errorCount++
	if t.errorCount >= t.maxErrors {
		t.openUntil = t.now().Add(t.breakDuration)
		t.errorCount = 0
		CircuitBreakerState.Set(1)
		CircuitBreakerTrips.Inc()
		log.Warn().
			Err(err).
			Dur("break_duration", t.breakDuration).
			Msg("Remote cache circuit breaker opened")
	}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]float64, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if t.local != nil {
		v, err := t.local.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	if !t.remoteAvailable() {
		return nil, nil
	}

	v, err := t.remote.Get(ctx, key)
	t.recordRemote(err)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Remote cache read failed")
		return nil, nil
	}
	if v != nil && t.local != nil {
		if err := t.local.Set(ctx, key, v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []float64) error {
	if t.local != nil {
		if err := t.local.Set(ctx, key, value); err != nil {
			return err
		}
	}
	if t.remoteAvailable() {
		err := t.remote.Set(ctx, key, value)
		t.recordRemote(err)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Remote cache write failed")
		}
	}
	return nil
}

// Len reports the size of the remote tier when present, since it is the
// superset of what any single process has seen.
func (t *Tiered) Len(ctx context.Context) (int, error) {
	if t.remote != nil {
		return t.remote.Len(ctx)
	}
	if t.local != nil {
		return t.local.Len(ctx)
	}
	return 0, nil
}

func (t *Tiered) Clear(ctx context.Context) error {
	var errs []error
	for _, c := range t.tiers() {
		if err := c.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Tiered) Health(ctx context.Context) error {
	var errs []error
	for _, c := range t.tiers() {
		if err := c.Health(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Tiered) Close() error {
	var errs []error
	for _, c := range t.tiers() {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Tiered) tiers() []Cache {
	tiers := make([]Cache, 0, 2)
	if t.local != nil {
		tiers = append(tiers, t.local)
	}
	if t.remote != nil {
		tiers = append(tiers, t.remote)
	}
	return tiers
}
