// Package cache stores predicted spectra keyed by the cosmological
// parameters that produced them. An in-process LRU tier can sit in front
// of a shared Redis tier.
package cache

import (
	"context"
	"errors"
)

var (
	ErrEmptyKey   = errors.New("key cannot be empty")
	ErrNilValue   = errors.New("value cannot be nil")
	ErrCacheClose = errors.New("cache is closed")
)

// Cache is a spectrum cache. Get returns a nil slice and no error on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]float64, error)
	Set(ctx context.Context, key string, value []float64) error
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

func copyValue(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
