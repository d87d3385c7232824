package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultLRUSize = 1024

// LRUCache is an in-process, size-bounded spectrum cache.
type LRUCache struct {
	entries *lru.Cache[string, []float64]
	closed  atomic.Bool
}

// NewLRUCache creates an LRU cache holding at most size spectra.
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = defaultLRUSize
	}
	entries, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &LRUCache{entries: entries}, nil
}

func (c *LRUCache) Get(ctx context.Context, key string) ([]float64, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if c.closed.Load() {
		return nil, ErrCacheClose
	}
	v, ok := c.entries.Get(key)
	if !ok {
		return nil, nil
	}
	return copyValue(v), nil
}

func (c *LRUCache) Set(ctx context.Context, key string, value []float64) error {
	if key == "" {
		return ErrEmptyKey
	}
	if value == nil {
		return ErrNilValue
	}
	if c.closed.Load() {
		return ErrCacheClose
	}
	c.entries.Add(key, copyValue(value))
	return nil
}

func (c *LRUCache) Len(ctx context.Context) (int, error) {
	return c.entries.Len(), nil
}

func (c *LRUCache) Clear(ctx context.Context) error {
	c.entries.Purge()
	return nil
}

func (c *LRUCache) Health(ctx context.Context) error {
	if c.closed.Load() {
		return ErrCacheClose
	}
	return nil
}

func (c *LRUCache) Close() error {
	c.closed.Store(true)
	c.entries.Purge()
	return nil
}
