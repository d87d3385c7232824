package cache

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/objones25/pkemu/internal/storage/compression"
)

const (
	defaultCompressionThreshold = 1024 // Compress spectra larger than 1KB
	defaultMaxRetries           = 3
	defaultPoolSize             = 10
	defaultMinIdleConns         = 2
	defaultTTL                  = 24 * time.Hour
	scanBatch                   = 256
)

// Config holds Redis connection settings
type Config struct {
	Addr                 string
	Password             string
	DB                   int
	DefaultTTL           time.Duration
	PoolSize             int
	MinIdleConns         int
	MaxRetries           int
	CompressionThreshold int
	// Namespace restricts Len and Clear to keys with this prefix.
	Namespace string
}

// RedisCache stores JSON-encoded spectra in Redis, gzipping payloads above
// the compression threshold.
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	compressor *compression.Compressor
	namespace  string
}

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, cfg Config) (*RedisCache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = defaultTTL
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.MinIdleConns <= 0 {
		cfg.MinIdleConns = defaultMinIdleConns
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.CompressionThreshold <= 0 {
		cfg.CompressionThreshold = defaultCompressionThreshold
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	return &RedisCache{
		client:     client,
		defaultTTL: cfg.DefaultTTL,
		compressor: &compression.Compressor{Threshold: cfg.CompressionThreshold, Level: gzip.BestSpeed},
		namespace:  cfg.Namespace,
	}, nil
}

func (rc *RedisCache) Set(ctx context.Context, key string, value []float64) error {
	if key == "" {
		return ErrEmptyKey
	}
	if value == nil {
		return ErrNilValue
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal spectrum: %w", err)
	}

	data, err = rc.compressor.Compress(data)
	if err != nil {
		return fmt.Errorf("failed to compress spectrum: %w", err)
	}

	return rc.client.Set(ctx, key, data, rc.defaultTTL).Err()
}

func (rc *RedisCache) Get(ctx context.Context, key string) ([]float64, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	data, err := rc.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get spectrum from Redis: %w", err)
	}

	data, err = rc.compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress spectrum: %w", err)
	}

	var value []float64
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spectrum: %w", err)
	}
	return value, nil
}

// BatchGet retrieves multiple spectra with a single pipeline. Misses are
// absent from the result.
func (rc *RedisCache) BatchGet(ctx context.Context, keys []string) (map[string][]float64, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := rc.client.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		cmds[key] = pipe.Get(ctx, key)
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to execute batch get: %w", err)
	}

	results := make(map[string][]float64, len(cmds))
	for key, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		data, err = rc.compressor.Decompress(data)
		if err != nil {
			continue
		}
		var value []float64
		if err := json.Unmarshal(data, &value); err != nil {
			continue
		}
		results[key] = value
	}
	return results, nil
}

func (rc *RedisCache) pattern() string {
	if rc.namespace == "" {
		return "*"
	}
	return rc.namespace + ":*"
}

// Len counts keys under the namespace. It walks the keyspace with SCAN and
// is meant for diagnostics, not hot paths.
func (rc *RedisCache) Len(ctx context.Context) (int, error) {
	n := 0
	iter := rc.client.Scan(ctx, 0, rc.pattern(), scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan Redis keys: %w", err)
	}
	return n, nil
}

// Clear deletes every key under the namespace.
func (rc *RedisCache) Clear(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, rc.pattern(), scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := rc.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan Redis keys: %w", err)
	}
	if len(batch) > 0 {
		if err := rc.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to delete keys: %w", err)
		}
	}
	return nil
}

// Close implements proper resource cleanup
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Health checks the health of the Redis connection
func (rc *RedisCache) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// String describes the backing connection for logs.
func (rc *RedisCache) String() string {
	opts := rc.client.Options()
	return "redis://" + opts.Addr + "/" + strconv.Itoa(opts.DB)
}
