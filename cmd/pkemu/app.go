package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/objones25/pkemu/internal/artifacts"
	"github.com/objones25/pkemu/internal/config"
	"github.com/objones25/pkemu/internal/emulator"
	"github.com/objones25/pkemu/internal/regression"
	"github.com/objones25/pkemu/internal/storage/cache"
)

// app holds the long-lived components built from a configuration
type app struct {
	cfg   *config.Config
	store *artifacts.Store
	cache cache.Cache
	redis *cache.RedisCache
	emu   *emulator.Emulator
}

// newApp loads the artifacts and builds the emulator and its cache.
// withCache=false skips the cache even when it is enabled in cfg.
func newApp(ctx context.Context, cfg *config.Config, withCache bool) (*app, error) {
	store, err := artifacts.Load(ctx, cfg.Artifacts.Manifest, artifacts.LoadOptions{
		ONNXLibraryPath: cfg.ONNX.LibraryPath,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: store}
	if withCache && cfg.Cache.Enabled {
		if err := a.buildCache(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	policy, err := emulator.ParseBoundsPolicy(cfg.Emulator.BoundsPolicy)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.emu, err = emulator.New(store, emulator.Config{
		Workers:      cfg.Emulator.Workers,
		BoundsPolicy: policy,
		Cache:        a.cache,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildCache(ctx context.Context) error {
	local, err := cache.NewLRUCache(a.cfg.Cache.Size)
	if err != nil {
		return err
	}
	if a.cfg.Cache.RedisAddr == "" {
		a.cache = local
		return nil
	}

	a.redis, err = cache.NewRedisCache(ctx, cache.Config{
		Addr:                 a.cfg.Cache.RedisAddr,
		Password:             a.cfg.Cache.RedisPassword,
		DB:                   a.cfg.Cache.RedisDB,
		DefaultTTL:           a.cfg.Cache.TTL,
		CompressionThreshold: a.cfg.Cache.CompressThreshold,
		Namespace:            cache.NewKeyGenerator(a.store.Fingerprint()).Prefix(),
	})
	if err != nil {
		return fmt.Errorf("failed to connect prediction cache: %w", err)
	}
	log.Info().Stringer("redis", a.redis).Msg("Using Redis prediction cache")
	a.cache = cache.NewTiered(local, a.redis)
	return nil
}

// Close releases the cache connections, the regressors and the ONNX runtime
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close cache")
		}
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to release artifacts")
	}
	regression.ShutdownRuntime()
}
