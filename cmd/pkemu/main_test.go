package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objones25/pkemu/internal/config"
	"github.com/objones25/pkemu/internal/emulator"
	"github.com/objones25/pkemu/internal/storage/cache"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Artifacts.Manifest = filepath.Join("..", "..", "testdata", "model", "manifest.yaml")
	cfg.Cache.Size = 16
	return &cfg
}

func TestParseParams(t *testing.T) {
	p, err := parseParams("")
	require.NoError(t, err)
	assert.Equal(t, emulator.DefaultParameters(), p)

	p, err = parseParams("0.7, 0.3,0.05,2.0,1.0,0.1")
	require.NoError(t, err)
	assert.Equal(t, emulator.ParameterVector{0.7, 0.3, 0.05, 2.0, 1.0, 0.1}, p)

	_, err = parseParams("0.7,abc")
	assert.True(t, emulator.IsInvalidInput(err))
}

func TestNewAppLocalCache(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, testConfig(t), true)
	require.NoError(t, err)
	defer a.Close()

	_, ok := a.cache.(*cache.LRUCache)
	assert.True(t, ok)
	assert.Nil(t, a.redis)

	_, err = a.emu.Predict(ctx, emulator.DefaultParameters())
	require.NoError(t, err)
	n, err := a.cache.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewAppRedisCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	cfg := testConfig(t)
	cfg.Cache.RedisAddr = s.Addr()
	ctx := context.Background()

	a, err := newApp(ctx, cfg, true)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.redis)

	_, err = a.emu.Predict(ctx, emulator.DefaultParameters())
	require.NoError(t, err)
	keys := s.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "pk:"+a.store.Fingerprint()+":h3:")

	require.NoError(t, runVerify(ctx, cfg, false))
}

func TestNewAppWithoutCache(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t), false)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.cache)
}

func TestNewAppLoadFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Artifacts.Manifest = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := newApp(context.Background(), cfg, true)
	assert.True(t, emulator.IsArtifactLoad(err))
}

func TestRunVerifyNeedsRedis(t *testing.T) {
	assert.Error(t, runVerify(context.Background(), testConfig(t), false))
}
