package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	d := DefaultConfig()
	assert.Equal(t, d.Artifacts.Manifest, cfg.Artifacts.Manifest)
	assert.Equal(t, 1, cfg.Emulator.Workers)
	assert.Equal(t, "allow", cfg.Emulator.BoundsPolicy)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 50, cfg.Warmer.Steps)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pkemu.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
artifacts:
  manifest: /models/a/manifest.yaml
emulator:
  workers: 2
  bounds_policy: warn
cache:
  redis_addr: redis:6379
  ttl: 1h
server:
  addr: ":9000"
`), 0o644))

	t.Run("File", func(t *testing.T) {
		t.Setenv("PKEMU_CONFIG", file)
		cfg, err := Load(nil)
		require.NoError(t, err)
		assert.Equal(t, "/models/a/manifest.yaml", cfg.Artifacts.Manifest)
		assert.Equal(t, 2, cfg.Emulator.Workers)
		assert.Equal(t, "warn", cfg.Emulator.BoundsPolicy)
		assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
		assert.Equal(t, time.Hour, cfg.Cache.TTL)
		assert.Equal(t, ":9000", cfg.Server.Addr)
	})

	t.Run("Env_Over_File", func(t *testing.T) {
		t.Setenv("PKEMU_CONFIG", file)
		t.Setenv("PKEMU_EMULATOR_WORKERS", "6")
		t.Setenv("PKEMU_SERVER_ADDR", ":9100")
		cfg, err := Load(nil)
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Emulator.Workers)
		assert.Equal(t, ":9100", cfg.Server.Addr)
		assert.Equal(t, "warn", cfg.Emulator.BoundsPolicy)
	})

	t.Run("Flags_Over_Env", func(t *testing.T) {
		t.Setenv("PKEMU_EMULATOR_WORKERS", "6")
		fs := newFlagSet(t, "--config", file, "--workers", "3", "--bounds-policy", "clamp")
		cfg, err := Load(fs)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Emulator.Workers)
		assert.Equal(t, "clamp", cfg.Emulator.BoundsPolicy)
		assert.Equal(t, ":9000", cfg.Server.Addr)
	})

	t.Run("Unset_Flags_Do_Not_Override", func(t *testing.T) {
		t.Setenv("PKEMU_EMULATOR_WORKERS", "6")
		cfg, err := Load(newFlagSet(t))
		require.NoError(t, err)
		assert.Equal(t, 6, cfg.Emulator.Workers)
	})
}

func TestLoadONNXLibraryFallback(t *testing.T) {
	t.Setenv("ONNXRUNTIME_LIB_PATH", "/opt/onnxruntime/lib/libonnxruntime.so")
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "/opt/onnxruntime/lib/libonnxruntime.so", cfg.ONNX.LibraryPath)

	t.Setenv("PKEMU_ONNX_LIBRARY_PATH", "/usr/lib/libonnxruntime.so")
	cfg, err = Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", cfg.ONNX.LibraryPath)
}

func TestLoadErrors(t *testing.T) {
	t.Run("Missing_File", func(t *testing.T) {
		t.Setenv("PKEMU_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := Load(nil)
		assert.Error(t, err)
	})

	t.Run("Invalid_Value", func(t *testing.T) {
		t.Setenv("PKEMU_EMULATOR_BOUNDS_POLICY", "ignore")
		_, err := Load(nil)
		assert.ErrorContains(t, err, "bounds policy")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Default", func(*Config) {}, false},
		{"No_Manifest", func(c *Config) { c.Artifacts.Manifest = "" }, true},
		{"Negative_Workers", func(c *Config) { c.Emulator.Workers = -1 }, true},
		{"Bad_Policy", func(c *Config) { c.Emulator.BoundsPolicy = "maybe" }, true},
		{"Zero_Cache_Size", func(c *Config) { c.Cache.Size = 0 }, true},
		{"Disabled_Cache_Size_Ignored", func(c *Config) { c.Cache.Enabled = false; c.Cache.Size = 0 }, false},
		{"Redis_Without_TTL", func(c *Config) { c.Cache.RedisAddr = "localhost:6379"; c.Cache.TTL = 0 }, true},
		{"Warmer_Without_Cache", func(c *Config) { c.Warmer.Enabled = true; c.Cache.Enabled = false }, true},
		{"Warmer_Zero_Steps", func(c *Config) { c.Warmer.Enabled = true; c.Warmer.Steps = 0 }, true},
		{"No_Addr", func(c *Config) { c.Server.Addr = "" }, true},
		{"Zero_Timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, true},
		{"Bad_Log_Level", func(c *Config) { c.Log.Level = "loud" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PKEMU_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("PKEMU_TEST_DOTENV") })

	loaded, err := LoadEnvFiles(filepath.Join(dir, "missing.env"), envFile)
	require.NoError(t, err)
	assert.Equal(t, envFile, loaded)
	assert.Equal(t, "loaded", os.Getenv("PKEMU_TEST_DOTENV"))

	loaded, err = LoadEnvFiles(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSetupLogging(t *testing.T) {
	prevLevel, prevLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prevLogger
	})

	var buf bytes.Buffer
	require.NoError(t, setupLogging(LogConfig{Level: "warn"}, &buf))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	log.Info().Msg("hidden")
	log.Warn().Str("parameter", "h").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"parameter":"h"`)

	assert.Error(t, setupLogging(LogConfig{Level: "loud"}, &buf))
}
