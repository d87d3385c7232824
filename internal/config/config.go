// Package config holds the service configuration and loads it from
// defaults, an optional YAML file, PKEMU_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"time"

	"github.com/objones25/pkemu/internal/emulator"
)

// Config is the complete service configuration
type Config struct {
	Artifacts ArtifactsConfig
	Emulator  EmulatorConfig
	Cache     CacheConfig
	Warmer    WarmerConfig
	Server    ServerConfig
	Log       LogConfig
	ONNX      ONNXConfig
}

// ArtifactsConfig locates the model artifacts
type ArtifactsConfig struct {
	Manifest string // Path to the artifact manifest YAML
}

// EmulatorConfig controls prediction
type EmulatorConfig struct {
	Workers      int    // Concurrent regressor evaluations per prediction
	BoundsPolicy string // allow, warn, reject or clamp
}

// CacheConfig controls the prediction cache
type CacheConfig struct {
	Enabled           bool
	Size              int // In-process LRU entries
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	TTL               time.Duration
	CompressThreshold int // Bytes above which Redis entries are gzipped
}

// WarmerConfig controls the slider-grid cache warmer
type WarmerConfig struct {
	Enabled  bool
	Steps    int
	Workers  int
	Interval time.Duration // Zero warms once at startup
}

// ServerConfig controls the HTTP interface
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig controls logging
type LogConfig struct {
	Level  string
	Pretty bool
}

// ONNXConfig locates the ONNX runtime shared library
type ONNXConfig struct {
	LibraryPath string
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Artifacts: ArtifactsConfig{
			Manifest: "model/manifest.yaml",
		},
		Emulator: EmulatorConfig{
			Workers:      1,
			BoundsPolicy: string(emulator.BoundsAllow),
		},
		Cache: CacheConfig{
			Enabled:           true,
			Size:              4096,
			TTL:               24 * time.Hour,
			CompressThreshold: 1024,
		},
		Warmer: WarmerConfig{
			Enabled: false,
			Steps:   50,
			Workers: 4,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration and fails on the first problem
func (c *Config) Validate() error {
	if c.Artifacts.Manifest == "" {
		return fmt.Errorf("artifacts manifest path is required")
	}
	if c.Emulator.Workers < 0 {
		return fmt.Errorf("emulator workers must be non-negative, got %d", c.Emulator.Workers)
	}
	if _, err := emulator.ParseBoundsPolicy(c.Emulator.BoundsPolicy); err != nil {
		return err
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.Cache.Size)
	}
	if c.Cache.RedisAddr != "" && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %v", c.Cache.TTL)
	}
	if c.Cache.RedisDB < 0 {
		return fmt.Errorf("redis database must be non-negative, got %d", c.Cache.RedisDB)
	}
	if c.Warmer.Enabled {
		if !c.Cache.Enabled {
			return fmt.Errorf("cache warmer requires the cache to be enabled")
		}
		if c.Warmer.Steps <= 0 {
			return fmt.Errorf("warmer steps must be positive, got %d", c.Warmer.Steps)
		}
		if c.Warmer.Interval < 0 {
			return fmt.Errorf("warmer interval must be non-negative, got %v", c.Warmer.Interval)
		}
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
