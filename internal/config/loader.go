package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "PKEMU"

// flagBindings maps viper keys to pflag names
var flagBindings = map[string]string{
	"artifacts.manifest":       "manifest",
	"emulator.workers":         "workers",
	"emulator.bounds_policy":   "bounds-policy",
	"cache.enabled":            "cache",
	"cache.size":               "cache-size",
	"cache.redis_addr":         "redis-addr",
	"cache.redis_password":     "redis-password",
	"cache.redis_db":           "redis-db",
	"cache.ttl":                "cache-ttl",
	"cache.compress_threshold": "cache-compress-threshold",
	"warmer.enabled":           "warm",
	"warmer.steps":             "warm-steps",
	"warmer.workers":           "warm-workers",
	"warmer.interval":          "warm-interval",
	"server.addr":              "addr",
	"server.read_timeout":      "read-timeout",
	"server.write_timeout":     "write-timeout",
	"server.shutdown_timeout":  "shutdown-timeout",
	"log.level":                "log-level",
	"log.pretty":               "log-pretty",
	"onnx.library_path":        "onnx-lib",
}

// RegisterFlags adds the configuration flags to fs, with DefaultConfig values as defaults
func RegisterFlags(fs *flag.FlagSet) {
	d := DefaultConfig()
	fs.String("config", "", "path to a YAML configuration file")
	fs.String("manifest", d.Artifacts.Manifest, "path to the artifact manifest")
	fs.Int("workers", d.Emulator.Workers, "concurrent regressor evaluations per prediction")
	fs.String("bounds-policy", d.Emulator.BoundsPolicy, "out-of-bounds handling: allow, warn, reject or clamp")
	fs.Bool("cache", d.Cache.Enabled, "enable the prediction cache")
	fs.Int("cache-size", d.Cache.Size, "in-process cache entries")
	fs.String("redis-addr", d.Cache.RedisAddr, "Redis address for the shared cache tier")
	fs.String("redis-password", d.Cache.RedisPassword, "Redis password")
	fs.Int("redis-db", d.Cache.RedisDB, "Redis database number")
	fs.Duration("cache-ttl", d.Cache.TTL, "Redis entry lifetime")
	fs.Int("cache-compress-threshold", d.Cache.CompressThreshold, "gzip Redis entries larger than this many bytes")
	fs.Bool("warm", d.Warmer.Enabled, "precompute the slider grid at startup")
	fs.Int("warm-steps", d.Warmer.Steps, "slider steps per parameter")
	fs.Int("warm-workers", d.Warmer.Workers, "concurrent warming predictions")
	fs.Duration("warm-interval", d.Warmer.Interval, "re-warm interval, 0 to warm once")
	fs.String("addr", d.Server.Addr, "HTTP listen address")
	fs.Duration("read-timeout", d.Server.ReadTimeout, "HTTP read timeout")
	fs.Duration("write-timeout", d.Server.WriteTimeout, "HTTP write timeout")
	fs.Duration("shutdown-timeout", d.Server.ShutdownTimeout, "graceful shutdown timeout")
	fs.String("log-level", d.Log.Level, "log level")
	fs.Bool("log-pretty", d.Log.Pretty, "human-readable console logs")
	fs.String("onnx-lib", d.ONNX.LibraryPath, "path to the ONNX runtime shared library")
}

// Load resolves the configuration. Precedence: flags > env > config file > defaults.
// flagSet may be nil.
func Load(flagSet *flag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The runtime's own variable is honoured as a fallback
	if err := v.BindEnv("onnx.library_path", EnvPrefix+"_ONNX_LIBRARY_PATH", "ONNXRUNTIME_LIB_PATH"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	configFile := os.Getenv(EnvPrefix + "_CONFIG")
	if flagSet != nil {
		if f := flagSet.Lookup("config"); f != nil && f.Changed {
			configFile = f.Value.String()
		}
		for key, name := range flagBindings {
			if f := flagSet.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Artifacts: ArtifactsConfig{
			Manifest: v.GetString("artifacts.manifest"),
		},
		Emulator: EmulatorConfig{
			Workers:      v.GetInt("emulator.workers"),
			BoundsPolicy: v.GetString("emulator.bounds_policy"),
		},
		Cache: CacheConfig{
			Enabled:           v.GetBool("cache.enabled"),
			Size:              v.GetInt("cache.size"),
			RedisAddr:         v.GetString("cache.redis_addr"),
			RedisPassword:     v.GetString("cache.redis_password"),
			RedisDB:           v.GetInt("cache.redis_db"),
			TTL:               v.GetDuration("cache.ttl"),
			CompressThreshold: v.GetInt("cache.compress_threshold"),
		},
		Warmer: WarmerConfig{
			Enabled:  v.GetBool("warmer.enabled"),
			Steps:    v.GetInt("warmer.steps"),
			Workers:  v.GetInt("warmer.workers"),
			Interval: v.GetDuration("warmer.interval"),
		},
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Pretty: v.GetBool("log.pretty"),
		},
		ONNX: ONNXConfig{
			LibraryPath: v.GetString("onnx.library_path"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("artifacts.manifest", d.Artifacts.Manifest)
	v.SetDefault("emulator.workers", d.Emulator.Workers)
	v.SetDefault("emulator.bounds_policy", d.Emulator.BoundsPolicy)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_password", d.Cache.RedisPassword)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.compress_threshold", d.Cache.CompressThreshold)
	v.SetDefault("warmer.enabled", d.Warmer.Enabled)
	v.SetDefault("warmer.steps", d.Warmer.Steps)
	v.SetDefault("warmer.workers", d.Warmer.Workers)
	v.SetDefault("warmer.interval", d.Warmer.Interval)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("onnx.library_path", d.ONNX.LibraryPath)
}

// LoadEnvFiles loads the first .env file found in the given locations.
// A missing file is not an error; variables already set are not overridden.
func LoadEnvFiles(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil {
			return p, nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return "", nil
}
