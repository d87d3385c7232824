package emulator

import (
	"fmt"
	"strings"

	"github.com/objones25/pkemu/internal/storage/cache"
)

// BoundsPolicy decides what happens to parameters outside the advisory bounds
type BoundsPolicy string

const (
	// BoundsAllow predicts anyway; the regressors extrapolate
	BoundsAllow BoundsPolicy = "allow"
	// BoundsWarn predicts anyway and logs a warning
	BoundsWarn BoundsPolicy = "warn"
	// BoundsReject fails with ErrOutOfBounds
	BoundsReject BoundsPolicy = "reject"
	// BoundsClamp limits each parameter to its interval before predicting
	BoundsClamp BoundsPolicy = "clamp"
)

// ParseBoundsPolicy parses a policy name; the empty string selects BoundsAllow
func ParseBoundsPolicy(s string) (BoundsPolicy, error) {
	switch p := BoundsPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return BoundsAllow, nil
	case BoundsAllow, BoundsWarn, BoundsReject, BoundsClamp:
		return p, nil
	default:
		return "", fmt.Errorf("unknown bounds policy %q", s)
	}
}

// Config holds emulator settings
type Config struct {
	// Workers bounds concurrent regressor evaluations per prediction; <= 1 is sequential
	Workers      int
	BoundsPolicy BoundsPolicy
	// Cache memoizes spectra; nil disables caching
	Cache cache.Cache
}

// DefaultConfig returns the default emulator configuration
func DefaultConfig() Config {
	return Config{
		Workers:      1,
		BoundsPolicy: BoundsAllow,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if _, err := ParseBoundsPolicy(string(c.BoundsPolicy)); err != nil {
		return err
	}
	return nil
}
