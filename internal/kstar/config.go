package kstar

import (
	"errors"
	"fmt"

	"github.com/haskel/kstar/internal/kstar/cache"
	"github.com/haskel/kstar/internal/kstar/kernel"
	"github.com/haskel/kstar/internal/kstar/randcol"
)

// DefaultWindowCapacity is the number of training instances kept by default.
const DefaultWindowCapacity = 10

// Normalization selects when the missing-value exponent is applied.
type Normalization int

const (
	// NormalizeIncremental raises the running product after every attribute.
	NormalizeIncremental Normalization = iota
	// NormalizePostLoop raises the full product once.
	NormalizePostLoop
)

// String returns string representation.
func (n Normalization) String() string {
	switch n {
	case NormalizeIncremental:
		return "incremental"
	case NormalizePostLoop:
		return "post_loop"
	default:
		return "unknown"
	}
}

// ParseNormalization parses the config spelling of a normalization mode.
func ParseNormalization(s string) (Normalization, error) {
	switch s {
	case "incremental":
		return NormalizeIncremental, nil
	case "post_loop":
		return NormalizePostLoop, nil
	}
	return 0, fmt.Errorf("unknown missing normalization: %q (valid: incremental, post_loop)", s)
}

// Config holds the model options.
type Config struct {
	Blend               kernel.BlendConfig
	WindowCapacity      int
	RandomColumns       int
	Seed                int64
	CacheSizeBytes      int
	Normalization       Normalization
	ReinitializeOnDrift bool
}

// DefaultConfig returns a configuration with K* defaults.
func DefaultConfig() Config {
	return Config{
		Blend:          kernel.DefaultBlendConfig(),
		WindowCapacity: DefaultWindowCapacity,
		RandomColumns:  randcol.DefaultCount,
		Seed:           randcol.DefaultSeed,
		CacheSizeBytes: cache.DefaultSizeBytes,
		Normalization:  NormalizeIncremental,
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	var errs []error

	if err := c.Blend.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.WindowCapacity <= 0 {
		errs = append(errs, fmt.Errorf("window capacity must be positive, got %d", c.WindowCapacity))
	}
	if c.RandomColumns <= 0 {
		errs = append(errs, fmt.Errorf("random columns must be positive, got %d", c.RandomColumns))
	}
	if c.CacheSizeBytes < 0 {
		errs = append(errs, fmt.Errorf("cache size must not be negative, got %d", c.CacheSizeBytes))
	}
	if c.Normalization.String() == "unknown" {
		errs = append(errs, fmt.Errorf("invalid missing normalization %d", c.Normalization))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
