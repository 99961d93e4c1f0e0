package config

import (
	"github.com/haskel/kstar/internal/kstar"
	"github.com/haskel/kstar/internal/kstar/cache"
	"github.com/haskel/kstar/internal/kstar/kernel"
	"github.com/haskel/kstar/internal/kstar/randcol"
)

func Default() *Config {
	return &Config{
		Model: ModelConfig{
			WindowCapacity:       kstar.DefaultWindowCapacity,
			MissingMode:          kernel.MissingAverage.String(),
			BlendMethod:          kernel.BlendSphere.String(),
			GlobalBlend:          kernel.DefaultGlobalBlend,
			RandomColumns:        randcol.DefaultCount,
			Seed:                 randcol.DefaultSeed,
			CacheSizeBytes:       cache.DefaultSizeBytes,
			MissingNormalization: kstar.NormalizeIncremental.String(),
		},
		Evaluation: EvaluationConfig{
			ClassIndex:       -1,
			ReportEvery:      1000,
			MaxInstances:     0,
			RatePerSecond:    0,
			Burst:            1,
			SampleIntervalMS: 1000,
			CurveFlushMS:     5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
