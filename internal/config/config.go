package config

import (
	"time"

	"github.com/haskel/kstar/internal/kstar"
	"github.com/haskel/kstar/internal/kstar/kernel"
)

type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ModelConfig holds the K* classifier options.
type ModelConfig struct {
	// WindowCapacity is the number of most recent training instances kept.
	WindowCapacity int `yaml:"window_capacity"`

	// MissingMode: average, delete, max_diff, normal
	MissingMode string `yaml:"missing_mode"`

	// BlendMethod: sphere, entropic
	BlendMethod string `yaml:"blend_method"`

	// GlobalBlend is the sphere of influence in percent (0-100).
	GlobalBlend int `yaml:"global_blend"`

	// RandomColumns and Seed control the shuffled class columns used by
	// entropic blending.
	RandomColumns int   `yaml:"random_columns"`
	Seed          int64 `yaml:"seed"`

	// CacheSizeBytes is the parameter cache budget per attribute.
	CacheSizeBytes int `yaml:"cache_size_bytes"`

	// MissingNormalization: incremental, post_loop
	MissingNormalization string `yaml:"missing_normalization"`

	ReinitializeOnDrift bool `yaml:"reinitialize_on_drift"`
}

// EvaluationConfig holds prequential evaluation options.
type EvaluationConfig struct {
	// ClassIndex selects the class attribute; -1 means the last one.
	ClassIndex int `yaml:"class_index"`

	ReportEvery  int `yaml:"report_every"`
	MaxInstances int `yaml:"max_instances"`

	// RatePerSecond throttles the stream; 0 disables throttling.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`

	// SampleIntervalMS is how often process memory is sampled; 0 samples
	// only at progress reports.
	SampleIntervalMS int `yaml:"sample_interval_ms"`

	// MinAvailableMB warns when host available memory drops below it;
	// 0 disables the check.
	MinAvailableMB int `yaml:"min_available_mb"`

	// CurveFile receives the learning curve as JSON when set.
	CurveFile    string `yaml:"curve_file"`
	CurveFlushMS int    `yaml:"curve_flush_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// File receives records instead of stderr when set. Without it the
	// live view discards logging.
	File string `yaml:"file"`
}

func (e *EvaluationConfig) SampleInterval() time.Duration {
	return time.Duration(e.SampleIntervalMS) * time.Millisecond
}

// MinAvailableBytes is the headroom floor in bytes.
func (e *EvaluationConfig) MinAvailableBytes() uint64 {
	if e.MinAvailableMB <= 0 {
		return 0
	}
	return uint64(e.MinAvailableMB) << 20
}

func (e *EvaluationConfig) CurveFlushInterval() time.Duration {
	return time.Duration(e.CurveFlushMS) * time.Millisecond
}

// KStar converts the model section into classifier options.
func (m *ModelConfig) KStar() (kstar.Config, error) {
	missing, err := kernel.ParseMissingMode(m.MissingMode)
	if err != nil {
		return kstar.Config{}, err
	}
	blend, err := kernel.ParseBlendMethod(m.BlendMethod)
	if err != nil {
		return kstar.Config{}, err
	}
	norm, err := kstar.ParseNormalization(m.MissingNormalization)
	if err != nil {
		return kstar.Config{}, err
	}

	return kstar.Config{
		Blend: kernel.BlendConfig{
			MissingMode: missing,
			BlendMethod: blend,
			GlobalBlend: m.GlobalBlend,
		},
		WindowCapacity:      m.WindowCapacity,
		RandomColumns:       m.RandomColumns,
		Seed:                m.Seed,
		CacheSizeBytes:      m.CacheSizeBytes,
		Normalization:       norm,
		ReinitializeOnDrift: m.ReinitializeOnDrift,
	}, nil
}
