package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haskel/kstar/internal/kstar/kernel"
	"github.com/haskel/kstar/internal/logger"
)

func (c *Config) Validate() error {
	var errs []error

	if err := c.Model.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}

	if err := c.Evaluation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("evaluation: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	return errors.Join(errs...)
}

func (m *ModelConfig) Validate() error {
	var errs []error

	if m.WindowCapacity < 1 {
		errs = append(errs, fmt.Errorf("window_capacity must be at least 1, got %d", m.WindowCapacity))
	}

	if m.GlobalBlend < 0 || m.GlobalBlend > 100 {
		errs = append(errs, fmt.Errorf("global_blend must be between 0 and 100, got %d", m.GlobalBlend))
	}

	if m.RandomColumns < 1 {
		errs = append(errs, fmt.Errorf("random_columns must be at least 1, got %d", m.RandomColumns))
	}

	if m.CacheSizeBytes < 0 {
		errs = append(errs, fmt.Errorf("cache_size_bytes must be non-negative"))
	}

	if _, err := kernel.ParseMissingMode(m.MissingMode); err != nil {
		errs = append(errs, err)
	}

	if _, err := kernel.ParseBlendMethod(m.BlendMethod); err != nil {
		errs = append(errs, err)
	}

	if m.MissingNormalization != "incremental" && m.MissingNormalization != "post_loop" {
		errs = append(errs, fmt.Errorf("invalid missing_normalization: %s (valid: incremental, post_loop)", m.MissingNormalization))
	}

	return errors.Join(errs...)
}

func (e *EvaluationConfig) Validate() error {
	var errs []error

	if e.ClassIndex < -1 {
		errs = append(errs, fmt.Errorf("class_index must be -1 or a column index, got %d", e.ClassIndex))
	}

	if e.ReportEvery < 1 {
		errs = append(errs, fmt.Errorf("report_every must be at least 1, got %d", e.ReportEvery))
	}

	if e.MaxInstances < 0 {
		errs = append(errs, fmt.Errorf("max_instances must be non-negative"))
	}

	if e.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate_per_second must be non-negative"))
	}

	if e.RatePerSecond > 0 && e.Burst < 1 {
		errs = append(errs, fmt.Errorf("burst must be at least 1 when rate_per_second is set"))
	}

	if e.SampleIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("sample_interval_ms must be non-negative"))
	}

	if e.MinAvailableMB < 0 {
		errs = append(errs, fmt.Errorf("min_available_mb must be non-negative"))
	}

	if e.CurveFile != "" && e.CurveFlushMS < 1 {
		errs = append(errs, fmt.Errorf("curve_flush_ms must be positive when curve_file is set"))
	}

	return errors.Join(errs...)
}

func (l *LoggingConfig) Validate() error {
	if _, err := logger.ParseLevel(l.Level); err != nil {
		return err
	}

	if !logger.ValidFormat(l.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %s)", l.Format, strings.Join(logger.Formats, ", "))
	}

	return nil
}
