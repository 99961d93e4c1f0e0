package kstar

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/haskel/kstar/internal/instance"
	"github.com/haskel/kstar/internal/kstar/cache"
	"github.com/haskel/kstar/internal/kstar/kernel"
	"github.com/haskel/kstar/internal/window"
)

// Measurements is a snapshot of the classifier state.
type Measurements struct {
	WindowSize     int         `json:"window_size" yaml:"window_size"`
	WindowCapacity int         `json:"window_capacity" yaml:"window_capacity"`
	Trained        int64       `json:"trained" yaml:"trained"`
	Generation     int         `json:"generation" yaml:"generation"`
	State          string      `json:"state" yaml:"state"`
	Cache          cache.Stats `json:"cache" yaml:"cache"`
}

// Classifier is a windowed K* classifier. Training and queries are
// serialized by a mutex.
type Classifier struct {
	schema *instance.Schema
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	window  *window.Window
	engine  *Engine
	trained int64
}

// NewClassifier creates a classifier for instances of the given schema.
func NewClassifier(schema *instance.Schema, cfg Config, logger *slog.Logger) (*Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	engine, err := NewEngine(schema, cfg, logger)
	if err != nil {
		return nil, err
	}
	w, err := window.New(cfg.WindowCapacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Classifier{
		schema: schema,
		cfg:    cfg,
		logger: logger,
		window: w,
		engine: engine,
	}, nil
}

// Schema returns the schema the classifier was built for.
func (c *Classifier) Schema() *instance.Schema {
	return c.schema
}

// TrainOnInstance adds an instance to the window, evicting the oldest one
// when the window is full.
func (c *Classifier) TrainOnInstance(in *instance.Instance) error {
	if !c.schema.Compatible(in.Schema()) {
		return ErrSchemaMismatch
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.window.Add(in)
	c.trained++
	return nil
}

// VotesForInstance returns the class distribution (nominal class) or a
// one-element prediction (numeric class) for the instance.
func (c *Classifier) VotesForInstance(in *instance.Instance) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.engine.Votes(in, c.window)
}

// Predict returns the most probable label index for a nominal class or the
// predicted value for a numeric class.
func (c *Classifier) Predict(in *instance.Instance) (float64, error) {
	votes, err := c.VotesForInstance(in)
	if err != nil {
		return 0, err
	}
	if len(votes) == 0 {
		return instance.Missing(), nil
	}
	if c.schema.ClassAttribute().IsNumeric() {
		return votes[0], nil
	}
	return float64(floats.MaxIdx(votes)), nil
}

// SetBlendConfig changes the blend configuration; cached parameters are dropped.
func (c *Classifier) SetBlendConfig(b kernel.BlendConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.engine.SetBlendConfig(b); err != nil {
		return err
	}
	c.cfg.Blend = b
	return nil
}

// Reset forgets every trained instance and all derived state.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.window.Clear()
	c.engine.Reset()
	c.trained = 0
	c.logger.Debug("classifier reset")
}

// Reinitialize rebuilds caches and random columns against the current window.
func (c *Classifier) Reinitialize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.engine.Reinitialize(c.window)
}

// Measurements returns a snapshot of the classifier state.
func (c *Classifier) Measurements() Measurements {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Measurements{
		WindowSize:     c.window.Size(),
		WindowCapacity: c.window.Capacity(),
		Trained:        c.trained,
		Generation:     c.engine.Generation(),
		State:          c.engine.State().String(),
		Cache:          c.engine.CacheStats(),
	}
}

// Describe writes a human readable model description.
func (c *Classifier) Describe(w io.Writer) error {
	m := c.Measurements()

	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	class := c.schema.ClassAttribute()
	_, err := fmt.Fprintf(w,
		"K* classifier on %q (%d attributes, class %q: %s)\n"+
			"  blend: %s, global blend %d%%, missing mode %s, normalization %s\n"+
			"  window: %d/%d instances, %d trained\n"+
			"  engine: %s, generation %d, cache entries %d, hit rate %.2f\n",
		c.schema.Relation, c.schema.NumAttributes(), class.Name, class.Type,
		cfg.Blend.BlendMethod, cfg.Blend.GlobalBlend, cfg.Blend.MissingMode, cfg.Normalization,
		m.WindowSize, m.WindowCapacity, m.Trained,
		m.State, m.Generation, m.Cache.Entries, m.Cache.HitRate,
	)
	return err
}
