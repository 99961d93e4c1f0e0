// Package kstar implements the K* lazy stream classifier: the transformation
// probability engine and the windowed classifier built on it.
package kstar

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/floats"

	"github.com/haskel/kstar/internal/instance"
	"github.com/haskel/kstar/internal/kstar/cache"
	"github.com/haskel/kstar/internal/kstar/kernel"
	"github.com/haskel/kstar/internal/kstar/randcol"
)

// State is the lifecycle state of an engine.
type State int

const (
	StateUninitialized State = iota
	StateReady
)

// String returns string representation.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Window is the read-only view of the training window used by the engine.
type Window interface {
	Size() int
	Instances() []*instance.Instance
	ClassValues() []int
}

// Engine computes transformation probabilities of a query against a window.
// It is not safe for concurrent use.
type Engine struct {
	schema  *instance.Schema
	cfg     Config
	kernels []kernel.Kernel // nil at the class index
	logger  *slog.Logger

	state       State
	caches      *cache.Set
	columns     randcol.Columns
	fingerprint uint64
	generation  int
}

// NewEngine creates an engine for the given schema. Kernels are chosen once
// per attribute from its declared type.
func NewEngine(schema *instance.Schema, cfg Config, logger *slog.Logger) (*Engine, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: schema is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkBlend(schema, cfg.Blend); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	kernels := make([]kernel.Kernel, schema.NumAttributes())
	for i, a := range schema.Attributes {
		if i == schema.ClassIndex {
			continue
		}
		k := kernel.For(a)
		if k == nil {
			return nil, fmt.Errorf("%w: %w: attribute %q", ErrInvalidConfig, ErrUnsupportedAttribute, a.Name)
		}
		kernels[i] = k
	}

	return &Engine{
		schema:  schema,
		cfg:     cfg,
		kernels: kernels,
		logger:  logger.With("component", "engine"),
	}, nil
}

func checkBlend(schema *instance.Schema, b kernel.BlendConfig) error {
	if b.BlendMethod == kernel.BlendEntropic && !schema.ClassAttribute().IsNominal() {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrEntropicNeedsNominalClass)
	}
	return nil
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Generation returns how many times the engine has been initialized.
func (e *Engine) Generation() int {
	return e.generation
}

// BlendConfig returns the active blend configuration.
func (e *Engine) BlendConfig() kernel.BlendConfig {
	return e.cfg.Blend
}

// SetBlendConfig replaces the blend configuration. Cached parameters were
// derived under the old one, so the engine drops them and initializes again
// on the next query.
func (e *Engine) SetBlendConfig(b kernel.BlendConfig) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := checkBlend(e.schema, b); err != nil {
		return err
	}
	e.cfg.Blend = b
	e.drop()
	return nil
}

// EnsureInitialized allocates caches and, for entropic blending, builds the
// random class columns. It only does work on the first call, when the
// random columns no longer match the window length, or (with drift
// reinitialization) when the window's class column changed.
func (e *Engine) EnsureInitialized(w Window) {
	switch {
	case e.state == StateUninitialized:
		e.initialize(w, "first query")
	case e.cfg.ReinitializeOnDrift && e.fingerprint != classFingerprint(w.ClassValues()):
		e.initialize(w, "class drift")
	case e.entropic() && e.columns.Len() != w.Size():
		e.columns = randcol.Generate(w.ClassValues(), e.cfg.RandomColumns, e.cfg.Seed)
		e.logger.Debug("random class columns rebuilt", "window", w.Size())
	}
}

// Reinitialize drops all derived state and initializes against w.
func (e *Engine) Reinitialize(w Window) {
	e.drop()
	e.initialize(w, "explicit")
}

// Reset returns the engine to the uninitialized state.
func (e *Engine) Reset() {
	e.drop()
	e.generation = 0
}

func (e *Engine) drop() {
	if e.caches != nil {
		e.caches.Clear()
	}
	e.caches = nil
	e.columns = nil
	e.fingerprint = 0
	e.state = StateUninitialized
}

func (e *Engine) initialize(w Window, reason string) {
	classes := w.ClassValues()

	e.columns = nil
	if e.entropic() {
		e.columns = randcol.Generate(classes, e.cfg.RandomColumns, e.cfg.Seed)
	}
	if e.cfg.ReinitializeOnDrift {
		e.fingerprint = classFingerprint(classes)
	}
	e.caches = cache.NewSet(e.schema.NumAttributes(), e.cfg.CacheSizeBytes)
	e.state = StateReady
	e.generation++

	e.logger.Debug("engine initialized",
		"reason", reason,
		"generation", e.generation,
		"window", w.Size(),
		"random_columns", e.columns.Count(),
	)
}

func (e *Engine) entropic() bool {
	return e.cfg.Blend.BlendMethod == kernel.BlendEntropic
}

func classFingerprint(classes []int) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, c := range classes {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(c)))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// CacheStats returns aggregated cache statistics. It is zero before
// initialization.
func (e *Engine) CacheStats() cache.Stats {
	if e.caches == nil {
		return cache.Stats{}
	}
	return e.caches.Stats()
}

// PairwiseProbability returns the probability of query transforming into
// train, normalized by the window size.
func (e *Engine) PairwiseProbability(query, train *instance.Instance, w Window) (float64, error) {
	if !e.schema.Compatible(query.Schema()) || !e.schema.Compatible(train.Schema()) {
		return 0, ErrSchemaMismatch
	}
	e.EnsureInitialized(w)
	rows := w.Instances()
	return e.pairwise(query, train, rows, e.references(rows))
}

// references fingerprints every non-class column of the window once per query.
func (e *Engine) references(rows []*instance.Instance) []uint64 {
	refs := make([]uint64, e.schema.NumAttributes())
	for i := range refs {
		if i == e.schema.ClassIndex {
			continue
		}
		refs[i] = kernel.ColumnFingerprint(rows, i)
	}
	return refs
}

func (e *Engine) pairwise(query, train *instance.Instance, rows []*instance.Instance, refs []uint64) (float64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	total := query.NumAttributes()
	prob := 1.0
	missing, observed := 0, 0

	for i := 0; i < total; i++ {
		if i == e.schema.ClassIndex {
			continue
		}
		if query.IsMissing(i) {
			missing++
			continue
		}

		k := e.kernels[i]
		p := k.TransProb(kernel.Input{
			Query:     query,
			Train:     train,
			Attr:      i,
			Window:    rows,
			Columns:   e.columns,
			Cache:     e.caches.For(i),
			Config:    e.cfg.Blend,
			Reference: refs[i],
		})
		if math.IsNaN(p) || p < 0 || p > 1 {
			return 0, fmt.Errorf("%w: %s kernel on attribute %q returned %v",
				ErrKernelContract, k.Name(), e.schema.Attribute(i).Name, p)
		}

		prob *= p
		observed++
		if e.cfg.Normalization == NormalizeIncremental && missing > 0 {
			prob = math.Pow(prob, float64(total)/float64(total-missing))
		}
	}

	if observed == 0 {
		return 0, nil
	}
	if e.cfg.Normalization == NormalizePostLoop && missing > 0 {
		prob = math.Pow(prob, float64(total)/float64(total-missing))
	}
	return prob / float64(len(rows)), nil
}

// Votes returns the class distribution for a nominal class, a one-element
// prediction for a numeric class, and an empty slice otherwise.
func (e *Engine) Votes(query *instance.Instance, w Window) ([]float64, error) {
	if !e.schema.Compatible(query.Schema()) {
		return nil, ErrSchemaMismatch
	}
	e.EnsureInitialized(w)
	rows := w.Instances()

	classAttr := e.schema.ClassAttribute()
	switch {
	case classAttr.IsNominal():
		return e.nominalVotes(query, rows, classAttr.NumValues())
	case classAttr.IsNumeric():
		return e.numericVote(query, rows)
	default:
		return []float64{}, nil
	}
}

func (e *Engine) nominalVotes(query *instance.Instance, rows []*instance.Instance, numClasses int) ([]float64, error) {
	refs := e.references(rows)
	votes := make([]float64, numClasses)
	for _, train := range rows {
		if train.ClassIsMissing() {
			continue
		}
		c := int(train.ClassValue())
		if c < 0 || c >= numClasses {
			continue
		}
		p, err := e.pairwise(query, train, rows, refs)
		if err != nil {
			return nil, err
		}
		votes[c] += p
	}

	sum := floats.Sum(votes)
	if sum <= 0 {
		for i := range votes {
			votes[i] = 1 / float64(numClasses)
		}
		return votes, nil
	}
	floats.Scale(1/sum, votes)
	return votes, nil
}

func (e *Engine) numericVote(query *instance.Instance, rows []*instance.Instance) ([]float64, error) {
	refs := e.references(rows)
	var sum, weight float64
	for _, train := range rows {
		if train.ClassIsMissing() {
			continue
		}
		p, err := e.pairwise(query, train, rows, refs)
		if err != nil {
			return nil, err
		}
		sum += p * train.ClassValue()
		weight += p
	}
	if weight == 0 {
		return []float64{0}, nil
	}
	return []float64{sum / weight}, nil
}
