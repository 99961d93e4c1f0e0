package kstar

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haskel/kstar/internal/instance"
	"github.com/haskel/kstar/internal/kstar/kernel"
	"github.com/haskel/kstar/internal/window"
)

// fixedKernel returns a preset probability per training instance.
type fixedKernel struct {
	probs map[*instance.Instance]float64
	def   float64
}

func (k *fixedKernel) Name() string { return "fixed" }

func (k *fixedKernel) TransProb(in kernel.Input) float64 {
	if p, ok := k.probs[in.Train]; ok {
		return p
	}
	return k.def
}

func nominalClassSchema(t *testing.T, numeric int) *instance.Schema {
	t.Helper()
	attrs := make([]instance.Attribute, 0, numeric+1)
	for i := 0; i < numeric; i++ {
		attrs = append(attrs, instance.Attribute{Name: string(rune('a' + i)), Type: instance.Numeric})
	}
	attrs = append(attrs, instance.Attribute{Name: "class", Type: instance.Nominal, Values: []string{"A", "B"}})
	s, err := instance.NewSchema("test", attrs, numeric)
	require.NoError(t, err)
	return s
}

func numericClassSchema(t *testing.T) *instance.Schema {
	t.Helper()
	s, err := instance.NewSchema("regression", []instance.Attribute{
		{Name: "x", Type: instance.Numeric},
		{Name: "y", Type: instance.Numeric},
	}, 1)
	require.NoError(t, err)
	return s
}

func fill(t *testing.T, capacity int, rows ...*instance.Instance) *window.Window {
	t.Helper()
	w, err := window.New(capacity)
	require.NoError(t, err)
	for _, r := range rows {
		w.Add(r)
	}
	return w
}

func newTestEngine(t *testing.T, s *instance.Schema, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(s, cfg, nil)
	require.NoError(t, err)
	return e
}

func TestVotes_NominalWeightedByClass(t *testing.T) {
	s := nominalClassSchema(t, 1)
	a1 := instance.MustNew(s, 1, 0)
	a2 := instance.MustNew(s, 2, 0)
	b := instance.MustNew(s, 3, 1)
	w := fill(t, 10, a1, a2, b)

	e := newTestEngine(t, s, DefaultConfig())
	e.kernels[0] = &fixedKernel{probs: map[*instance.Instance]float64{a1: 0.6, a2: 0.3, b: 0.1}}

	votes, err := e.Votes(instance.MustNew(s, 0, instance.Missing()), w)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.InDelta(t, 0.9, votes[0], 1e-9)
	assert.InDelta(t, 0.1, votes[1], 1e-9)
}

func TestVotes_NumericWeightedMean(t *testing.T) {
	s := numericClassSchema(t)
	t1 := instance.MustNew(s, 1, 10)
	t2 := instance.MustNew(s, 2, 20)
	w := fill(t, 10, t1, t2)

	e := newTestEngine(t, s, DefaultConfig())
	e.kernels[0] = &fixedKernel{probs: map[*instance.Instance]float64{t1: 0.4, t2: 0.6}}

	votes, err := e.Votes(instance.MustNew(s, 0, instance.Missing()), w)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.InDelta(t, 16.0, votes[0], 1e-9)
}

func TestVotes_AllQueryAttributesMissing(t *testing.T) {
	t.Run("nominal", func(t *testing.T) {
		s := nominalClassSchema(t, 2)
		w := fill(t, 10, instance.MustNew(s, 1, 2, 0), instance.MustNew(s, 3, 4, 1))
		e := newTestEngine(t, s, DefaultConfig())

		query := instance.MustNew(s, instance.Missing(), instance.Missing(), instance.Missing())
		votes, err := e.Votes(query, w)
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 0.5}, votes)

		p, err := e.PairwiseProbability(query, w.Instances()[0], w)
		require.NoError(t, err)
		assert.Equal(t, 0.0, p)
	})

	t.Run("numeric", func(t *testing.T) {
		s := numericClassSchema(t)
		w := fill(t, 10, instance.MustNew(s, 1, 10), instance.MustNew(s, 2, 20))
		e := newTestEngine(t, s, DefaultConfig())

		votes, err := e.Votes(instance.MustNew(s, instance.Missing(), instance.Missing()), w)
		require.NoError(t, err)
		assert.Equal(t, []float64{0}, votes)
	})
}

func TestVotes_EmptyWindowIsUniform(t *testing.T) {
	s := nominalClassSchema(t, 1)
	e := newTestEngine(t, s, DefaultConfig())

	votes, err := e.Votes(instance.MustNew(s, 1, instance.Missing()), fill(t, 5))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, votes)
}

func TestVotes_UnsupportedClassTypeIsEmpty(t *testing.T) {
	s := &instance.Schema{
		Relation: "odd",
		Attributes: []instance.Attribute{
			{Name: "x", Type: instance.Numeric},
			{Name: "c", Type: instance.AttributeType(7)},
		},
		ClassIndex: 1,
	}
	e := newTestEngine(t, s, DefaultConfig())

	votes, err := e.Votes(instance.MustNew(s, 1, 0), fill(t, 5, instance.MustNew(s, 1, 0)))
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestPairwise_DividesByWindowSize(t *testing.T) {
	s := nominalClassSchema(t, 1)
	rows := []*instance.Instance{
		instance.MustNew(s, 1, 0),
		instance.MustNew(s, 2, 0),
		instance.MustNew(s, 3, 1),
		instance.MustNew(s, 4, 1),
	}
	w := fill(t, 10, rows...)
	e := newTestEngine(t, s, DefaultConfig())
	e.kernels[0] = &fixedKernel{def: 0.8}

	p, err := e.PairwiseProbability(instance.MustNew(s, 1, instance.Missing()), rows[0], w)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, p, 1e-12)
}

func TestPairwise_MissingNormalization(t *testing.T) {
	s := nominalClassSchema(t, 3) // total attributes = 4
	train := instance.MustNew(s, 1, 1, 1, 0)
	w := fill(t, 10, train)

	tests := []struct {
		name  string
		mode  Normalization
		query *instance.Instance
		want  float64
	}{
		{
			name:  "incremental, missing first",
			mode:  NormalizeIncremental,
			query: instance.MustNew(s, instance.Missing(), 1, 1, instance.Missing()),
			want:  math.Pow(0.5, 28.0/9.0),
		},
		{
			name:  "incremental, missing last",
			mode:  NormalizeIncremental,
			query: instance.MustNew(s, 1, 1, instance.Missing(), instance.Missing()),
			want:  0.25,
		},
		{
			name:  "post loop, missing first",
			mode:  NormalizePostLoop,
			query: instance.MustNew(s, instance.Missing(), 1, 1, instance.Missing()),
			want:  math.Pow(0.25, 4.0/3.0),
		},
		{
			name:  "post loop, missing last",
			mode:  NormalizePostLoop,
			query: instance.MustNew(s, 1, 1, instance.Missing(), instance.Missing()),
			want:  math.Pow(0.25, 4.0/3.0),
		},
		{
			name:  "nothing missing",
			mode:  NormalizeIncremental,
			query: instance.MustNew(s, 1, 1, 1, instance.Missing()),
			want:  0.125,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Normalization = tt.mode
			e := newTestEngine(t, s, cfg)
			for i := 0; i < 3; i++ {
				e.kernels[i] = &fixedKernel{def: 0.5}
			}

			p, err := e.PairwiseProbability(tt.query, train, w)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, p, 1e-12)
		})
	}
}

func TestPairwise_KernelContract(t *testing.T) {
	s := nominalClassSchema(t, 1)
	train := instance.MustNew(s, 1, 0)
	w := fill(t, 10, train)

	for _, bad := range []float64{-0.1, 1.5, math.NaN()} {
		e := newTestEngine(t, s, DefaultConfig())
		e.kernels[0] = &fixedKernel{def: bad}

		_, err := e.PairwiseProbability(instance.MustNew(s, 1, instance.Missing()), train, w)
		assert.True(t, errors.Is(err, ErrKernelContract), "value %v: %v", bad, err)

		_, err = e.Votes(instance.MustNew(s, 1, instance.Missing()), w)
		assert.True(t, errors.Is(err, ErrKernelContract))
	}
}

func TestPairwise_NonNegative(t *testing.T) {
	s := nominalClassSchema(t, 2)
	rows := []*instance.Instance{
		instance.MustNew(s, 1, 5, 0),
		instance.MustNew(s, 2, instance.Missing(), 0),
		instance.MustNew(s, 8, 7, 1),
		instance.MustNew(s, 9, 6, 1),
	}
	w := fill(t, 10, rows...)
	e := newTestEngine(t, s, DefaultConfig())

	queries := []*instance.Instance{
		instance.MustNew(s, 1.5, 5, instance.Missing()),
		instance.MustNew(s, instance.Missing(), 6, instance.Missing()),
		instance.MustNew(s, 100, -3, instance.Missing()),
	}
	for _, q := range queries {
		for _, r := range rows {
			p, err := e.PairwiseProbability(q, r, w)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, p, 0.0)
		}
	}
}

func TestEnsureInitialized_Idempotent(t *testing.T) {
	s := nominalClassSchema(t, 1)
	w := fill(t, 10, instance.MustNew(s, 1, 0), instance.MustNew(s, 2, 1), instance.MustNew(s, 3, 1))

	cfg := DefaultConfig()
	cfg.Blend.BlendMethod = kernel.BlendEntropic
	e := newTestEngine(t, s, cfg)
	assert.Equal(t, StateUninitialized, e.State())

	e.EnsureInitialized(w)
	caches, columns := e.caches, e.columns
	require.NotNil(t, caches)
	require.Len(t, columns, cfg.RandomColumns+1)

	e.EnsureInitialized(w)
	assert.Same(t, caches, e.caches)
	assert.Equal(t, columns, e.columns)
	assert.Same(t, &columns[0][0], &e.columns[0][0])
	assert.Equal(t, 1, e.Generation())
	assert.Equal(t, StateReady, e.State())
}

func TestEnsureInitialized_SphereHasNoColumns(t *testing.T) {
	s := nominalClassSchema(t, 1)
	e := newTestEngine(t, s, DefaultConfig())
	e.EnsureInitialized(fill(t, 10, instance.MustNew(s, 1, 0)))

	assert.Nil(t, e.columns)
	assert.Equal(t, 2, e.caches.Len())
}

func TestEnsureInitialized_RebuildsColumnsOnGrowth(t *testing.T) {
	s := nominalClassSchema(t, 1)
	cfg := DefaultConfig()
	cfg.Blend.BlendMethod = kernel.BlendEntropic
	e := newTestEngine(t, s, cfg)

	w := fill(t, 10, instance.MustNew(s, 1, 0))
	e.EnsureInitialized(w)
	caches := e.caches
	assert.Equal(t, 1, e.columns.Len())

	w.Add(instance.MustNew(s, 2, 1))
	e.EnsureInitialized(w)
	assert.Equal(t, 2, e.columns.Len())
	assert.Equal(t, []int{0, 1}, e.columns.Original())
	assert.Same(t, caches, e.caches)
	assert.Equal(t, 1, e.Generation())
}

func TestEnsureInitialized_ReinitializeOnDrift(t *testing.T) {
	s := nominalClassSchema(t, 1)
	cfg := DefaultConfig()
	cfg.ReinitializeOnDrift = true
	e := newTestEngine(t, s, cfg)

	w := fill(t, 2, instance.MustNew(s, 1, 0), instance.MustNew(s, 2, 0))
	e.EnsureInitialized(w)
	e.EnsureInitialized(w)
	assert.Equal(t, 1, e.Generation())

	w.Add(instance.MustNew(s, 3, 1))
	e.EnsureInitialized(w)
	assert.Equal(t, 2, e.Generation())
}

func TestReinitialize(t *testing.T) {
	s := nominalClassSchema(t, 1)
	w := fill(t, 10, instance.MustNew(s, 1, 0))
	e := newTestEngine(t, s, DefaultConfig())

	e.EnsureInitialized(w)
	first := e.caches
	e.Reinitialize(w)

	assert.NotSame(t, first, e.caches)
	assert.Equal(t, 2, e.Generation())

	e.Reset()
	assert.Equal(t, StateUninitialized, e.State())
	assert.Equal(t, 0, e.Generation())
	assert.Equal(t, int64(0), e.CacheStats().Entries)
}

func TestSetBlendConfig(t *testing.T) {
	s := nominalClassSchema(t, 1)
	w := fill(t, 10, instance.MustNew(s, 1, 0), instance.MustNew(s, 5, 1))
	e := newTestEngine(t, s, DefaultConfig())

	_, err := e.Votes(instance.MustNew(s, 2, instance.Missing()), w)
	require.NoError(t, err)
	assert.Positive(t, e.CacheStats().Entries)

	b := kernel.DefaultBlendConfig()
	b.GlobalBlend = 60
	require.NoError(t, e.SetBlendConfig(b))
	assert.Equal(t, StateUninitialized, e.State())
	assert.Equal(t, int64(0), e.CacheStats().Entries)
	assert.Equal(t, 60, e.BlendConfig().GlobalBlend)

	b.GlobalBlend = 120
	assert.True(t, errors.Is(e.SetBlendConfig(b), ErrInvalidConfig))
}

func TestNewEngine_Errors(t *testing.T) {
	s := nominalClassSchema(t, 1)

	cfg := DefaultConfig()
	cfg.RandomColumns = 0
	_, err := NewEngine(s, cfg, nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = NewEngine(nil, DefaultConfig(), nil)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	cfg = DefaultConfig()
	cfg.Blend.BlendMethod = kernel.BlendEntropic
	_, err = NewEngine(numericClassSchema(t), cfg, nil)
	assert.True(t, errors.Is(err, ErrEntropicNeedsNominalClass))
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestVotes_SchemaMismatch(t *testing.T) {
	s := nominalClassSchema(t, 1)
	e := newTestEngine(t, s, DefaultConfig())

	_, err := e.Votes(instance.MustNew(numericClassSchema(t), 1, 2), fill(t, 5))
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestVotes_RealKernelsSeparateClusters(t *testing.T) {
	s, err := instance.NewSchema("clusters", []instance.Attribute{
		{Name: "x", Type: instance.Numeric},
		{Name: "color", Type: instance.Nominal, Values: []string{"red", "blue"}},
		{Name: "class", Type: instance.Nominal, Values: []string{"A", "B"}},
	}, 2)
	require.NoError(t, err)

	rows := []*instance.Instance{
		instance.MustNew(s, 1.0, 0, 0),
		instance.MustNew(s, 1.2, 0, 0),
		instance.MustNew(s, 0.8, 0, 0),
		instance.MustNew(s, 10.0, 1, 1),
		instance.MustNew(s, 10.5, 1, 1),
		instance.MustNew(s, 9.7, 1, 1),
	}

	for _, method := range []kernel.BlendMethod{kernel.BlendSphere, kernel.BlendEntropic} {
		t.Run(method.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Blend.BlendMethod = method
			e := newTestEngine(t, s, cfg)
			w := fill(t, 10, rows...)

			votes, err := e.Votes(instance.MustNew(s, 1.1, 0, instance.Missing()), w)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, votes[0]+votes[1], 1e-9)
			assert.Greater(t, votes[0], votes[1])

			votes, err = e.Votes(instance.MustNew(s, 9.9, 1, instance.Missing()), w)
			require.NoError(t, err)
			assert.Greater(t, votes[1], votes[0])
		})
	}
}

func TestClassFingerprint(t *testing.T) {
	assert.Equal(t, classFingerprint([]int{0, 1, 1}), classFingerprint([]int{0, 1, 1}))
	assert.NotEqual(t, classFingerprint([]int{0, 1, 1}), classFingerprint([]int{1, 1, 0}))
}

func TestParseNormalization(t *testing.T) {
	for _, n := range []Normalization{NormalizeIncremental, NormalizePostLoop} {
		got, err := ParseNormalization(n.String())
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
	_, err := ParseNormalization("eager")
	assert.Error(t, err)
}
