package evaluate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/haskel/kstar/internal/arff"
	"github.com/haskel/kstar/internal/instance"
	"github.com/haskel/kstar/internal/kstar"
)

func classSchema(t *testing.T) *instance.Schema {
	t.Helper()
	s, err := instance.NewSchema("eval", []instance.Attribute{
		{Name: "x", Type: instance.Numeric},
		{Name: "class", Type: instance.Nominal, Values: []string{"a", "b"}},
	}, 1)
	require.NoError(t, err)
	return s
}

func regressionSchema(t *testing.T) *instance.Schema {
	t.Helper()
	s, err := instance.NewSchema("eval", []instance.Attribute{
		{Name: "x", Type: instance.Numeric},
		{Name: "y", Type: instance.Numeric},
	}, 1)
	require.NoError(t, err)
	return s
}

type sliceSource struct {
	schema *instance.Schema
	rows   []*instance.Instance
	err    error
}

func (s *sliceSource) Schema() *instance.Schema { return s.schema }

func (s *sliceSource) Next() (*instance.Instance, error) {
	if len(s.rows) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	in := s.rows[0]
	s.rows = s.rows[1:]
	return in, nil
}

// recordingLearner always votes for class 0 and records call order.
type recordingLearner struct {
	calls    []string
	trainErr error
}

func (l *recordingLearner) TrainOnInstance(*instance.Instance) error {
	l.calls = append(l.calls, "train")
	return l.trainErr
}

func (l *recordingLearner) VotesForInstance(*instance.Instance) ([]float64, error) {
	l.calls = append(l.calls, "votes")
	return []float64{1, 0}, nil
}

func rows(s *instance.Schema, n int) []*instance.Instance {
	out := make([]*instance.Instance, n)
	for i := range out {
		out[i] = instance.MustNew(s, float64(i), float64(i%2))
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassificationTracker(t *testing.T) {
	s := classSchema(t)
	tr := newTracker(s)

	// actual [a a b b], predicted [a b b b]
	tr.add(instance.MustNew(s, 0, 0), []float64{0.9, 0.1})
	tr.add(instance.MustNew(s, 0, 0), []float64{0.2, 0.8})
	tr.add(instance.MustNew(s, 0, 1), []float64{0.3, 0.7})
	tr.add(instance.MustNew(s, 0, 1), []float64{0.1, 0.9})
	tr.add(instance.MustNew(s, 0, instance.Missing()), []float64{1, 0})

	m := tr.snapshot()
	assert.Equal(t, TaskClassification, m.Task)
	assert.Equal(t, int64(4), m.Scored)
	assert.InDelta(t, 0.75, m.Accuracy, 1e-12)
	assert.InDelta(t, 0.5, m.Kappa, 1e-12)
}

func TestClassificationTracker_EmptyVotesCountAsWrong(t *testing.T) {
	s := classSchema(t)
	tr := newTracker(s)
	tr.add(instance.MustNew(s, 0, 0), []float64{})
	tr.add(instance.MustNew(s, 0, 0), []float64{1, 0})

	m := tr.snapshot()
	assert.Equal(t, int64(2), m.Scored)
	assert.InDelta(t, 0.5, m.Accuracy, 1e-12)
	assert.InDelta(t, 0.0, m.Kappa, 1e-12)
}

func TestClassificationTracker_NoPredictionKeepsMarginalsWhole(t *testing.T) {
	s := classSchema(t)
	tr := newClassificationTracker(s.NumClasses())
	tr.add(instance.MustNew(s, 0, 0), []float64{1, 0})
	tr.add(instance.MustNew(s, 0, 1), []float64{0, 1})
	tr.add(instance.MustNew(s, 0, 0), nil)

	actual, predicted := tr.marginals()
	assert.InDelta(t, 1.0, floats.Sum(actual), 1e-12)
	assert.InDelta(t, 1.0, floats.Sum(predicted), 1e-12)
	assert.InDeltaSlice(t, []float64{2.0 / 3, 1.0 / 3}, actual, 1e-12)
	assert.InDeltaSlice(t, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}, predicted, 1e-12)

	// chance = 2/9 + 1/9, kappa = (2/3 - 1/3) / (1 - 1/3)
	m := tr.snapshot()
	assert.Equal(t, int64(3), m.Scored)
	assert.InDelta(t, 2.0/3, m.Accuracy, 1e-12)
	assert.InDelta(t, 0.5, m.Kappa, 1e-12)
}

func TestRegressionTracker(t *testing.T) {
	s := regressionSchema(t)
	tr := newTracker(s)
	tr.add(instance.MustNew(s, 0, 1), []float64{2})
	tr.add(instance.MustNew(s, 0, 1), []float64{-2})
	tr.add(instance.MustNew(s, 0, instance.Missing()), []float64{5})

	m := tr.snapshot()
	assert.Equal(t, TaskRegression, m.Task)
	assert.Equal(t, int64(2), m.Scored)
	assert.InDelta(t, 2.0, m.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(5), m.RMSE, 1e-12)
}

func TestRun_TestsBeforeTraining(t *testing.T) {
	s := classSchema(t)
	l := &recordingLearner{}
	ev := New(l, Options{}, quietLogger())

	p, err := ev.Run(context.Background(), &sliceSource{schema: s, rows: rows(s, 2)}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"votes", "train", "votes", "train"}, l.calls)
	assert.Equal(t, int64(2), p.Instances)
	assert.True(t, p.Done)
	assert.InDelta(t, 0.5, p.Metrics.Accuracy, 1e-12)
}

func TestRun_ReportsProgress(t *testing.T) {
	s := classSchema(t)
	ev := New(&recordingLearner{}, Options{ReportEvery: 3}, quietLogger())

	var reports []Progress
	_, err := ev.Run(context.Background(), &sliceSource{schema: s, rows: rows(s, 10)}, func(p Progress) {
		reports = append(reports, p)
	})
	require.NoError(t, err)

	require.Len(t, reports, 4)
	assert.Equal(t, int64(3), reports[0].Instances)
	assert.Equal(t, int64(9), reports[2].Instances)
	assert.False(t, reports[2].Done)
	assert.Equal(t, int64(10), reports[3].Instances)
	assert.True(t, reports[3].Done)
	assert.False(t, reports[3].Resources.Timestamp.IsZero())
}

func TestRun_MaxInstances(t *testing.T) {
	s := classSchema(t)
	src := &sliceSource{schema: s, rows: rows(s, 10)}
	ev := New(&recordingLearner{}, Options{MaxInstances: 4}, quietLogger())

	p, err := ev.Run(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.Instances)
	assert.Len(t, src.rows, 6)
}

func TestRun_Cancelled(t *testing.T) {
	s := classSchema(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ev := New(&recordingLearner{}, Options{}, quietLogger())
	p, err := ev.Run(ctx, &sliceSource{schema: s, rows: rows(s, 5)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), p.Instances)
	assert.True(t, p.Done)
}

func TestRun_RateLimited(t *testing.T) {
	s := classSchema(t)
	ev := New(&recordingLearner{}, Options{RatePerSecond: 10000, Burst: 5}, quietLogger())

	p, err := ev.Run(context.Background(), &sliceSource{schema: s, rows: rows(s, 5)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Instances)
}

func TestRun_Errors(t *testing.T) {
	s := classSchema(t)
	boom := errors.New("boom")

	t.Run("source", func(t *testing.T) {
		ev := New(&recordingLearner{}, Options{}, quietLogger())
		p, err := ev.Run(context.Background(), &sliceSource{schema: s, rows: rows(s, 2), err: boom}, nil)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "read instance 3")
		assert.Equal(t, int64(2), p.Instances)
	})

	t.Run("train", func(t *testing.T) {
		ev := New(&recordingLearner{trainErr: boom}, Options{}, quietLogger())
		_, err := ev.Run(context.Background(), &sliceSource{schema: s, rows: rows(s, 2)}, nil)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "train instance 1")
	})
}

const weather = `@relation weather
@attribute outlook {sunny, overcast, rainy}
@attribute temperature numeric
@attribute humidity numeric
@attribute play {yes, no}
@data
sunny,85,85,no
sunny,80,90,no
overcast,83,86,yes
rainy,70,96,yes
rainy,68,80,yes
rainy,65,70,no
overcast,64,65,yes
sunny,72,95,no
sunny,69,70,yes
rainy,75,80,yes
sunny,75,70,yes
overcast,72,90,yes
overcast,81,75,yes
rainy,71,91,no
`

func TestRun_KStarOnArff(t *testing.T) {
	rd, err := arff.NewReader(strings.NewReader(weather))
	require.NoError(t, err)

	clf, err := kstar.NewClassifier(rd.Schema(), kstar.DefaultConfig(), quietLogger())
	require.NoError(t, err)

	p, err := New(clf, Options{}, quietLogger()).Run(context.Background(), rd, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(14), p.Instances)
	assert.Equal(t, int64(14), p.Metrics.Scored)
	assert.GreaterOrEqual(t, p.Metrics.Accuracy, 0.0)
	assert.LessOrEqual(t, p.Metrics.Accuracy, 1.0)
	require.NotNil(t, p.Model)
	assert.Equal(t, int64(14), p.Model.Trained)
	assert.Equal(t, kstar.DefaultWindowCapacity, p.Model.WindowSize)
}
