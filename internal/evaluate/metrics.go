package evaluate

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/haskel/kstar/internal/instance"
)

// Task names the kind of prediction being scored.
type Task string

const (
	TaskClassification Task = "classification"
	TaskRegression     Task = "regression"
)

// Metrics is a snapshot of the running scores.
type Metrics struct {
	Task   Task  `json:"task" yaml:"task"`
	Scored int64 `json:"scored" yaml:"scored"`

	// classification
	Accuracy float64 `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	Kappa    float64 `json:"kappa,omitempty" yaml:"kappa,omitempty"`

	// regression
	MAE  float64 `json:"mae,omitempty" yaml:"mae,omitempty"`
	RMSE float64 `json:"rmse,omitempty" yaml:"rmse,omitempty"`
}

type tracker interface {
	add(in *instance.Instance, votes []float64)
	snapshot() Metrics
}

func newTracker(schema *instance.Schema) tracker {
	if schema.ClassAttribute().IsNominal() {
		return newClassificationTracker(schema.NumClasses())
	}
	return &regressionTracker{}
}

// classificationTracker keeps a confusion matrix indexed [actual][predicted].
// Each row carries one extra trailing column for instances that got no
// prediction, so every scored instance lands in the matrix.
type classificationTracker struct {
	confusion [][]float64
	scored    int64
	correct   int64
}

func newClassificationTracker(numClasses int) *classificationTracker {
	m := make([][]float64, numClasses)
	for i := range m {
		m[i] = make([]float64, numClasses+1)
	}
	return &classificationTracker{confusion: m}
}

// noPrediction is the confusion column for empty or out of range votes.
func (t *classificationTracker) noPrediction() int {
	return len(t.confusion)
}

func (t *classificationTracker) add(in *instance.Instance, votes []float64) {
	if in.ClassIsMissing() {
		return
	}
	actual := int(in.ClassValue())
	if actual < 0 || actual >= len(t.confusion) {
		return
	}

	t.scored++
	predicted := t.noPrediction()
	if len(votes) > 0 {
		if i := floats.MaxIdx(votes); i < len(t.confusion) {
			predicted = i
		}
	}
	t.confusion[actual][predicted]++
	if predicted == actual {
		t.correct++
	}
}

func (t *classificationTracker) snapshot() Metrics {
	m := Metrics{Task: TaskClassification, Scored: t.scored}
	if t.scored == 0 {
		return m
	}

	m.Accuracy = float64(t.correct) / float64(t.scored)

	actual, predicted := t.marginals()
	// The no-prediction column never agrees with an actual class.
	chance := floats.Dot(actual, predicted[:len(actual)])
	if chance < 1 {
		m.Kappa = (m.Accuracy - chance) / (1 - chance)
	}
	return m
}

// marginals returns the actual class shares and the predicted shares,
// the latter including the trailing no-prediction column. Both sum to 1.
func (t *classificationTracker) marginals() (actual, predicted []float64) {
	n := float64(t.scored)
	actual = make([]float64, len(t.confusion))
	predicted = make([]float64, len(t.confusion)+1)
	for i, row := range t.confusion {
		actual[i] = floats.Sum(row) / n
		for j, v := range row {
			predicted[j] += v / n
		}
	}
	return actual, predicted
}

type regressionTracker struct {
	scored   int64
	absError float64
	sqError  float64
}

func (t *regressionTracker) add(in *instance.Instance, votes []float64) {
	if in.ClassIsMissing() || len(votes) == 0 {
		return
	}
	diff := votes[0] - in.ClassValue()
	t.scored++
	t.absError += math.Abs(diff)
	t.sqError += diff * diff
}

func (t *regressionTracker) snapshot() Metrics {
	m := Metrics{Task: TaskRegression, Scored: t.scored}
	if t.scored == 0 {
		return m
	}
	n := float64(t.scored)
	m.MAE = t.absError / n
	m.RMSE = math.Sqrt(t.sqError / n)
	return m
}
