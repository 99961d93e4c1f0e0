package tui

import (
	"time"

	"github.com/haskel/kstar/internal/evaluate"
)

// Config holds TUI configuration
type Config struct {
	Source   string
	Relation string
	Progress <-chan evaluate.Progress
}

// Model represents the TUI state
type Model struct {
	config Config

	latest   *evaluate.Progress
	accuracy []float64
	finished bool
	started  time.Time

	width  int
	height int
}

// historyLen is how many accuracy samples the trend line keeps.
const historyLen = 40

// NewModel creates a new TUI model
func NewModel(cfg Config) Model {
	return Model{
		config:  cfg,
		started: time.Now(),
	}
}

func (m Model) score() float64 {
	if m.latest == nil {
		return 0
	}
	if m.latest.Metrics.Task == evaluate.TaskRegression {
		return m.latest.Metrics.RMSE
	}
	return m.latest.Metrics.Accuracy
}
