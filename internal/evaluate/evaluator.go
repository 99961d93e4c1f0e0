// Package evaluate runs prequential (test-then-train) evaluation of a
// stream learner.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/haskel/kstar/internal/instance"
	"github.com/haskel/kstar/internal/kstar"
	"github.com/haskel/kstar/internal/monitor"
)

// Learner is an incremental classifier or regressor.
type Learner interface {
	TrainOnInstance(in *instance.Instance) error
	VotesForInstance(in *instance.Instance) ([]float64, error)
}

// Measurer is implemented by learners that expose their internal state.
type Measurer interface {
	Measurements() kstar.Measurements
}

// Source yields instances until io.EOF.
type Source interface {
	Schema() *instance.Schema
	Next() (*instance.Instance, error)
}

type Options struct {
	ReportEvery    int
	MaxInstances   int
	RatePerSecond  float64
	Burst          int
	SampleInterval time.Duration

	// MinAvailableBytes is the host memory floor reported by the sampler.
	MinAvailableBytes uint64
}

// Progress is reported every ReportEvery instances and once at the end.
type Progress struct {
	Instances       int64                 `json:"instances" yaml:"instances"`
	Elapsed         time.Duration         `json:"elapsed" yaml:"elapsed"`
	InstancesPerSec float64               `json:"instances_per_sec" yaml:"instances_per_sec"`
	Metrics         Metrics               `json:"metrics" yaml:"metrics"`
	Resources       monitor.ResourceState `json:"resources" yaml:"resources"`
	Model           *kstar.Measurements   `json:"model,omitempty" yaml:"model,omitempty"`
	Done            bool                  `json:"done" yaml:"done"`
}

type Evaluator struct {
	learner Learner
	opts    Options
	logger  *slog.Logger
	limiter *rate.Limiter
}

func New(learner Learner, opts Options, logger *slog.Logger) *Evaluator {
	if opts.ReportEvery <= 0 {
		opts.ReportEvery = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Evaluator{
		learner: learner,
		opts:    opts,
		logger:  logger.With("component", "evaluator"),
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return e
}

// Run scores every instance before training on it. onProgress may be nil.
// On cancellation the progress so far is returned with the context error.
func (e *Evaluator) Run(ctx context.Context, src Source, onProgress func(Progress)) (Progress, error) {
	sampler := monitor.Default(e.opts.SampleInterval, e.opts.MinAvailableBytes, e.logger)
	if err := sampler.Start(ctx); err != nil {
		return Progress{}, err
	}
	defer func() { _ = sampler.Stop() }()

	scores := newTracker(src.Schema())
	start := time.Now()
	var seen int64

	report := func(done bool) Progress {
		if e.opts.SampleInterval <= 0 {
			sampler.Collect()
		}
		p := e.progress(seen, time.Since(start), scores, sampler, done)
		if onProgress != nil {
			onProgress(p)
		}
		return p
	}

	e.logger.Info("evaluation started",
		"relation", src.Schema().Relation,
		"attributes", src.Schema().NumAttributes(),
		"max_instances", e.opts.MaxInstances,
	)

	for e.opts.MaxInstances <= 0 || seen < int64(e.opts.MaxInstances) {
		if err := ctx.Err(); err != nil {
			return report(true), err
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return report(true), err
			}
		}

		in, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report(true), fmt.Errorf("read instance %d: %w", seen+1, err)
		}

		votes, err := e.learner.VotesForInstance(in)
		if err != nil {
			return report(true), fmt.Errorf("predict instance %d: %w", seen+1, err)
		}
		scores.add(in, votes)

		if err := e.learner.TrainOnInstance(in); err != nil {
			return report(true), fmt.Errorf("train instance %d: %w", seen+1, err)
		}
		seen++

		if seen%int64(e.opts.ReportEvery) == 0 {
			p := report(false)
			e.logger.Info("progress",
				"instances", p.Instances,
				"instances_per_sec", p.InstancesPerSec,
				"rss_bytes", p.Resources.Process.RSSBytes,
			)
		}
	}

	p := report(true)
	e.logger.Info("evaluation finished", "instances", p.Instances, "elapsed", p.Elapsed)
	return p, nil
}

func (e *Evaluator) progress(seen int64, elapsed time.Duration, scores tracker, sampler *monitor.Aggregator, done bool) Progress {
	p := Progress{
		Instances: seen,
		Elapsed:   elapsed,
		Metrics:   scores.snapshot(),
		Resources: sampler.State(),
		Done:      done,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		p.InstancesPerSec = float64(seen) / secs
	}
	if m, ok := e.learner.(Measurer); ok {
		mm := m.Measurements()
		p.Model = &mm
	}
	return p
}
