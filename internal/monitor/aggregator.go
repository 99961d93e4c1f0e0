package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Aggregator periodically collects every monitor into one ResourceState.
type Aggregator struct {
	monitors []Monitor
	state    *ResourceState
	interval time.Duration
	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger

	// low is the headroom flag of the previous sample; warnings fire on
	// the transition only.
	low bool
}

func NewAggregator(monitors []Monitor, interval time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		monitors: monitors,
		state:    &ResourceState{},
		interval: interval,
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Default returns an aggregator over host memory headroom and the current
// process. A process monitor that cannot be opened is skipped.
func Default(interval time.Duration, floorBytes uint64, logger *slog.Logger) *Aggregator {
	monitors := []Monitor{NewHeadroomMonitor(floorBytes)}
	if pm, err := NewProcessMonitor(); err == nil {
		monitors = append(monitors, pm)
	} else {
		logger.Warn("process monitor unavailable", "error", err)
	}
	return NewAggregator(monitors, interval, logger)
}

// Start collects once and then keeps sampling until ctx is done or Stop is
// called. A non-positive interval disables the background loop.
func (a *Aggregator) Start(ctx context.Context) error {
	a.Collect()

	if a.interval > 0 {
		go a.runLoop(ctx)
	}

	a.logger.Debug("resource sampling started", "interval", a.interval, "monitors", len(a.monitors))
	return nil
}

func (a *Aggregator) Stop() error {
	a.stopOnce.Do(func() {
		close(a.done)
		a.logger.Debug("resource sampling stopped")
	})
	return nil
}

// State returns a copy of the latest sample.
func (a *Aggregator) State() ResourceState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return *a.state
}

func (a *Aggregator) StateJSON() ([]byte, error) {
	return json.Marshal(a.State())
}

func (a *Aggregator) runLoop(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Collect()
		case <-ctx.Done():
			return
		case <-a.done:
			return
		}
	}
}

// Collect samples every monitor synchronously.
func (a *Aggregator) Collect() {
	next := &ResourceState{Timestamp: time.Now()}

	for _, m := range a.monitors {
		data, err := m.Collect()
		if err != nil {
			a.logger.Warn("monitor collection failed",
				"monitor", m.Name(),
				"error", err,
			)
			continue
		}

		switch m.Name() {
		case "headroom":
			if hs, ok := data.(*HeadroomState); ok {
				next.Headroom = *hs
			}
		case "process":
			if procState, ok := data.(*ProcessState); ok {
				next.Process = *procState
			}
		}
	}

	a.mu.Lock()
	a.state = next
	wasLow := a.low
	a.low = next.Headroom.Low
	a.mu.Unlock()

	switch {
	case next.Headroom.Low && !wasLow:
		a.logger.Warn("host memory below floor",
			"available_bytes", next.Headroom.AvailableBytes,
			"floor_bytes", next.Headroom.FloorBytes,
		)
	case !next.Headroom.Low && wasLow:
		a.logger.Info("host memory recovered",
			"available_bytes", next.Headroom.AvailableBytes,
		)
	}
}
