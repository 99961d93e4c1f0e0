// Package report persists the learning curve of an evaluation run.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/haskel/kstar/internal/evaluate"
)

// Curve is the persisted file layout.
type Curve struct {
	Version   int           `json:"version"`
	UpdatedAt time.Time     `json:"updated_at"`
	Source    string        `json:"source"`
	Task      evaluate.Task `json:"task,omitempty"`
	Points    []Point       `json:"points"`
}

// Point is one progress report.
type Point struct {
	Instances      int64   `json:"instances"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Accuracy       float64 `json:"accuracy,omitempty"`
	Kappa          float64 `json:"kappa,omitempty"`
	MAE            float64 `json:"mae,omitempty"`
	RMSE           float64 `json:"rmse,omitempty"`
	WindowSize     int     `json:"window_size"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	RSSBytes       uint64  `json:"rss_bytes"`
}

const currentVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported learning curve version")

// PointFrom flattens a progress report.
func PointFrom(p evaluate.Progress) Point {
	pt := Point{
		Instances:      p.Instances,
		ElapsedSeconds: p.Elapsed.Seconds(),
		Accuracy:       p.Metrics.Accuracy,
		Kappa:          p.Metrics.Kappa,
		MAE:            p.Metrics.MAE,
		RMSE:           p.Metrics.RMSE,
		RSSBytes:       p.Resources.Process.RSSBytes,
	}
	if p.Model != nil {
		pt.WindowSize = p.Model.WindowSize
		pt.CacheHitRate = p.Model.Cache.HitRate
	}
	return pt
}

// Writer collects points in memory and flushes them to a JSON file
// periodically and on Stop. Files are replaced atomically.
type Writer struct {
	path          string
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.RWMutex
	curve  *Curve
	dirty  bool
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a writer for the given file.
func New(path, source string, flushInterval time.Duration, logger *slog.Logger) *Writer {
	return &Writer{
		path:          path,
		flushInterval: flushInterval,
		logger:        logger,
		curve:         newCurve(source),
		done:          make(chan struct{}),
	}
}

func newCurve(source string) *Curve {
	return &Curve{
		Version:   currentVersion,
		UpdatedAt: time.Now(),
		Source:    source,
		Points:    []Point{},
	}
}

// Add appends a progress report.
func (w *Writer) Add(p evaluate.Progress) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p.Metrics.Task != "" {
		w.curve.Task = p.Metrics.Task
	}
	w.curve.Points = append(w.curve.Points, PointFrom(p))
	w.dirty = true
}

// Len returns the number of points collected.
func (w *Writer) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.curve.Points)
}

// IsDirty returns whether points were added since the last save.
func (w *Writer) IsDirty() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dirty
}

// Save writes the curve to disk.
func (w *Writer) Save() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.saveLocked()
}

func (w *Writer) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return err
	}

	tempPath := w.path + ".tmp"
	w.curve.UpdatedAt = time.Now()

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(w.curve); err != nil {
		file.Close()
		os.Remove(tempPath)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, w.path); err != nil {
		os.Remove(tempPath)
		return err
	}

	w.dirty = false
	w.logger.Debug("learning curve saved", "path", w.path, "points", len(w.curve.Points))

	return nil
}

// Start starts the periodic flush goroutine.
func (w *Writer) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	go w.flushLoop(ctx)
}

// Stop stops the periodic flush and saves the final state.
func (w *Writer) Stop() error {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}

	return w.Save()
}

func (w *Writer) flushLoop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.IsDirty() {
				continue
			}
			if err := w.Save(); err != nil {
				w.logger.Error("failed to save learning curve", "error", err)
			}
		}
	}
}

// Load reads a curve written by a Writer.
func Load(path string) (*Curve, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var c Curve
	if err := json.NewDecoder(file).Decode(&c); err != nil {
		return nil, err
	}
	if c.Version > currentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, c.Version)
	}
	return &c, nil
}
