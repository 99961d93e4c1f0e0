package window

import (
	"errors"
	"fmt"

	"github.com/emirpasic/gods/queues/circularbuffer"

	"github.com/haskel/kstar/internal/instance"
)

var ErrInvalidCapacity = errors.New("window capacity must be positive")

// Window keeps the most recent training instances. When full, adding an
// instance evicts the oldest one.
type Window struct {
	capacity int
	buf      *circularbuffer.Queue
}

// New creates an empty window holding at most capacity instances.
func New(capacity int) (*Window, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Window{
		capacity: capacity,
		buf:      circularbuffer.New(capacity),
	}, nil
}

// Add appends an instance and returns the evicted one, if any.
func (w *Window) Add(in *instance.Instance) *instance.Instance {
	var evicted *instance.Instance
	if w.buf.Full() {
		if v, ok := w.buf.Dequeue(); ok {
			evicted = v.(*instance.Instance)
		}
	}
	w.buf.Enqueue(in)
	return evicted
}

// Size returns the number of retained instances.
func (w *Window) Size() int {
	return w.buf.Size()
}

// Capacity returns the configured maximum size.
func (w *Window) Capacity() int {
	return w.capacity
}

// Instances returns the retained instances, oldest first.
func (w *Window) Instances() []*instance.Instance {
	values := w.buf.Values()
	out := make([]*instance.Instance, len(values))
	for i, v := range values {
		out[i] = v.(*instance.Instance)
	}
	return out
}

// ClassValues returns the class column of the window as label indices, oldest first.
// Missing class values are reported as -1.
func (w *Window) ClassValues() []int {
	values := w.buf.Values()
	out := make([]int, len(values))
	for i, v := range values {
		in := v.(*instance.Instance)
		if in.ClassIsMissing() {
			out[i] = -1
			continue
		}
		out[i] = int(in.ClassValue())
	}
	return out
}

// Clear drops every retained instance.
func (w *Window) Clear() {
	w.buf.Clear()
}
