package monitor

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessMonitor reports the resident memory and CPU usage of one process.
type ProcessMonitor struct {
	mu   sync.Mutex
	proc *process.Process
}

// NewProcessMonitor watches the current process.
func NewProcessMonitor() (*ProcessMonitor, error) {
	return NewProcessMonitorFor(int32(os.Getpid()))
}

// NewProcessMonitorFor watches the process with the given pid.
func NewProcessMonitorFor(pid int32) (*ProcessMonitor, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to open process %d: %w", pid, err)
	}
	return &ProcessMonitor{proc: p}, nil
}

func (m *ProcessMonitor) Name() string {
	return "process"
}

func (m *ProcessMonitor) Collect() (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.proc.MemoryInfo()
	if err != nil {
		return nil, err
	}

	state := &ProcessState{
		RSSBytes:   info.RSS,
		VMSBytes:   info.VMS,
		Goroutines: runtime.NumGoroutine(),
	}

	// CPU and thread counts are best effort; some platforms refuse them.
	if pct, err := m.proc.Percent(0); err == nil {
		state.CPUPercent = pct
	}
	if n, err := m.proc.NumThreads(); err == nil {
		state.Threads = n
	}
	return state, nil
}
