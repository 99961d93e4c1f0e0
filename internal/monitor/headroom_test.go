package monitor

import (
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/mem"
)

func fixedMemory(available uint64) func() (*mem.VirtualMemoryStat, error) {
	return func() (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{
			Total:       1000,
			Available:   available,
			Used:        1000 - available,
			UsedPercent: float64(1000-available) / 10,
		}, nil
	}
}

func TestHeadroomMonitor_Name(t *testing.T) {
	m := NewHeadroomMonitor(0)
	if m.Name() != "headroom" {
		t.Errorf("expected name 'headroom', got %s", m.Name())
	}
}

func TestHeadroomMonitor_Collect(t *testing.T) {
	m := NewHeadroomMonitor(0)

	data, err := m.Collect()
	if err != nil {
		t.Fatalf("failed to collect host memory: %v", err)
	}

	state, ok := data.(*HeadroomState)
	if !ok {
		t.Fatalf("expected *HeadroomState, got %T", data)
	}

	if state.TotalBytes == 0 {
		t.Error("total bytes should not be zero")
	}
	if state.AvailableBytes > state.TotalBytes {
		t.Errorf("available bytes (%d) should not exceed total (%d)", state.AvailableBytes, state.TotalBytes)
	}
	if state.UsagePercent < 0 || state.UsagePercent > 100 {
		t.Errorf("invalid memory usage percent: %f", state.UsagePercent)
	}
	if state.Low {
		t.Error("a zero floor should never report low headroom")
	}
}

func TestHeadroomMonitor_Floor(t *testing.T) {
	tests := []struct {
		name      string
		floor     uint64
		available uint64
		wantLow   bool
	}{
		{"no floor", 0, 10, false},
		{"above floor", 100, 400, false},
		{"at floor", 100, 100, false},
		{"below floor", 100, 99, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewHeadroomMonitor(tt.floor)
			m.virtual = fixedMemory(tt.available)

			data, err := m.Collect()
			if err != nil {
				t.Fatalf("collect: %v", err)
			}
			state := data.(*HeadroomState)
			if state.Low != tt.wantLow {
				t.Errorf("Low = %v, want %v", state.Low, tt.wantLow)
			}
			if state.FloorBytes != tt.floor {
				t.Errorf("FloorBytes = %d, want %d", state.FloorBytes, tt.floor)
			}
			if state.AvailableBytes != tt.available {
				t.Errorf("AvailableBytes = %d, want %d", state.AvailableBytes, tt.available)
			}
		})
	}
}

func TestHeadroomMonitor_CollectError(t *testing.T) {
	m := NewHeadroomMonitor(1)
	m.virtual = func() (*mem.VirtualMemoryStat, error) { return nil, errors.New("no procfs") }

	if _, err := m.Collect(); err == nil {
		t.Error("expected collect error")
	}
}
