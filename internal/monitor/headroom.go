package monitor

import (
	"github.com/shirou/gopsutil/v4/mem"
)

// HeadroomMonitor samples host memory while a stream is evaluated and flags
// when the available bytes drop below a floor. The training window and the
// kernel parameter cache both live in memory, so a long run with a large
// window watches how much room the host has left.
type HeadroomMonitor struct {
	floor   uint64
	virtual func() (*mem.VirtualMemoryStat, error)
}

// NewHeadroomMonitor reads host memory through gopsutil. A zero floor never
// reports low headroom.
func NewHeadroomMonitor(floorBytes uint64) *HeadroomMonitor {
	return &HeadroomMonitor{floor: floorBytes, virtual: mem.VirtualMemory}
}

func (m *HeadroomMonitor) Name() string {
	return "headroom"
}

func (m *HeadroomMonitor) Collect() (any, error) {
	v, err := m.virtual()
	if err != nil {
		return nil, err
	}

	return &HeadroomState{
		UsedBytes:      v.Used,
		AvailableBytes: v.Available,
		TotalBytes:     v.Total,
		UsagePercent:   v.UsedPercent,
		FloorBytes:     m.floor,
		Low:            m.floor > 0 && v.Available < m.floor,
	}, nil
}
