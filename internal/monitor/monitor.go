// Package monitor samples host memory headroom and the footprint of the
// running process while a stream is evaluated.
package monitor

import "time"

type Monitor interface {
	Name() string
	Collect() (any, error)
}

// HeadroomState is host-wide memory usage against the configured floor.
type HeadroomState struct {
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	TotalBytes     uint64  `json:"total_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
	FloorBytes     uint64  `json:"floor_bytes,omitempty"`
	Low            bool    `json:"low,omitempty"`
}

// ProcessState is the footprint of the current process.
type ProcessState struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	VMSBytes   uint64  `json:"vms_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
}

type ResourceState struct {
	Headroom  HeadroomState `json:"headroom"`
	Process   ProcessState  `json:"process"`
	Timestamp time.Time     `json:"timestamp"`
}
