package observability

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is the payload of the /debug/stats endpoint.
type ProcessStats struct {
	OnlineSessions int     `json:"online_sessions"`
	Goroutines     int     `json:"goroutines"`
	AllocMemMb     uint64  `json:"alloc_mem_mb"`
	NumGC          uint32  `json:"num_gc"`
	RSSBytes       uint64  `json:"rss_bytes"`
	CPUPercent     float64 `json:"cpu_percent"`
	PidStatus      string  `json:"pid_status"`
}

// Snapshot collects Go runtime metrics plus OS-level process stats. The
// gopsutil probes are best effort; their fields stay zero when the platform
// refuses them.
func Snapshot(onlineSessions int) ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := ProcessStats{
		OnlineSessions: onlineSessions,
		Goroutines:     runtime.NumGoroutine(),
		AllocMemMb:     m.Alloc / 1024 / 1024,
		NumGC:          m.NumGC,
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats
	}
	if memInfo, err := p.MemoryInfo(); err == nil {
		stats.RSSBytes = memInfo.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if status, err := p.Status(); err == nil {
		stats.PidStatus = status
	}
	return stats
}
