// Package observability exposes lightweight process and delivery gauges on
// the debug endpoint. It is side-channel only: nothing here participates in
// message routing.
package observability

import (
	"log/slog"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/process"
)

// ConnectionCounter reports the number of live connections currently held by
// the registry.
type ConnectionCounter interface {
	Connections() int
}

type Monitor struct {
	log   *slog.Logger
	proc  *process.Process
	conns ConnectionCounter
}

func NewMonitor(log *slog.Logger, conns ConnectionCounter) *Monitor {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process metrics unavailable", "error", err)
	}
	return &Monitor{log: log, proc: proc, conns: conns}
}

// Stats snapshots process health and delivery gauges.
func (m *Monitor) Stats() map[string]any {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := map[string]any{
		"goroutines":   runtime.NumGoroutine(),
		"alloc_mem_mb": memStats.Alloc / 1024 / 1024,
		"num_gc":       memStats.NumGC,
	}

	if m.conns != nil {
		stats["live_connections"] = m.conns.Connections()
	}

	if m.proc != nil {
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats["cpu_percent"] = cpu
		}
		if mem, err := m.proc.MemoryInfo(); err == nil {
			stats["rss_mb"] = mem.RSS / 1024 / 1024
		}
	}
	return stats
}
