package infrastructure

import (
	"log/slog"
	"runtime"
)

// RuntimeStats is a snapshot of Go runtime resource usage
type RuntimeStats struct {
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	SysBytes       uint64 `json:"sys_bytes"`
	NumGC          uint32 `json:"num_gc"`
	NumCPU         int    `json:"num_cpu"`
}

// CaptureRuntimeStats reads the current runtime statistics
func CaptureRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: m.HeapAlloc,
		SysBytes:       m.Sys,
		NumGC:          m.NumGC,
		NumCPU:         runtime.NumCPU(),
	}
}

// LogValue renders the snapshot as a log group
func (s RuntimeStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("goroutines", s.Goroutines),
		slog.Uint64("heap_alloc_bytes", s.HeapAllocBytes),
		slog.Uint64("sys_bytes", s.SysBytes),
		slog.Uint64("num_gc", uint64(s.NumGC)),
	)
}
