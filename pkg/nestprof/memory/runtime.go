package memory

import (
	"runtime"
	"time"
)

// RuntimeStats is a point-in-time view of the Go heap and scheduler.
type RuntimeStats struct {
	// Memory metrics
	HeapAlloc    uint64 `json:"heap_alloc"`
	HeapSys      uint64 `json:"heap_sys"`
	HeapIdle     uint64 `json:"heap_idle"`
	HeapInuse    uint64 `json:"heap_inuse"`
	HeapReleased uint64 `json:"heap_released"`
	HeapObjects  uint64 `json:"heap_objects"`
	StackInuse   uint64 `json:"stack_inuse"`
	Sys          uint64 `json:"sys"`

	// GC metrics
	NextGC        uint64  `json:"next_gc"`
	PauseTotalNs  uint64  `json:"pause_total_ns"`
	NumGC         uint32  `json:"num_gc"`
	GCCPUFraction float64 `json:"gc_cpu_fraction"`

	NumGoroutine int `json:"num_goroutine"`

	Timestamp time.Time `json:"timestamp"`
}

// ReadRuntime collects the current runtime statistics. It stops the world
// briefly, so keep it off hot paths.
func ReadRuntime() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		HeapAlloc:     m.HeapAlloc,
		HeapSys:       m.HeapSys,
		HeapIdle:      m.HeapIdle,
		HeapInuse:     m.HeapInuse,
		HeapReleased:  m.HeapReleased,
		HeapObjects:   m.HeapObjects,
		StackInuse:    m.StackInuse,
		Sys:           m.Sys,
		NextGC:        m.NextGC,
		PauseTotalNs:  m.PauseTotalNs,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
		NumGoroutine:  runtime.NumGoroutine(),
		Timestamp:     time.Now(),
	}
}

// HeapAllocMB returns the allocated heap in mebibytes.
func (s RuntimeStats) HeapAllocMB() float64 {
	return float64(s.HeapAlloc) / (1024 * 1024)
}

// HeapSysMB returns the heap obtained from the OS in mebibytes.
func (s RuntimeStats) HeapSysMB() float64 {
	return float64(s.HeapSys) / (1024 * 1024)
}
