// Package memory samples free memory for the profiler's start/stop lines and
// takes Go runtime heap snapshots for the dashboard.
package memory

import (
	"errors"
)

// ErrUnsupported is returned by samplers that have no way to read free memory
// on the current platform.
var ErrUnsupported = errors.New("memory: free memory sampling not supported on this platform")

// Sampler reads the free memory available on the host.
type Sampler interface {
	// FreeMemory returns free memory in decimal gigabytes.
	FreeMemory() (float64, error)
}

// Func adapts an ordinary function to the Sampler interface.
type Func func() (float64, error)

func (f Func) FreeMemory() (float64, error) {
	return f()
}

// Static returns a sampler that always reports gb.
func Static(gb float64) Sampler {
	return Func(func() (float64, error) { return gb, nil })
}

type systemSampler struct {
	meminfoPath string
}

// System returns a sampler backed by the operating system. On Linux it reads
// MemAvailable from /proc/meminfo and falls back to sysinfo(2) free RAM.
func System() Sampler {
	return &systemSampler{meminfoPath: "/proc/meminfo"}
}

func bytesToGB(b uint64) float64 {
	return float64(b) * 1e-9
}
