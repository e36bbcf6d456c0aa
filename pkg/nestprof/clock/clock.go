// Package clock supplies the CPU-time and wall-clock readings that the
// profiler turns into region durations.
//
// The profiler only ever subtracts two readings taken from the same Clock, so
// CPUTime may count from any fixed origin (process start on most platforms).
package clock

import (
	"sync"
	"time"
)

// Clock is the source of timing readings for a profiler.
type Clock interface {
	// CPUTime returns the CPU time consumed by the process so far.
	CPUTime() time.Duration
	// Now returns the current wall-clock time.
	Now() time.Time
}

// processStart anchors the wall-clock fallback for platforms without a
// process CPU clock.
var processStart = time.Now()

type systemClock struct{}

// System returns the host clock. CPU time comes from the process CPU-time
// clock where the platform exposes one, then getrusage, then wall time
// elapsed since process start.
func System() Clock {
	return systemClock{}
}

func (systemClock) CPUTime() time.Duration {
	return processCPUTime()
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Manual is a Clock that only moves when told to. It is safe for concurrent
// use so tests can advance it from a helper goroutine.
type Manual struct {
	mu   sync.Mutex
	cpu  time.Duration
	wall time.Time
}

// NewManual creates a manual clock whose wall time starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{wall: start}
}

// Advance moves CPU time forward by cpu and wall time forward by wall.
// Negative arguments move the clock backwards.
func (m *Manual) Advance(cpu, wall time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpu += cpu
	m.wall = m.wall.Add(wall)
}

func (m *Manual) CPUTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cpu
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wall
}
