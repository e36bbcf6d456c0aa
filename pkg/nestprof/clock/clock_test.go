package clock

import (
	"testing"
	"time"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewManual(start)

	if c.CPUTime() != 0 {
		t.Errorf("Expected zero CPU time, got %v", c.CPUTime())
	}
	if !c.Now().Equal(start) {
		t.Errorf("Expected wall time %v, got %v", start, c.Now())
	}

	c.Advance(250*time.Millisecond, time.Second)
	c.Advance(250*time.Millisecond, time.Second)

	if c.CPUTime() != 500*time.Millisecond {
		t.Errorf("Expected 500ms CPU time, got %v", c.CPUTime())
	}
	if got := c.Now().Sub(start); got != 2*time.Second {
		t.Errorf("Expected 2s wall time elapsed, got %v", got)
	}
}

func TestSystemClockMonotonic(t *testing.T) {
	c := System()

	cpuBefore := c.CPUTime()
	wallBefore := c.Now()

	// Burn a little CPU so the process clock has something to count
	sum := 0
	for i := 0; i < 2_000_000; i++ {
		sum += i % 7
	}
	_ = sum

	if c.CPUTime() < cpuBefore {
		t.Error("CPU time should not go backwards")
	}
	if c.Now().Before(wallBefore) {
		t.Error("Wall time should not go backwards")
	}
}
