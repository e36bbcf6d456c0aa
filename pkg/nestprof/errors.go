package nestprof

import (
	"errors"
	"fmt"
)

// StopReason says why a Stop call was refused.
type StopReason int

const (
	// ReasonNoActive means no region was open.
	ReasonNoActive StopReason = iota + 1
	// ReasonMismatch means the open region has a different name.
	ReasonMismatch
)

func (r StopReason) String() string {
	switch r {
	case ReasonNoActive:
		return "no active region"
	case ReasonMismatch:
		return "mismatched region"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// StopError reports a Stop call that left the tree untouched.
type StopError struct {
	Reason StopReason
	// Name is the region the caller asked to stop.
	Name string
	// Active is the open region at the time, empty for ReasonNoActive.
	Active string
}

func (e *StopError) Error() string {
	if e.Reason == ReasonMismatch {
		return fmt.Sprintf("nestprof: cannot stop %q: active region is %q", e.Name, e.Active)
	}
	return fmt.Sprintf("nestprof: cannot stop %q: no region is active", e.Name)
}

// warning renders the line written to the sink for this refusal.
func (e *StopError) warning() string {
	if e.Reason == ReasonMismatch {
		return fmt.Sprintf("Warning: Attempting to stop timer '%s' but current active timer is '%s'\n", e.Name, e.Active)
	}
	return "Warning: No timer is currently active\n"
}

// IsStopError checks if an error is a refused Stop
func IsStopError(err error) bool {
	var se *StopError
	return errors.As(err, &se)
}
