package nestprof

import (
	"os"
	"strings"
	"time"

	"github.com/chosenoffset/nestprof/pkg/nestprof/clock"
	"github.com/chosenoffset/nestprof/pkg/nestprof/memory"
)

// MemoryEnv names the environment variable that turns on free-memory
// sampling in DefaultConfig. Accepted values are 1, true, on and yes.
const MemoryEnv = "NESTPROF_MEMORY_PROF"

// Config holds the settings a Profiler is built from.
type Config struct {
	Indent        int            // Spaces per nesting level in reports
	IndentNumbers bool           // Indent the time columns as well as labels
	MaxDepth      int            // Depth used by String; negative means unlimited
	Clock         clock.Clock    // Source of CPU and wall readings
	Memory        memory.Sampler // Optional free-memory source for sink lines
	Now           func() time.Time
}

// DefaultConfig returns the configuration used by New and NewSilent
func DefaultConfig() *Config {
	cfg := &Config{
		Indent:        1,
		IndentNumbers: true,
		MaxDepth:      DefaultMaxDepth,
		Clock:         clock.System(),
		Now:           time.Now,
	}
	if memoryEnvEnabled(os.Getenv(MemoryEnv)) {
		cfg.Memory = memory.System()
	}
	return cfg
}

func memoryEnvEnabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
