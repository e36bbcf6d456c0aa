// Package nestprof provides an in-process profiler for named, nested regions
// of work. Each region aggregates its call count and its CPU and wall time
// across every call, and the whole tree renders as an indented text report.
//
// # Quick Start
//
//	package main
//
//	import (
//		"os"
//
//		"github.com/chosenoffset/nestprof/pkg/nestprof"
//	)
//
//	func main() {
//		prof := nestprof.New(os.Stdout)
//
//		prof.StartNote("hello", "Say Hello to")
//		prof.Start("World")
//		prof.Stop("World")
//		prof.Start("You")
//		prof.Stop("You")
//		prof.Stop("hello")
//
//		prof.Display(nestprof.DefaultMaxDepth)
//	}
//
// # Verbose and Silent Profilers
//
// A profiler built with a sink writes a timestamped line for every start and
// stop:
//
//	[2024-05-01 10:00:00.000] Timer start: hello
//	[2024-05-01 10:00:00.004] Timer stop:  hello
//
// A silent profiler (NewSilent, or New(nil)) collects the same statistics
// without writing anything. Report still returns the table.
//
// # Region Resolution
//
// Start looks a name up from the innermost open region. It searches that
// region, then everything below it, then its later siblings and everything
// below them. Regions in ancestors or in earlier, already closed branches are
// not found, so reusing such a name creates a new region at the current
// position. With no region open, only the top-level regions are searched.
//
// Stop only closes the innermost open region. A Stop with any other name is
// refused with a warning and a *StopError, and nothing is changed.
//
// # Report Format
//
//	----------------------------------------------------------------------------------------------------
//	Entry                                             #calls       CPU time (s)       Wall time (s)
//	----------------------------------------------------------------------------------------------------
//	Say Hello to                                      1            0.0001             0.0002
//	 World                                            1             0.0000             0.0000
//	 You                                              1             0.0000             0.0000
//	----------------------------------------------------------------------------------------------------
//
// # Concurrency
//
// A Profiler is deliberately single-threaded. Use one per goroutine, and pass
// Snapshots to the dashboard and exporter packages, which are safe for
// concurrent use.
//
// # Subpackages
//
//   - clock: CPU-time and wall-clock sources, including a manual clock for tests
//   - memory: free-memory samplers and Go runtime snapshots
//   - dashboard: HTTP and websocket view of published snapshots
//   - export: statsd, CSV and log exporters for snapshots
//   - middleware: a per-request profiler for net/http handlers
package nestprof
