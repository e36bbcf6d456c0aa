package nestprof

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chosenoffset/nestprof/pkg/nestprof/clock"
	"github.com/chosenoffset/nestprof/pkg/nestprof/memory"
)

const timestampLayout = "[2006-01-02 15:04:05.000]"

// Profiler records named, nested regions of work and reports their call
// counts and CPU and wall time.
//
// A Profiler tracks a single call stack and is not safe for concurrent use.
// Give each goroutine its own Profiler and share Snapshots instead.
//
// Name resolution is relative to the innermost open region. Start finds an
// existing region only if it is the open region itself, lies below it, or is
// a later sibling (or below a later sibling) of it. A name that was used in
// an ancestor or in an already-closed earlier branch creates a new region
// here instead of re-entering the old one.
type Profiler struct {
	tree     *tree
	sink     io.Writer
	clock    clock.Clock
	memory   memory.Sampler
	now      func() time.Time
	renderer Renderer
	maxDepth int
}

// New creates a profiler that writes start/stop lines to sink. A nil sink
// gives a silent profiler.
func New(sink io.Writer) *Profiler {
	return NewWithConfig(sink, nil)
}

// NewSilent creates a profiler that never writes anything on its own.
// Statistics are still collected and Report still works.
func NewSilent() *Profiler {
	return NewWithConfig(nil, nil)
}

// NewWithConfig creates a profiler from cfg. A nil cfg means DefaultConfig.
func NewWithConfig(sink io.Writer, cfg *Config) *Profiler {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	p := &Profiler{
		tree:   newTree(),
		sink:   sink,
		clock:  cfg.Clock,
		memory: cfg.Memory,
		now:    cfg.Now,
		renderer: Renderer{
			Indent:        cfg.Indent,
			IndentNumbers: cfg.IndentNumbers,
		},
		maxDepth: cfg.MaxDepth,
	}
	if p.clock == nil {
		p.clock = clock.System()
	}
	if p.now == nil {
		p.now = p.clock.Now
	}
	if p.renderer.Indent < 0 {
		p.renderer.Indent = 0
	}
	return p
}

// Start opens the region called name.
func (p *Profiler) Start(name string) {
	p.StartNote(name, "")
}

// StartNote opens the region called name. The note replaces the name in
// reports; it is only used when the region is first created.
//
// Starting a region that is already open closes its running call first and
// counts a new one.
func (p *Profiler) StartNote(name, note string) {
	idx := p.tree.enter(name, note)
	p.logLine("Timer start: ", name)
	p.tree.nodes[idx].begin(p.clock)
}

// Stop closes the region called name, which must be the innermost open
// region. Otherwise nothing changes, a warning goes to the sink, and a
// *StopError is returned.
func (p *Profiler) Stop(name string) error {
	active, _ := p.Active()
	if reason, ok := p.tree.leave(name, p.clock); !ok {
		err := &StopError{Reason: reason, Name: name, Active: active}
		p.write(err.warning())
		return err
	}
	p.logLine("Timer stop:  ", name)
	return nil
}

// Time runs fn inside the region called name.
func (p *Profiler) Time(name string, fn func()) {
	p.Start(name)
	defer p.Stop(name)
	fn()
}

// Region opens the region called name and returns the function that closes
// it, for use with defer.
func (p *Profiler) Region(name string) func() {
	p.Start(name)
	return func() {
		p.Stop(name)
	}
}

// CPUTimeLast returns the CPU seconds of the last completed call of the
// region name resolves to. ok is false if no region is found.
func (p *Profiler) CPUTimeLast(name string) (seconds float64, ok bool) {
	idx := p.tree.find(name)
	if idx == none {
		return 0, false
	}
	return p.tree.nodes[idx].cpuLast.Seconds(), true
}

// WallTimeLast returns the wall seconds of the last completed call of the
// region name resolves to. ok is false if no region is found.
func (p *Profiler) WallTimeLast(name string) (seconds float64, ok bool) {
	idx := p.tree.find(name)
	if idx == none {
		return 0, false
	}
	return p.tree.nodes[idx].wallLast.Seconds(), true
}

// Lookup resolves name the same way Start does and returns a copy of the
// region and its subtree.
func (p *Profiler) Lookup(name string) (Region, bool) {
	idx := p.tree.find(name)
	if idx == none {
		return Region{}, false
	}

	prefix, depth := "", 0
	for i := p.tree.nodes[idx].parent; i != none; i = p.tree.nodes[i].parent {
		if prefix == "" {
			prefix = p.tree.nodes[i].name
		} else {
			prefix = p.tree.nodes[i].name + "/" + prefix
		}
		depth++
	}
	return p.tree.region(idx, prefix, depth), true
}

// Active returns the name of the innermost open region.
func (p *Profiler) Active() (string, bool) {
	if p.tree.cursor == none {
		return "", false
	}
	return p.tree.nodes[p.tree.cursor].name, true
}

// Depth returns how deep the innermost open region sits, 0 if none is open.
func (p *Profiler) Depth() int {
	return p.tree.depth()
}

// Snapshot copies the tree.
func (p *Profiler) Snapshot() Snapshot {
	return p.tree.snapshot(p.now())
}

// Report renders the tree down to maxDepth levels below the top level.
func (p *Profiler) Report(maxDepth int) string {
	return p.renderer.String(p.Snapshot(), maxDepth)
}

// String renders the tree with the configured depth limit.
func (p *Profiler) String() string {
	return p.Report(p.maxDepth)
}

// Display writes the report to the sink. Silent profilers write nothing.
func (p *Profiler) Display(maxDepth int) error {
	if p.sink == nil {
		return nil
	}
	return p.renderer.Render(p.sink, p.Snapshot(), maxDepth)
}

// Indent returns the number of spaces per nesting level in reports.
func (p *Profiler) Indent() int {
	return p.renderer.Indent
}

// SetIndent sets the number of spaces per nesting level in reports.
func (p *Profiler) SetIndent(n int) {
	if n < 0 {
		n = 0
	}
	p.renderer.Indent = n
}

// Renderer returns the renderer the profiler reports with.
func (p *Profiler) Renderer() Renderer {
	return p.renderer
}

// Silent reports whether the profiler has no sink.
func (p *Profiler) Silent() bool {
	return p.sink == nil
}

// Reset drops every region. The next Start builds a fresh tree.
func (p *Profiler) Reset() {
	p.tree = newTree()
}

func (p *Profiler) logLine(prefix, name string) {
	if p.sink == nil {
		return
	}

	var b strings.Builder
	b.WriteString(p.now().Format(timestampLayout))
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(name)
	if p.memory != nil {
		gb, err := p.memory.FreeMemory()
		if err != nil {
			gb = 0
		}
		b.WriteString(". Free memory on node [GB]: ")
		b.WriteString(strconv.FormatFloat(gb, 'g', 6, 64))
	}
	b.WriteByte('\n')
	p.write(b.String())
}

// write sends text to the sink. Sink failures never reach the caller.
func (p *Profiler) write(s string) {
	if p.sink == nil {
		return
	}
	io.WriteString(p.sink, s)
}
