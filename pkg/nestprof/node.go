package nestprof

import (
	"time"

	"github.com/chosenoffset/nestprof/pkg/nestprof/clock"
)

// none marks an absent link in the node arena.
const none = -1

// node is one named region in the tree. Links are indices into tree.nodes.
type node struct {
	name string
	note string

	calls     int
	cpuTotal  time.Duration
	wallTotal time.Duration
	cpuLast   time.Duration
	wallLast  time.Duration

	// Start readings, valid only while active
	active    bool
	cpuStart  time.Duration
	wallStart time.Time

	parent    int
	child     int // first child
	lastChild int
	next      int
	prev      int
}

func newNode(name, note string) node {
	return node{
		name:      name,
		note:      note,
		parent:    none,
		child:     none,
		lastChild: none,
		next:      none,
		prev:      none,
	}
}

// begin opens a new call. A node that is still open is closed first.
func (n *node) begin(c clock.Clock) {
	if n.active {
		n.end(c)
	}
	n.calls++
	n.active = true
	n.cpuStart = c.CPUTime()
	n.wallStart = c.Now()
	n.cpuLast = 0
	n.wallLast = 0
}

// end closes the open call and folds its durations into the totals.
func (n *node) end(c clock.Clock) {
	if !n.active {
		return
	}

	cpu := c.CPUTime() - n.cpuStart
	wall := c.Now().Sub(n.wallStart)
	// Totals never shrink, even if a clock steps backwards
	if cpu < 0 {
		cpu = 0
	}
	if wall < 0 {
		wall = 0
	}

	n.cpuLast = cpu
	n.wallLast = wall
	n.cpuTotal += cpu
	n.wallTotal += wall

	n.active = false
	n.cpuStart = 0
	n.wallStart = time.Time{}
}

func (n *node) label() string {
	if n.note == "" {
		return n.name
	}
	return n.note
}
