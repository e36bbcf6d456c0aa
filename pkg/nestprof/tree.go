package nestprof

import (
	"github.com/chosenoffset/nestprof/pkg/nestprof/clock"
)

// tree is the node arena plus the cursor marking the innermost open region.
//
// Top-level nodes form a sibling chain starting at root. Their parent is none,
// and closing one leaves the tree without a cursor.
type tree struct {
	nodes   []node
	root    int
	lastTop int
	cursor  int
}

func newTree() *tree {
	return &tree{
		root:    none,
		lastTop: none,
		cursor:  none,
	}
}

// find resolves name relative to the cursor: the cursor itself, its subtree,
// then its later siblings and their subtrees. Ancestors and earlier siblings
// are out of reach. Without a cursor only the top-level chain is searched,
// since everything below it belongs to closed regions.
func (t *tree) find(name string) int {
	if t.cursor != none {
		return t.search(t.cursor, name)
	}
	for i := t.root; i != none; i = t.nodes[i].next {
		if t.nodes[i].name == name {
			return i
		}
	}
	return none
}

// search walks the sibling chain from i, descending into each child chain
// before moving on to the next sibling.
func (t *tree) search(i int, name string) int {
	for ; i != none; i = t.nodes[i].next {
		if t.nodes[i].name == name {
			return i
		}
		if c := t.nodes[i].child; c != none {
			if found := t.search(c, name); found != none {
				return found
			}
		}
	}
	return none
}

// attach adds a node under the cursor, or at the end of the top-level chain
// when no region is open, and makes it the cursor.
func (t *tree) attach(name, note string) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, newNode(name, note))
	n := &t.nodes[idx]

	switch {
	case t.root == none:
		t.root = idx
		t.lastTop = idx
	case t.cursor != none:
		parent := &t.nodes[t.cursor]
		n.parent = t.cursor
		if parent.child == none {
			parent.child = idx
		} else {
			n.prev = parent.lastChild
			t.nodes[parent.lastChild].next = idx
		}
		parent.lastChild = idx
	default:
		n.prev = t.lastTop
		t.nodes[t.lastTop].next = idx
		t.lastTop = idx
	}

	t.cursor = idx
	return idx
}

// enter moves the cursor to the node for name, creating it if the search
// comes up empty. A found node keeps its original parent.
func (t *tree) enter(name, note string) int {
	if idx := t.find(name); idx != none {
		t.cursor = idx
		return idx
	}
	return t.attach(name, note)
}

// leave closes the cursor if it is named name and moves the cursor to its
// parent. It reports the refusal reason otherwise.
func (t *tree) leave(name string, c clock.Clock) (StopReason, bool) {
	if t.cursor == none {
		return ReasonNoActive, false
	}
	cur := &t.nodes[t.cursor]
	if cur.name != name {
		return ReasonMismatch, false
	}
	cur.end(c)
	t.cursor = cur.parent
	return 0, true
}

// depth is how far the cursor sits below the top level: 1 for a top-level
// region, 0 without a cursor.
func (t *tree) depth() int {
	d := 0
	for i := t.cursor; i != none; i = t.nodes[i].parent {
		d++
	}
	return d
}
