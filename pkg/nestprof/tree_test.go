package nestprof

import (
	"testing"
	"time"

	"github.com/chosenoffset/nestprof/pkg/nestprof/clock"
)

func TestTreeFindScope(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	tr := newTree()

	// a{b, c}
	tr.enter("a", "")
	tr.enter("b", "")
	tr.leave("b", clk)
	tr.enter("c", "")
	tr.leave("c", clk)

	testCases := []struct {
		name   string
		cursor string
		find   string
		found  bool
	}{
		{name: "SelfIsFound", cursor: "b", find: "b", found: true},
		{name: "LaterSiblingIsFound", cursor: "b", find: "c", found: true},
		{name: "EarlierSiblingIsHidden", cursor: "c", find: "b", found: false},
		{name: "ParentIsHidden", cursor: "b", find: "a", found: false},
		{name: "ChildIsFound", cursor: "a", find: "c", found: true},
		{name: "NoCursorFindsTopLevel", cursor: "", find: "a", found: true},
		{name: "NoCursorSkipsClosedBranches", cursor: "", find: "c", found: false},
	}

	index := map[string]int{"a": 0, "b": 1, "c": 2}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr.cursor = none
			if tc.cursor != "" {
				tr.cursor = index[tc.cursor]
			}
			got := tr.find(tc.find)
			if tc.found && got != index[tc.find] {
				t.Errorf("Expected to find %s at %d, got %d", tc.find, index[tc.find], got)
			}
			if !tc.found && got != none {
				t.Errorf("Expected %s to be out of reach, got %d", tc.find, got)
			}
		})
	}
}

func TestTreeAttachLinks(t *testing.T) {
	t.Run("ChildrenKeepInsertionOrder", func(t *testing.T) {
		clk := clock.NewManual(time.Unix(0, 0))
		tr := newTree()
		parent := tr.enter("p", "")
		for _, name := range []string{"x", "y", "z"} {
			tr.enter(name, "")
			tr.leave(name, clk)
		}

		p := tr.nodes[parent]
		var order []string
		prev := none
		for i := p.child; i != none; i = tr.nodes[i].next {
			if tr.nodes[i].prev != prev {
				t.Errorf("Broken prev link at %s", tr.nodes[i].name)
			}
			if tr.nodes[i].parent != parent {
				t.Errorf("Wrong parent for %s", tr.nodes[i].name)
			}
			order = append(order, tr.nodes[i].name)
			prev = i
		}
		if len(order) != 3 || order[0] != "x" || order[1] != "y" || order[2] != "z" {
			t.Errorf("Unexpected child order %v", order)
		}
		if tr.nodes[p.lastChild].name != "z" {
			t.Errorf("Expected last child z, got %s", tr.nodes[p.lastChild].name)
		}
	})

	t.Run("TopLevelChain", func(t *testing.T) {
		clk := clock.NewManual(time.Unix(0, 0))
		tr := newTree()
		for _, name := range []string{"one", "two", "three"} {
			tr.enter(name, "")
			tr.leave(name, clk)
		}

		if tr.root != 0 || tr.lastTop != 2 {
			t.Fatalf("Unexpected chain ends: root=%d lastTop=%d", tr.root, tr.lastTop)
		}
		if tr.nodes[0].next != 1 || tr.nodes[1].next != 2 || tr.nodes[2].prev != 1 {
			t.Error("Top-level regions should be linked as siblings")
		}
		for i := range tr.nodes {
			if tr.nodes[i].parent != none {
				t.Errorf("Top-level region %s has a parent", tr.nodes[i].name)
			}
		}
	})
}

func TestTreeReenterLaterSibling(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	tr := newTree()

	tr.enter("a", "")
	tr.enter("b", "")
	tr.leave("b", clk)
	tr.enter("c", "")
	tr.leave("c", clk)

	tr.enter("b", "")
	// c is a later sibling of b, so it is re-entered rather than nested
	idx := tr.enter("c", "")
	if idx != 2 {
		t.Fatalf("Expected the existing c, got node %d", idx)
	}
	if len(tr.nodes) != 3 {
		t.Errorf("No node should have been created, have %d", len(tr.nodes))
	}

	// Closing c returns to its own parent, not to b
	if _, ok := tr.leave("c", clk); !ok {
		t.Fatal("Expected c to close")
	}
	if tr.nodes[tr.cursor].name != "a" {
		t.Errorf("Expected cursor at a, got %s", tr.nodes[tr.cursor].name)
	}
	if reason, ok := tr.leave("b", clk); ok || reason != ReasonMismatch {
		t.Errorf("Expected mismatch closing b, got ok=%v reason=%v", ok, reason)
	}
}

func TestNodeClampsNegativeElapsed(t *testing.T) {
	clk := clock.NewManual(time.Unix(100, 0))
	n := newNode("n", "")

	n.begin(clk)
	clk.Advance(-time.Second, -time.Second)
	n.end(clk)

	if n.cpuLast != 0 || n.wallLast != 0 || n.cpuTotal != 0 || n.wallTotal != 0 {
		t.Errorf("Expected clamped durations, got cpu=%v wall=%v", n.cpuTotal, n.wallTotal)
	}
	if n.active {
		t.Error("Expected node to be closed")
	}

	// end on a closed node is a no-op
	n.end(clk)
	if n.calls != 1 {
		t.Errorf("Expected 1 call, got %d", n.calls)
	}
}
