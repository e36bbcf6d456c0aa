package nestprof

import (
	"encoding/json"
	"time"
)

// Region is an immutable copy of one node of the timer tree.
type Region struct {
	Name string
	Note string
	// Path joins the names from the top level down to this region with "/".
	Path  string
	Depth int

	Calls     int
	CPUTotal  time.Duration
	WallTotal time.Duration
	CPULast   time.Duration
	WallLast  time.Duration
	Active    bool

	Children []Region
}

// Label is the text shown for the region in reports.
func (r Region) Label() string {
	if r.Note == "" {
		return r.Name
	}
	return r.Note
}

type regionJSON struct {
	Name      string   `json:"name"`
	Note      string   `json:"note,omitempty"`
	Path      string   `json:"path"`
	Depth     int      `json:"depth"`
	Calls     int      `json:"calls"`
	CPUTotal  float64  `json:"cpu_time_s"`
	WallTotal float64  `json:"wall_time_s"`
	CPULast   float64  `json:"cpu_time_last_s"`
	WallLast  float64  `json:"wall_time_last_s"`
	Active    bool     `json:"active"`
	Children  []Region `json:"children,omitempty"`
}

// MarshalJSON encodes durations as float seconds.
func (r Region) MarshalJSON() ([]byte, error) {
	return json.Marshal(regionJSON{
		Name:      r.Name,
		Note:      r.Note,
		Path:      r.Path,
		Depth:     r.Depth,
		Calls:     r.Calls,
		CPUTotal:  r.CPUTotal.Seconds(),
		WallTotal: r.WallTotal.Seconds(),
		CPULast:   r.CPULast.Seconds(),
		WallLast:  r.WallLast.Seconds(),
		Active:    r.Active,
		Children:  r.Children,
	})
}

// Snapshot is a copy of a profiler's tree, safe to hand to other goroutines.
type Snapshot struct {
	Taken time.Time `json:"taken"`
	Roots []Region  `json:"roots"`
}

// Walk visits every region in report order: a region, its children, then
// its later siblings.
func (s Snapshot) Walk(fn func(Region)) {
	walkRegions(s.Roots, fn)
}

func walkRegions(regions []Region, fn func(Region)) {
	for _, r := range regions {
		fn(r)
		walkRegions(r.Children, fn)
	}
}

// Len returns the number of regions in the snapshot.
func (s Snapshot) Len() int {
	n := 0
	s.Walk(func(Region) { n++ })
	return n
}

// Find returns the region with the given path.
func (s Snapshot) Find(path string) (Region, bool) {
	var (
		found Region
		ok    bool
	)
	s.Walk(func(r Region) {
		if !ok && r.Path == path {
			found, ok = r, true
		}
	})
	return found, ok
}

func (t *tree) snapshot(taken time.Time) Snapshot {
	return Snapshot{
		Taken: taken,
		Roots: t.copyChain(t.root, "", 0),
	}
}

func (t *tree) copyChain(i int, prefix string, depth int) []Region {
	var regions []Region
	for ; i != none; i = t.nodes[i].next {
		regions = append(regions, t.region(i, prefix, depth))
	}
	return regions
}

func (t *tree) region(i int, prefix string, depth int) Region {
	n := &t.nodes[i]
	path := n.name
	if prefix != "" {
		path = prefix + "/" + n.name
	}
	return Region{
		Name:      n.name,
		Note:      n.note,
		Path:      path,
		Depth:     depth,
		Calls:     n.calls,
		CPUTotal:  n.cpuTotal,
		WallTotal: n.wallTotal,
		CPULast:   n.cpuLast,
		WallLast:  n.wallLast,
		Active:    n.active,
		Children:  t.copyChain(n.child, path, depth+1),
	}
}
