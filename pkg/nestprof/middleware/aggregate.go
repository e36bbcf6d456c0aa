package middleware

import (
	"sync"
	"time"

	"github.com/chosenoffset/nestprof/pkg/nestprof"
)

// Aggregator merges request snapshots into one running tree. Regions are
// matched by name at each level, so every request to a route lands in the
// same top-level region. It is safe for concurrent use.
type Aggregator struct {
	mu    sync.Mutex
	roots []nestprof.Region
	taken time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add folds s into the running totals. Last-call times and the active flag
// are taken from s.
func (a *Aggregator) Add(s nestprof.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roots = mergeRegions(a.roots, s.Roots)
	a.taken = s.Taken
}

// Observe is an OnComplete callback that adds the request's snapshot.
func (a *Aggregator) Observe(p RequestProfile) {
	a.Add(p.Snapshot)
}

// Snapshot returns a copy of the merged tree.
func (a *Aggregator) Snapshot() nestprof.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return nestprof.Snapshot{
		Taken: a.taken,
		Roots: copyRegions(a.roots),
	}
}

func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roots = nil
}

func mergeRegions(dst, src []nestprof.Region) []nestprof.Region {
	for _, r := range src {
		i := indexOf(dst, r.Name)
		if i < 0 {
			dst = append(dst, copyRegion(r))
			continue
		}
		d := &dst[i]
		d.Calls += r.Calls
		d.CPUTotal += r.CPUTotal
		d.WallTotal += r.WallTotal
		d.CPULast = r.CPULast
		d.WallLast = r.WallLast
		d.Active = r.Active
		if d.Note == "" {
			d.Note = r.Note
		}
		d.Children = mergeRegions(d.Children, r.Children)
	}
	return dst
}

func indexOf(regions []nestprof.Region, name string) int {
	for i := range regions {
		if regions[i].Name == name {
			return i
		}
	}
	return -1
}

func copyRegions(regions []nestprof.Region) []nestprof.Region {
	if regions == nil {
		return nil
	}
	out := make([]nestprof.Region, len(regions))
	for i, r := range regions {
		out[i] = copyRegion(r)
	}
	return out
}

func copyRegion(r nestprof.Region) nestprof.Region {
	r.Children = copyRegions(r.Children)
	return r
}
