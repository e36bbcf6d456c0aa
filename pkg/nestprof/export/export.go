// Package export ships profiler snapshots to other systems: statsd, CSV
// files and structured logs.
package export

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/chosenoffset/nestprof/pkg/nestprof"
)

type Exporter interface {
	Export(s nestprof.Snapshot) error
	Close() error
}

// Func adapts a plain function to an Exporter with a no-op Close.
type Func func(s nestprof.Snapshot) error

func (f Func) Export(s nestprof.Snapshot) error { return f(s) }

func (f Func) Close() error { return nil }

// Registry fans a snapshot out to every registered exporter. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	exporters map[string]Exporter
}

func NewRegistry() *Registry {
	return &Registry{
		exporters: make(map[string]Exporter),
	}
}

// Register adds e under name, replacing any exporter already registered
// under that name.
func (r *Registry) Register(name string, e Exporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporters[name] = e
}

// Names returns the registered exporter names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.exporters))
	for name := range r.exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Export sends s to every exporter, even after one fails. All failures are
// returned together.
func (r *Registry) Export(s nestprof.Snapshot) error {
	var result *multierror.Error
	for _, name := range r.Names() {
		e := r.get(name)
		if e == nil {
			continue
		}
		if err := e.Export(s); err != nil {
			result = multierror.Append(result, fmt.Errorf("exporter %s: %w", name, err))
		}
	}
	return result.ErrorOrNil()
}

// Close closes and unregisters every exporter.
func (r *Registry) Close() error {
	r.mu.Lock()
	exporters := r.exporters
	r.exporters = make(map[string]Exporter)
	r.mu.Unlock()

	var result *multierror.Error
	for name, e := range exporters {
		if err := e.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing exporter %s: %w", name, err))
		}
	}
	return result.ErrorOrNil()
}

func (r *Registry) get(name string) Exporter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exporters[name]
}
