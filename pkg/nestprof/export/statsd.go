package export

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cactus/go-statsd-client/v5/statsd"
	"github.com/hashicorp/go-multierror"

	"github.com/chosenoffset/nestprof/pkg/nestprof"
)

// statter is the part of statsd.Statter the exporter emits through.
type statter interface {
	Gauge(stat string, value int64, rate float32, tags ...statsd.Tag) error
	TimingDuration(stat string, delta time.Duration, rate float32, tags ...statsd.Tag) error
	Close() error
}

// StatsdOptions configures a StatsdExporter.
type StatsdOptions struct {
	Addr        string
	Prefix      string
	DefaultTags map[string]string
	SampleRate  float32
}

// StatsdExporter emits one set of metrics per region:
//
//	<path>.calls          gauge of the call count
//	<path>.cpu_total_ms   gauge of the CPU total in milliseconds
//	<path>.wall_total_ms  gauge of the wall total in milliseconds
//	<path>.active         gauge, 1 while the region is open
//	<path>.cpu            timing, mean CPU per call since the last export
//	<path>.wall           timing, mean wall per call since the last export
//
// The timings are only sent for regions that completed calls since the
// previous Export. A region whose count went down, as after a reset, starts
// over from zero.
type StatsdExporter struct {
	backend     statter
	defaultTags map[string]string
	sampleRate  float32

	mu   sync.Mutex
	seen map[string]totals
}

type totals struct {
	calls int
	cpu   time.Duration
	wall  time.Duration
}

// NewStatsdExporter creates an exporter sending UDP statsd packets to
// opts.Addr.
func NewStatsdExporter(opts StatsdOptions) (*StatsdExporter, error) {
	client, err := statsd.NewClientWithConfig(&statsd.ClientConfig{
		Address: opts.Addr,
		Prefix:  opts.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("statsd: error creating statsd client: %w", err)
	}
	return newStatsdExporter(client, opts), nil
}

func newStatsdExporter(backend statter, opts StatsdOptions) *StatsdExporter {
	rate := opts.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	return &StatsdExporter{
		backend:     backend,
		defaultTags: opts.DefaultTags,
		sampleRate:  rate,
		seen:        make(map[string]totals),
	}
}

func (e *StatsdExporter) Export(s nestprof.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result *multierror.Error
	s.Walk(func(r nestprof.Region) {
		tags := map[string]string{"depth": fmt.Sprint(r.Depth)}
		emit := func(err error) {
			if err != nil {
				result = multierror.Append(result, err)
			}
		}

		emit(e.backend.Gauge(e.formatMetric(r.Path+".calls", tags), int64(r.Calls), e.sampleRate))
		emit(e.backend.Gauge(e.formatMetric(r.Path+".cpu_total_ms", tags), r.CPUTotal.Milliseconds(), e.sampleRate))
		emit(e.backend.Gauge(e.formatMetric(r.Path+".wall_total_ms", tags), r.WallTotal.Milliseconds(), e.sampleRate))

		var active int64
		if r.Active {
			active = 1
		}
		emit(e.backend.Gauge(e.formatMetric(r.Path+".active", tags), active, e.sampleRate))

		// An open region's current call is counted but not yet in the totals
		completed := r.Calls
		if r.Active {
			completed--
		}
		prev, ok := e.seen[r.Path]
		if !ok || completed < prev.calls {
			prev = totals{}
		}
		cur := totals{calls: completed, cpu: r.CPUTotal, wall: r.WallTotal}
		e.seen[r.Path] = cur

		if cur.calls == prev.calls {
			return
		}
		n := time.Duration(cur.calls - prev.calls)
		emit(e.backend.TimingDuration(e.formatMetric(r.Path+".cpu", tags), (cur.cpu-prev.cpu)/n, e.sampleRate))
		emit(e.backend.TimingDuration(e.formatMetric(r.Path+".wall", tags), (cur.wall-prev.wall)/n, e.sampleRate))
	})
	return result.ErrorOrNil()
}

func (e *StatsdExporter) Close() error {
	return e.backend.Close()
}

// formatMetric escapes the metric name and appends the merged default and
// per-metric tags InfluxDB-style, sorted by key.
func (e *StatsdExporter) formatMetric(metric string, tags map[string]string) string {
	// Colons and pipes would break the statsd line protocol
	escaped := url.QueryEscape(strings.ReplaceAll(metric, "/", "."))

	if len(e.defaultTags)+len(tags) == 0 {
		return escaped
	}

	merged := make(map[string]string, len(e.defaultTags)+len(tags))
	for k, v := range e.defaultTags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	components := make([]string, 0, len(keys))
	for _, k := range keys {
		components = append(components, fmt.Sprintf("%s=%s", url.QueryEscape(k), url.QueryEscape(merged[k])))
	}
	return escaped + "," + strings.Join(components, ",")
}
