// Package middleware gives every HTTP request its own profiler.
//
// Handlers pick the request's profiler up with FromContext and mark their own
// regions inside the outer "<METHOD> <path>" region the middleware opens.
package middleware

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/chosenoffset/nestprof/pkg/nestprof"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying p.
func NewContext(ctx context.Context, p *nestprof.Profiler) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the profiler stored in ctx. Without one it returns a
// fresh silent profiler, so handlers can always mark regions.
func FromContext(ctx context.Context) *nestprof.Profiler {
	if p, ok := ctx.Value(contextKey{}).(*nestprof.Profiler); ok && p != nil {
		return p
	}
	return nestprof.NewSilent()
}

// RequestProfile is handed to Options.OnComplete after each request.
type RequestProfile struct {
	Method   string
	Path     string
	Region   string
	Status   int
	Duration time.Duration // Wall time of the outer region
	Snapshot nestprof.Snapshot
}

type Options struct {
	// NewConfig builds the configuration of each request profiler. Nil means
	// nestprof.DefaultConfig.
	NewConfig func() *nestprof.Config
	// RegionName names the outer region. Nil means "<METHOD> <path>".
	RegionName func(r *http.Request) string
	// OnComplete receives every finished request. It runs on the request
	// goroutine.
	OnComplete func(RequestProfile)
}

// Middleware profiles requests and keeps simple request counters.
type Middleware struct {
	opts Options

	requestCount    int64
	errorCount      int64
	pendingRequests int64
}

func New(opts Options) *Middleware {
	if opts.RegionName == nil {
		opts.RegionName = func(r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}
	}
	return &Middleware{opts: opts}
}

// responseWriter captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(data)
}

// Wrap profiles next. Regions the handler leaves open are closed when it
// returns.
func (m *Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&m.pendingRequests, 1)
		defer atomic.AddInt64(&m.pendingRequests, -1)

		var cfg *nestprof.Config
		if m.opts.NewConfig != nil {
			cfg = m.opts.NewConfig()
		}
		prof := nestprof.NewWithConfig(nil, cfg)
		region := m.opts.RegionName(r)

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		prof.Start(region)
		next(wrapped, r.WithContext(NewContext(r.Context(), prof)))
		closeAll(prof)

		atomic.AddInt64(&m.requestCount, 1)
		if wrapped.statusCode >= 400 {
			atomic.AddInt64(&m.errorCount, 1)
		}

		if m.opts.OnComplete == nil {
			return
		}
		snap := prof.Snapshot()
		profile := RequestProfile{
			Method:   r.Method,
			Path:     r.URL.Path,
			Region:   region,
			Status:   wrapped.statusCode,
			Snapshot: snap,
		}
		if outer, ok := snap.Find(region); ok {
			profile.Duration = outer.WallTotal
		}
		m.opts.OnComplete(profile)
	}
}

// closeAll stops open regions innermost first until none is left.
func closeAll(p *nestprof.Profiler) {
	for {
		name, ok := p.Active()
		if !ok {
			return
		}
		if err := p.Stop(name); err != nil {
			return
		}
	}
}

// Stats are the request counters since the middleware was created.
type Stats struct {
	RequestCount    int64   `json:"request_count"`
	ErrorCount      int64   `json:"error_count"`
	ErrorRate       float64 `json:"error_rate"` // Percentage
	PendingRequests int64   `json:"pending_requests"`
}

func (m *Middleware) Stats() Stats {
	stats := Stats{
		RequestCount:    atomic.LoadInt64(&m.requestCount),
		ErrorCount:      atomic.LoadInt64(&m.errorCount),
		PendingRequests: atomic.LoadInt64(&m.pendingRequests),
	}
	if stats.RequestCount > 0 {
		stats.ErrorRate = float64(stats.ErrorCount) / float64(stats.RequestCount) * 100
	}
	return stats
}
