// Package dashboard serves published profiler snapshots and sink lines over
// HTTP, with live updates on a websocket.
package dashboard

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/chosenoffset/nestprof/pkg/nestprof"
	"github.com/chosenoffset/nestprof/pkg/nestprof/memory"
)

const (
	defaultMaxClients = 100
	eventBufferSize   = 50
)

type Server struct {
	addr         string
	server       *http.Server
	logger       zerolog.Logger
	upgrader     websocket.Upgrader
	clients      map[*client]struct{}
	clientsMutex sync.RWMutex
	maxClients   int
	updates      chan message
	stop         chan struct{}
	stopOnce     sync.Once

	mutex       sync.RWMutex
	latest      nestprof.Snapshot
	published   bool
	eventBuffer []Event
	eventIndex  int
	eventCount  int
	renderer    nestprof.Renderer
	maxDepth    int

	runtime func() memory.RuntimeStats
}

// message is the envelope every websocket push uses.
type message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewServer creates a dashboard that will listen on addr once started. The
// broadcast loop runs until Stop.
func NewServer(addr string, logger zerolog.Logger) *Server {
	s := &Server{
		addr:        addr,
		logger:      logger.With().Str("component", "dashboard").Logger(),
		clients:     make(map[*client]struct{}),
		maxClients:  defaultMaxClients,
		updates:     make(chan message, 100),
		stop:        make(chan struct{}),
		eventBuffer: make([]Event, eventBufferSize),
		renderer:    nestprof.DefaultRenderer(),
		maxDepth:    nestprof.DefaultMaxDepth,
		runtime:     memory.ReadRuntime,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	go s.broadcast()
	return s
}

// checkOrigin accepts requests without an Origin header, same-host requests
// and anything from localhost.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// SetMaxClients caps concurrent websocket connections. Values below 1 keep
// the current limit.
func (s *Server) SetMaxClients(n int) {
	if n < 1 {
		return
	}
	s.clientsMutex.Lock()
	s.maxClients = n
	s.clientsMutex.Unlock()
}

// SetRenderOptions changes how /api/report renders. A negative maxDepth
// means no limit.
func (s *Server) SetRenderOptions(indent, maxDepth int) {
	if indent < 0 {
		indent = 0
	}
	s.mutex.Lock()
	s.renderer.Indent = indent
	s.maxDepth = maxDepth
	s.mutex.Unlock()
}

// Handler returns the dashboard routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/regions", s.handleRegions)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/runtime", s.handleRuntime)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start serves the dashboard and blocks until the server stops. After Stop
// it returns http.ErrServerClosed.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.mutex.Lock()
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mutex.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("starting nestprof dashboard")
	return srv.Serve(ln)
}

// Stop closes websocket clients, ends the broadcast loop and shuts the HTTP
// server down.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mutex.RLock()
	srv := s.server
	s.mutex.RUnlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Publish replaces the snapshot the dashboard shows and pushes it to
// websocket clients.
func (s *Server) Publish(snap nestprof.Snapshot) {
	s.mutex.Lock()
	s.latest = snap
	s.published = true
	s.mutex.Unlock()

	s.enqueue(message{Type: "snapshot", Data: snap})
}

// Snapshot returns the last published snapshot.
func (s *Server) Snapshot() (nestprof.Snapshot, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.latest, s.published
}

func (s *Server) enqueue(m message) {
	select {
	case s.updates <- m:
	default:
		// Drop if channel is full
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mutex.RLock()
	snap := s.latest
	renderer := s.renderer
	depth := s.maxDepth
	s.mutex.RUnlock()

	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "depth must be an integer", http.StatusBadRequest)
			return
		}
		depth = n
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := renderer.Render(w, snap, depth); err != nil {
		s.logger.Debug().Err(err).Msg("writing report")
	}
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	snap, _ := s.Snapshot()
	writeJSON(w, snap)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Events())
}

func (s *Server) handleRuntime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.runtime())
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"data":   data,
	})
}
