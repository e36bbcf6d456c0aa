// Package main runs the nestprof example: an in-memory ledger whose handlers
// are profiled per request, with the merged profile on a live dashboard.
//
// The server listens on :8080 with the following API endpoints:
//   - POST /account: Create new account with initial balance
//   - GET /balance?id=<account_id>: Get account balance
//   - POST /transfer: Transfer funds between accounts
//   - GET /nestprof/report?depth=N: Merged profile of all requests
//   - GET /nestprof/stats: Request counters
//
// The dashboard is available at http://localhost:9090
//
// Usage:
//
//	go run ./example/cmd/server -config nestprof.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/raven-go"
	"github.com/rs/zerolog"

	"github.com/chosenoffset/nestprof/example/internal/ledger"
	"github.com/chosenoffset/nestprof/internal/config"
	"github.com/chosenoffset/nestprof/pkg/nestprof"
	"github.com/chosenoffset/nestprof/pkg/nestprof/dashboard"
	"github.com/chosenoffset/nestprof/pkg/nestprof/export"
	"github.com/chosenoffset/nestprof/pkg/nestprof/middleware"
)

func main() {
	addr := flag.String("addr", ":8080", "ledger API listen address")
	dashboardAddr := flag.String("dashboard", ":9090", "dashboard listen address")
	configPath := flag.String("config", os.Getenv("NESTPROF_CONFIG"), "path to the configuration file on disk")
	publishEvery := flag.Duration("publish", time.Second, "how often the merged profile is published")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			panic(err)
		}
		cfg = loaded
	}

	level, _ := cfg.Level()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Str("service", "ledger").Logger()

	if cfg.SentryDSN != "" {
		raven.SetDSN(cfg.SentryDSN)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *addr, *dashboardAddr, *publishEvery, logger); err != nil {
		raven.CaptureErrorAndWait(err, map[string]string{"command": "ledger-server"})
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, addr, dashboardAddr string, publishEvery time.Duration, logger zerolog.Logger) error {
	dash := dashboard.NewServer(dashboardAddr, logger)
	if cfg.Dashboard != nil {
		dash.SetMaxClients(cfg.Dashboard.MaxClients)
	}
	dash.SetRenderOptions(cfg.Profiler.Indent, cfg.Profiler.MaxDepth)
	defer dash.Stop()

	registry := export.NewRegistry()
	defer registry.Close()
	if cfg.Statsd != nil {
		e, err := export.NewStatsdExporter(export.StatsdOptions{
			Addr:        cfg.Statsd.Address,
			Prefix:      cfg.Statsd.Prefix,
			DefaultTags: map[string]string{"service": "ledger"},
			SampleRate:  float32(cfg.Statsd.SampleRate),
		})
		if err != nil {
			return err
		}
		registry.Register("statsd", e)
	}

	agg := middleware.NewAggregator()
	mw := middleware.New(middleware.Options{
		NewConfig: cfg.NestprofConfig,
		OnComplete: func(p middleware.RequestProfile) {
			agg.Observe(p)
			logger.Debug().
				Str("method", p.Method).
				Str("path", p.Path).
				Int("status", p.Status).
				Dur("wall", p.Duration).
				Msg("request")
		},
	})

	l := ledger.NewLedger()
	mux := http.NewServeMux()
	mux.HandleFunc("/account", mw.Wrap(l.HandleCreateAccount))
	mux.HandleFunc("/balance", mw.Wrap(l.HandleGetBalance))
	mux.HandleFunc("/transfer", mw.Wrap(l.HandleTransfer))
	mux.HandleFunc("/nestprof/report", handleReport(agg, cfg))
	mux.HandleFunc("/nestprof/stats", handleStats(mw))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()
	go func() {
		errCh <- dash.Start()
	}()

	ticker := time.NewTicker(publishEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := agg.Snapshot()
			dash.Publish(snap)
			if err := registry.Export(snap); err != nil {
				logger.Warn().Err(err).Msg("exporting profile")
			}
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}
	}
}

// handleReport renders the merged profile as text
func handleReport(agg *middleware.Aggregator, cfg *config.Config) http.HandlerFunc {
	renderer := nestprof.Renderer{Indent: cfg.Profiler.Indent, IndentNumbers: cfg.Profiler.IndentNumbers}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		depth := cfg.Profiler.MaxDepth
		if v := r.URL.Query().Get("depth"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "depth must be an integer", http.StatusBadRequest)
				return
			}
			depth = n
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		renderer.Render(w, agg.Snapshot(), depth)
	}
}

// handleStats exposes the middleware request counters
func handleStats(mw *middleware.Middleware) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mw.Stats())
	}
}
