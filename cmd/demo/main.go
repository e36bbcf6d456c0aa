package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/getsentry/raven-go"
	"github.com/rs/zerolog"

	"github.com/chosenoffset/nestprof/internal/config"
	"github.com/chosenoffset/nestprof/pkg/nestprof"
	"github.com/chosenoffset/nestprof/pkg/nestprof/dashboard"
	"github.com/chosenoffset/nestprof/pkg/nestprof/export"
	"github.com/chosenoffset/nestprof/pkg/nestprof/memory"
)

var version = "dev"

func main() {
	configPath := flag.String(
		"config",
		os.Getenv("NESTPROF_CONFIG"),
		"path to the configuration file on disk",
	)
	dashboardAddr := flag.String(
		"dashboard",
		"",
		"serve the dashboard on this address and wait for Ctrl+C",
	)
	statsdAddr := flag.String(
		"statsd",
		"",
		"export the verbose profile to this statsd address",
	)
	csvPath := flag.String(
		"csv",
		"",
		"export the verbose profile as CSV to this path",
	)
	verbosity := flag.String(
		"verbosity",
		"",
		"logging verbosity: one of error, warn, info, debug (overrides the config file)",
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	applyFlags(cfg, *dashboardAddr, *statsdAddr, *csvPath, *verbosity)

	level, err := cfg.Level()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
	logger.Debug().Str("level", level.String()).Msg("initialized logger")

	// Configure error reporting
	if cfg.SentryDSN != "" {
		raven.SetDSN(cfg.SentryDSN)
		raven.SetRelease(version)
	}

	if err := run(cfg, *configPath, logger); err != nil {
		raven.CaptureErrorAndWait(err, map[string]string{"command": "demo"})
		logger.Fatal().Err(err).Msg("demo failed")
	}
}

func applyFlags(cfg *config.Config, dashboardAddr, statsdAddr, csvPath, verbosity string) {
	if dashboardAddr != "" {
		if cfg.Dashboard == nil {
			cfg.Dashboard = &config.DashboardConfig{}
		}
		cfg.Dashboard.Address = dashboardAddr
	}
	if statsdAddr != "" {
		if cfg.Statsd == nil {
			cfg.Statsd = &config.StatsdConfig{Prefix: "nestprof", SampleRate: 1}
		}
		cfg.Statsd.Address = statsdAddr
	}
	if csvPath != "" {
		cfg.CSV = &config.CSVConfig{Path: csvPath}
	}
	if verbosity != "" {
		cfg.LogLevel = verbosity
	}
}

func run(cfg *config.Config, configPath string, logger zerolog.Logger) error {
	if gb, err := memory.System().FreeMemory(); err == nil {
		logger.Info().Str("free", humanize.Bytes(uint64(gb*1e9))).Msg("free memory on node")
	} else {
		logger.Debug().Err(err).Msg("free memory unavailable")
	}

	var dash *dashboard.Server
	sink := io.Writer(os.Stdout)
	if cfg.Dashboard != nil {
		dash = dashboard.NewServer(cfg.Dashboard.Address, logger)
		dash.SetMaxClients(cfg.Dashboard.MaxClients)
		dash.SetRenderOptions(cfg.Profiler.Indent, cfg.Profiler.MaxDepth)
		sink = io.MultiWriter(os.Stdout, dash.Writer())
	}

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing exporters")
		}
	}()

	// A verbose profiler writes a line on every start and stop
	prof := nestprof.NewWithConfig(sink, cfg.NestprofConfig())

	prof.StartNote("hello", "Say Hello to")
	prof.Start("World")
	prof.Stop("World")
	prof.Start("You")
	prof.Stop("You")
	prof.Stop("hello")

	fmt.Println("Statistics from 'profiler'")
	if err := prof.Display(cfg.Profiler.MaxDepth); err != nil {
		return fmt.Errorf("displaying report: %w", err)
	}
	fmt.Println()

	// A silent profiler collects the same statistics without writing
	silent := nestprof.NewWithConfig(nil, cfg.NestprofConfig())
	silent.StartNote("test_silent", "Test silent")
	silent.Start("test_1")
	silent.Stop("test_1")
	silent.Start("test_2")
	silent.Stop("test_2")
	silent.Stop("test_silent")
	silent.SetIndent(2)
	fmt.Println("Statistics from 'profiler_silent'")
	fmt.Print(silent.String())

	snap := prof.Snapshot()
	if err := registry.Export(snap); err != nil {
		logger.Warn().Err(err).Msg("exporting profile")
	}

	if dash == nil {
		return nil
	}
	dash.Publish(snap)
	return serveDashboard(dash, configPath, logger)
}

func newRegistry(cfg *config.Config, logger zerolog.Logger) (*export.Registry, error) {
	registry := export.NewRegistry()
	registry.Register("log", export.NewLogExporter(logger, zerolog.DebugLevel))

	if cfg.Statsd != nil {
		logger.Info().
			Str("addr", cfg.Statsd.Address).
			Float64("sample_rate", cfg.Statsd.SampleRate).
			Msg("configuring statsd export")
		e, err := export.NewStatsdExporter(export.StatsdOptions{
			Addr:        cfg.Statsd.Address,
			Prefix:      cfg.Statsd.Prefix,
			DefaultTags: map[string]string{"version": version},
			SampleRate:  float32(cfg.Statsd.SampleRate),
		})
		if err != nil {
			return nil, err
		}
		registry.Register("statsd", e)
	}

	if cfg.CSV != nil {
		logger.Info().Str("path", cfg.CSV.Path).Msg("configuring csv export")
		e, err := export.CreateCSVExporter(cfg.CSV.Path)
		if err != nil {
			return nil, err
		}
		registry.Register("csv", e)
	}

	return registry, nil
}

// serveDashboard blocks until interrupted. Edits to the config file change
// how the report renders.
func serveDashboard(dash *dashboard.Server, configPath string, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if configPath != "" {
		w, err := config.Watch(configPath, func(c *config.Config) {
			dash.SetRenderOptions(c.Profiler.Indent, c.Profiler.MaxDepth)
		}, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("config changes will not be picked up")
		} else {
			defer w.Close()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- dash.Start()
	}()
	fmt.Println("Dashboard running, press Ctrl+C to stop")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard: %w", err)
	case <-ctx.Done():
		logger.Info().Msg("shutting down dashboard")
		return dash.Stop()
	}
}
