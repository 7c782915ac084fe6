// Command canopy-cache runs the multi-tier dependency pattern cache, either
// as a long-running service exposing metrics and health, or as a one-shot
// replay of a synthetic Zipfian workload. With -build-index it instead
// builds a pattern index from a parsed-sentence file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"runtime"
	"syscall"

	"github.com/comploplo/canopy-sub003/config"
	"github.com/comploplo/canopy-sub003/health"
	"github.com/comploplo/canopy-sub003/metric"
	"github.com/comploplo/canopy-sub003/patterncache"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "canopy-cache"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Error("Application failed", "error", err, "exit_code", 1)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli, err := parseFlags(args)
	if err != nil {
		return err
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cli.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}
	if cli.ShowHelp {
		return flag.ErrHelp
	}

	cfg, err := initializeConfiguration(cli)
	if err != nil {
		return err
	}

	level := newLevelVar(cfg.Log.Level)
	logger := setupLogger(stderr, level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cli.Validate {
		logger.Info("Configuration is valid", "config_path", cli.ConfigPath)
		return nil
	}

	if cli.BuildIndex != "" {
		report, err := buildIndex(ctx, cfg, cli.BuildIndex, logger)
		if err != nil {
			return err
		}
		return writeBuildReport(stdout, report)
	}

	logger.Info("Starting canopy-cache",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cli.ConfigPath,
		"demo", cli.Demo)

	app, err := newApplication(ctx, cfg, level, cli.Demo, logger)
	if err != nil {
		return err
	}

	if cli.Demo {
		return app.runDemo(ctx, stdout)
	}
	return app.serve(ctx, cli)
}

// initializeConfiguration loads the file, applies flags and validates.
func initializeConfiguration(cli *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(false)
	if cli.ConfigPath != "" {
		loader.AddLayer(cli.ConfigPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyFlags(cli, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// application wires the cache to its index, metrics and health. The
// configuration can be replaced at runtime by reload.
type application struct {
	cfg      *config.SafeConfig
	level    *slog.LevelVar
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	monitor  *health.Monitor
	store    patternStore
	janitor  *patterncache.Janitor
}

// newApplication loads the index and builds the cache. In demo mode with no
// index configured, a synthetic Zipfian index stands in.
func newApplication(ctx context.Context, cfg *config.Config, level *slog.LevelVar, demo bool, logger *slog.Logger) (*application, error) {
	app := &application{
		cfg:      config.NewSafeConfig(cfg),
		level:    level,
		logger:   logger,
		registry: metric.NewMetricsRegistry(),
		monitor:  health.NewMonitor(),
	}
	metrics := app.registry.CoreMetrics()

	idx := loadIndex(ctx, cfg, metrics, app.monitor, logger)
	if demo && idx == nil && (cfg.Index.Source == "" || cfg.Index.Source == config.IndexSourceNone) {
		idx = demoIndex(cfg.Replay, logger)
		app.monitor.UpdateHealthy("index", "synthetic demo index")
	}

	store, err := newStore(cfg.Cache, idx, app.registry, logger)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	app.store = store
	app.monitor.Register("patterncache", health.CheckFunc(store.Health))

	if idx != nil {
		if err := store.PopulateFromIndex(idx); err != nil {
			return nil, fmt.Errorf("populate core tier: %w", err)
		}
		logger.Info("Populated core tier", "core_size", store.CoreSize())
	}
	return app, nil
}

// runDemo replays a synthetic workload and prints the report to w.
func (a *application) runDemo(ctx context.Context, w io.Writer) error {
	cfg := a.cfg.Get()
	resolver, err := newResolver(cfg.Synth, a.store, a.logger)
	if err != nil {
		return fmt.Errorf("create synthesizer: %w", err)
	}
	report, err := replay(ctx, a.store, resolver, cfg.Replay, a.registry, a.logger)
	if err != nil {
		return err
	}
	return writeReport(w, report)
}

// serve exposes metrics and health and runs the cleanup janitor until ctx
// is cancelled. SIGHUP reloads the configuration.
func (a *application) serve(ctx context.Context, cli *CLIConfig) error {
	cfg := a.cfg.Get()

	var server *metric.Server
	if cfg.Metrics.Enabled {
		server = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, a.registry, a.healthReport)
		if err := server.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		a.logger.Info("Metrics server listening", "address", server.Address())
	}

	if err := a.applyCleanup(ctx, cfg.Cleanup); err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	a.logger.Info("canopy-cache started", "core_size", a.store.CoreSize())
	for waiting := true; waiting; {
		select {
		case <-ctx.Done():
			waiting = false
		case <-hup:
			_ = a.reload(ctx, cli)
		}
	}
	a.logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
	defer cancel()

	a.stopJanitor()
	if server != nil {
		if err := server.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	stats := a.store.Stats()
	a.logger.Info("canopy-cache shutdown complete",
		"total_requests", stats.TotalRequests,
		"total_hit_rate", stats.TotalHitRate,
		"cleanups", stats.Cleanups)
	return nil
}

// reload re-reads the configuration layers and flags and applies what can
// change at runtime: the log level and the cleanup schedule. Cache, index
// and metrics settings take effect on restart. A configuration that fails
// validation leaves the running one in place.
func (a *application) reload(ctx context.Context, cli *CLIConfig) error {
	next, err := initializeConfiguration(cli)
	if err != nil {
		a.logger.Warn("Configuration reload rejected", "error", err)
		return err
	}
	prev := a.cfg.Get()
	if err := a.cfg.Update(next); err != nil {
		a.logger.Warn("Configuration reload rejected", "error", err)
		return err
	}

	a.level.Set(parseLevel(next.Log.Level))
	if next.Cleanup != prev.Cleanup {
		if err := a.applyCleanup(ctx, next.Cleanup); err != nil {
			a.logger.Warn("Cleanup schedule not applied", "error", err)
			return err
		}
	}
	if !reflect.DeepEqual(prev.Cache, next.Cache) || !reflect.DeepEqual(prev.Index, next.Index) ||
		prev.Metrics != next.Metrics {
		a.logger.Warn("Cache, index and metrics changes apply on restart")
	}

	a.logger.Info("Configuration reloaded",
		"log_level", next.Log.Level,
		"cleanup", next.Cleanup.Enabled,
		"schedule", next.Cleanup.Schedule)
	return nil
}

// applyCleanup replaces the running janitor with one for cfg, or stops it
// when cleanup is disabled.
func (a *application) applyCleanup(ctx context.Context, cfg config.CleanupConfig) error {
	var next *patterncache.Janitor
	if cfg.Enabled {
		j, err := patterncache.NewJanitor(a.store, cfg.Schedule, a.logger, a.registry.CoreMetrics())
		if err != nil {
			return fmt.Errorf("create janitor: %w", err)
		}
		next = j
	}
	a.stopJanitor()
	a.janitor = next
	if next != nil {
		next.Start(ctx)
	}
	return nil
}

func (a *application) stopJanitor() {
	if a.janitor != nil {
		a.janitor.Stop()
		a.janitor = nil
	}
}

// healthReport backs the /health endpoint; only an unhealthy system fails
// the probe.
func (a *application) healthReport() (any, bool) {
	status := a.monitor.Check(appName)
	metrics := a.registry.CoreMetrics()
	for _, sub := range status.SubStatuses {
		metrics.RecordHealth(sub.Component, sub.Status)
	}
	return status, !status.IsUnhealthy()
}
