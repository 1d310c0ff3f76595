package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"badgewatch/internal/badge"
	"badgewatch/internal/checkpoint"
	"badgewatch/internal/config"
	"badgewatch/internal/health"
	"badgewatch/internal/logging"
	"badgewatch/internal/metrics"
	"badgewatch/internal/notify"
	"badgewatch/internal/pattern"
	"badgewatch/internal/tailer"
	"badgewatch/internal/watch"
)

var version = "0.1.0"

var (
	configFile     = pflag.StringP("config", "c", "", "Path to YAML configuration file")
	logPath        = pflag.String("log-path", "", "Path to the Teams log file (defaults to the platform location)")
	pollInterval   = pflag.Duration("poll-interval", 0, "How long to wait between checks for new log entries")
	fromBeginning  = pflag.Bool("from-beginning", false, "Replay the whole log file once instead of tailing from the end")
	checkpointPath = pflag.String("checkpoint", "", "File in which to persist the read position across runs")
	noToast        = pflag.Bool("no-toast", false, "Disable desktop toast notifications")
	noSound        = pflag.Bool("no-sound", false, "Disable the audible notification")
	quietReset     = pflag.Bool("quiet-reset", false, "Do not notify when the badge count returns to zero")
	toastDuration  = pflag.Duration("toast-duration", 0, "How long a toast notification should remain visible")
	metricsAddr    = pflag.String("metrics-addr", "", "Address to serve prometheus metrics and status on (disabled when empty)")
	logLevel       = pflag.String("log-level", "", "Log level (debug, info, warn, error)")
	showVersion    = pflag.Bool("version", false, "Print the version and exit")
)

func main() {
	pflag.Parse()

	if *showVersion {
		fmt.Printf("badgewatch %s\n", version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	path, err := cfg.ResolveLogPath()
	if err != nil {
		return err
	}

	rules, err := pattern.NewSet(cfg.Patterns)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info().
		Str("version", version).
		Str("path", path).
		Dur("interval", cfg.PollInterval).
		Int("rules", rules.Len()).
		Msg("Starting badge watcher")

	// The status snapshot is only readable through the metrics mux, so
	// both exist under the same switch.
	var (
		collector *metrics.Collector
		checker   *health.Checker
	)
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		checker = health.NewChecker()
	}

	t := tailer.New(path, cfg.StartAtBeginning, logger)

	var store *checkpoint.Store
	if cfg.CheckpointPath != "" {
		store = checkpoint.NewStore(cfg.CheckpointPath)
		pos, err := store.Load()
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to load checkpoint, starting fresh")
		} else {
			t.Resume(pos)
		}
	}

	dispatcher := notify.NewDispatcher(cfg.Notify, logger, collector)
	logger.Info().Strs("backends", dispatcher.Backends()).Msg("Notification backends selected")

	loop, err := watch.New(watch.Options{
		Path:          path,
		Interval:      cfg.PollInterval,
		NotifyOnReset: cfg.Notify.OnReset,
		Tailer:        t,
		Rules:         rules,
		Tracker:       badge.NewTracker(),
		Sink:          dispatcher,
		Logger:        logger,
		Collector:     collector,
		Checker:       checker,
		Checkpoints:   store,
	})
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if collector != nil {
		startMetricsServer(ctx, cfg.Metrics, collector, checker, logger)
	}

	if err := loop.Run(ctx); err != nil {
		return err
	}

	if store != nil {
		if err := store.Save(t.Position()); err != nil {
			logger.Warn().Err(err).Msg("Failed to save final checkpoint")
		}
	}

	logger.Info().Msg("Stopped")
	return nil
}

// loadConfig merges the optional config file with flag overrides.
// Anything invalid here is fatal; nothing past this point is.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *logPath != "" {
		cfg.LogPath = *logPath
	}
	if pflag.CommandLine.Changed("poll-interval") {
		cfg.PollInterval = *pollInterval
	}
	if *fromBeginning {
		cfg.StartAtBeginning = true
	}
	if *checkpointPath != "" {
		cfg.CheckpointPath = *checkpointPath
	}
	if *noToast {
		cfg.Notify.Toast = false
	}
	if *noSound {
		cfg.Notify.Sound = false
	}
	if *quietReset {
		cfg.Notify.OnReset = false
	}
	if pflag.CommandLine.Changed("toast-duration") {
		cfg.Notify.ToastDuration = *toastDuration
	}
	if *metricsAddr != "" {
		cfg.Metrics = &config.MetricsConfig{
			Enabled: true,
			Address: *metricsAddr,
			Path:    config.DefaultMetricsPath,
		}
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// startMetricsServer serves metrics, liveness and status until the
// context is cancelled. Serving failures are logged, not fatal.
func startMetricsServer(ctx context.Context, cfg *config.MetricsConfig, collector *metrics.Collector, checker *health.Checker, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, collector.Handler())
	mux.Handle("/healthz", checker.LivenessHandler())
	mux.Handle("/status", checker.StatusHandler())

	srv := &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("address", cfg.Address).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Msg("Metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}
