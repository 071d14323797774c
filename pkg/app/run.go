// Package app provides the shared entry point for the stagehand daemon,
// whether launched from the CLI or by the OS service manager.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/stagehand-vp/stagehand/internal/config"
	"github.com/stagehand-vp/stagehand/internal/cron"
	"github.com/stagehand-vp/stagehand/internal/download"
	"github.com/stagehand-vp/stagehand/internal/gateway"
	"github.com/stagehand-vp/stagehand/internal/metrics"
	"github.com/stagehand-vp/stagehand/internal/notify"
	"github.com/stagehand-vp/stagehand/internal/reload"
	"github.com/stagehand-vp/stagehand/internal/takelog"
	"github.com/stagehand-vp/stagehand/internal/telemetry"
	"github.com/stagehand-vp/stagehand/internal/watchdog"
)

const shutdownTimeout = 10 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run starts the daemon and blocks until ctx is cancelled or a shutdown
// signal arrives. SIGHUP and edits to the configuration file restart the
// daemon's components with the new settings.
func Run(ctx context.Context, params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	}))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	watcher := reload.NewWatcher(reload.WatcherConfig{ConfigPath: cfgPath})
	watcher.Start(ctx)
	defer watcher.Stop()

	for {
		restart, err := runOnce(ctx, cfgPath, params, logger, sigCh, watcher.Changes())
		if err != nil || !restart {
			return err
		}
		logger.Info("restarting with updated configuration", "path", cfgPath)
	}
}

// runOnce brings up every component, waits for a shutdown or reload trigger,
// and tears everything down again. It reports whether the caller should start
// another round.
func runOnce(
	ctx context.Context,
	cfgPath string,
	params RunParams,
	logger *slog.Logger,
	sigCh <-chan os.Signal,
	changes <-chan string,
) (restart bool, err error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return false, err
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	shutdownTelemetry, err := telemetry.Setup(runCtx, telemetry.Config{
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
		Version:  params.Version,
		Logger:   logger,
	})
	if err != nil {
		return false, err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	metricsSet := metrics.New()

	takeDBPath := cfg.TakeLog.Path
	if takeDBPath == "" {
		takeDBPath = filepath.Join(dataDir, "takes.db")
	}
	if err := os.MkdirAll(filepath.Dir(takeDBPath), 0o700); err != nil {
		return false, fmt.Errorf("creating data directory: %w", err)
	}
	takes, err := takelog.Open(takeDBPath, logger)
	if err != nil {
		return false, err
	}
	defer func() { _ = takes.Close() }()

	downloadsDir := cfg.Downloads.Dir
	if downloadsDir == "" {
		downloadsDir = filepath.Join(dataDir, "downloads")
	}
	if err := os.MkdirAll(downloadsDir, 0o700); err != nil {
		return false, fmt.Errorf("creating downloads directory %s: %w", downloadsDir, err)
	}

	wd, err := watchdog.New(watchdog.Config{
		Logger:  logger,
		Metrics: metricsSet,
	}, watchTasks(cfg))
	if err != nil {
		return false, err
	}
	if err := wd.Start(runCtx); err != nil {
		return false, err
	}

	if cfg.Notify.WebhookURL != "" {
		notifier, err := notify.New(notify.Config{
			URL:    cfg.Notify.WebhookURL,
			Secret: cfg.Notify.Secret,
			Logger: logger,
		})
		if err != nil {
			return false, err
		}
		events, unsubscribe := wd.Subscribe()
		defer unsubscribe()
		go notifier.Run(runCtx, events)
	}

	scheduler := cron.NewScheduler(cron.Config{Logger: logger, Metrics: metricsSet})
	if err := scheduler.RegisterJob(&cron.ArtifactPurgeJob{
		Dir:          downloadsDir,
		MaxAge:       cfg.Downloads.Retention.Std(),
		Logger:       logger,
		ScheduleExpr: cfg.Downloads.PurgeSchedule,
	}); err != nil {
		return false, err
	}
	if err := scheduler.RegisterJob(&cron.TakePurgeJob{
		Store:        takes,
		MaxAge:       cfg.TakeLog.Retention.Std(),
		Logger:       logger,
		ScheduleExpr: cfg.TakeLog.PurgeSchedule,
	}); err != nil {
		return false, err
	}

	gw := gateway.New(gateway.Config{
		Bind:         cfg.Gateway.Bind,
		ReadTimeout:  cfg.Gateway.ReadTimeout.Std(),
		WriteTimeout: cfg.Gateway.WriteTimeout.Std(),
		Logger:       logger,
	}, wd, takes, metricsSet, params.Version)
	gw.EnableDownloads(download.NewClient(download.Config{
		ChunkSize: cfg.Downloads.ChunkSize,
		Logger:    logger,
	}), downloadsDir)

	// Shared teardown for both the error paths and the normal exit.
	stopAll := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := gw.Stop(stopCtx); err != nil {
			logger.Warn("gateway shutdown failed", "error", err)
		}
		if err := scheduler.Stop(stopCtx); err != nil {
			logger.Warn("scheduler shutdown failed", "error", err)
		}
		if err := wd.Stop(stopCtx); err != nil && !errors.Is(err, watchdog.ErrNotStarted) {
			logger.Warn("watchdog shutdown failed", "error", err)
		}
	}

	if err := scheduler.Start(runCtx); err != nil {
		stopAll()
		return false, err
	}
	if err := gw.Start(runCtx); err != nil {
		stopAll()
		return false, err
	}

	logger.Info("stagehand started",
		"version", params.Version,
		"tasks", len(cfg.Watchdog.Tasks),
		"data_dir", dataDir,
	)

	restart = waitForTrigger(ctx, cfgPath, logger, sigCh, changes)
	stopAll()

	logger.Info("shutdown complete", "restart", restart)
	return restart, nil
}

// waitForTrigger blocks until something asks the daemon to stop or restart.
// A reload trigger with a broken new configuration is logged and ignored so
// the running components stay up.
func waitForTrigger(
	ctx context.Context,
	cfgPath string,
	logger *slog.Logger,
	sigCh <-chan os.Signal,
	changes <-chan string,
) bool {
	for {
		var reloading bool

		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				logger.Info("reload signal received")
				reloading = true
			} else {
				logger.Info("shutdown signal received", "signal", sig.String())
			}
		case <-changes:
			logger.Info("configuration file changed", "path", cfgPath)
			reloading = true
		case <-ctx.Done():
			logger.Info("shutdown requested")
		}

		if !reloading {
			return false
		}

		if _, err := config.Load(cfgPath); err != nil {
			logger.Error("ignoring reload: new configuration is invalid", "error", err)
			continue
		}
		return true
	}
}

// watchTasks converts config task entries into watchdog tasks.
func watchTasks(cfg *config.Config) []watchdog.Task {
	tasks := make([]watchdog.Task, 0, len(cfg.Watchdog.Tasks))
	for _, t := range cfg.Watchdog.Tasks {
		tasks = append(tasks, watchdog.Task{
			Name:          t.Name,
			Process:       t.Process,
			Interval:      t.Interval.Std(),
			Timeout:       t.Timeout.Std(),
			KillOnTimeout: t.KillOnTimeout,
		})
	}
	return tasks
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/stagehand/stagehand.yaml →
// ~/.config/stagehand/stagehand.yaml → ./stagehand.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "stagehand", "stagehand.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "stagehand", "stagehand.yaml"))
	}

	candidates = append(candidates, "stagehand.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/stagehand if set, otherwise ~/.local/share/stagehand
// per the XDG spec.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "stagehand")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "stagehand")
}
