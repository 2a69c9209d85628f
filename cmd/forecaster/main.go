package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/pricecast/config"
	"github.com/alejandrodnm/pricecast/internal/adapters/metrics"
	"github.com/alejandrodnm/pricecast/internal/adapters/notify"
	"github.com/alejandrodnm/pricecast/internal/adapters/storage"
	"github.com/alejandrodnm/pricecast/internal/application/orchestrator"
	"github.com/alejandrodnm/pricecast/internal/application/schedule"
	"github.com/alejandrodnm/pricecast/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run once and exit even if a schedule is configured")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", true, "print full tables (false: compact 1-line summary)")
	strategy := flag.Bool("strategy", false, "run the direct lookahead strategy backtest instead of the recursive forecast")
	exportDir := flag.String("export", "", "write forecast paths as CSV into this directory")
	metricsFile := flag.String("metrics-file", "", "write Prometheus metrics to this textfile (overrides config)")
	cronSpec := flag.String("schedule", "", "cron expression with seconds (overrides config)")
	history := flag.Duration("history", 0, "print stored runs from the last duration and exit (e.g. 24h)")
	pathRef := flag.String("path", "", "print a stored forecast path (run_id:backend) and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *metricsFile != "" {
		cfg.Metrics.Textfile = *metricsFile
	}
	if *cronSpec != "" {
		cfg.Schedule.Cron = *cronSpec
	}
	setupLogger(cfg.Log)

	slog.Info("pricecast starting",
		"config", *configPath,
		"train_file", cfg.Data.TrainFile,
		"backends", cfg.BackendNames(),
		"strategy", *strategy,
		"schedule", cfg.Schedule.Cron,
	)

	var store *storage.SQLiteStorage
	if cfg.Storage.DSN != "" {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
	}

	console := notify.NewConsole(*table)

	if *history > 0 {
		if store == nil {
			slog.Error("history needs storage.dsn")
			os.Exit(1)
		}
		now := time.Now()
		rows, err := store.GetHistory(context.Background(), now.Add(-*history), now)
		if err != nil {
			slog.Error("history failed", "err", err)
			os.Exit(1)
		}
		console.PrintHistory(rows)
		return
	}

	if *pathRef != "" {
		if store == nil {
			slog.Error("path needs storage.dsn")
			os.Exit(1)
		}
		if err := printStoredPath(context.Background(), store, console, *pathRef); err != nil {
			slog.Error("path failed", "err", err)
			os.Exit(1)
		}
		return
	}

	runOpts, err := cfg.RunOptions()
	if err != nil {
		slog.Error("invalid run options", "err", err)
		os.Exit(1)
	}
	backends, err := buildBackends(cfg)
	if err != nil {
		slog.Error("failed to build backends", "err", err)
		os.Exit(1)
	}

	recorder := metrics.New()
	var runStorage ports.RunStorage
	if store != nil {
		runStorage = store
	}
	orch := orchestrator.New(runOpts, backends, console, runStorage, recorder)

	a, err := newApp(cfg, orch, store, recorder)
	if err != nil {
		slog.Error("invalid data source", "err", err)
		os.Exit(1)
	}
	a.exportDir = *exportDir
	a.strategy = *strategy
	a.targetField = runOpts.Spec.Target

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Schedule.Cron == "" || *once {
		if err := a.runOnce(ctx); err != nil {
			slog.Error("run failed", "err", err)
			os.Exit(1)
		}
		slog.Info("pricecast stopped cleanly")
		return
	}

	sched, err := schedule.New(cfg.Schedule.Cron, a.runOnce)
	if err != nil {
		slog.Error("invalid schedule", "err", err)
		os.Exit(1)
	}
	sched.Run(ctx, true)
	slog.Info("pricecast stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
