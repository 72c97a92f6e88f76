// Package main is the entry point of the CarbonIQ rewards worker.
//
// The worker runs the periodic jobs: rank recalculation over every snapshot
// followed by leaderboard cache invalidation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carboniq/carboniq-rewards/config"
	"github.com/carboniq/carboniq-rewards/internal/bootstrap"
	"github.com/carboniq/carboniq-rewards/internal/infrastructure/scheduler"
	"github.com/carboniq/carboniq-rewards/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.App.Storage == config.StorageMemory {
		return fmt.Errorf("worker needs shared storage; APP_STORAGE=memory would rank an empty process-local store")
	}

	log := bootstrap.NewLogger(cfg)
	slogger := bootstrap.NewSlog(cfg)
	slogger.Info("starting CarbonIQ rewards worker",
		"version", cfg.App.Version,
		"rank_schedule", cfg.Scheduler.RankSchedule,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. WIRING
	// ─────────────────────────────────────────────────────────────────────────
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer app.Close()

	if !cfg.Scheduler.Enabled {
		slogger.Warn("scheduler disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = slogger
	schedCfg.RunOnStart = cfg.Scheduler.RunOnStart
	sched := scheduler.NewScheduler(schedCfg)

	rankSchedule, err := scheduler.ParseSchedule(cfg.Scheduler.RankSchedule)
	if err != nil {
		return fmt.Errorf("rank schedule: %w", err)
	}
	if err := sched.Register(app.RankJob(slogger), rankSchedule); err != nil {
		return fmt.Errorf("register rank job: %w", err)
	}

	sched.OnJobComplete(func(r scheduler.JobResult) {
		if !r.Success && !r.Skipped {
			log.Error("job failed",
				logger.String("job", r.JobName),
				logger.Duration("duration", r.Duration),
				logger.Err(r.Error),
			)
		}
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slogger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	done := make(chan error, 1)
	go func() { done <- sched.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			slogger.Error("scheduler stop failed", "error", err)
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		slogger.Warn("scheduler did not stop in time", "timeout", cfg.App.ShutdownTimeout.String())
	}

	for _, r := range sched.GetHistory(5) {
		slogger.Info("recent job run",
			"job", r.JobName,
			"success", r.Success,
			"skipped", r.Skipped,
			"duration", r.Duration.String(),
		)
	}
	slogger.Info("worker stopped")
	return nil
}
