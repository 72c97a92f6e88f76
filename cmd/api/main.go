// Package main is the entry point of the CarbonIQ rewards API.
//
// The API receives report-created hooks from the reporting service, runs the
// reward pipeline and serves stats, badges and leaderboards over REST.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carboniq/carboniq-rewards/config"
	"github.com/carboniq/carboniq-rewards/internal/bootstrap"
	httpserver "github.com/carboniq/carboniq-rewards/internal/interface/http"
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

	log := bootstrap.NewLogger(cfg)
	log.Info("starting CarbonIQ rewards API",
		logger.String("version", cfg.App.Version),
		logger.String("storage", string(cfg.App.Storage)),
		logger.String("lock_mode", string(cfg.Rewards.LockMode)),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. WIRING
	// ─────────────────────────────────────────────────────────────────────────
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		log.Info("closing backends")
		app.Close()
	}()

	server := httpserver.NewServer(app.HTTPConfig(), app.HTTPDependencies())

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SERVE UNTIL SIGNALLED
	// ─────────────────────────────────────────────────────────────────────────
	errCh := server.StartAsync()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("http server error", logger.Err(err))
			return err
		}
	case <-ctx.Done():
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, shutdownCancel := app.ShutdownContext()
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}
	log.Info("shutdown completed", logger.Duration("uptime", server.Uptime()))
	return nil
}
