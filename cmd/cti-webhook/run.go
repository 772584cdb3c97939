package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bissquit/cti-webhook/internal/app"
	"github.com/bissquit/cti-webhook/internal/config"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Consume the stream and deliver notifications (default)",
		RunE:  runBridge,
	}
}

// runBridge exits the process itself on startup failure so the configured
// delay applies before a supervisor restarts it.
func runBridge(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		fail(config.Default().StartupFailureDelay)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		fail(cfg.StartupFailureDelay)
	}

	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	if runErr != nil {
		slog.Error("stream consumer stopped", "error", runErr)
		return runErr
	}

	slog.Info("stopped")
	return nil
}

func fail(delay time.Duration) {
	slog.Info("exiting after startup failure", "delay", delay)
	time.Sleep(delay)
	os.Exit(1)
}
