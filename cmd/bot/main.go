package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"authentik-admin/internal/app"
	"authentik-admin/internal/bot"
	"authentik-admin/internal/config"
	"authentik-admin/internal/matrix"
	"authentik-admin/internal/metrics"
)

func main() {
	cfg, envErr := config.LoadConfig()

	logger := app.NewLogger(cfg.LogLevel)
	if envErr != nil {
		logger.Warnf(".env not found: %v", envErr)
	}
	if err := cfg.ValidateBot(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, metrics.NewNop())
	if err != nil {
		logger.Fatalf("Startup failed: %v", err)
	}
	defer a.Close()

	a.InitialRefresh(ctx)

	scheduler, err := a.StartRefreshSchedule(cfg.DirectoryRefreshSchedule)
	if err != nil {
		logger.Fatalf("Scheduler setup failed: %v", err)
	}

	b := bot.New(matrix.NewClient(cfg.MatrixHomeserver, cfg.MatrixAccessToken), a.Accounts, cfg.MatrixRoomIDs, logger)

	logger.WithField("rooms", cfg.MatrixRoomIDs).Info("Bot started")
	if err := b.Run(ctx); err != nil {
		logger.Errorf("Bot failed: %v", err)
	}

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	logger.Info("Bot exited")
}
