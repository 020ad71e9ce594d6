package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/classroom_scheduler/internal/app"
	"github.com/Freeeeeet/classroom_scheduler/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, "booking")
	defer logger.Sync()

	logger.Sugar().Infow("Starting classroom scheduler",
		"environment", cfg.Environment,
		"conflict_mode", cfg.ConflictMode,
		"sweep_interval", cfg.SweepInterval,
		"telegram", cfg.TelegramToken != "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Sugar().Fatalf("Failed to start: %v", err)
	}
	defer application.Close()

	if err := application.Serve(ctx); err != nil {
		logger.Sugar().Errorf("Server stopped with error: %v", err)
		return
	}

	logger.Info("👋 Stopped")
}
