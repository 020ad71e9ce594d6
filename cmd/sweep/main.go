package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Freeeeeet/classroom_scheduler/internal/app"
	"github.com/Freeeeeet/classroom_scheduler/internal/config"
	"go.uber.org/zap"
)

// Разовый проход для внешнего cron: печатает число переведённых занятий
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, "sweep")
	defer logger.Sync()

	n, err := run(cfg, logger)
	if err != nil {
		logger.Error("Sweep failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	fmt.Println(n)
}

func run(cfg *config.Config, logger *zap.Logger) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return 0, err
	}
	defer application.Close()

	return application.Lifecycle.RunExpirySweep(ctx)
}
