// cmd/mdprocessor consumes a market data feed, maintains per-symbol order
// books and streaming indicators, and publishes derived state to Redis.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"market-data-processor/config"
	"market-data-processor/internal/logger"
	"market-data-processor/internal/processor"
)

func main() {
	env := config.Load()
	logger.Init("mdprocessor", logger.ParseLevel(env.LogLevel))

	cfg, err := processor.ConfigFrom(env)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	svc, err := processor.New(cfg)
	if err != nil {
		slog.Error("init failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
