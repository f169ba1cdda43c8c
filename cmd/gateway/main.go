// cmd/gateway streams processor output to WebSocket clients. It subscribes to
// the book and indicator PubSub channels in Redis and fans them out per
// symbol.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-data-processor/config"
	"market-data-processor/internal/gateway"
	"market-data-processor/internal/logger"
	"market-data-processor/internal/metrics"

	goredis "github.com/go-redis/redis/v8"
)

func main() {
	cfg := config.Load()
	logger.Init("gateway", logger.ParseLevel(cfg.LogLevel))

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		slog.Error("redis ping failed", "addr", cfg.RedisAddr, "error", err)
		os.Exit(1)
	}

	hub := gateway.NewHub(rdb, metrics.NewGatewayMetrics())
	go hub.Run(ctx)

	srv := metrics.NewServer(cfg.GatewayAddr, http.HandlerFunc(hub.Healthz))
	hub.RegisterRoutes(srv)
	srv.Start()

	<-ctx.Done()
	slog.Info("shutting down", "clients", hub.ClientCount())
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	srv.Stop(shutCtx)
}
