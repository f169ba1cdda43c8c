package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"market-data-processor/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// ~3h of one-per-second indicator values plus headroom
	indicatorStreamMaxLen = 12000
	defaultLatestTTL      = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer publishes indicator results and book state to Redis: a capped stream
// per indicator series, a "latest" key with TTL, and a PubSub message for live
// subscribers.
type Writer struct {
	client *goredis.Client

	// OnWrite, if set, observes the duration of every pipeline round trip.
	OnWrite func(time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return &Writer{client: client}, nil
}

// WriteIndicatorBatch writes ready indicator results in a single pipeline.
// Errors are logged; use BufferedWriter for circuit-breaker protection.
func (w *Writer) WriteIndicatorBatch(ctx context.Context, results []model.IndicatorResult) {
	if err := w.writeIndicators(ctx, results); err != nil {
		slog.Warn("redis indicator batch failed", "results", len(results), "error", err)
	}
}

// PublishBookState stores and publishes the latest book summary.
func (w *Writer) PublishBookState(ctx context.Context, state *model.BookState) {
	if err := w.writeBookState(ctx, state); err != nil {
		slog.Warn("redis book publish failed", "symbol", state.Symbol, "error", err)
	}
}

// writeIndicators batches XADD + SET + PUBLISH for every ready result into one
// network round trip. Warm-up results are skipped.
func (w *Writer) writeIndicators(ctx context.Context, results []model.IndicatorResult) error {
	pipe := w.client.Pipeline()
	queued := 0
	for i := range results {
		ind := &results[i]
		if !ind.Ready {
			continue
		}
		data := string(ind.JSON())
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: ind.StreamKey(),
			MaxLen: indicatorStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": data},
		})
		pipe.Set(ctx, ind.LatestKey(), data, defaultLatestTTL)
		pipe.Publish(ctx, ind.PubSubChannel(), data)
		queued++
	}
	if queued == 0 {
		return nil
	}
	return w.exec(ctx, pipe)
}

// writeBookState sets the latest-state key and publishes it. Book history is
// not kept.
func (w *Writer) writeBookState(ctx context.Context, state *model.BookState) error {
	data := string(state.JSON())
	pipe := w.client.Pipeline()
	pipe.Set(ctx, state.LatestKey(), data, defaultLatestTTL)
	pipe.Publish(ctx, state.PubSubChannel(), data)
	return w.exec(ctx, pipe)
}

func (w *Writer) exec(ctx context.Context, pipe goredis.Pipeliner) error {
	start := time.Now()
	_, err := pipe.Exec(ctx)
	if w.OnWrite != nil {
		w.OnWrite(time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
