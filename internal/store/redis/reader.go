package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"market-data-processor/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// ConfigChannel carries indicator spec strings ("SMA:10,EMA:21,...") for hot
// reload across every running processor.
const ConfigChannel = "config:indicators"

// Reader reads published state and manages PubSub subscriptions. It shares
// the Writer's client.
type Reader struct {
	client *goredis.Client
}

// NewReader wraps an existing client.
func NewReader(client *goredis.Client) *Reader {
	return &Reader{client: client}
}

// ReadLatestBook returns the last published book state for symbol, or nil
// if none is stored.
func (r *Reader) ReadLatestBook(ctx context.Context, symbol string) (*model.BookState, error) {
	key := (&model.BookState{Symbol: symbol}).LatestKey()
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var state model.BookState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &state, nil
}

// SubscribeChannel subscribes to a Redis Pub/Sub channel and waits for the
// confirmation. The caller listens on .Channel() and closes the handle.
func (r *Reader) SubscribeChannel(ctx context.Context, channel string) (*goredis.PubSub, error) {
	pubsub := r.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return pubsub, nil
}

// Watch subscribes to channel and calls fn with each payload until ctx is
// done. Blocks.
func (r *Reader) Watch(ctx context.Context, channel string, fn func(payload string)) error {
	pubsub, err := r.SubscribeChannel(ctx, channel)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	slog.Info("redis subscription active", "channel", channel)
	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			fn(msg.Payload)
		}
	}
}

// Publish publishes a message to a Redis Pub/Sub channel.
func (r *Reader) Publish(ctx context.Context, channel, message string) error {
	return r.client.Publish(ctx, channel, message).Err()
}
