// Package feed connects to a JSON-over-WebSocket market data feed (for example
// cmd/feedsim) and pushes decoded events into the processing ring.
//
// Each text message is one event or a JSON array of events:
//
//	{"type":"trade","symbol":"BTCUSD","price":50001.5,"qty":0.2,"ts":"2026-01-02T09:15:00Z"}
//	[{"type":"book","symbol":"BTCUSD","side":"bid","price":50000,"qty":1.5,"ts":"..."}, ...]
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"market-data-processor/internal/model"

	"github.com/gorilla/websocket"
)

// Sink receives decoded events. Push must not block; it reports false when
// the event was dropped. *ringbuf.Ring satisfies it.
type Sink interface {
	Push(ev model.Event) bool
}

// Config holds feed client configuration.
type Config struct {
	// URL of the feed WebSocket, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 1 second if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Client streams feed events into a Sink, reconnecting with exponential
// backoff.
type Client struct {
	cfg Config

	// Optional hooks
	OnConnect   func(connected bool) // connection state changes
	OnReconnect func()               // each reconnection attempt
	OnInvalid   func()               // each undecodable or invalid event
	OnDrop      func()               // each event the sink refused
}

// New creates a Client. Returns an error if the URL is not a ws/wss URL.
func New(cfg Config) (*Client, error) {
	cfg.defaults()
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("feed url: unsupported scheme %q", u.Scheme)
	}
	return &Client{cfg: cfg}, nil
}

// Start connects and streams events into sink. Blocks until ctx is
// cancelled. Reconnects automatically on disconnect.
func (c *Client) Start(ctx context.Context, sink Sink) error {
	delay := c.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := c.runOnce(ctx, sink)
		if err == nil {
			return nil
		}
		if connected {
			// a healthy session resets the backoff
			delay = c.cfg.ReconnectDelay
		}

		slog.Warn("feed disconnected, reconnecting", "error", err, "delay", delay)
		if c.OnReconnect != nil {
			c.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection and reads until disconnect or ctx cancel.
// connected reports whether the dial succeeded.
func (c *Client) runOnce(ctx context.Context, sink Sink) (connected bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	slog.Info("feed connected", "url", c.cfg.URL)
	c.setConnected(true)
	defer c.setConnected(false)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return true, nil
			default:
			}
			return true, err
		}

		events, err := Decode(raw)
		if err != nil {
			slog.Debug("feed parse error", "error", err, "raw", string(raw))
			c.invalid()
			continue
		}
		for i := range events {
			if err := events[i].Validate(); err != nil {
				slog.Debug("feed invalid event", "error", err)
				c.invalid()
				continue
			}
			if !sink.Push(events[i]) && c.OnDrop != nil {
				c.OnDrop()
			}
		}
	}
}

// Decode parses one message: a single event object or an array of them.
func Decode(raw []byte) ([]model.Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var events []model.Event
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	var ev model.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return []model.Event{ev}, nil
}

func (c *Client) setConnected(v bool) {
	if c.OnConnect != nil {
		c.OnConnect(v)
	}
}

func (c *Client) invalid() {
	if c.OnInvalid != nil {
		c.OnInvalid()
	}
}
