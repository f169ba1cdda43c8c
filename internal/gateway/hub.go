// Package gateway fans processor output out to WebSocket clients. It
// pattern-subscribes to the book and indicator PubSub channels, wraps each
// payload in a sequenced envelope and delivers it to clients subscribed to
// the payload's symbol.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"market-data-processor/internal/metrics"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultReplayDepth = 500 // envelopes kept per channel
	clientSendBuffer   = 256
)

// Hub manages WebSocket clients and Redis PubSub fan-out.
type Hub struct {
	rdb  *goredis.Client
	prom *metrics.GatewayMetrics

	mu      sync.RWMutex
	clients map[*Client]struct{}
	latest  map[string]latestEntry
	seq     int64

	// per-channel sequence numbers for client gap detection
	channelSeqs map[string]int64
	replayBufs  map[string]*ReplayBuffer
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// NewHub creates a Hub. rdb may be nil when Run is never called.
func NewHub(rdb *goredis.Client, prom *metrics.GatewayMetrics) *Hub {
	return &Hub{
		rdb:         rdb,
		prom:        prom,
		clients:     make(map[*Client]struct{}),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
	}
}

// Run pattern-subscribes to the processor's channels and broadcasts every
// message. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	pubsub := h.rdb.PSubscribe(ctx, subscribePatterns...)
	defer pubsub.Close()
	slog.Info("gateway subscribed", "patterns", subscribePatterns)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.Broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}

// Broadcast wraps data in an envelope and sends it to every client
// subscribed to the channel's symbol. Unknown channels are ignored.
func (h *Hub) Broadcast(channel string, data []byte) {
	parsed := parseChannel(channel)
	if parsed == nil {
		return
	}
	now := time.Now().UTC()
	if src := extractTS(data); !src.IsZero() {
		if d := now.Sub(src); d >= 0 {
			h.prom.Latency.Observe(d.Seconds())
		}
	}
	h.prom.Messages.WithLabelValues(parsed.kind).Inc()

	h.mu.Lock()
	h.seq++
	h.channelSeqs[channel]++
	channelSeq := h.channelSeqs[channel]
	h.latest[channel] = latestEntry{Data: data, TS: now, Seq: channelSeq}
	buf := buildEnvelope(channel, data, now, h.seq, channelSeq)
	rb, ok := h.replayBufs[channel]
	if !ok {
		rb = NewReplayBuffer(defaultReplayDepth)
		h.replayBufs[channel] = rb
	}
	h.mu.Unlock()

	rb.Push(channelSeq, buf)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(parsed.symbol) {
			continue
		}
		select {
		case c.send <- buf:
		default:
			h.prom.SlowClientDrops.Inc()
		}
	}
}

// buildEnvelope hand-crafts
//
//	{"channel":"...","data":<payload>,"ts":"...","seq":N,"channel_seq":M}
//
// data must already be valid JSON.
func buildEnvelope(channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	// channel names carry feed-supplied symbols, so they are JSON-escaped
	quoted, _ := json.Marshal(channel)
	buf := make([]byte, 0, len(quoted)+len(data)+128)
	buf = append(buf, `{"channel":`...)
	buf = append(buf, quoted...)
	buf = append(buf, `,"data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

// extractTS reads the payload's source time: published_at for book states,
// ts for indicator results.
func extractTS(data []byte) time.Time {
	var partial struct {
		PublishedAt time.Time `json:"published_at"`
		TS          time.Time `json:"ts"`
	}
	if json.Unmarshal(data, &partial) != nil {
		return time.Time{}
	}
	if !partial.PublishedAt.IsZero() {
		return partial.PublishedAt
	}
	return partial.TS
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.prom.Clients.Set(float64(n))
	slog.Info("ws client connected", "clients", n)
}

// removeClient unregisters c and closes its send queue.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.prom.Clients.Set(float64(n))
	slog.Info("ws client disconnected", "clients", n)
}

// sendLatest queues the latest payload of every channel c wants that changed
// after cutoff (zero = all), marked "initial".
func (h *Hub) sendLatest(c *Client, cutoff time.Time, symbols []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}

	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}
	for channel, e := range h.latest {
		p := parseChannel(channel)
		if len(want) > 0 && !want[p.symbol] {
			continue
		}
		if !cutoff.IsZero() && !e.TS.After(cutoff) {
			continue
		}
		env, _ := json.Marshal(map[string]interface{}{
			"channel":     channel,
			"data":        e.Data,
			"ts":          e.TS.Format(time.RFC3339Nano),
			"channel_seq": e.Seq,
			"initial":     true,
		})
		select {
		case c.send <- env:
		default:
			h.prom.SlowClientDrops.Inc()
		}
	}
}

// Latest returns the latest payload per channel.
func (h *Hub) Latest() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// ReplayRange returns buffered envelopes for channel with channel_seq in
// [fromSeq, toSeq].
func (h *Hub) ReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, ok := h.replayBufs[channel]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// ChannelSeq returns the current sequence number of channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
