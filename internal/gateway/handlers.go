package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Mux is satisfied by *http.ServeMux and *metrics.Server.
type Mux interface {
	Handle(pattern string, h http.Handler)
}

// RegisterRoutes mounts the gateway endpoints:
//
//	GET /ws?symbols=BTCUSD,ETHUSD&last_ts=RFC3339   WebSocket stream
//	GET /api/latest                                   latest payload per channel
//	GET /api/missed?channel=...&from=N&to=M           buffered envelopes for a gap
func (h *Hub) RegisterRoutes(mux Mux) {
	mux.Handle("/ws", http.HandlerFunc(h.handleWS))
	mux.Handle("/api/latest", http.HandlerFunc(h.handleLatest))
	mux.Handle("/api/missed", http.HandlerFunc(h.handleMissed))
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var lastTS time.Time
	if s := q.Get("last_ts"); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			http.Error(w, "invalid last_ts", http.StatusBadRequest)
			return
		}
		lastTS = t
	}
	var symbols []string
	if s := q.Get("symbols"); s != "" {
		symbols = strings.Split(s, ",")
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	h.Serve(conn, symbols, lastTS)
}

func (h *Hub) handleLatest(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Latest())
}

func (h *Hub) handleMissed(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	q := r.URL.Query()
	channel := q.Get("channel")
	if parseChannel(channel) == nil {
		http.Error(w, "invalid channel", http.StatusBadRequest)
		return
	}
	from, err1 := strconv.ParseInt(q.Get("from"), 10, 64)
	to, err2 := strconv.ParseInt(q.Get("to"), 10, 64)
	if err1 != nil || err2 != nil || from > to {
		http.Error(w, "from and to must be integers with from <= to", http.StatusBadRequest)
		return
	}

	entries := h.ReplayRange(channel, from, to)
	msgs := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		msgs[i] = e
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"channel":     channel,
		"current_seq": h.ChannelSeq(channel),
		"messages":    msgs,
	})
}

// Healthz reports the gateway as healthy while Redis answers pings.
func (h *Hub) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	redisErr := ""
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		status, code, redisErr = "unhealthy", http.StatusServiceUnavailable, err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      status,
		"clients":     h.ClientCount(),
		"redis_error": redisErr,
	})
}
