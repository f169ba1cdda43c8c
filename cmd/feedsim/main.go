// cmd/feedsim is a demo WebSocket feed. It broadcasts simulated trade and
// book events for mdprocessor without an exchange connection.
//
// Each message is a JSON array of model.Event: one trade per symbol followed
// by that symbol's book level updates.
//
// Config (env vars):
//
//	FEEDSIM_ADDR         listen address (default ":9001")
//	FEEDSIM_SYMBOLS      comma-separated SYMBOL:PRICE pairs (default "BTCUSD:50000,ETHUSD:3000")
//	FEEDSIM_INTERVAL_MS  broadcast interval in milliseconds (default 100)
//	FEEDSIM_LEVELS       book levels per side (default 5)
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"market-data-processor/internal/logger"
	"market-data-processor/internal/model"

	"github.com/gorilla/websocket"
)

// instrument holds per-symbol simulation state.
type instrument struct {
	Symbol string
	Price  float64
	Tick   float64 // price increment between book levels
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("upgrade failed", "error", err)
			return
		}
		slog.Info("client connected", "remote", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			slog.Info("client disconnected", "remote", r.RemoteAddr)
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Event generator ─────────────────────────────────────────────────────────

// walkPrice applies a small random walk (up to ±0.1%).
func walkPrice(rng *rand.Rand, price float64) float64 {
	pct := (rng.Float64()*0.2 - 0.1) / 100.0
	return math.Max(price*(1+pct), 0.01)
}

// events builds one trade and a full set of book levels around the new
// price. Levels that fall out of the window are removed with qty 0. Level
// prices are derived from integer tick counts so equal levels compare equal.
func events(rng *rand.Rand, in *instrument, levels int, now time.Time) []model.Event {
	prevN := int64(math.Round(in.Price / in.Tick))
	in.Price = walkPrice(rng, in.Price)
	midN := int64(math.Round(in.Price / in.Tick))
	px := func(n int64) float64 { return float64(n) * in.Tick }
	lv := int64(levels)

	out := make([]model.Event, 0, 1+4*levels)
	out = append(out, model.Event{
		Type:   model.EventTrade,
		Symbol: in.Symbol,
		Price:  in.Price,
		Qty:    math.Round(rng.Float64()*100) / 100,
		TS:     now,
	})

	for i := int64(1); i <= lv; i++ {
		out = append(out,
			model.Event{Type: model.EventBook, Symbol: in.Symbol, Side: model.SideBid, Price: px(midN - i), Qty: 1 + float64(rng.Intn(50))/10, TS: now},
			model.Event{Type: model.EventBook, Symbol: in.Symbol, Side: model.SideAsk, Price: px(midN + i), Qty: 1 + float64(rng.Intn(50))/10, TS: now},
		)
	}

	// clear stale levels left behind by the move
	if midN != prevN {
		for i := int64(1); i <= lv; i++ {
			if bid := prevN - i; bid >= midN || bid < midN-lv {
				out = append(out, model.Event{Type: model.EventBook, Symbol: in.Symbol, Side: model.SideBid, Price: px(bid), TS: now})
			}
			if ask := prevN + i; ask <= midN || ask > midN+lv {
				out = append(out, model.Event{Type: model.EventBook, Symbol: in.Symbol, Side: model.SideAsk, Price: px(ask), TS: now})
			}
		}
	}
	return out
}

func runGenerator(h *hub, instruments []instrument, levels int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for range ticker.C {
		now := time.Now().UTC()
		for i := range instruments {
			b, err := json.Marshal(events(rng, &instruments[i], levels, now))
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	logger.Init("feedsim", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	addr := envOrDefault("FEEDSIM_ADDR", ":9001")
	instruments := parseInstruments(envOrDefault("FEEDSIM_SYMBOLS", "BTCUSD:50000,ETHUSD:3000"))
	intervalMs := envIntOrDefault("FEEDSIM_INTERVAL_MS", 100)
	levels := envIntOrDefault("FEEDSIM_LEVELS", 5)

	if len(instruments) == 0 {
		slog.Error("no instruments configured via FEEDSIM_SYMBOLS")
		os.Exit(1)
	}
	slog.Info("feed simulator configured", "instruments", instruments, "interval_ms", intervalMs, "levels", levels)

	h := newHub()
	go runGenerator(h, instruments, levels, time.Duration(intervalMs)*time.Millisecond)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"feedsim"}`)
	})

	slog.Info("listening", "addr", addr, "ws", "ws://localhost"+addr+"/ws")
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func parseInstruments(s string) []instrument {
	var result []instrument
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		symbol, priceStr, _ := strings.Cut(part, ":")
		price, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
		if err != nil || price <= 0 {
			price = 100
		}
		result = append(result, instrument{
			Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
			Price:  price,
			Tick:   tickFor(price),
		})
	}
	return result
}

// tickFor picks a level spacing of roughly one basis point.
func tickFor(price float64) float64 {
	return math.Pow(10, math.Floor(math.Log10(price*0.0001)))
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
