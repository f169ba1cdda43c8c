package gateway

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 4096
)

// Client is a single WebSocket peer. With no symbol subscriptions it
// receives every channel.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	subMu   sync.RWMutex
	symbols map[string]bool
}

// clientMsg is what peers send:
//
//	{"type":"SUBSCRIBE","symbols":["BTCUSD"]}
//	{"type":"UNSUBSCRIBE","symbols":["BTCUSD"]}
//	{"type":"PING","ping":1700000000000}
type clientMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
	Ping    int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, clientSendBuffer),
		hub:     h,
		symbols: make(map[string]bool),
	}
}

// Serve registers a connection with the hub, sends the latest state for
// symbols (all when empty) changed after lastTS, and starts the pumps.
func (h *Hub) Serve(conn *websocket.Conn, symbols []string, lastTS time.Time) {
	c := newClient(h, conn)
	symbols = c.subscribe(symbols)
	conn.EnableWriteCompression(true)

	h.addClient(c)
	h.sendLatest(c, lastTS, symbols)

	go c.writePump()
	go c.readPump()
}

// wants reports whether c should receive updates for symbol.
func (c *Client) wants(symbol string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.symbols) == 0 || c.symbols[symbol]
}

// subscribe adds symbols and returns them normalised.
func (c *Client) subscribe(symbols []string) []string {
	out := normalizeSymbols(symbols)
	c.subMu.Lock()
	for _, s := range out {
		c.symbols[s] = true
	}
	c.subMu.Unlock()
	return out
}

func (c *Client) unsubscribe(symbols []string) {
	c.subMu.Lock()
	for _, s := range normalizeSymbols(symbols) {
		delete(c.symbols, s)
	}
	c.subMu.Unlock()
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// queue sends v as JSON without blocking. Only called from readPump.
func (c *Client) queue(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// writePump writes queued envelopes. Messages already waiting are coalesced
// into the same frame, separated by newlines.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			for n := len(c.send); n > 0; n-- {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles control messages until the connection fails.
func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.queue(map[string]string{"type": "error", "error": "invalid message: " + err.Error()})
			continue
		}

		switch strings.ToUpper(msg.Type) {
		case "SUBSCRIBE":
			symbols := c.subscribe(msg.Symbols)
			if len(symbols) == 0 {
				c.queue(map[string]string{"type": "error", "error": "symbols required"})
				continue
			}
			c.queue(map[string]interface{}{"type": "subscribed", "symbols": symbols})
			c.hub.sendLatest(c, time.Time{}, symbols)
		case "UNSUBSCRIBE":
			c.unsubscribe(msg.Symbols)
			c.queue(map[string]interface{}{"type": "unsubscribed", "symbols": normalizeSymbols(msg.Symbols)})
		case "PING":
			c.queue(map[string]interface{}{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
		default:
			c.queue(map[string]string{"type": "error", "error": "unknown type " + msg.Type})
		}
	}
}
