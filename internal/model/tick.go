package model

import (
	"encoding/json"
	"time"
)

// Tick is a single trade print for one instrument.
// Prices and quantities are float64; the feed owns precision.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Qty    float64   `json:"qty"`
	TS     time.Time `json:"ts"` // UTC trade time
}

// JSON returns the JSON-encoded tick (ignoring errors for hot-path usage).
func (t *Tick) JSON() []byte {
	b, _ := json.Marshal(t)
	return b
}
