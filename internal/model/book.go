package model

import (
	"encoding/json"
	"time"
)

// Side identifies one side of an order book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool { return s == SideBid || s == SideAsk }

// BookUpdate is an aggregated level change: the new total quantity resting at
// Price on Side. Qty == 0 removes the level.
type BookUpdate struct {
	Symbol string    `json:"symbol"`
	Side   Side      `json:"side"`
	Price  float64   `json:"price"`
	Qty    float64   `json:"qty"`
	TS     time.Time `json:"ts"`
}

// PriceLevel is a read-only projection of one aggregated book level.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// BookState is a point-in-time summary of an order book, safe to share
// across goroutines once built.
type BookState struct {
	Symbol      string       `json:"symbol"`
	BestBid     *PriceLevel  `json:"best_bid,omitempty"`
	BestAsk     *PriceLevel  `json:"best_ask,omitempty"`
	MidPrice    *float64     `json:"mid_price,omitempty"`
	Spread      *float64     `json:"spread,omitempty"`
	SpreadPct   *float64     `json:"spread_pct,omitempty"`
	Imbalance   float64      `json:"imbalance"`
	BidVolume   float64      `json:"bid_volume"`
	AskVolume   float64      `json:"ask_volume"`
	Bids        []PriceLevel `json:"bids"`
	Asks        []PriceLevel `json:"asks"`
	LastUpdate  int64        `json:"last_update"`
	PublishedAt time.Time    `json:"published_at"`
}

// LatestKey returns the Redis key holding the latest state: "book:latest:{symbol}".
func (s *BookState) LatestKey() string {
	return "book:latest:" + s.Symbol
}

// PubSubChannel returns the Redis PubSub channel: "pub:book:{symbol}".
func (s *BookState) PubSubChannel() string {
	return "pub:book:" + s.Symbol
}

// JSON returns the JSON-encoded state.
func (s *BookState) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
