package model

import (
	"fmt"
	"time"
)

// EventType discriminates feed messages.
type EventType string

const (
	EventTrade EventType = "trade"
	EventBook  EventType = "book"
)

// Event is the wire envelope for everything the feed delivers:
//
//	{"type":"trade","symbol":"BTCUSD","price":50001.5,"qty":0.2,"ts":"..."}
//	{"type":"book","symbol":"BTCUSD","side":"bid","price":50000,"qty":1.5,"ts":"..."}
type Event struct {
	Type   EventType `json:"type"`
	Symbol string    `json:"symbol"`
	Side   Side      `json:"side,omitempty"`
	Price  float64   `json:"price"`
	Qty    float64   `json:"qty"`
	TS     time.Time `json:"ts"`
}

// Validate checks the envelope shape. It does not judge prices or quantities.
func (e *Event) Validate() error {
	if e.Symbol == "" {
		return fmt.Errorf("event: missing symbol")
	}
	switch e.Type {
	case EventTrade:
		return nil
	case EventBook:
		if !e.Side.Valid() {
			return fmt.Errorf("event: invalid side %q", e.Side)
		}
		return nil
	default:
		return fmt.Errorf("event: unknown type %q", e.Type)
	}
}

// Tick converts a trade event.
func (e *Event) Tick() Tick {
	return Tick{Symbol: e.Symbol, Price: e.Price, Qty: e.Qty, TS: e.TS}
}

// BookUpdate converts a book event.
func (e *Event) BookUpdate() BookUpdate {
	return BookUpdate{Symbol: e.Symbol, Side: e.Side, Price: e.Price, Qty: e.Qty, TS: e.TS}
}
