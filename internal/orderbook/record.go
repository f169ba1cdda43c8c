package orderbook

import (
	"encoding/json"
	"fmt"
	"math"
)

// Record is the serializable form of an OrderBook. Levels are listed best
// first; order is informational only since it is recoverable from price.
type Record struct {
	Symbol     string       `json:"symbol"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	LastUpdate int64        `json:"last_update"`
}

// Record returns the full book as a Record.
func (ob *OrderBook) Record() Record {
	return Record{
		Symbol:     ob.symbol,
		Bids:       ob.bids.descending(-1),
		Asks:       ob.asks.ascending(-1),
		LastUpdate: ob.lastUpdate,
	}
}

// FromRecord rebuilds a book. Zero-quantity levels are dropped and a repeated
// price keeps its last quantity, so the result always satisfies the book
// invariants. NaN prices are rejected.
func FromRecord(r Record) (*OrderBook, error) {
	ob := New(r.Symbol)
	ob.lastUpdate = r.LastUpdate
	for _, pl := range r.Bids {
		if math.IsNaN(pl.Price) {
			return nil, fmt.Errorf("orderbook %s: NaN bid price", r.Symbol)
		}
		ob.bids.set(pl.Price, pl.Quantity)
	}
	for _, pl := range r.Asks {
		if math.IsNaN(pl.Price) {
			return nil, fmt.Errorf("orderbook %s: NaN ask price", r.Symbol)
		}
		ob.asks.set(pl.Price, pl.Quantity)
	}
	return ob, nil
}

// MarshalJSON encodes the book as its Record.
func (ob *OrderBook) MarshalJSON() ([]byte, error) {
	return json.Marshal(ob.Record())
}

// UnmarshalJSON replaces the book's contents with the decoded Record.
func (ob *OrderBook) UnmarshalJSON(data []byte) error {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("orderbook: decode record: %w", err)
	}
	decoded, err := FromRecord(r)
	if err != nil {
		return err
	}
	*ob = *decoded
	return nil
}
