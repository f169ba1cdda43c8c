// Package orderbook maintains a level-aggregated limit order book for a single
// instrument: price → total resting quantity on each side, plus derived
// market-state queries (best prices, mid, spread, depth, volume imbalance).
//
// An OrderBook has no internal locking. It is owned by one goroutine; callers
// that need to share it serialize access themselves or share a BookState.
package orderbook

import (
	"math"
	"time"

	"market-data-processor/internal/model"
)

// PriceLevel is the (price, quantity) projection returned by book queries.
type PriceLevel = model.PriceLevel

// OrderBook is a per-instrument ledger of aggregated bid and ask levels.
type OrderBook struct {
	symbol     string
	bids       ladder
	asks       ladder
	lastUpdate int64
}

// New creates an empty book for symbol.
func New(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   newLadder(),
		asks:   newLadder(),
	}
}

// Symbol returns the instrument this book tracks.
func (ob *OrderBook) Symbol() string { return ob.symbol }

// LastUpdate returns the record timestamp last set with SetLastUpdate.
func (ob *OrderBook) LastUpdate() int64 { return ob.lastUpdate }

// SetLastUpdate records the timestamp of the most recent applied update.
// UpdateBid and UpdateAsk never touch it; the owner decides the time basis.
func (ob *OrderBook) SetLastUpdate(ts int64) { ob.lastUpdate = ts }

// UpdateBid sets the aggregate quantity resting at price on the bid side.
// A zero quantity removes the level; removing an absent level is a no-op.
// Negative values are stored as given. NaN prices are ignored.
func (ob *OrderBook) UpdateBid(price, quantity float64) {
	if math.IsNaN(price) {
		return
	}
	ob.bids.set(price, quantity)
}

// UpdateAsk is UpdateBid for the ask side.
func (ob *OrderBook) UpdateAsk(price, quantity float64) {
	if math.IsNaN(price) {
		return
	}
	ob.asks.set(price, quantity)
}

// Apply routes an aggregated level update to its side and stamps LastUpdate
// with the update's unix-nano timestamp. Unknown sides are ignored.
func (ob *OrderBook) Apply(u model.BookUpdate) {
	switch u.Side {
	case model.SideBid:
		ob.UpdateBid(u.Price, u.Qty)
	case model.SideAsk:
		ob.UpdateAsk(u.Price, u.Qty)
	default:
		return
	}
	if !u.TS.IsZero() {
		ob.lastUpdate = u.TS.UnixNano()
	}
}

// BestBid returns the highest-priced bid, or false if there are no bids.
func (ob *OrderBook) BestBid() (PriceLevel, bool) { return ob.bids.max() }

// BestAsk returns the lowest-priced ask, or false if there are no asks.
func (ob *OrderBook) BestAsk() (PriceLevel, bool) { return ob.asks.min() }

// MidPrice returns (bestBid + bestAsk) / 2 when both sides are non-empty.
func (ob *OrderBook) MidPrice() (float64, bool) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

// Spread returns bestAsk - bestBid when both sides are non-empty.
// A crossed book yields a negative spread.
func (ob *OrderBook) Spread() (float64, bool) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask.Price - bid.Price, true
}

// SpreadPercentage returns spread / mid * 100, defined only for a positive mid.
func (ob *OrderBook) SpreadPercentage() (float64, bool) {
	spread, ok := ob.Spread()
	if !ok {
		return 0, false
	}
	mid, _ := ob.MidPrice()
	if !(mid > 0) {
		return 0, false
	}
	return spread / mid * 100, true
}

// TopBids returns up to n bid levels, best (highest) first.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	if n < 0 {
		n = 0
	}
	return ob.bids.descending(n)
}

// TopAsks returns up to n ask levels, best (lowest) first.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	if n < 0 {
		n = 0
	}
	return ob.asks.ascending(n)
}

// TotalBidVolume sums quantity over all bid levels.
func (ob *OrderBook) TotalBidVolume() float64 { return ob.bids.volume() }

// TotalAskVolume sums quantity over all ask levels.
func (ob *OrderBook) TotalAskVolume() float64 { return ob.asks.volume() }

// VolumeImbalance returns (bidVol - askVol) / (bidVol + askVol), or exactly 0
// when the denominator is zero.
func (ob *OrderBook) VolumeImbalance() float64 {
	bidVol := ob.TotalBidVolume()
	askVol := ob.TotalAskVolume()
	total := bidVol + askVol
	if total == 0 {
		return 0
	}
	return (bidVol - askVol) / total
}

// Depth returns the number of levels on each side.
func (ob *OrderBook) Depth() (bids, asks int) { return ob.bids.len(), ob.asks.len() }

// Clear drops every level on both sides, e.g. before applying a fresh snapshot.
func (ob *OrderBook) Clear() {
	ob.bids.clear()
	ob.asks.clear()
}

// State builds a BookState carrying the top depth levels of each side.
// The result shares no memory with the book.
func (ob *OrderBook) State(depth int) *model.BookState {
	st := &model.BookState{
		Symbol:      ob.symbol,
		Imbalance:   ob.VolumeImbalance(),
		BidVolume:   ob.TotalBidVolume(),
		AskVolume:   ob.TotalAskVolume(),
		Bids:        ob.TopBids(depth),
		Asks:        ob.TopAsks(depth),
		LastUpdate:  ob.lastUpdate,
		PublishedAt: time.Now().UTC(),
	}
	if bid, ok := ob.BestBid(); ok {
		st.BestBid = &bid
	}
	if ask, ok := ob.BestAsk(); ok {
		st.BestAsk = &ask
	}
	if mid, ok := ob.MidPrice(); ok {
		st.MidPrice = &mid
	}
	if spread, ok := ob.Spread(); ok {
		st.Spread = &spread
	}
	if pct, ok := ob.SpreadPercentage(); ok {
		st.SpreadPct = &pct
	}
	return st
}
