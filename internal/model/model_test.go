package model

import (
	"encoding/json"
	"math"
	"strconv"
	"testing"
	"time"
)

func TestEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ev      Event
		wantErr bool
	}{
		{"trade", Event{Type: EventTrade, Symbol: "BTCUSD", Price: 1}, false},
		{"book bid", Event{Type: EventBook, Symbol: "BTCUSD", Side: SideBid}, false},
		{"book ask", Event{Type: EventBook, Symbol: "BTCUSD", Side: SideAsk}, false},
		{"trade ignores side", Event{Type: EventTrade, Symbol: "BTCUSD", Side: "junk"}, false},
		{"missing symbol", Event{Type: EventTrade}, true},
		{"book without side", Event{Type: EventBook, Symbol: "BTCUSD"}, true},
		{"book bad side", Event{Type: EventBook, Symbol: "BTCUSD", Side: "buy"}, true},
		{"unknown type", Event{Type: "quote", Symbol: "BTCUSD"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEvent_Conversions(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	ev := Event{Type: EventBook, Symbol: "ETHUSD", Side: SideAsk, Price: 3000.5, Qty: 2, TS: ts}

	bu := ev.BookUpdate()
	if bu != (BookUpdate{Symbol: "ETHUSD", Side: SideAsk, Price: 3000.5, Qty: 2, TS: ts}) {
		t.Errorf("BookUpdate() = %+v", bu)
	}
	tick := ev.Tick()
	if tick != (Tick{Symbol: "ETHUSD", Price: 3000.5, Qty: 2, TS: ts}) {
		t.Errorf("Tick() = %+v", tick)
	}
}

func TestEvent_DecodeWire(t *testing.T) {
	raw := `{"type":"book","symbol":"BTCUSD","side":"bid","price":50000,"qty":1.5,"ts":"2026-01-02T03:04:05Z"}`
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatal(err)
	}
	if err := ev.Validate(); err != nil {
		t.Fatal(err)
	}
	if ev.Side != SideBid || ev.Price != 50000 || ev.Qty != 1.5 || ev.TS.Year() != 2026 {
		t.Errorf("decoded %+v", ev)
	}
}

func TestKeysAndChannels(t *testing.T) {
	r := IndicatorResult{Name: "SMA_10", Symbol: "BTCUSD"}
	if got := r.StreamKey(); got != "ind:SMA_10:BTCUSD" {
		t.Errorf("StreamKey = %q", got)
	}
	if got := r.LatestKey(); got != "ind:SMA_10:latest:BTCUSD" {
		t.Errorf("LatestKey = %q", got)
	}
	if got := r.PubSubChannel(); got != "pub:ind:SMA_10:BTCUSD" {
		t.Errorf("PubSubChannel = %q", got)
	}

	s := BookState{Symbol: "ETHUSD"}
	if got := s.LatestKey(); got != "book:latest:ETHUSD" {
		t.Errorf("book LatestKey = %q", got)
	}
	if got := s.PubSubChannel(); got != "pub:book:ETHUSD" {
		t.Errorf("book PubSubChannel = %q", got)
	}
}

func TestBookState_JSONOmitsEmptySide(t *testing.T) {
	s := BookState{Symbol: "BTCUSD", Bids: []PriceLevel{}, Asks: []PriceLevel{}}
	var m map[string]interface{}
	if err := json.Unmarshal(s.JSON(), &m); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"best_bid", "best_ask", "mid_price", "spread"} {
		if _, ok := m[k]; ok {
			t.Errorf("empty book encoded %q", k)
		}
	}
	if m["symbol"] != "BTCUSD" {
		t.Errorf("symbol = %v", m["symbol"])
	}
}

func TestItoa(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 26, 12345, -7, -100, math.MaxInt} {
		if got, want := Itoa(n), strconv.Itoa(n); got != want {
			t.Errorf("Itoa(%d) = %q, want %q", n, got, want)
		}
	}
}
