package orderbook

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"market-data-processor/internal/model"
)

func TestNew_Empty(t *testing.T) {
	ob := New("BTCUSD")
	if ob.Symbol() != "BTCUSD" {
		t.Errorf("symbol: got %q", ob.Symbol())
	}
	if _, ok := ob.BestBid(); ok {
		t.Error("expected no best bid on empty book")
	}
	if _, ok := ob.BestAsk(); ok {
		t.Error("expected no best ask on empty book")
	}
	if v := ob.TotalBidVolume(); v != 0 {
		t.Errorf("bid volume: got %v, want 0", v)
	}
	if v := ob.TotalAskVolume(); v != 0 {
		t.Errorf("ask volume: got %v, want 0", v)
	}
	if _, ok := ob.MidPrice(); ok {
		t.Error("expected no mid price on empty book")
	}
	if _, ok := ob.Spread(); ok {
		t.Error("expected no spread on empty book")
	}
	if _, ok := ob.SpreadPercentage(); ok {
		t.Error("expected no spread percentage on empty book")
	}
}

func TestUpdateBid_BestIsHighest(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(50000.0, 1.5)
	ob.UpdateBid(49999.0, 2.0)

	if bids, _ := ob.Depth(); bids != 2 {
		t.Fatalf("expected 2 bid levels, got %d", bids)
	}
	best, ok := ob.BestBid()
	if !ok || best.Price != 50000.0 || best.Quantity != 1.5 {
		t.Errorf("best bid: got %+v (ok=%v), want {50000 1.5}", best, ok)
	}
}

func TestUpdateAsk_BestIsLowest(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateAsk(50002.0, 1.5)
	ob.UpdateAsk(50001.0, 1.0)

	if _, asks := ob.Depth(); asks != 2 {
		t.Fatalf("expected 2 ask levels, got %d", asks)
	}
	best, ok := ob.BestAsk()
	if !ok || best.Price != 50001.0 || best.Quantity != 1.0 {
		t.Errorf("best ask: got %+v (ok=%v), want {50001 1}", best, ok)
	}
}

func TestUpdate_OverwritesQuantity(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(100, 1)
	ob.UpdateBid(100, 7)

	if bids, _ := ob.Depth(); bids != 1 {
		t.Fatalf("expected 1 level after overwrite, got %d", bids)
	}
	if best, _ := ob.BestBid(); best.Quantity != 7 {
		t.Errorf("quantity: got %v, want 7", best.Quantity)
	}
}

func TestUpdate_ZeroQuantityRemovesLevel(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(50000, 1.0)
	ob.UpdateBid(50000, 0)

	if _, ok := ob.BestBid(); ok {
		t.Error("expected bid side empty after zero-quantity update")
	}

	// Removing an absent level is a no-op.
	ob.UpdateAsk(123, 0)
	if _, asks := ob.Depth(); asks != 0 {
		t.Errorf("expected 0 ask levels, got %d", asks)
	}
}

func TestUpdate_RemoveBestRevealsNext(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(100, 1)
	ob.UpdateBid(99, 2)
	ob.UpdateBid(100, 0)

	best, ok := ob.BestBid()
	if !ok || best.Price != 99 {
		t.Errorf("best bid after removal: got %+v (ok=%v), want 99", best, ok)
	}
}

func TestMidPriceAndSpread(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(50000.0, 1.0)
	ob.UpdateAsk(50002.0, 1.0)

	mid, ok := ob.MidPrice()
	if !ok || mid != 50001.0 {
		t.Errorf("mid: got %v (ok=%v), want 50001", mid, ok)
	}
	spread, ok := ob.Spread()
	if !ok || spread != 2.0 {
		t.Errorf("spread: got %v (ok=%v), want 2", spread, ok)
	}
	pct, ok := ob.SpreadPercentage()
	if !ok || math.Abs(pct-2.0/50001.0*100) > 1e-12 {
		t.Errorf("spread pct: got %v (ok=%v)", pct, ok)
	}
}

func TestOneSidedBook_NoDerivedPrices(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(100, 1)

	if _, ok := ob.MidPrice(); ok {
		t.Error("mid must be undefined with no asks")
	}
	if _, ok := ob.Spread(); ok {
		t.Error("spread must be undefined with no asks")
	}
}

func TestCrossedBook_NegativeSpread(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(101, 1)
	ob.UpdateAsk(100, 1)

	spread, ok := ob.Spread()
	if !ok || spread != -1 {
		t.Errorf("crossed spread: got %v (ok=%v), want -1", spread, ok)
	}
}

func TestSpreadPercentage_NonPositiveMid(t *testing.T) {
	ob := New("X")
	ob.UpdateBid(-2, 1)
	ob.UpdateAsk(1, 1)

	if _, ok := ob.SpreadPercentage(); ok {
		t.Error("spread percentage must be undefined for negative mid")
	}

	ob2 := New("Y")
	ob2.UpdateBid(-1, 1)
	ob2.UpdateAsk(1, 1)
	if _, ok := ob2.SpreadPercentage(); ok {
		t.Error("spread percentage must be undefined for zero mid")
	}
}

func TestTopBids_DescendingOrder(t *testing.T) {
	ob := New("BTCUSD")
	for _, p := range []float64{49998, 50000, 49997, 49999} {
		ob.UpdateBid(p, 1)
	}

	top := ob.TopBids(3)
	want := []float64{50000, 49999, 49998}
	if len(top) != len(want) {
		t.Fatalf("expected %d levels, got %d", len(want), len(top))
	}
	for i, p := range want {
		if top[i].Price != p {
			t.Errorf("level %d: got %v, want %v", i, top[i].Price, p)
		}
	}
}

func TestTopAsks_AscendingOrder(t *testing.T) {
	ob := New("BTCUSD")
	for _, p := range []float64{50003, 50001, 50004, 50002} {
		ob.UpdateAsk(p, 1)
	}

	top := ob.TopAsks(3)
	want := []float64{50001, 50002, 50003}
	if len(top) != len(want) {
		t.Fatalf("expected %d levels, got %d", len(want), len(top))
	}
	for i, p := range want {
		if top[i].Price != p {
			t.Errorf("level %d: got %v, want %v", i, top[i].Price, p)
		}
	}
}

func TestTopN_Bounds(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(1, 1)
	ob.UpdateBid(2, 1)

	if got := ob.TopBids(10); len(got) != 2 {
		t.Errorf("TopBids(10) on 2 levels: got %d", len(got))
	}
	if got := ob.TopBids(0); len(got) != 0 {
		t.Errorf("TopBids(0): got %d", len(got))
	}
	if got := ob.TopAsks(5); len(got) != 0 {
		t.Errorf("TopAsks on empty side: got %d", len(got))
	}
}

func TestTopN_FreshSliceEachCall(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(100, 1)

	first := ob.TopBids(1)
	first[0].Quantity = 999
	second := ob.TopBids(1)
	if second[0].Quantity != 1 {
		t.Errorf("mutating a returned slice changed the book: %v", second[0].Quantity)
	}
}

func TestTotalVolumes(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(100, 1.5)
	ob.UpdateBid(99, 2.5)
	ob.UpdateAsk(101, 0.5)

	if v := ob.TotalBidVolume(); v != 4.0 {
		t.Errorf("bid volume: got %v, want 4", v)
	}
	if v := ob.TotalAskVolume(); v != 0.5 {
		t.Errorf("ask volume: got %v, want 0.5", v)
	}
}

func TestVolumeImbalance(t *testing.T) {
	tests := []struct {
		name string
		bids []float64
		asks []float64
		want float64
	}{
		{"empty", nil, nil, 0},
		{"more bids", []float64{3}, []float64{1}, 0.5},
		{"more asks", []float64{1}, []float64{3}, -0.5},
		{"only bids", []float64{2}, nil, 1},
		{"only asks", nil, []float64{2}, -1},
		{"balanced", []float64{1, 1}, []float64{2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ob := New("BTCUSD")
			for i, q := range tt.bids {
				ob.UpdateBid(100-float64(i), q)
			}
			for i, q := range tt.asks {
				ob.UpdateAsk(101+float64(i), q)
			}
			got := ob.VolumeImbalance()
			if math.IsNaN(got) {
				t.Fatal("imbalance is NaN")
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNaNPrice_Ignored(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(100, 1)
	ob.UpdateBid(math.NaN(), 5)
	ob.UpdateAsk(math.NaN(), 5)

	bids, asks := ob.Depth()
	if bids != 1 || asks != 0 {
		t.Errorf("depth after NaN updates: bids=%d asks=%d, want 1/0", bids, asks)
	}
	if best, _ := ob.BestBid(); best.Price != 100 {
		t.Errorf("best bid: got %v, want 100", best.Price)
	}
}

func TestComparePrices_TotalOrder(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		a, b float64
		want int
	}{
		{1, 2, -1},
		{2, 1, 1},
		{1, 1, 0},
		{math.Copysign(0, -1), 0, 0},
		{math.Inf(1), nan, -1},
		{nan, math.Inf(1), 1},
		{nan, nan, 0},
		{math.Inf(-1), -1e308, -1},
	}
	for _, tt := range tests {
		if got := comparePrices(tt.a, tt.b); got != tt.want {
			t.Errorf("comparePrices(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestApply_RoutesAndStamps(t *testing.T) {
	ob := New("BTCUSD")
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	ob.Apply(model.BookUpdate{Symbol: "BTCUSD", Side: model.SideBid, Price: 100, Qty: 1, TS: ts})
	ob.Apply(model.BookUpdate{Symbol: "BTCUSD", Side: model.SideAsk, Price: 101, Qty: 2, TS: ts.Add(time.Second)})
	ob.Apply(model.BookUpdate{Symbol: "BTCUSD", Side: "mid", Price: 5, Qty: 2, TS: ts.Add(time.Hour)})

	if b, _ := ob.BestBid(); b.Price != 100 {
		t.Errorf("best bid: got %v", b.Price)
	}
	if a, _ := ob.BestAsk(); a.Price != 101 {
		t.Errorf("best ask: got %v", a.Price)
	}
	if ob.LastUpdate() != ts.Add(time.Second).UnixNano() {
		t.Errorf("last update: got %d", ob.LastUpdate())
	}
}

func TestUpdate_DoesNotTouchLastUpdate(t *testing.T) {
	ob := New("BTCUSD")
	ob.SetLastUpdate(42)
	ob.UpdateBid(1, 1)
	ob.UpdateAsk(2, 1)
	if ob.LastUpdate() != 42 {
		t.Errorf("last update: got %d, want 42", ob.LastUpdate())
	}
}

func TestState_Projection(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(50000, 3)
	ob.UpdateBid(49999, 1)
	ob.UpdateAsk(50002, 1)

	st := ob.State(1)
	if st.BestBid == nil || st.BestBid.Price != 50000 {
		t.Fatalf("best bid: %+v", st.BestBid)
	}
	if st.MidPrice == nil || *st.MidPrice != 50001 {
		t.Errorf("mid: %v", st.MidPrice)
	}
	if st.Spread == nil || *st.Spread != 2 {
		t.Errorf("spread: %v", st.Spread)
	}
	if len(st.Bids) != 1 || len(st.Asks) != 1 {
		t.Errorf("depth: bids=%d asks=%d, want 1/1", len(st.Bids), len(st.Asks))
	}
	if st.BidVolume != 4 || st.AskVolume != 1 {
		t.Errorf("volumes: %v/%v", st.BidVolume, st.AskVolume)
	}
	if math.Abs(st.Imbalance-0.6) > 1e-12 {
		t.Errorf("imbalance: got %v, want 0.6", st.Imbalance)
	}

	empty := New("ETHUSD").State(5)
	if empty.BestBid != nil || empty.MidPrice != nil || empty.SpreadPct != nil {
		t.Errorf("empty state should have no derived prices: %+v", empty)
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(50000, 1.5)
	ob.UpdateBid(49999, 2)
	ob.UpdateAsk(50001, 1)
	ob.SetLastUpdate(1700000000)

	data, err := json.Marshal(ob)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored OrderBook
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored.Symbol() != "BTCUSD" || restored.LastUpdate() != 1700000000 {
		t.Errorf("header mismatch: %s %d", restored.Symbol(), restored.LastUpdate())
	}
	bids, asks := restored.Depth()
	if bids != 2 || asks != 1 {
		t.Errorf("depth: %d/%d", bids, asks)
	}
	if b, _ := restored.BestBid(); b.Price != 50000 || b.Quantity != 1.5 {
		t.Errorf("best bid: %+v", b)
	}
}

func TestFromRecord_EnforcesInvariants(t *testing.T) {
	ob, err := FromRecord(Record{
		Symbol: "BTCUSD",
		Bids: []PriceLevel{
			{Price: 100, Quantity: 1},
			{Price: 100, Quantity: 3}, // duplicate price: last wins
			{Price: 99, Quantity: 0},  // zero level dropped
		},
	})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if bids, _ := ob.Depth(); bids != 1 {
		t.Fatalf("expected 1 bid level, got %d", bids)
	}
	if b, _ := ob.BestBid(); b.Quantity != 3 {
		t.Errorf("quantity: got %v, want 3", b.Quantity)
	}

	if _, err := FromRecord(Record{Symbol: "X", Asks: []PriceLevel{{Price: math.NaN(), Quantity: 1}}}); err == nil {
		t.Error("expected error for NaN price")
	}
}

func TestClear(t *testing.T) {
	ob := New("BTCUSD")
	ob.UpdateBid(1, 1)
	ob.UpdateAsk(2, 1)
	ob.Clear()
	if b, a := ob.Depth(); b != 0 || a != 0 {
		t.Errorf("depth after clear: %d/%d", b, a)
	}
}
