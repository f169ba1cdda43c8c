package indicator

import (
	"context"
	"testing"
	"time"

	"market-data-processor/internal/model"
)

var testBase = time.Date(2026, 1, 2, 9, 15, 0, 0, time.UTC)

func makeTick(symbol string, i int, price float64) model.Tick {
	return model.Tick{
		Symbol: symbol,
		Price:  price,
		Qty:    1,
		TS:     testBase.Add(time.Duration(i) * time.Second),
	}
}

func defaultConfigs(t *testing.T) []IndicatorConfig {
	t.Helper()
	configs, err := ParseSpecs(DefaultSpecs)
	if err != nil {
		t.Fatalf("ParseSpecs(DefaultSpecs): %v", err)
	}
	return configs
}

func TestEngine_ResultPerIndicator(t *testing.T) {
	e := NewEngine(defaultConfigs(t))

	results := e.Process(makeTick("BTCUSD", 0, 100))
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}

	names := []string{"SMA_10", "EMA_10", "RSI_14", "BB_20_2", "MACD_12_26_9"}
	for i, r := range results {
		if r.Name != names[i] {
			t.Errorf("result %d name = %q, want %q", i, r.Name, names[i])
		}
		if r.Symbol != "BTCUSD" {
			t.Errorf("result %d symbol = %q", i, r.Symbol)
		}
	}

	// EMA and MACD are ready from the first tick; the windowed ones are not.
	wantReady := []bool{false, true, false, false, true}
	for i, r := range results {
		if r.Ready != wantReady[i] {
			t.Errorf("%s ready = %v, want %v", r.Name, r.Ready, wantReady[i])
		}
	}
	if _, ok := results[4].Fields["histogram"]; !ok {
		t.Error("MACD result missing histogram field")
	}
}

func TestEngine_BollingerFields(t *testing.T) {
	e := NewEngine([]IndicatorConfig{{Type: TypeBB, Period: 3, StdDev: 2}})
	var r model.IndicatorResult
	for i, p := range []float64{1, 2, 3} {
		r = e.Process(makeTick("X", i, p))[0]
	}
	if !r.Ready {
		t.Fatal("BB should be ready after 3 ticks")
	}
	assertClose(t, "value is middle band", r.Value, 2, 1e-12)
	assertClose(t, "middle field", r.Fields["middle"], 2, 1e-12)
	if r.Fields["upper"] <= r.Fields["middle"] || r.Fields["lower"] >= r.Fields["middle"] {
		t.Errorf("bands out of order: %v", r.Fields)
	}
}

func TestEngine_SymbolsAreIndependent(t *testing.T) {
	e := NewEngine([]IndicatorConfig{{Type: TypeSMA, Period: 2}})

	e.Process(makeTick("AAA", 0, 10))
	e.Process(makeTick("BBB", 0, 1000))
	ra := e.Process(makeTick("AAA", 1, 20))[0]
	rb := e.Process(makeTick("BBB", 1, 2000))[0]

	assertClose(t, "AAA SMA", ra.Value, 15, 1e-12)
	assertClose(t, "BBB SMA", rb.Value, 1500, 1e-12)

	if got := e.Symbols(); len(got) != 2 || got[0] != "AAA" || got[1] != "BBB" {
		t.Errorf("Symbols() = %v, want [AAA BBB]", got)
	}
}

func TestEngine_LastTickTS(t *testing.T) {
	e := NewEngine([]IndicatorConfig{{Type: TypeEMA, Period: 3}})
	if got := e.LastTickTS("X"); got != 0 {
		t.Fatalf("LastTickTS of unknown symbol = %d, want 0", got)
	}
	tick := makeTick("X", 5, 1)
	e.Process(tick)
	if got := e.LastTickTS("X"); got != tick.TS.UnixNano() {
		t.Errorf("LastTickTS = %d, want %d", got, tick.TS.UnixNano())
	}

	e.Reset("X")
	if got := e.LastTickTS("X"); got != 0 {
		t.Errorf("LastTickTS after Reset = %d, want 0", got)
	}
}

func TestEngine_Reset(t *testing.T) {
	e := NewEngine([]IndicatorConfig{{Type: TypeSMA, Period: 2}})
	e.Process(makeTick("X", 0, 1))
	e.Process(makeTick("X", 1, 2))
	e.Reset("X")

	if r := e.Process(makeTick("X", 2, 3))[0]; r.Ready {
		t.Error("SMA should be cold after engine Reset")
	}
}

func TestEngine_Run(t *testing.T) {
	e := NewEngine([]IndicatorConfig{{Type: TypeEMA, Period: 3}, {Type: TypeSMA, Period: 2}})

	tickCh := make(chan model.Tick, 4)
	resultCh := make(chan model.IndicatorResult) // unbuffered: Run must wait, not drop
	tickCh <- makeTick("X", 0, 10)
	tickCh <- makeTick("X", 1, 20)
	close(tickCh)

	go func() {
		e.Run(context.Background(), tickCh, resultCh)
		close(resultCh)
	}()

	var got []model.IndicatorResult
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case r, ok := <-resultCh:
			if !ok {
				done = true
				break
			}
			got = append(got, r)
		case <-timeout:
			t.Fatal("Run did not return after tick channel closed")
		}
	}

	if len(got) != 4 {
		t.Fatalf("got %d results, want 4", len(got))
	}
	if last := got[3]; last.Name != "SMA_2" || !last.Ready || last.Value != 15 {
		t.Errorf("last result = %+v, want ready SMA_2 = 15", last)
	}
}

func TestEngine_Run_StopsWhileBlockedOnResults(t *testing.T) {
	e := NewEngine([]IndicatorConfig{{Type: TypeEMA, Period: 3}})
	ctx, cancel := context.WithCancel(context.Background())
	tickCh := make(chan model.Tick, 1)
	tickCh <- makeTick("X", 0, 10)

	done := make(chan struct{})
	go func() {
		e.Run(ctx, tickCh, make(chan model.IndicatorResult)) // nobody reads results
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel while sending")
	}
}

func TestEngine_Run_StopsOnCancel(t *testing.T) {
	e := NewEngine([]IndicatorConfig{{Type: TypeEMA, Period: 3}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx, make(chan model.Tick), make(chan model.IndicatorResult))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

// ────────────────────────────────────────────────────────────
// Reload
// ────────────────────────────────────────────────────────────

func TestEngine_ReloadPreservesMatchingState(t *testing.T) {
	e := NewEngine([]IndicatorConfig{{Type: TypeSMA, Period: 3}, {Type: TypeEMA, Period: 5}})
	for i, p := range []float64{10, 20, 30} {
		e.Process(makeTick("X", i, p))
	}

	preserved, created := e.ReloadConfigs([]IndicatorConfig{
		{Type: TypeSMA, Period: 3},
		{Type: TypeRSI, Period: 2},
	})
	if preserved != 1 || created != 1 {
		t.Fatalf("preserved=%d created=%d, want 1/1", preserved, created)
	}

	results := e.Process(makeTick("X", 3, 40))
	if len(results) != 2 {
		t.Fatalf("got %d results after reload, want 2", len(results))
	}
	// SMA kept its window: (20+30+40)/3
	if !results[0].Ready {
		t.Fatal("preserved SMA should still be warm")
	}
	assertClose(t, "SMA after reload", results[0].Value, 30, 1e-12)
	if results[1].Name != "RSI_2" || results[1].Ready {
		t.Errorf("new RSI should be cold, got %+v", results[1])
	}

	// Symbols first seen after reload use the new configs.
	if got := len(e.Process(makeTick("Y", 0, 1))); got != 2 {
		t.Errorf("new symbol got %d results, want 2", got)
	}
}
