package indicator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrBadSnapshot is returned when a snapshot does not fit the calculator it
// is restored into.
var ErrBadSnapshot = errors.New("indicator: bad snapshot")

func snapshotErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrBadSnapshot}, args...)...)
}

// Snapshottable is implemented by calculators that support state serialization.
type Snapshottable interface {
	Calculator
	Snapshot() IndicatorSnapshot
	RestoreFromSnapshot(snap IndicatorSnapshot) error
}

// IndicatorSnapshot holds the serialized state of a single calculator.
// Composite calculators nest their inner calculators in Components.
type IndicatorSnapshot struct {
	Type   string `json:"type"` // "SMA", "EMA", "RSI", "BB", "MACD"
	Period int    `json:"period,omitempty"`

	// SMA / BB window, oldest first
	Window  []float64 `json:"window,omitempty"`
	Current float64   `json:"current"`

	// EMA fields
	Multiplier float64 `json:"multiplier,omitempty"`
	Seeded     bool    `json:"seeded,omitempty"`

	// RSI fields
	Gains     []float64 `json:"gains,omitempty"`
	Losses    []float64 `json:"losses,omitempty"`
	PrevClose *float64  `json:"prev_close,omitempty"`

	// BB fields
	StdDev float64 `json:"std_dev,omitempty"`
	Bands  *Bands  `json:"bands,omitempty"`

	// MACD fields
	FastPeriod   int        `json:"fast,omitempty"`
	SlowPeriod   int        `json:"slow,omitempty"`
	SignalPeriod int        `json:"signal,omitempty"`
	MACD         *MACDValue `json:"macd,omitempty"`

	Components []IndicatorSnapshot `json:"components,omitempty"`
}

func (s IndicatorSnapshot) expect(typ string) error {
	if s.Type != typ {
		return snapshotErrorf("want type %s, got %q", typ, s.Type)
	}
	return nil
}

// config recovers the IndicatorConfig a snapshot was taken from.
func (s IndicatorSnapshot) config() IndicatorConfig {
	return IndicatorConfig{
		Type:   s.Type,
		Period: s.Period,
		StdDev: s.StdDev,
		Fast:   s.FastPeriod,
		Slow:   s.SlowPeriod,
		Signal: s.SignalPeriod,
	}
}

// SymbolSnapshot holds indicator snapshots for a single symbol.
type SymbolSnapshot struct {
	Symbol     string              `json:"symbol"`
	LastTickTS int64               `json:"last_tick_ts"` // unix nanos of the last processed tick
	Indicators []IndicatorSnapshot `json:"indicators"`
}

// EngineSnapshot holds the full state of the indicator engine.
type EngineSnapshot struct {
	Version int              `json:"version"` // schema version for forward compat
	TakenAt time.Time        `json:"taken_at"`
	Symbols []SymbolSnapshot `json:"symbols"`
}

const snapshotVersion = 1

// SnapshotEngine captures the full state of an indicator Engine.
func SnapshotEngine(e *Engine) (*EngineSnapshot, error) {
	snap := &EngineSnapshot{
		Version: snapshotVersion,
		TakenAt: time.Now().UTC(),
		Symbols: make([]SymbolSnapshot, 0, len(e.state)),
	}

	for _, symbol := range e.Symbols() {
		si := e.state[symbol]
		ss := SymbolSnapshot{
			Symbol:     symbol,
			LastTickTS: si.lastTickTS,
			Indicators: make([]IndicatorSnapshot, 0, len(si.indicators)),
		}
		for _, ind := range si.indicators {
			s, ok := ind.(Snapshottable)
			if !ok {
				return nil, fmt.Errorf("indicator %s does not implement Snapshottable", ind.Name())
			}
			ss.Indicators = append(ss.Indicators, s.Snapshot())
		}
		snap.Symbols = append(snap.Symbols, ss)
	}

	return snap, nil
}

// RestoreEngine rebuilds an indicator Engine from a snapshot.
// It is tolerant of config changes: indicators are matched by config key
// rather than by index. Matching indicators get their state restored; new
// indicators start cold. Removed indicators are silently skipped.
func RestoreEngine(configs []IndicatorConfig, snap *EngineSnapshot) (*Engine, error) {
	if snap.Version != snapshotVersion {
		return nil, snapshotErrorf("unsupported engine snapshot version %d", snap.Version)
	}
	e := NewEngine(configs)

	for _, ss := range snap.Symbols {
		si := e.newSymbolIndicators()
		si.lastTickTS = ss.LastTickTS

		lookup := make(map[string]IndicatorSnapshot, len(ss.Indicators))
		for _, is := range ss.Indicators {
			lookup[is.config().Key()] = is
		}

		restored, cold := 0, 0
		for i, ind := range si.indicators {
			is, found := lookup[si.configs[i].Key()]
			if !found {
				cold++
				continue
			}
			s, ok := ind.(Snapshottable)
			if !ok {
				cold++
				continue
			}
			if err := s.RestoreFromSnapshot(is); err != nil {
				// Non-fatal: leave this one cold.
				slog.Warn("indicator restore failed", "symbol", ss.Symbol, "indicator", ind.Name(), "error", err)
				ind.Reset()
				cold++
				continue
			}
			restored++
		}

		if cold > 0 {
			slog.Info("indicator engine partially restored",
				"symbol", ss.Symbol, "restored", restored, "cold", cold)
		}
		e.state[ss.Symbol] = si
	}

	return e, nil
}
