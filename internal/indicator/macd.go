package indicator

import "market-data-processor/internal/model"

// MACDValue is one MACD reading. Histogram is always Line - Signal.
type MACDValue struct {
	Line      float64 `json:"line"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD tracks the difference between a fast and a slow EMA of price, and an
// EMA of that difference as the signal line.
//
// The inner EMAs seed on their first input, so MACD reports a value from the
// very first update; there is no warm-up gate tied to the slow period.
type MACD struct {
	fastPeriod, slowPeriod, signalPeriod int

	fast    *EMA
	slow    *EMA
	signal  *EMA
	current MACDValue
}

// NewMACD creates a MACD with the given EMA periods (typically 12, 26, 9).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fastPeriod:   fastPeriod,
		slowPeriod:   slowPeriod,
		signalPeriod: signalPeriod,
		fast:         NewEMA(fastPeriod),
		slow:         NewEMA(slowPeriod),
		signal:       NewEMA(signalPeriod),
	}
}

func (m *MACD) Name() string {
	return "MACD_" + model.Itoa(m.fastPeriod) + "_" + model.Itoa(m.slowPeriod) + "_" + model.Itoa(m.signalPeriod)
}

// Update feeds close to the fast and slow EMAs and the resulting MACD line to
// the signal EMA.
func (m *MACD) Update(close float64) (MACDValue, bool) {
	fast, okFast := m.fast.Update(close)
	slow, okSlow := m.slow.Update(close)
	if !okFast || !okSlow {
		return MACDValue{}, false
	}

	line := fast - slow
	signal, ok := m.signal.Update(line)
	if !ok {
		return MACDValue{}, false
	}

	m.current = MACDValue{
		Line:      line,
		Signal:    signal,
		Histogram: line - signal,
	}
	return m.current, true
}

// Value returns the most recent reading.
func (m *MACD) Value() MACDValue { return m.current }
func (m *MACD) Ready() bool      { return m.signal.Ready() }

// Reset resets all three EMAs.
func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.current = MACDValue{}
}

func (m *MACD) observe(price float64) (float64, map[string]float64, bool) {
	v, ok := m.Update(price)
	if !ok {
		return 0, nil, false
	}
	return v.Line, map[string]float64{
		"macd":      v.Line,
		"signal":    v.Signal,
		"histogram": v.Histogram,
	}, true
}

// Snapshot serializes the MACD state as its three EMA components
// (fast, slow, signal).
func (m *MACD) Snapshot() IndicatorSnapshot {
	cur := m.current
	return IndicatorSnapshot{
		Type:         TypeMACD,
		FastPeriod:   m.fastPeriod,
		SlowPeriod:   m.slowPeriod,
		SignalPeriod: m.signalPeriod,
		Components:   []IndicatorSnapshot{m.fast.Snapshot(), m.slow.Snapshot(), m.signal.Snapshot()},
		MACD:         &cur,
	}
}

// RestoreFromSnapshot restores MACD state from a checkpoint.
func (m *MACD) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeMACD); err != nil {
		return err
	}
	if len(snap.Components) != 3 {
		return snapshotErrorf("MACD expects 3 components, got %d", len(snap.Components))
	}
	emas := [3]*EMA{}
	for i, c := range snap.Components {
		emas[i] = NewEMA(c.Period)
		if err := emas[i].RestoreFromSnapshot(c); err != nil {
			return err
		}
	}
	m.fastPeriod = snap.FastPeriod
	m.slowPeriod = snap.SlowPeriod
	m.signalPeriod = snap.SignalPeriod
	m.fast, m.slow, m.signal = emas[0], emas[1], emas[2]
	m.current = MACDValue{}
	if snap.MACD != nil {
		m.current = *snap.MACD
	}
	return nil
}
