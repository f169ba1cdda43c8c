package indicator

import "market-data-processor/internal/model"

// EMA calculates the Exponential Moving Average.
// O(1) per update; no window storage needed. The first update seeds the
// average with the input itself, so EMA is ready from the first tick.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	seeded     bool
}

// NewEMA creates a new EMA indicator with multiplier 2/(period+1).
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA_" + model.Itoa(e.period) }

// Update returns the new average. It never reports "not ready".
func (e *EMA) Update(value float64) (float64, bool) {
	if !e.seeded {
		e.current = value
		e.seeded = true
		return e.current, true
	}
	e.current = (value-e.current)*e.multiplier + e.current
	return e.current, true
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.seeded }

// Multiplier returns the smoothing factor fixed at construction.
func (e *EMA) Multiplier() float64 { return e.multiplier }

// Reset clears the EMA back to uninitialized.
func (e *EMA) Reset() {
	e.current = 0
	e.seeded = false
}

func (e *EMA) observe(price float64) (float64, map[string]float64, bool) {
	v, ok := e.Update(price)
	return v, nil, ok
}

// Snapshot serializes the EMA state for checkpoint persistence.
func (e *EMA) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:       TypeEMA,
		Period:     e.period,
		Multiplier: e.multiplier,
		Current:    e.current,
		Seeded:     e.seeded,
	}
}

// RestoreFromSnapshot restores EMA state from a checkpoint.
func (e *EMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeEMA); err != nil {
		return err
	}
	e.period = snap.Period
	e.multiplier = snap.Multiplier
	if e.multiplier == 0 {
		e.multiplier = 2.0 / float64(snap.Period+1)
	}
	e.current = snap.Current
	e.seeded = snap.Seeded
	return nil
}
