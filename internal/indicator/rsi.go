package indicator

import (
	"math"

	"market-data-processor/internal/model"
)

// RSI calculates the Relative Strength Index from simple averages of the last
// period gains and losses. The first update only records the close; the first
// value arrives on update period+1.
type RSI struct {
	period    int
	gains     window
	losses    window
	prevClose float64
	hasPrev   bool
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  newWindow(period),
		losses: newWindow(period),
	}
}

func (r *RSI) Name() string { return "RSI_" + model.Itoa(r.period) }

// Update feeds the next close. The result always lies in [0, 100]; an
// average loss of zero yields exactly 100.
func (r *RSI) Update(close float64) (float64, bool) {
	prev, hasPrev := r.prevClose, r.hasPrev
	r.prevClose = close
	r.hasPrev = true
	if !hasPrev {
		return 0, false
	}

	change := close - prev
	if change > 0 {
		r.gains.push(change)
		r.losses.push(0)
	} else {
		r.gains.push(0)
		r.losses.push(math.Abs(change))
	}

	if !r.gains.full() {
		return 0, false
	}

	avgGain := r.gains.mean()
	avgLoss := r.losses.mean()
	if avgLoss == 0 {
		r.current = 100.0
		return r.current, true
	}
	rs := avgGain / avgLoss
	r.current = 100.0 - (100.0 / (1.0 + rs))
	return r.current, true
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.gains.full() }

// Reset clears both windows and the previous close.
func (r *RSI) Reset() {
	r.gains.reset()
	r.losses.reset()
	r.prevClose = 0
	r.hasPrev = false
	r.current = 0
}

func (r *RSI) observe(price float64) (float64, map[string]float64, bool) {
	v, ok := r.Update(price)
	return v, nil, ok
}

// Snapshot serializes the RSI state for checkpoint persistence.
func (r *RSI) Snapshot() IndicatorSnapshot {
	snap := IndicatorSnapshot{
		Type:    TypeRSI,
		Period:  r.period,
		Gains:   r.gains.values(),
		Losses:  r.losses.values(),
		Current: r.current,
	}
	if r.hasPrev {
		pc := r.prevClose
		snap.PrevClose = &pc
	}
	return snap
}

// RestoreFromSnapshot restores RSI state from a checkpoint.
func (r *RSI) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeRSI); err != nil {
		return err
	}
	if len(snap.Gains) != len(snap.Losses) {
		return snapshotErrorf("RSI gains/losses length %d != %d", len(snap.Gains), len(snap.Losses))
	}
	r.period = snap.Period
	r.gains = newWindow(snap.Period)
	r.losses = newWindow(snap.Period)
	r.gains.load(snap.Gains)
	r.losses.load(snap.Losses)
	r.hasPrev = snap.PrevClose != nil
	r.prevClose = 0
	if r.hasPrev {
		r.prevClose = *snap.PrevClose
	}
	r.current = snap.Current
	return nil
}
