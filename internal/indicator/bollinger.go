package indicator

import (
	"math"
	"strconv"

	"market-data-processor/internal/model"
)

// Bands is one Bollinger Bands reading.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// BollingerBands places bands stdDev population standard deviations above and
// below an SMA of the last period values. The SMA supplies the middle band;
// a separate window of raw values feeds the variance.
type BollingerBands struct {
	sma     *SMA
	period  int
	stdDev  float64
	win     window
	current Bands
}

// NewBollingerBands creates bands over period values at stdDev multiples.
func NewBollingerBands(period int, stdDev float64) *BollingerBands {
	return &BollingerBands{
		sma:    NewSMA(period),
		period: period,
		stdDev: stdDev,
		win:    newWindow(period),
	}
}

func (b *BollingerBands) Name() string {
	return "BB_" + model.Itoa(b.period) + "_" + strconv.FormatFloat(b.stdDev, 'f', -1, 64)
}

// Update feeds value to both the window and the inner SMA. Bands are returned
// once the SMA is warm and the window holds exactly period values.
func (b *BollingerBands) Update(value float64) (Bands, bool) {
	b.win.push(value)

	middle, ok := b.sma.Update(value)
	if !ok || !b.win.full() {
		return Bands{}, false
	}

	variance := 0.0
	for _, v := range b.win.values() {
		d := v - middle
		variance += d * d
	}
	variance /= float64(b.period)

	std := math.Sqrt(variance)
	b.current = Bands{
		Upper:  middle + b.stdDev*std,
		Middle: middle,
		Lower:  middle - b.stdDev*std,
	}
	return b.current, true
}

// Value returns the most recent bands.
func (b *BollingerBands) Value() Bands { return b.current }
func (b *BollingerBands) Ready() bool  { return b.sma.Ready() && b.win.full() }

// Reset resets the inner SMA and clears the window.
func (b *BollingerBands) Reset() {
	b.sma.Reset()
	b.win.reset()
	b.current = Bands{}
}

func (b *BollingerBands) observe(price float64) (float64, map[string]float64, bool) {
	bands, ok := b.Update(price)
	if !ok {
		return 0, nil, false
	}
	return bands.Middle, map[string]float64{
		"upper":  bands.Upper,
		"middle": bands.Middle,
		"lower":  bands.Lower,
	}, true
}

// Snapshot serializes the bands state, nesting the inner SMA.
func (b *BollingerBands) Snapshot() IndicatorSnapshot {
	cur := b.current
	return IndicatorSnapshot{
		Type:       TypeBB,
		Period:     b.period,
		StdDev:     b.stdDev,
		Window:     b.win.values(),
		Components: []IndicatorSnapshot{b.sma.Snapshot()},
		Bands:      &cur,
	}
}

// RestoreFromSnapshot restores bands state from a checkpoint.
func (b *BollingerBands) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeBB); err != nil {
		return err
	}
	if len(snap.Components) != 1 {
		return snapshotErrorf("BB expects 1 component, got %d", len(snap.Components))
	}
	sma := NewSMA(snap.Period)
	if err := sma.RestoreFromSnapshot(snap.Components[0]); err != nil {
		return err
	}
	b.sma = sma
	b.period = snap.Period
	b.stdDev = snap.StdDev
	b.win = newWindow(snap.Period)
	b.win.load(snap.Window)
	b.current = Bands{}
	if snap.Bands != nil {
		b.current = *snap.Bands
	}
	return nil
}
