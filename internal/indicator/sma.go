package indicator

import "market-data-processor/internal/model"

// SMA calculates the Simple Moving Average over the last period values.
// It is not ready until period values have been seen.
type SMA struct {
	period  int
	win     window
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		win:    newWindow(period),
	}
}

func (s *SMA) Name() string { return "SMA_" + model.Itoa(s.period) }

// Update pushes value into the window and returns the window mean once the
// window holds exactly period values.
func (s *SMA) Update(value float64) (float64, bool) {
	s.win.push(value)
	if !s.win.full() {
		return 0, false
	}
	s.current = s.win.mean()
	return s.current, true
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.win.full() }

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.win.reset()
	s.current = 0
}

func (s *SMA) observe(price float64) (float64, map[string]float64, bool) {
	v, ok := s.Update(price)
	return v, nil, ok
}

// Snapshot serializes the SMA state for checkpoint persistence.
func (s *SMA) Snapshot() IndicatorSnapshot {
	return IndicatorSnapshot{
		Type:    TypeSMA,
		Period:  s.period,
		Window:  s.win.values(),
		Current: s.current,
	}
}

// RestoreFromSnapshot restores SMA state from a checkpoint.
func (s *SMA) RestoreFromSnapshot(snap IndicatorSnapshot) error {
	if err := snap.expect(TypeSMA); err != nil {
		return err
	}
	s.period = snap.Period
	s.win = newWindow(snap.Period)
	s.win.load(snap.Window)
	s.current = snap.Current
	return nil
}
