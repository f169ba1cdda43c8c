// Package indicator provides streaming technical indicators over trade prices.
//
// Every calculator consumes one float64 per Update call and reports either a
// value or "not ready" (ok == false) while it is still warming up. State is
// updated incrementally; nothing is recomputed over the full price history.
// Composite indicators (Bollinger Bands, MACD) own their inner calculators.
//
// Calculators are not safe for concurrent use. Each instance is owned by one
// goroutine; the Engine is designed for single-goroutine usage as well.
//
// All period arguments must be >= 1. Smaller periods are accepted but the
// resulting behaviour is unspecified.
package indicator

// Calculator is the capability shared by every indicator.
type Calculator interface {
	// Name returns the indicator name including its parameters (e.g. "SMA_20").
	Name() string

	// Ready returns true once the calculator has produced a value.
	Ready() bool

	// Reset returns the calculator to its cold-start state.
	Reset()
}

// Indicator is a Calculator that produces one scalar per update.
type Indicator interface {
	Calculator

	// Update feeds the next price. ok is false while warming up.
	Update(value float64) (result float64, ok bool)

	// Value returns the most recent result, or 0 if none has been produced.
	Value() float64
}

// observer adapts every calculator to the Engine's uniform result shape:
// the primary value plus named components for composite indicators.
type observer interface {
	Calculator
	observe(price float64) (value float64, fields map[string]float64, ok bool)
}
