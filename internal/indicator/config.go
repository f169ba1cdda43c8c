package indicator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"market-data-processor/internal/model"
)

// Indicator type identifiers used in configs and snapshots.
const (
	TypeSMA  = "SMA"
	TypeEMA  = "EMA"
	TypeRSI  = "RSI"
	TypeBB   = "BB"
	TypeMACD = "MACD"
)

// ErrUnknownIndicator is returned for an unrecognised indicator type.
var ErrUnknownIndicator = errors.New("indicator: unknown type")

// IndicatorConfig specifies a single indicator to compute.
// Period applies to SMA, EMA, RSI and BB; StdDev to BB; Fast/Slow/Signal to MACD.
type IndicatorConfig struct {
	Type   string  `json:"type"`
	Period int     `json:"period,omitempty"`
	StdDev float64 `json:"std_dev,omitempty"`
	Fast   int     `json:"fast,omitempty"`
	Slow   int     `json:"slow,omitempty"`
	Signal int     `json:"signal,omitempty"`
}

// Key identifies a config by type and parameters, e.g. "SMA:20", "BB:20:2",
// "MACD:12:26:9". It is the format ParseSpecs accepts.
func (c IndicatorConfig) Key() string {
	switch c.Type {
	case TypeBB:
		return c.Type + ":" + model.Itoa(c.Period) + ":" + strconv.FormatFloat(c.StdDev, 'f', -1, 64)
	case TypeMACD:
		return c.Type + ":" + model.Itoa(c.Fast) + ":" + model.Itoa(c.Slow) + ":" + model.Itoa(c.Signal)
	default:
		return c.Type + ":" + model.Itoa(c.Period)
	}
}

// Warmup returns how many ticks the indicator needs before its first value is
// meaningful. EMA-based indicators emit earlier but settle over this horizon.
func (c IndicatorConfig) Warmup() int {
	switch c.Type {
	case TypeRSI:
		return c.Period + 1
	case TypeMACD:
		return c.Slow + c.Signal
	default:
		return c.Period
	}
}

// build creates a fresh calculator for c. Callers validate first.
func (c IndicatorConfig) build() observer {
	switch c.Type {
	case TypeSMA:
		return NewSMA(c.Period)
	case TypeEMA:
		return NewEMA(c.Period)
	case TypeRSI:
		return NewRSI(c.Period)
	case TypeBB:
		return NewBollingerBands(c.Period, c.StdDev)
	case TypeMACD:
		return NewMACD(c.Fast, c.Slow, c.Signal)
	default:
		return NewSMA(c.Period) // fallback
	}
}

// Validate checks c's parameters.
func (c IndicatorConfig) Validate() error {
	switch c.Type {
	case TypeSMA, TypeEMA, TypeRSI:
		if c.Period <= 0 {
			return fmt.Errorf("invalid period=%d for %s", c.Period, c.Type)
		}
	case TypeBB:
		if c.Period <= 0 {
			return fmt.Errorf("invalid period=%d for %s", c.Period, c.Type)
		}
		if c.StdDev < 0 {
			return fmt.Errorf("invalid std_dev=%v for %s", c.StdDev, c.Type)
		}
	case TypeMACD:
		if c.Fast <= 0 || c.Slow <= 0 || c.Signal <= 0 {
			return fmt.Errorf("invalid periods %d/%d/%d for %s", c.Fast, c.Slow, c.Signal, c.Type)
		}
		if c.Fast >= c.Slow {
			return fmt.Errorf("MACD fast period %d must be below slow period %d", c.Fast, c.Slow)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownIndicator, c.Type)
	}
	return nil
}

// ValidateConfigs checks a set of IndicatorConfigs for errors and duplicates.
func ValidateConfigs(configs []IndicatorConfig) error {
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return err
		}
		key := cfg.Key()
		if seen[key] {
			return fmt.Errorf("duplicate indicator %s", key)
		}
		seen[key] = true
	}
	return nil
}

// DefaultSpecs is used when no indicator configuration is supplied.
const DefaultSpecs = "SMA:10,EMA:10,RSI:14,BB:20:2,MACD:12:26:9"

// ParseSpecs parses "TYPE:ARGS,..." into validated IndicatorConfigs.
// Example: "SMA:9,EMA:21,RSI:14,BB:20:2,MACD:12:26:9".
func ParseSpecs(s string) ([]IndicatorConfig, error) {
	var configs []IndicatorConfig
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cfg, err := parseSpec(part)
		if err != nil {
			return nil, fmt.Errorf("indicator spec %q: %w", part, err)
		}
		configs = append(configs, cfg)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("no indicator specs in %q", s)
	}
	if err := ValidateConfigs(configs); err != nil {
		return nil, err
	}
	return configs, nil
}

func parseSpec(spec string) (IndicatorConfig, error) {
	fields := strings.Split(spec, ":")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	typ := strings.ToUpper(fields[0])
	args := fields[1:]

	ints := func(want int) ([]int, error) {
		if len(args) != want {
			return nil, fmt.Errorf("%s takes %d argument(s), got %d", typ, want, len(args))
		}
		out := make([]int, want)
		for i, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil {
				return nil, fmt.Errorf("bad integer %q: %w", a, err)
			}
			out[i] = n
		}
		return out, nil
	}

	switch typ {
	case TypeSMA, TypeEMA, TypeRSI:
		n, err := ints(1)
		if err != nil {
			return IndicatorConfig{}, err
		}
		return IndicatorConfig{Type: typ, Period: n[0]}, nil
	case TypeBB:
		if len(args) != 2 {
			return IndicatorConfig{}, fmt.Errorf("BB takes 2 arguments, got %d", len(args))
		}
		period, err := strconv.Atoi(args[0])
		if err != nil {
			return IndicatorConfig{}, fmt.Errorf("bad integer %q: %w", args[0], err)
		}
		stdDev, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return IndicatorConfig{}, fmt.Errorf("bad std dev %q: %w", args[1], err)
		}
		return IndicatorConfig{Type: typ, Period: period, StdDev: stdDev}, nil
	case TypeMACD:
		n, err := ints(3)
		if err != nil {
			return IndicatorConfig{}, err
		}
		return IndicatorConfig{Type: typ, Fast: n[0], Slow: n[1], Signal: n[2]}, nil
	default:
		return IndicatorConfig{}, fmt.Errorf("%w %q", ErrUnknownIndicator, typ)
	}
}

// MaxWarmup returns the largest Warmup across configs.
func MaxWarmup(configs []IndicatorConfig) int {
	max := 0
	for _, c := range configs {
		if w := c.Warmup(); w > max {
			max = w
		}
	}
	return max
}
