package indicator

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseSpecs(t *testing.T) {
	got, err := ParseSpecs(" sma:10, EMA:21 ,RSI:14,BB:20:2.5,MACD:12:26:9,")
	if err != nil {
		t.Fatalf("ParseSpecs: %v", err)
	}
	want := []IndicatorConfig{
		{Type: TypeSMA, Period: 10},
		{Type: TypeEMA, Period: 21},
		{Type: TypeRSI, Period: 14},
		{Type: TypeBB, Period: 20, StdDev: 2.5},
		{Type: TypeMACD, Fast: 12, Slow: 26, Signal: 9},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseSpecs =\n%+v\nwant\n%+v", got, want)
	}
}

func TestParseSpecs_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"unknown type", "WMA:10"},
		{"missing period", "SMA"},
		{"bad integer", "SMA:ten"},
		{"zero period", "EMA:0"},
		{"negative std dev", "BB:20:-1"},
		{"bb missing std dev", "BB:20"},
		{"macd fast >= slow", "MACD:26:12:9"},
		{"macd arity", "MACD:12:26"},
		{"duplicate", "SMA:10,SMA:10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSpecs(tt.in); err == nil {
				t.Errorf("ParseSpecs(%q) succeeded, want error", tt.in)
			}
		})
	}
}

func TestParseSpecs_UnknownIsSentinel(t *testing.T) {
	_, err := ParseSpecs("VWAP:10")
	if !errors.Is(err, ErrUnknownIndicator) {
		t.Errorf("err = %v, want ErrUnknownIndicator", err)
	}
}

func TestConfigKeyRoundTrip(t *testing.T) {
	for _, spec := range []string{"SMA:10", "EMA:3", "RSI:14", "BB:20:2", "BB:20:2.5", "MACD:12:26:9"} {
		configs, err := ParseSpecs(spec)
		if err != nil {
			t.Fatalf("ParseSpecs(%q): %v", spec, err)
		}
		if got := configs[0].Key(); got != spec {
			t.Errorf("Key() = %q, want %q", got, spec)
		}
	}
}

func TestMaxWarmup(t *testing.T) {
	configs := []IndicatorConfig{
		{Type: TypeSMA, Period: 10},
		{Type: TypeRSI, Period: 14},
		{Type: TypeMACD, Fast: 12, Slow: 26, Signal: 9},
	}
	if got := MaxWarmup(configs); got != 35 {
		t.Errorf("MaxWarmup = %d, want 35", got)
	}
	if got := MaxWarmup(nil); got != 0 {
		t.Errorf("MaxWarmup(nil) = %d, want 0", got)
	}
}
