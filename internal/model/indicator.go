package model

import (
	"encoding/json"
	"time"
)

// IndicatorResult holds one computed indicator output for a symbol.
// Value carries the primary series (SMA/EMA/RSI value, Bollinger middle band,
// MACD line); composite indicators add their components in Fields.
type IndicatorResult struct {
	Name   string             `json:"name"` // e.g. "SMA_20", "BB_20_2", "MACD_12_26_9"
	Symbol string             `json:"symbol"`
	Value  float64            `json:"value"`
	Fields map[string]float64 `json:"fields,omitempty"`
	TS     time.Time          `json:"ts"`    // tick timestamp that produced this value
	Ready  bool               `json:"ready"` // false while warming up
}

// StreamKey returns the Redis stream key: "ind:{name}:{symbol}".
func (r *IndicatorResult) StreamKey() string {
	return "ind:" + r.Name + ":" + r.Symbol
}

// LatestKey returns the Redis key for the latest value: "ind:{name}:latest:{symbol}".
func (r *IndicatorResult) LatestKey() string {
	return "ind:" + r.Name + ":latest:" + r.Symbol
}

// PubSubChannel returns the Redis PubSub channel: "pub:ind:{name}:{symbol}".
func (r *IndicatorResult) PubSubChannel() string {
	return "pub:ind:" + r.Name + ":" + r.Symbol
}

// JSON returns the JSON-encoded indicator result.
func (r *IndicatorResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}
