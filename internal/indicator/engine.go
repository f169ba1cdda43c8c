package indicator

import (
	"context"
	"sort"

	"market-data-processor/internal/model"
)

// symbolIndicators holds live indicator instances for one symbol.
type symbolIndicators struct {
	indicators []observer
	configs    []IndicatorConfig
	lastTickTS int64
}

// Engine computes the configured indicators independently for every symbol
// it sees. Designed for single-goroutine usage; no locks needed.
type Engine struct {
	configs []IndicatorConfig

	// state[symbol] → *symbolIndicators
	state map[string]*symbolIndicators
}

// NewEngine creates an indicator engine with the given indicator configs.
func NewEngine(configs []IndicatorConfig) *Engine {
	return &Engine{
		configs: configs,
		state:   make(map[string]*symbolIndicators, 16),
	}
}

// Configs returns the active indicator configs.
func (e *Engine) Configs() []IndicatorConfig { return e.configs }

// Symbols returns the symbols with live state, sorted.
func (e *Engine) Symbols() []string {
	out := make([]string, 0, len(e.state))
	for s := range e.state {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// LastTickTS returns the unix-nano timestamp of the last tick processed for
// symbol, or 0 if none.
func (e *Engine) LastTickTS(symbol string) int64 {
	if si, ok := e.state[symbol]; ok {
		return si.lastTickTS
	}
	return 0
}

// Process feeds a trade price to every indicator of the tick's symbol.
// Returns one result per indicator; not-ready indicators have Ready=false.
func (e *Engine) Process(tick model.Tick) []model.IndicatorResult {
	si, exists := e.state[tick.Symbol]
	if !exists {
		// First tick for this symbol, create indicator instances
		si = e.newSymbolIndicators()
		e.state[tick.Symbol] = si
	}
	if !tick.TS.IsZero() {
		si.lastTickTS = tick.TS.UnixNano()
	}

	results := make([]model.IndicatorResult, 0, len(si.indicators))
	for _, ind := range si.indicators {
		value, fields, ok := ind.observe(tick.Price)
		results = append(results, model.IndicatorResult{
			Name:   ind.Name(),
			Symbol: tick.Symbol,
			Value:  value,
			Fields: fields,
			TS:     tick.TS,
			Ready:  ok,
		})
	}
	return results
}

// Reset returns every indicator of symbol to cold start.
func (e *Engine) Reset(symbol string) {
	if si, ok := e.state[symbol]; ok {
		for _, ind := range si.indicators {
			ind.Reset()
		}
		si.lastTickTS = 0
	}
}

// Run consumes ticks and emits every result on resultCh, blocking while
// resultCh is full. Returns when ctx is done or tickCh is closed; resultCh is
// left open.
func (e *Engine) Run(ctx context.Context, tickCh <-chan model.Tick, resultCh chan<- model.IndicatorResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-tickCh:
			if !ok {
				return
			}
			for _, r := range e.Process(tick) {
				select {
				case resultCh <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// newSymbolIndicators creates fresh indicator instances for the current configs.
func (e *Engine) newSymbolIndicators() *symbolIndicators {
	inds := make([]observer, len(e.configs))
	for i, ic := range e.configs {
		inds[i] = ic.build()
	}
	return &symbolIndicators{
		indicators: inds,
		configs:    e.configs,
	}
}
