// Package processor runs the market data pipeline: feed events are drained
// from the ring by a single goroutine that owns every order book and the
// indicator engine, and derived state is published downstream.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"market-data-processor/internal/indicator"
	"market-data-processor/internal/logger"
	"market-data-processor/internal/metrics"
	"market-data-processor/internal/model"
	"market-data-processor/internal/orderbook"
	"market-data-processor/internal/ringbuf"
)

// drainBatch bounds how many events are handled between control checks.
const drainBatch = 256

// ErrNotRunning is returned by control calls when the loop has stopped.
var ErrNotRunning = errors.New("processor: loop not running")

type reloadRequest struct {
	configs []indicator.IndicatorConfig
	reply   chan reloadResult
}

type reloadResult struct {
	preserved, created int
}

// Processor owns the books and the engine. Only the Loop goroutine touches
// them; other goroutines go through Reload, Snapshot and LatestBook.
type Processor struct {
	depth   int
	symbols []string
	engine  *indicator.Engine
	books   map[string]*orderbook.OrderBook

	// latest published state per symbol, readable from any goroutine
	states map[string]*atomic.Pointer[model.BookState]

	publisher model.StatePublisher // may be nil
	tickCh    chan<- model.Tick    // may be nil
	prom      *metrics.Metrics
	health    *metrics.HealthStatus

	reloadCh   chan reloadRequest
	snapshotCh chan chan *indicator.EngineSnapshot
	done       chan struct{}
}

// Options carries the Processor's collaborators.
type Options struct {
	Symbols   []string
	BookDepth int
	Engine    *indicator.Engine
	Publisher model.StatePublisher
	TickCh    chan<- model.Tick
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
}

// NewProcessor creates a Processor with an empty book per symbol.
func NewProcessor(opts Options) *Processor {
	p := &Processor{
		depth:      opts.BookDepth,
		symbols:    opts.Symbols,
		engine:     opts.Engine,
		books:      make(map[string]*orderbook.OrderBook, len(opts.Symbols)),
		states:     make(map[string]*atomic.Pointer[model.BookState], len(opts.Symbols)),
		publisher:  opts.Publisher,
		tickCh:     opts.TickCh,
		prom:       opts.Metrics,
		health:     opts.Health,
		reloadCh:   make(chan reloadRequest),
		snapshotCh: make(chan chan *indicator.EngineSnapshot),
		done:       make(chan struct{}),
	}
	for _, s := range opts.Symbols {
		p.books[s] = orderbook.New(s)
		p.states[s] = new(atomic.Pointer[model.BookState])
	}
	return p
}

// Loop drains ring until ctx is done, then handles what is left in the ring
// and returns. It must run on exactly one goroutine.
func (p *Processor) Loop(ctx context.Context, ring *ringbuf.Ring) {
	defer close(p.done)
	var lastOverflow uint64

	for {
		n := ring.Drain(drainBatch, p.handle)

		if of := ring.Overflow(); of != lastOverflow {
			p.prom.RingBufOverflow.Add(float64(of - lastOverflow))
			lastOverflow = of
		}

		if n == drainBatch {
			// still busy: service control requests without parking
			select {
			case <-ctx.Done():
				ring.Drain(ring.Cap(), p.handle)
				return
			case req := <-p.reloadCh:
				p.reload(req)
			case reply := <-p.snapshotCh:
				p.snapshot(reply)
			default:
			}
			continue
		}

		select {
		case <-ctx.Done():
			ring.Drain(ring.Cap(), p.handle)
			return
		case <-ring.Ready():
		case req := <-p.reloadCh:
			p.reload(req)
		case reply := <-p.snapshotCh:
			p.snapshot(reply)
		}
	}
}

// handle applies one event.
func (p *Processor) handle(ev model.Event) {
	switch ev.Type {
	case model.EventBook:
		p.handleBook(ev.BookUpdate())
	case model.EventTrade:
		p.handleTrade(ev.Tick())
	default:
		p.prom.InvalidEvents.Inc()
		return
	}
	if p.health != nil {
		p.health.SetLastEventTime(time.Now())
	}
}

func (p *Processor) handleBook(u model.BookUpdate) {
	book, ok := p.books[u.Symbol]
	if !ok {
		p.prom.InvalidEvents.Inc()
		return
	}
	p.prom.EventsTotal.WithLabelValues(string(model.EventBook)).Inc()

	start := time.Now()
	book.Apply(u)
	p.prom.BookUpdateDur.Observe(time.Since(start).Seconds())

	state := book.State(p.depth)
	p.states[u.Symbol].Store(state)

	bids, asks := book.Depth()
	p.prom.BookDepth.WithLabelValues(u.Symbol, string(model.SideBid)).Set(float64(bids))
	p.prom.BookDepth.WithLabelValues(u.Symbol, string(model.SideAsk)).Set(float64(asks))
	if state.Spread != nil {
		p.prom.BookSpread.WithLabelValues(u.Symbol).Set(*state.Spread)
	}

	if p.publisher != nil {
		p.publisher.PublishBookState(context.Background(), state)
	}
}

func (p *Processor) handleTrade(tick model.Tick) {
	if _, ok := p.books[tick.Symbol]; !ok {
		p.prom.InvalidEvents.Inc()
		return
	}
	p.prom.EventsTotal.WithLabelValues(string(model.EventTrade)).Inc()

	if p.tickCh != nil {
		select {
		case p.tickCh <- tick:
		default:
			p.prom.DroppedTicks.Inc()
		}
	}

	start := time.Now()
	results := p.engine.Process(tick)
	p.prom.IndicatorComputeDur.Observe(time.Since(start).Seconds())

	ready := 0
	for i := range results {
		if results[i].Ready {
			ready++
		}
	}
	p.prom.IndicatorsTotal.Add(float64(ready))

	if ready > 0 && p.publisher != nil {
		p.publisher.WriteIndicatorBatch(context.Background(), results)
	}
}

func (p *Processor) reload(req reloadRequest) {
	preserved, created := p.engine.ReloadConfigs(req.configs)
	p.prom.IndicatorReloads.Inc()
	req.reply <- reloadResult{preserved: preserved, created: created}
}

func (p *Processor) snapshot(reply chan *indicator.EngineSnapshot) {
	snap, err := indicator.SnapshotEngine(p.engine)
	if err != nil {
		slog.Error("engine snapshot failed", "error", err)
		snap = nil
	}
	reply <- snap
}

// Reload validates configs and swaps them into the engine on the loop
// goroutine, preserving state of unchanged indicators.
func (p *Processor) Reload(ctx context.Context, configs []indicator.IndicatorConfig) (preserved, created int, err error) {
	if err := indicator.ValidateConfigs(configs); err != nil {
		return 0, 0, err
	}
	req := reloadRequest{configs: configs, reply: make(chan reloadResult, 1)}
	select {
	case p.reloadCh <- req:
	case <-p.done:
		return 0, 0, ErrNotRunning
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
	res := <-req.reply
	slog.Info("indicator reload applied", append(logger.LogWithTrace(ctx),
		"indicators", len(configs), "preserved", res.preserved, "created", res.created)...)
	return res.preserved, res.created, nil
}

// Snapshot captures the engine state on the loop goroutine.
func (p *Processor) Snapshot(ctx context.Context) (*indicator.EngineSnapshot, error) {
	reply := make(chan *indicator.EngineSnapshot, 1)
	select {
	case p.snapshotCh <- reply:
	case <-p.done:
		return nil, ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	snap := <-reply
	if snap == nil {
		return nil, errors.New("processor: snapshot failed")
	}
	return snap, nil
}

// FinalSnapshot captures the engine state after Loop has returned.
func (p *Processor) FinalSnapshot() (*indicator.EngineSnapshot, error) {
	select {
	case <-p.done:
	default:
		return nil, errors.New("processor: loop still running")
	}
	return indicator.SnapshotEngine(p.engine)
}

// Done is closed when Loop returns.
func (p *Processor) Done() <-chan struct{} { return p.done }

// LatestBook returns the last state built for symbol, or nil.
func (p *Processor) LatestBook(symbol string) *model.BookState {
	ptr, ok := p.states[symbol]
	if !ok {
		return nil
	}
	return ptr.Load()
}

// Symbols returns the configured symbols in configuration order.
func (p *Processor) Symbols() []string { return p.symbols }
