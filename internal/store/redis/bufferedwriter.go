package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"market-data-processor/internal/model"
)

// sink is the write surface BufferedWriter protects; *Writer implements it.
type sink interface {
	writeIndicators(ctx context.Context, results []model.IndicatorResult) error
	writeBookState(ctx context.Context, state *model.BookState) error
}

// BufferedWriter wraps a Writer with a circuit breaker. While the circuit is
// open, indicator results are buffered locally (oldest dropped past maxBuf)
// and book states are coalesced to the latest per symbol. Once writes succeed
// again the buffer is flushed ahead of the next payload, so buffered values
// never land after a newer one for the same key.
type BufferedWriter struct {
	sink sink
	cb   *CircuitBreaker
	ctx  context.Context

	// wmu serializes sink writes so a flush and a live write never interleave.
	wmu sync.Mutex

	mu      sync.Mutex
	results []model.IndicatorResult
	books   map[string]*model.BookState
	maxBuf  int

	// Callbacks
	OnBuffer func()          // called when a write is buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered writes
}

// NewBufferedWriter creates a BufferedWriter wrapping w. ctx bounds the
// writes replayed from the buffer.
func NewBufferedWriter(ctx context.Context, w *Writer, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	return newBufferedWriter(ctx, w, cb, maxBufferSize)
}

func newBufferedWriter(ctx context.Context, s sink, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	return &BufferedWriter{
		sink:    s,
		cb:      cb,
		ctx:     ctx,
		results: make([]model.IndicatorResult, 0, 256),
		books:   make(map[string]*model.BookState),
		maxBuf:  maxBufferSize,
	}
}

// WriteIndicatorBatch writes ready results through the circuit breaker,
// buffering them while the circuit is open.
func (bw *BufferedWriter) WriteIndicatorBatch(ctx context.Context, results []model.IndicatorResult) {
	err := bw.cb.Execute(func() error {
		bw.wmu.Lock()
		defer bw.wmu.Unlock()
		if err := bw.flushLocked(); err != nil {
			return err
		}
		return bw.sink.writeIndicators(ctx, results)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrCircuitOpen):
		bw.bufferResults(results)
	default:
		slog.Warn("redis indicator batch failed", "results", len(results), "error", err)
	}
}

// PublishBookState publishes state through the circuit breaker, keeping the
// newest state per symbol while the circuit is open.
func (bw *BufferedWriter) PublishBookState(ctx context.Context, state *model.BookState) {
	err := bw.cb.Execute(func() error {
		bw.wmu.Lock()
		defer bw.wmu.Unlock()
		if err := bw.flushLocked(); err != nil {
			return err
		}
		return bw.sink.writeBookState(ctx, state)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrCircuitOpen):
		bw.mu.Lock()
		bw.books[state.Symbol] = state
		bw.mu.Unlock()
		if bw.OnBuffer != nil {
			bw.OnBuffer()
		}
	default:
		slog.Warn("redis book publish failed", "symbol", state.Symbol, "error", err)
	}
}

func (bw *BufferedWriter) bufferResults(results []model.IndicatorResult) {
	bw.mu.Lock()
	buffered := 0
	for _, r := range results {
		if !r.Ready {
			continue
		}
		if len(bw.results) >= bw.maxBuf {
			// Buffer full, drop oldest
			bw.results = bw.results[1:]
		}
		bw.results = append(bw.results, r)
		buffered++
	}
	bw.mu.Unlock()

	if buffered > 0 && bw.OnBuffer != nil {
		bw.OnBuffer()
	}
}

// flushLocked replays buffered writes to the sink. The caller holds wmu.
// Entries that fail to write are requeued.
func (bw *BufferedWriter) flushLocked() error {
	bw.mu.Lock()
	results := bw.results
	books := bw.books
	if len(results) == 0 && len(books) == 0 {
		bw.mu.Unlock()
		return nil
	}
	bw.results = make([]model.IndicatorResult, 0, 256)
	bw.books = make(map[string]*model.BookState)
	bw.mu.Unlock()

	if err := bw.sink.writeIndicators(bw.ctx, results); err != nil {
		bw.requeue(results, books)
		slog.Warn("buffered indicator flush failed", "results", len(results), "error", err)
		return err
	}
	flushed := len(results)
	for sym, state := range books {
		if err := bw.sink.writeBookState(bw.ctx, state); err != nil {
			bw.requeue(nil, books)
			slog.Warn("buffered book flush failed", "symbol", state.Symbol, "error", err)
			return err
		}
		delete(books, sym)
		flushed++
	}

	slog.Info("flushed buffered redis writes", "count", flushed)
	if bw.OnFlush != nil {
		bw.OnFlush(flushed)
	}
	return nil
}

// requeue puts unwritten entries back ahead of anything buffered since.
func (bw *BufferedWriter) requeue(results []model.IndicatorResult, books map[string]*model.BookState) {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if len(results) > 0 {
		merged := append(results, bw.results...)
		if len(merged) > bw.maxBuf {
			merged = merged[len(merged)-bw.maxBuf:]
		}
		bw.results = merged
	}
	for sym, state := range books {
		if _, newer := bw.books[sym]; !newer {
			bw.books[sym] = state
		}
	}
}

// PendingCount returns the number of buffered writes waiting to be flushed.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.results) + len(bw.books)
}
