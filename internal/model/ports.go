package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the processor from concrete storage implementations
// (Redis, SQLite). Each implementation satisfies one or more of them.

// TickWriter persists trade ticks for later warm-up and replay.
type TickWriter interface {
	// Run reads ticks from tickCh and writes them in batches.
	// Blocks until ctx is cancelled or tickCh is closed.
	Run(ctx context.Context, tickCh <-chan Tick)

	// Close releases underlying resources.
	Close() error
}

// TickReader reads stored ticks in time order.
type TickReader interface {
	// ReadTicks returns up to limit most recent ticks for symbol with TS after afterTS
	// (unix nanoseconds), oldest first. limit <= 0 means no limit.
	ReadTicks(symbol string, afterTS int64, limit int) ([]Tick, error)

	// Close releases underlying resources.
	Close() error
}

// StatePublisher publishes derived state to downstream consumers.
type StatePublisher interface {
	// WriteIndicatorBatch writes multiple indicator results in a single batch.
	WriteIndicatorBatch(ctx context.Context, results []IndicatorResult)

	// PublishBookState publishes the latest book summary.
	PublishBookState(ctx context.Context, state *BookState)
}

// SnapshotStore reads and writes indicator engine snapshots as raw JSON.
// Using []byte avoids a model→indicator→model import cycle.
type SnapshotStore interface {
	// SaveSnapshotJSON persists a JSON-encoded engine snapshot.
	SaveSnapshotJSON(data []byte) error

	// ReadLatestSnapshotJSON loads the most recent snapshot as raw JSON.
	// Returns nil, nil if no snapshot exists.
	ReadLatestSnapshotJSON() ([]byte, error)
}
