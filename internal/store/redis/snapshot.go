package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// SnapshotKey holds the latest JSON-encoded indicator engine snapshot.
	SnapshotKey = "snapshot:indicators"

	// snapshots are also kept in SQLite for durability
	snapshotTTL     = 24 * time.Hour
	snapshotTimeout = 5 * time.Second
)

// SaveSnapshotJSON stores an engine snapshot under SnapshotKey.
func (w *Writer) SaveSnapshotJSON(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := w.client.Set(ctx, SnapshotKey, data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", SnapshotKey, err)
	}
	return nil
}

// ReadLatestSnapshotJSON loads the snapshot stored under SnapshotKey.
// Returns nil, nil if none exists.
func (w *Writer) ReadLatestSnapshotJSON() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	data, err := w.client.Get(ctx, SnapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", SnapshotKey, err)
	}
	return data, nil
}
