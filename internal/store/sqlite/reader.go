package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"market-data-processor/internal/model"
)

// Reader provides read-only access to stored ticks for backfill and replay.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	slog.Info("sqlite reader opened", "path", dbPath)
	return &Reader{db: db}, nil
}

// ReadTicks returns ticks for symbol with ts > afterTS (unix nanos), oldest
// first. With limit > 0 only the most recent limit ticks are returned.
func (r *Reader) ReadTicks(symbol string, afterTS int64, limit int) ([]model.Tick, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.Query(`
			SELECT symbol, ts, price, qty FROM (
				SELECT id, symbol, ts, price, qty
				FROM ticks
				WHERE symbol = ? AND ts > ?
				ORDER BY ts DESC, id DESC
				LIMIT ?
			) ORDER BY ts ASC, id ASC
		`, symbol, afterTS, limit)
	} else {
		rows, err = r.db.Query(`
			SELECT symbol, ts, price, qty
			FROM ticks
			WHERE symbol = ? AND ts > ?
			ORDER BY ts ASC, id ASC
		`, symbol, afterTS)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var t model.Tick
		var tsNano int64
		if err := rows.Scan(&t.Symbol, &tsNano, &t.Price, &t.Qty); err != nil {
			return nil, fmt.Errorf("sqlite scan ticks: %w", err)
		}
		t.TS = time.Unix(0, tsNano).UTC()
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// ReadSymbols returns every symbol that has stored ticks, sorted.
func (r *Reader) ReadSymbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM ticks ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbols: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}
