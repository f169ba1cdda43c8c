package indicator

import (
	"log/slog"

	"market-data-processor/internal/model"
)

// Restorer orchestrates indicator engine state restoration on startup.
// It follows a priority chain: Redis snapshot, then SQLite snapshot, then cold start.
type Restorer struct {
	configs []IndicatorConfig
}

// NewRestorer creates a new Restorer for the given indicator configs.
func NewRestorer(configs []IndicatorConfig) *Restorer {
	return &Restorer{configs: configs}
}

// RestoreFromSnap attempts to restore an engine from a snapshot.
// If snap is nil or unusable, returns a fresh engine (cold start) and
// restored == false.
func (r *Restorer) RestoreFromSnap(snap *EngineSnapshot) (engine *Engine, restored bool) {
	if snap == nil {
		slog.Info("no snapshot found, cold starting indicator engine")
		return NewEngine(r.configs), false
	}

	slog.Info("restoring indicator engine from snapshot",
		"version", snap.Version, "taken_at", snap.TakenAt, "symbols", len(snap.Symbols))

	engine, err := RestoreEngine(r.configs, snap)
	if err != nil {
		slog.Warn("snapshot restore failed, falling back to cold start", "error", err)
		return NewEngine(r.configs), false
	}

	slog.Info("restored indicator engine from snapshot")
	return engine, true
}

// BackfillTicks replays persisted ticks into the engine so indicators catch up
// to the present. For each symbol it reads the ticks after the engine's last
// processed timestamp; for a symbol with no state it reads the most recent
// warm-up window instead. If onResults is non-nil it receives the results of
// every replayed tick. Returns the number of ticks replayed.
func (r *Restorer) BackfillTicks(engine *Engine, reader model.TickReader, symbols []string, onResults func([]model.IndicatorResult)) int {
	if reader == nil {
		return 0
	}
	warmup := MaxWarmup(r.configs)
	if warmup == 0 {
		return 0
	}

	total := 0
	for _, symbol := range symbols {
		after := engine.LastTickTS(symbol)
		limit := 0
		if after == 0 {
			limit = warmup
		}
		ticks, err := reader.ReadTicks(symbol, after, limit)
		if err != nil {
			slog.Warn("failed to read ticks for backfill", "symbol", symbol, "error", err)
			continue
		}

		for _, tick := range ticks {
			results := engine.Process(tick)
			if onResults != nil && len(results) > 0 {
				onResults(results)
			}
		}
		total += len(ticks)
		if len(ticks) > 0 {
			slog.Info("backfilled ticks", "symbol", symbol, "ticks", len(ticks), "from_snapshot", after != 0)
		}
	}

	if total > 0 {
		slog.Info("backfill complete", "ticks", total)
	}
	return total
}
