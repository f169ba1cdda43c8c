// Package replay reads persisted ticks and emits them in time order at a
// configurable speed, for backtesting indicators without a live feed.
package replay

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"market-data-processor/internal/model"
)

// maxGap caps the simulated wait between two ticks.
const maxGap = 5 * time.Second

// Replayer replays stored ticks from a TickReader.
type Replayer struct {
	reader model.TickReader

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Replayer backed by reader.
func New(reader model.TickReader) *Replayer {
	return &Replayer{reader: reader, sleep: sleepCtx}
}

// Run replays every tick for symbols with TS after fromTS (unix nanoseconds,
// 0 = all), merged across symbols in time order, into outCh. speed scales the
// gaps between ticks: 1 = real time, 10 = 10x, 0 = as fast as possible.
// Returns the number of ticks emitted. outCh is not closed.
func (r *Replayer) Run(ctx context.Context, symbols []string, fromTS int64, speed float64, outCh chan<- model.Tick) (int, error) {
	var all []model.Tick
	for _, symbol := range symbols {
		ticks, err := r.reader.ReadTicks(symbol, fromTS, 0)
		if err != nil {
			return 0, err
		}
		all = append(all, ticks...)
	}

	if len(all) == 0 {
		slog.Info("no ticks to replay", "symbols", symbols)
		return 0, nil
	}

	// per-symbol slices are already ordered; stable keeps ties in symbol order
	sort.SliceStable(all, func(i, j int) bool { return all[i].TS.Before(all[j].TS) })

	slog.Info("replay loaded", "ticks", len(all), "symbols", len(symbols), "speed", speed)

	var prevTS time.Time
	emitted := 0
	for _, t := range all {
		if speed > 0 && !prevTS.IsZero() {
			if gap := t.TS.Sub(prevTS); gap > 0 {
				scaled := time.Duration(float64(gap) / speed)
				if scaled > maxGap {
					scaled = maxGap
				}
				if err := r.sleep(ctx, scaled); err != nil {
					return emitted, err
				}
			}
		}
		prevTS = t.TS

		select {
		case <-ctx.Done():
			slog.Info("replay cancelled", "emitted", emitted)
			return emitted, ctx.Err()
		case outCh <- t:
			emitted++
		}
	}

	slog.Info("replay completed", "emitted", emitted)
	return emitted, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
