// cmd/replay replays persisted ticks from SQLite through a cold indicator
// engine to check indicators without a live feed.
//
// Usage:
//
//	go run ./cmd/replay --db=data/ticks.db --symbols=BTCUSD --speed=100
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"market-data-processor/config"
	"market-data-processor/internal/indicator"
	"market-data-processor/internal/logger"
	"market-data-processor/internal/model"
	"market-data-processor/internal/replay"
	sqlitestore "market-data-processor/internal/store/sqlite"
)

func main() {
	speed := flag.Float64("speed", 0, "playback speed multiplier (0=max, 1=realtime, 100=100x)")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (default: every symbol in the database)")
	from := flag.String("from", "", "replay ticks after this RFC3339 time (default: all)")
	dbPath := flag.String("db", "data/ticks.db", "path to SQLite database")
	specs := flag.String("indicators", indicator.DefaultSpecs, "indicator specs: TYPE:ARGS,...")
	every := flag.Int("print-every", 100, "log every Nth ready result")
	flag.Parse()

	logger.Init("replay", logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	configs, err := indicator.ParseSpecs(*specs)
	if err != nil {
		fatal("invalid indicators", err)
	}

	var fromTS int64
	if *from != "" {
		t, err := time.Parse(time.RFC3339, *from)
		if err != nil {
			fatal("invalid --from", err)
		}
		fromTS = t.UnixNano()
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		fatal("sqlite open failed", err)
	}
	defer reader.Close()

	symbols := (&config.Config{Symbols: *symbolsFlag}).ParseSymbols()
	if len(symbols) == 0 {
		if symbols, err = reader.ReadSymbols(); err != nil {
			fatal("reading symbols failed", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := indicator.NewEngine(configs)
	tickCh := make(chan model.Tick, 10000)
	resultCh := make(chan model.IndicatorResult, 1024)
	replayed := make(chan int, 1)
	go func() {
		defer close(tickCh)
		n, err := replay.New(reader).Run(ctx, symbols, fromTS, *speed, tickCh)
		if err != nil && ctx.Err() == nil {
			slog.Error("replay failed", "error", err)
		}
		replayed <- n
	}()
	go func() {
		defer close(resultCh)
		engine.Run(ctx, tickCh, resultCh)
	}()

	ready := 0
	last := make(map[string]model.IndicatorResult)
	for r := range resultCh {
		if !r.Ready {
			continue
		}
		ready++
		last[r.Symbol+" "+r.Name] = r
		if *every > 0 && ready%*every == 0 {
			slog.Info("indicator", "symbol", r.Symbol, "name", r.Name, "value", r.Value, "ts", r.TS)
		}
	}
	processed := <-replayed

	keys := make([]string, 0, len(last))
	for k := range last {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r := last[k]
		slog.Info("final value", "symbol", r.Symbol, "name", r.Name, "value", r.Value, "fields", r.Fields)
	}
	slog.Info("replay complete", "ticks", processed, "ready_results", ready, "symbols", symbols)
}

func fatal(msg string, err error) {
	fmt.Fprintln(os.Stderr, msg+":", err)
	os.Exit(1)
}
