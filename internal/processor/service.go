package processor

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"market-data-processor/internal/feed"
	"market-data-processor/internal/indicator"
	"market-data-processor/internal/logger"
	"market-data-processor/internal/metrics"
	"market-data-processor/internal/model"
	"market-data-processor/internal/notification"
	"market-data-processor/internal/ringbuf"
	redisstore "market-data-processor/internal/store/redis"
	sqlitestore "market-data-processor/internal/store/sqlite"
)

const (
	tickChanSize     = 10000
	redisBufferSize  = 10000
	livenessInterval = 10 * time.Second
	retentionEvery   = 10 * time.Minute
)

// Service wires the feed, the processing loop, storage and the HTTP surface,
// and manages their lifecycle.
type Service struct {
	cfg Config

	prom   *metrics.Metrics
	health *metrics.HealthStatus
	ring   *ringbuf.Ring
	tickCh chan model.Tick

	redisWriter *redisstore.Writer
	redisReader *redisstore.Reader
	breaker     *redisstore.CircuitBreaker
	sqlWriter   *sqlitestore.Writer // nil when SQLite is unavailable
	sqlReader   *sqlitestore.Reader // nil when SQLite is unavailable
	feed        *feed.Client
	alerts      *notification.Dispatcher
	runCtx      context.Context // set by Run before the feed starts

	proc *Processor
}

// New connects to Redis and SQLite. Redis is required; SQLite failures only
// disable tick persistence and warm-up.
func New(cfg Config) (*Service, error) {
	fc, err := feed.New(feed.Config{URL: cfg.FeedURL})
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:    cfg,
		prom:   metrics.NewMetrics(),
		health: metrics.NewHealthStatus(),
		ring:   ringbuf.New(cfg.RingSize),
		tickCh: make(chan model.Tick, tickChanSize),
		feed:   fc,
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notification.LogNotifier{}
	}
	svc.alerts = notification.NewDispatcher(notifier, cfg.AlertCooldown)
	svc.health.SetSymbols(cfg.Symbols)

	// ---- Connect to Redis ----
	svc.redisWriter, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return nil, err
	}
	svc.redisReader = redisstore.NewReader(svc.redisWriter.Client())
	svc.health.SetRedisConnected(true)

	// ---- Open SQLite ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
		os.MkdirAll(dir, 0o755)
	}
	svc.sqlWriter, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		slog.Warn("sqlite writer init failed, continuing without tick persistence", "error", err)
		svc.sqlWriter = nil
	} else {
		svc.sqlReader, err = sqlitestore.NewReader(cfg.SQLitePath)
		if err != nil {
			slog.Warn("sqlite reader init failed, continuing without warm-up", "error", err)
			svc.sqlReader = nil
		}
	}
	svc.health.SetSQLiteOK(svc.sqlWriter != nil)

	svc.wireMetrics()
	return svc, nil
}

// wireMetrics connects component hooks to Prometheus and alerting.
func (svc *Service) wireMetrics() {
	svc.redisWriter.OnWrite = func(d time.Duration) { svc.prom.RedisWriteDur.Observe(d.Seconds()) }
	if svc.sqlWriter != nil {
		svc.sqlWriter.OnCommit = func(d time.Duration) { svc.prom.SQLiteCommitDur.Observe(d.Seconds()) }
	}

	svc.feed.OnConnect = func(connected bool) {
		svc.health.SetFeedConnected(connected)
		if !connected && svc.runCtx.Err() == nil {
			svc.alerts.Notify(notification.Alert{
				Level:   notification.AlertWarning,
				Title:   "feed disconnected",
				Message: "lost connection to " + svc.cfg.FeedURL + ", reconnecting",
			})
		}
	}
	svc.feed.OnReconnect = svc.prom.FeedReconnects.Inc
	svc.feed.OnInvalid = svc.prom.InvalidEvents.Inc

	svc.breaker = redisstore.NewCircuitBreaker(5, 10*time.Second)
	svc.breaker.OnStateChange = func(from, to redisstore.State) {
		svc.prom.RedisCircuitBreakerState.Set(float64(to))
		switch to {
		case redisstore.StateOpen:
			svc.prom.RedisCircuitBreakerTrips.Inc()
			svc.alerts.Notify(notification.Alert{
				Level:   notification.AlertCritical,
				Title:   "redis circuit open",
				Message: "publishing to " + svc.cfg.RedisAddr + " suspended after repeated failures",
			})
		case redisstore.StateClosed:
			svc.alerts.Notify(notification.Alert{
				Level:   notification.AlertInfo,
				Title:   "redis circuit closed",
				Message: "publishing to " + svc.cfg.RedisAddr + " resumed",
			})
		}
		svc.health.SetRedisConnected(to == redisstore.StateClosed)
		slog.Warn("redis circuit breaker state change", "from", from.String(), "to", to.String())
	}
}

// Run restores state, starts every subsystem and blocks until ctx is
// cancelled, then shuts down gracefully.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	svc.runCtx = ctx
	slog.Info("starting market data processor",
		"symbols", cfg.Symbols, "indicators", len(cfg.Indicators), "feed", cfg.FeedURL)

	publisher := redisstore.NewBufferedWriter(ctx, svc.redisWriter, svc.breaker, redisBufferSize)
	publisher.OnBuffer = svc.prom.RedisBufferedWrites.Inc
	publisher.OnFlush = func(n int) { svc.prom.RedisFlushedWrites.Add(float64(n)) }

	// ---- Restore engine and warm up ----
	engine := svc.restoreEngine(ctx, publisher)

	var tickCh chan<- model.Tick
	if svc.sqlWriter != nil {
		tickCh = svc.tickCh
	}
	svc.proc = NewProcessor(Options{
		Symbols:   cfg.Symbols,
		BookDepth: cfg.BookDepth,
		Engine:    engine,
		Publisher: publisher,
		TickCh:    tickCh,
		Metrics:   svc.prom,
		Health:    svc.health,
	})

	// ---- Start subsystems ----
	var writeTicks func(<-chan model.Tick)
	if svc.sqlWriter != nil {
		writeTicks = func(ch <-chan model.Tick) { svc.sqlWriter.Run(context.Background(), ch) }
		if cfg.TickRetention > 0 {
			go svc.retentionLoop(ctx)
		}
	}
	stopPipeline := runPipeline(func(loopCtx context.Context) {
		svc.proc.Loop(loopCtx, svc.ring)
	}, writeTicks, svc.tickCh)
	defer stopPipeline()

	go func() {
		if err := svc.feed.Start(ctx, svc.ring); err != nil {
			slog.Error("feed client stopped", "error", err)
		}
	}()

	if cfg.SnapshotInterval > 0 {
		go svc.snapshotLoop(ctx)
	}
	go svc.watchConfig(ctx)

	svc.health.StartLivenessChecker(ctx, svc.redisWriter.Client(), svc.sqlDB(), livenessInterval)

	httpSrv := metrics.NewServer(cfg.HTTPAddr, svc.health)
	NewAPI(svc.proc).Mount(httpSrv)
	httpSrv.Start()

	slog.Info("market data processor running",
		"http", cfg.HTTPAddr, "snapshot_interval", cfg.SnapshotInterval.String())

	<-ctx.Done()

	// ---- Graceful shutdown ----
	slog.Info("shutdown signal received")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Stop(shutCtx)

	// the loop drains what the feed already delivered, then the writer
	// persists every tick the loop queued
	stopPipeline()

	svc.shutdown()
	return nil
}

// runPipeline starts the processing loop and, when writeTicks is non-nil, the
// tick writer. The returned stop cancels the loop, waits for it to drain,
// closes tickCh and waits for the writer to persist what was queued. stop is
// idempotent.
func runPipeline(loop func(ctx context.Context), writeTicks func(<-chan model.Tick), tickCh chan model.Tick) (stop func()) {
	loopCtx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop(loopCtx)
	}()

	writerDone := make(chan struct{})
	if writeTicks != nil {
		go func() {
			defer close(writerDone)
			writeTicks(tickCh)
		}()
	} else {
		close(writerDone)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-loopDone
			close(tickCh)
			<-writerDone
		})
	}
}

func (svc *Service) sqlDB() *sql.DB {
	if svc.sqlWriter == nil {
		return nil
	}
	return svc.sqlWriter.DB()
}

// restoreEngine follows the chain Redis snapshot, SQLite snapshot, cold
// start, then replays persisted ticks so indicators catch up.
func (svc *Service) restoreEngine(ctx context.Context, publisher model.StatePublisher) *indicator.Engine {
	restorer := indicator.NewRestorer(svc.cfg.Indicators)

	source := "cold"
	snap := svc.loadSnapshot("redis", svc.redisWriter)
	if snap != nil {
		source = "redis"
	} else if svc.sqlWriter != nil {
		if snap = svc.loadSnapshot("sqlite", svc.sqlWriter); snap != nil {
			source = "sqlite"
		}
	}

	engine, restored := restorer.RestoreFromSnap(snap)
	if !restored {
		source = "cold"
	}
	svc.health.SetRestored(source)

	if svc.sqlReader != nil {
		n := restorer.BackfillTicks(engine, svc.sqlReader, svc.cfg.Symbols, func(results []model.IndicatorResult) {
			publisher.WriteIndicatorBatch(ctx, results)
		})
		if n > 0 {
			slog.Info("indicator warm-up complete", "ticks", n, "restored_from", source)
		}
	}
	return engine
}

// loadSnapshot reads and decodes a snapshot, returning nil on any failure.
func (svc *Service) loadSnapshot(name string, store model.SnapshotStore) *indicator.EngineSnapshot {
	raw, err := store.ReadLatestSnapshotJSON()
	if err != nil {
		slog.Warn("snapshot read failed", "store", name, "error", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var snap indicator.EngineSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		slog.Warn("snapshot decode failed", "store", name, "error", err)
		return nil
	}
	return &snap
}

// snapshotLoop periodically checkpoints engine state to Redis and SQLite.
func (svc *Service) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(svc.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := svc.proc.Snapshot(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("snapshot failed", "error", err)
				}
				continue
			}
			svc.saveSnapshot(snap)
		}
	}
}

type namedStore struct {
	name  string
	store model.SnapshotStore
}

// saveSnapshot writes snap to every available store.
func (svc *Service) saveSnapshot(snap *indicator.EngineSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("snapshot encode failed", "error", err)
		return
	}
	stores := []namedStore{{"redis", svc.redisWriter}}
	if svc.sqlWriter != nil {
		stores = append(stores, namedStore{"sqlite", svc.sqlWriter})
	}
	for _, s := range stores {
		result := "ok"
		if err := s.store.SaveSnapshotJSON(data); err != nil {
			result = "error"
			slog.Error("snapshot write failed", "store", s.name, "error", err)
			svc.alerts.Notify(notification.Alert{
				Level:   notification.AlertWarning,
				Title:   "snapshot write failed: " + s.name,
				Message: err.Error(),
			})
		}
		svc.prom.SnapshotsTotal.WithLabelValues(s.name, result).Inc()
	}
	slog.Info("checkpoint saved", "symbols", len(snap.Symbols), "bytes", len(data))
}

// retentionLoop prunes ticks older than the retention window.
func (svc *Service) retentionLoop(ctx context.Context) {
	ticker := time.NewTicker(retentionEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.sqlWriter.PruneTicks(time.Now().Add(-svc.cfg.TickRetention))
			if err != nil {
				slog.Warn("tick pruning failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("pruned old ticks", "rows", n)
			}
		}
	}
}

// watchConfig hot-reloads indicator configs published on the config
// channel, e.g. PUBLISH config:indicators "SMA:20,RSI:14".
func (svc *Service) watchConfig(ctx context.Context) {
	err := svc.redisReader.Watch(ctx, redisstore.ConfigChannel, func(payload string) {
		configs, err := indicator.ParseSpecs(payload)
		if err != nil {
			slog.Warn("ignoring invalid indicator config", "payload", payload, "error", err)
			return
		}
		rctx := logger.WithTraceID(ctx, logger.GenerateTraceID("reload", time.Now()))
		if _, _, err := svc.proc.Reload(rctx, configs); err != nil {
			slog.Warn("indicator reload failed", append(logger.LogWithTrace(rctx), "error", err)...)
		}
	})
	if err != nil {
		slog.Error("config subscription failed", "error", err)
	}
}

// shutdown saves a final snapshot and closes connections. The loop must
// have stopped.
func (svc *Service) shutdown() {
	snap, err := svc.proc.FinalSnapshot()
	if err != nil {
		slog.Error("final snapshot failed", "error", err)
	} else {
		svc.saveSnapshot(snap)
	}

	if svc.sqlReader != nil {
		svc.sqlReader.Close()
	}
	if svc.sqlWriter != nil {
		svc.sqlWriter.Close()
	}
	svc.redisWriter.Close()
	svc.alerts.Wait()
	slog.Info("shutdown complete")
}
