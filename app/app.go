// Package app wires the signal engine's components into the running
// process: database/cache connections, exchange ingestion, the
// per-instrument analysis pipeline, the fast exit loop, and graceful
// shutdown — adapted from the teacher's app/app.go lifecycle shape
// (connect -> subscribe -> background loops -> graceful shutdown) but
// generalized from a single-exchange-auth client to the spec's public,
// unauthenticated multiplexed market-data stream.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"perpsignal/cache"
	"perpsignal/config"
	"perpsignal/database"
	models "perpsignal/database/models_pkg"
	"perpsignal/engine"
	"perpsignal/exchange"
	"perpsignal/handlers"
	"perpsignal/notify"
	"perpsignal/ratelimit"
)

// App wires every process-wide component together.
type App struct {
	cfg *config.Config

	db            *database.Database
	redis         *cache.RedisClient
	snapshotCache *cache.SnapshotCache

	klineRepo  *database.KlineRepository
	signalRepo *database.SignalRepository
	tradeRepo  *database.TradeRecordRepository

	exchangeClient *exchange.Client
	restClient     *exchange.RESTClient
	rateGate       *ratelimit.Gate

	universe   engine.UniverseProvider
	registry   *engine.Registry
	dispatcher *handlers.Dispatcher
	tracker    *engine.FastTracker
	resync     *engine.Resynchronizer

	bus          *notify.Bus
	notifier     *notify.Notifier
	notifyWorker *notify.Worker
	notifyUnsub  func()

	lastMessageTime time.Time
	lastMessageMu   sync.RWMutex
}

// New creates a new application instance; Start performs all I/O setup.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Start connects every dependency and runs until an interrupt signal
// triggers graceful shutdown.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.connectStore(); err != nil {
		return err
	}
	a.connectCache()
	a.wireDomain()

	if err := a.loadSeedHistory(ctx); err != nil {
		log.Printf("⚠️  seed history backfill incomplete: %v", err)
	}

	if err := a.connectExchange(); err != nil {
		return fmt.Errorf("exchange connection failed: %w", err)
	}

	var wg sync.WaitGroup
	a.startBackgroundLoops(ctx, &wg)

	err := a.gracefulShutdown(cancel)
	wg.Wait()
	return err
}

func (a *App) connectStore() error {
	log.Println("🗄️  Connecting to database...")
	dbPort, err := strconv.Atoi(a.cfg.Database.Port)
	if err != nil {
		return fmt.Errorf("invalid database port: %w", err)
	}
	db, err := database.Connect(a.cfg.Database.Host, dbPort, a.cfg.Database.Name, a.cfg.Database.User, a.cfg.Database.Password)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db

	if err := database.InitSchema(db); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	a.klineRepo = database.NewKlineRepository(db)
	a.signalRepo = database.NewSignalRepository(db)
	a.tradeRepo = database.NewTradeRecordRepository(db)
	return nil
}

func (a *App) connectCache() {
	log.Println("🧠 Connecting to Redis...")
	redisClient := cache.NewRedisClient(a.cfg.Redis.Host, a.cfg.Redis.Port, a.cfg.Redis.Password)
	if redisClient == nil {
		log.Println("⚠️  Redis connection failed, falling back to in-process snapshot cache")
	}
	a.redis = redisClient
	a.snapshotCache = cache.NewSnapshotCache(redisClient)
}

func (a *App) wireDomain() {
	bus, err := notify.NewBus(a.cfg.Notifier.NATSURL, a.cfg.Notifier.Subject)
	if err != nil {
		log.Printf("⚠️  notification bus unavailable, notifications degrade to no-ops: %v", err)
		bus = &notify.Bus{}
	}
	a.bus = bus
	a.notifier = notify.NewNotifier(a.cfg.Notifier.WebhookURL)
	a.notifyWorker = notify.NewWorker(a.bus, a.notifier, func(signalID int64, messageID string) {
		_, _ = a.signalRepo.UpdatePartial(signalID, map[string]interface{}{"notification_id": messageID})
	})

	a.rateGate = ratelimit.NewGate(a.cfg.Exchange.RESTWeightPerMinute)
	a.restClient = exchange.NewRESTClient(a.cfg.Exchange.RESTBaseURL, a.rateGate)
	a.exchangeClient = exchange.NewClient(a.cfg.Exchange.StreamURL)

	if a.cfg.Exchange.UniverseFile != "" {
		a.universe = engine.NewStaticFileUniverse(a.cfg.Exchange.UniverseFile)
	}

	volatility := engine.NewVolatilityEstimator(a.klineRepo, a.snapshotCache, a.cfg.Trading.WorkingRangeMultiplier)
	persistence := engine.NewPersistenceTracker()
	emitter, err := engine.NewEmitter(a.signalRepo, a.bus, 1)
	if err != nil {
		log.Fatalf("❌ failed to initialize signal emitter: %v", err)
	}

	instrumentCfg := engine.InstrumentConfig{
		LargeTradeFloorUSD:      a.cfg.Trading.LargeTradeFloorUSD,
		LargeTradePercentile:    a.cfg.Trading.LargeTradePercentile,
		PriorityHigh:            a.cfg.Trading.PriorityHigh,
		PriorityMedium:          a.cfg.Trading.PriorityMedium,
		WorkingRangeMultiplier:  a.cfg.Trading.WorkingRangeMultiplier,
		HistoricalProfileWindow: 6 * time.Hour,
	}
	a.registry = engine.NewRegistry(a.snapshotCache, a.klineRepo, volatility, persistence, emitter, instrumentCfg)
	a.dispatcher = handlers.NewDispatcher(a.registry, a.klineRepo)

	a.tracker = engine.NewFastTracker(a.snapshotCache, a.signalRepo, a.tradeRepo, a.bus)
	a.resync = engine.NewResynchronizer(a.signalRepo, a.tracker)
}

// loadSeedHistory backfills the last 20 one-minute candles per active
// instrument on startup (§6 "Exchange REST (backfill)").
func (a *App) loadSeedHistory(ctx context.Context) error {
	if a.universe == nil {
		return nil
	}
	symbols, err := a.universe.ActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("load active universe: %w", err)
	}
	for _, symbol := range symbols {
		candles, err := a.restClient.GetRecentCandles(ctx, symbol, "1m", 20)
		if err != nil {
			log.Printf("⚠️  %s: seed candle backfill failed: %v", symbol, err)
			continue
		}
		for _, c := range candles {
			_ = a.klineRepo.SaveKline(&models.Kline{
				Instrument: symbol,
				Interval:   "1m",
				OpenTime:   time.UnixMilli(c.OpenTime),
				Open:       c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
			})
		}
	}
	return nil
}

func (a *App) connectExchange() error {
	log.Println("🔌 Connecting to exchange stream...")
	if err := a.exchangeClient.Connect(); err != nil {
		return err
	}
	log.Println("✅ Exchange stream connected")

	if a.universe != nil {
		symbols, err := a.universe.ActiveSymbols(context.Background())
		if err != nil {
			return fmt.Errorf("load active universe: %w", err)
		}
		streams := buildStreamNames(symbols)
		if len(streams) > 0 {
			if err := a.exchangeClient.Subscribe(streams); err != nil {
				return err
			}
		}
	}

	a.exchangeClient.StartPing(25 * time.Second)
	return nil
}

func buildStreamNames(symbols []string) []string {
	streams := make([]string, 0, len(symbols)*5)
	for _, s := range symbols {
		lower := toLower(s)
		streams = append(streams,
			lower+"@aggTrade",
			lower+"@depth20",
			lower+"@kline_1m",
			lower+"@kline_15m",
			lower+"@bookTicker",
		)
	}
	return streams
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func (a *App) startBackgroundLoops(ctx context.Context, wg *sync.WaitGroup) {
	unsub, err := a.notifyWorker.Start("notify-workers")
	if err != nil {
		log.Printf("⚠️  notification worker failed to start: %v", err)
	}
	a.notifyUnsub = unsub

	wg.Add(1)
	go func() { defer wg.Done(); a.readAndProcessMessages(ctx) }()

	wg.Add(1)
	go func() { defer wg.Done(); a.resync.Run(ctx) }()

	wg.Add(1)
	go func() { defer wg.Done(); a.runFastTick(ctx) }()

	if a.universe != nil {
		wg.Add(1)
		go func() { defer wg.Done(); a.runUniverseRescan(ctx) }()
	}

	wg.Add(1)
	go func() { defer wg.Done(); a.monitorExchangeHealth(ctx) }()
}

// runFastTick drives both the Fast Tracker's 100 ms exit loop and the
// per-instrument entry-persistence evaluation on the same cadence (§5).
func (a *App) runFastTick(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(a.cfg.Trading.FastTickIntervalMS) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tracker.Tick(ctx)
			a.registry.EvaluateAll(ctx)
		}
	}
}

func (a *App) runUniverseRescan(ctx context.Context) {
	interval := time.Duration(a.cfg.Trading.UniverseRescanIntervalHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			symbols, err := a.universe.ActiveSymbols(ctx)
			if err != nil {
				log.Printf("⚠️  universe rescan failed: %v", err)
				continue
			}
			a.registry.Reconcile(symbols)
		}
	}
}

// readAndProcessMessages reads and dispatches exchange frames, with
// exponential-backoff reconnection on stream drop, grounded on the
// teacher's readAndProcessMessages/reconnectWebSocket but without any
// auth/token-refresh machinery, since this market-data stream is public.
func (a *App) readAndProcessMessages(ctx context.Context) {
	reconnectDelay := 5 * time.Second
	maxReconnectDelay := 60 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		env, err := a.exchangeClient.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}

			log.Printf("⚠️  exchange stream error: %v", err)
			log.Printf("🔄 reconnecting in %v...", reconnectDelay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}

			if err := a.reconnectExchange(); err != nil {
				log.Printf("❌ reconnection failed: %v", err)
				reconnectDelay *= 2
				if reconnectDelay > maxReconnectDelay {
					reconnectDelay = maxReconnectDelay
				}
				continue
			}
			reconnectDelay = 5 * time.Second
			log.Println("✅ reconnected, resuming message processing")
			continue
		}

		a.updateLastMessageTime()
		a.dispatcher.Dispatch(ctx, env)
	}
}

func (a *App) reconnectExchange() error {
	if a.exchangeClient != nil {
		_ = a.exchangeClient.Close()
	}
	a.exchangeClient = exchange.NewClient(a.cfg.Exchange.StreamURL)
	if err := a.exchangeClient.Connect(); err != nil {
		return fmt.Errorf("exchange connection failed: %w", err)
	}
	return a.connectExchange()
}

// monitorExchangeHealth reconnects if no frame has arrived in 5 minutes
// (grounded on the teacher's monitorWebSocketHealth).
func (a *App) monitorExchangeHealth(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lastMsg := a.getLastMessageTime()
			if lastMsg.IsZero() {
				a.updateLastMessageTime()
				continue
			}
			if time.Since(lastMsg) > 5*time.Minute {
				log.Printf("⚠️  no exchange message for %v, reconnecting...", time.Since(lastMsg).Round(time.Second))
				if err := a.reconnectExchange(); err != nil {
					log.Printf("❌ exchange reconnection failed: %v", err)
				} else {
					a.updateLastMessageTime()
				}
			}
		}
	}
}

func (a *App) updateLastMessageTime() {
	a.lastMessageMu.Lock()
	defer a.lastMessageMu.Unlock()
	a.lastMessageTime = time.Now()
}

func (a *App) getLastMessageTime() time.Time {
	a.lastMessageMu.RLock()
	defer a.lastMessageMu.RUnlock()
	return a.lastMessageTime
}

// gracefulShutdown blocks for SIGINT/SIGTERM, then drains in-flight
// writes within a 10 s deadline before exit (§5, §7).
func (a *App) gracefulShutdown(cancel context.CancelFunc) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	log.Println("🛑 shutdown signal received, initiating graceful shutdown...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		if a.notifyUnsub != nil {
			a.notifyUnsub()
		}
		if a.bus != nil {
			a.bus.Close()
		}
		if a.exchangeClient != nil {
			_ = a.exchangeClient.Close()
		}
		if a.db != nil {
			_ = a.db.Close()
		}
		if a.redis != nil {
			_ = a.redis.Close()
		}
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		log.Println("⚠️  shutdown timeout exceeded, forcing exit")
		return fmt.Errorf("shutdown timeout")
	}
}
