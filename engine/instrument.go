package engine

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"perpsignal/cache"
	"perpsignal/database"
	models "perpsignal/database/models_pkg"
	"perpsignal/exchange"
)

// InstrumentConfig bundles the tunables an InstrumentHandler needs
// (subset of the spec's §6 configuration surface).
type InstrumentConfig struct {
	LargeTradeFloorUSD      float64
	LargeTradePercentile    float64
	PriorityHigh            float64
	PriorityMedium          float64
	WorkingRangeMultiplier  float64
	HistoricalProfileWindow time.Duration
}

// InstrumentHandler owns one instrument's per-handler state: the trade
// window and the latest depth analysis and 15-minute candle (§9
// "Per-instrument state needs isolation from the shared event loop",
// SPEC_FULL.md §4.0). Its persistence counter is kept under its symbol in
// the shared PersistenceTracker; partial-close state is held by the
// FastTracker, not here. Every inbound frame for this
// instrument is dispatched here synchronously by the ingest goroutine,
// satisfying "touched by a single logical writer" (§5).
type InstrumentHandler struct {
	Instrument string

	mu        sync.Mutex
	lastDepth DepthSnapshot
	lastKline15m Kline

	tradeFlow  *TradeFlowAggregator
	orderBook  OrderBookAnalysis
	volatility *VolatilityEstimator
	levels     *LevelsAnalyzer
	sltp       *SLTPPlacer
	validator  *Validator
	persistence *PersistenceTracker
	emitter    *Emitter

	snapshotCache *cache.SnapshotCache
	klines        *database.KlineRepository

	cfg InstrumentConfig
}

// NewInstrumentHandler builds a handler for one instrument, wiring the
// shared analysis components (volatility/persistence/emitter are
// process-wide and passed in; trade-flow/order-book/levels state is
// private to this handler).
func NewInstrumentHandler(
	instrument string,
	snapshotCache *cache.SnapshotCache,
	klines *database.KlineRepository,
	volatility *VolatilityEstimator,
	persistence *PersistenceTracker,
	emitter *Emitter,
	cfg InstrumentConfig,
) *InstrumentHandler {
	return &InstrumentHandler{
		Instrument:    instrument,
		tradeFlow:     NewTradeFlowAggregator(cfg.LargeTradeFloorUSD, cfg.LargeTradePercentile),
		volatility:    volatility,
		levels:        NewLevelsAnalyzer(),
		sltp:          NewSLTPPlacer(),
		validator:     NewValidator(),
		persistence:   persistence,
		emitter:       emitter,
		snapshotCache: snapshotCache,
		klines:        klines,
		cfg:           cfg,
	}
}

// HandleTrade ingests one aggregated-trade frame and refreshes the
// trade-flow-derived cache entry.
func (h *InstrumentHandler) HandleTrade(ctx context.Context, payload exchange.TradePayload) {
	price, qty, err := parseTradeFields(payload)
	if err != nil {
		log.Printf("⚠️  %s: malformed trade dropped: %v", h.Instrument, err)
		return
	}

	h.tradeFlow.Ingest(Trade{
		TimestampMs:  payload.EventTimeMs,
		Price:        price,
		Quantity:     qty,
		AggressorBuy: !payload.BuyerMaker,
	})

	_ = h.snapshotCache.Set(ctx, cache.TradeFlowKey(h.Instrument), h.tradeFlow.Features(), cache.TTLTradeFlow)
}

// HandleDepth ingests a depth frame, refreshes order-book analysis, and
// writes the orderbook/imbalance/price cache keys.
func (h *InstrumentHandler) HandleDepth(ctx context.Context, snap DepthSnapshot) {
	analysis := AnalyzeOrderBook(snap)

	h.mu.Lock()
	h.lastDepth = snap
	h.orderBook = analysis
	h.mu.Unlock()

	_ = h.snapshotCache.Set(ctx, cache.OrderbookKey(h.Instrument), snap, cache.TTLDepthImbalancePrice)
	_ = h.snapshotCache.Set(ctx, cache.ImbalanceKey(h.Instrument), cache.ImbalanceValue{Imbalance: analysis.Imbalance}, cache.TTLDepthImbalancePrice)

	if analysis.BestBid > 0 && analysis.BestAsk > 0 {
		mid := (analysis.BestBid + analysis.BestAsk) / 2
		_ = h.snapshotCache.Set(ctx, cache.PriceKey(h.Instrument), cache.PriceValue{
			Bid: analysis.BestBid, Ask: analysis.BestAsk, Mid: mid, Timestamp: time.Now().UnixMilli(),
		}, cache.TTLDepthImbalancePrice)
	}
}

// HandleKline15m caches the latest 15-minute candle, used as the
// volume_intensity baseline (§4.2, §9 "skip tick, not an implicit
// baseline" when absent).
func (h *InstrumentHandler) HandleKline15m(ctx context.Context, k Kline) {
	h.mu.Lock()
	h.lastKline15m = k
	h.mu.Unlock()
	_ = h.snapshotCache.Set(ctx, cache.Kline15mKey(h.Instrument), k, cache.TTLKline15m)
}

// EvaluateEntry runs the confluence check for this tick (§4.8) and, if
// the persistence counter reaches threshold, builds and validates a
// candidate signal, emitting it on acceptance.
func (h *InstrumentHandler) EvaluateEntry(ctx context.Context) {
	h.mu.Lock()
	depth := h.lastDepth
	obAnalysis := h.orderBook
	kline15m := h.lastKline15m
	h.mu.Unlock()

	if kline15m.Volume == 0 {
		// No 15-minute candle yet: skip tick, not an implicit baseline (§9).
		return
	}

	features := h.tradeFlow.Features()
	mid := (obAnalysis.BestBid + obAnalysis.BestAsk) / 2
	if mid <= 0 {
		return
	}

	direction := Long
	if obAnalysis.Imbalance < 0 {
		direction = Short
	}

	volumeIntensity := safeDiv(features.VolumePerMinute, kline15m.Volume/15.0)
	priceVsVWAP := (direction == Long && mid >= features.VWAP) || (direction == Short && mid <= features.VWAP)

	largeTradeSide := features.LargeBuys
	if direction == Short {
		largeTradeSide = features.LargeSells
	}

	preconditions := Preconditions{
		ImbalanceMet:       absf(obAnalysis.Imbalance) >= 0.15,
		LargeTradeCountMet: largeTradeSide >= 2,
		VolumeIntensityMet: volumeIntensity >= 1.5,
		PriceVsVWAPMet:     priceVsVWAP,
	}

	if !h.persistence.Tick(h.Instrument, preconditions) {
		return
	}

	volatility, err := h.volatility.Estimate(ctx, h.Instrument, mid)
	if err != nil {
		log.Printf("⚠️  %s: volatility unavailable, dropping signal proposal: %v", h.Instrument, err)
		return
	}

	historical, err := h.klines.GetHistoricalCandles(h.Instrument, "1m", time.Now().Add(-h.cfg.HistoricalProfileWindow))
	if err != nil {
		log.Printf("⚠️  %s: historical candles unavailable: %v", h.Instrument, err)
		return
	}

	levelsResult := h.levels.Analyze(mid, depth, toEngineKlines(historical), volatility.WorkingLow, volatility.WorkingHigh)
	placement := h.sltp.Place(direction, mid, levelsResult, volatility.ATR)

	levelsCount := len(levelsResult.Supports) + len(levelsResult.Resistances)
	validation := h.validator.Validate(CandidateSignal{
		Direction:       direction,
		Entry:           mid,
		Imbalance:       obAnalysis.Imbalance,
		LargeTradeSide:  largeTradeSide,
		VolumeIntensity: volumeIntensity,
		Placement:       placement,
		LevelsCount:     levelsCount,
	})

	if !validation.Accepted {
		log.Printf("%s: signal proposal rejected: %v", h.Instrument, validation.Reasons)
		return
	}

	if _, err := h.emitter.Emit(EmitRequest{
		Instrument: h.Instrument,
		Direction:  direction,
		Entry:      mid,
		Placement:  placement,
		Validation: validation,
		Features:   features,
	}); err != nil {
		log.Printf("⚠️  %s: failed to persist accepted signal: %v", h.Instrument, err)
	}
}

// Close releases this handler's private state when the instrument
// leaves the active universe (§4.8 "inactive-instrument cleanup").
func (h *InstrumentHandler) Close() {
	h.persistence.Remove(h.Instrument)
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func toEngineKlines(rows []models.Kline) []Kline {
	klines := make([]Kline, len(rows))
	for i, r := range rows {
		klines[i] = Kline{OpenTime: r.OpenTime, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume, Closed: true}
	}
	return klines
}

func parseTradeFields(payload exchange.TradePayload) (price, quantity float64, err error) {
	price, err = strconv.ParseFloat(payload.Price, 64)
	if err != nil {
		return 0, 0, err
	}
	quantity, err = strconv.ParseFloat(payload.Quantity, 64)
	if err != nil {
		return 0, 0, err
	}
	return price, quantity, nil
}
