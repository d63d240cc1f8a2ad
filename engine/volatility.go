package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"perpsignal/cache"
	"perpsignal/database"
)

// atrPeriod is the configured ATR lookback (§6 "atr_period (14)").
const atrPeriod = 14

// volatilityCacheTTL is the 60 s per-instrument cache of §4.4.
const volatilityCacheTTL = 60 * time.Second

// VolatilityEstimator computes ATR(14) from the most recent closed
// minute candles (§4.4), grounded on the teacher's True-Range formula
// but using a simple arithmetic mean of the first atr_period values
// rather than the teacher's continued Wilder smoothing, per the
// spec's explicit wording.
type VolatilityEstimator struct {
	klines *database.KlineRepository
	cache  *cache.SnapshotCache

	workingRangeMultiplier float64

	mu      sync.Mutex
	results map[string]cachedVolatility
}

type cachedVolatility struct {
	result    VolatilityResult
	expiresAt time.Time
}

// NewVolatilityEstimator builds an estimator backed by the kline store.
func NewVolatilityEstimator(klines *database.KlineRepository, snapshotCache *cache.SnapshotCache, workingRangeMultiplier float64) *VolatilityEstimator {
	return &VolatilityEstimator{
		klines:                 klines,
		cache:                  snapshotCache,
		workingRangeMultiplier: workingRangeMultiplier,
		results:                make(map[string]cachedVolatility),
	}
}

// Estimate returns the cached volatility result for instrument if fresh,
// otherwise recomputes it from the 15 most recent closed minute candles.
func (v *VolatilityEstimator) Estimate(ctx context.Context, instrument string, mid float64) (VolatilityResult, error) {
	v.mu.Lock()
	if cached, ok := v.results[instrument]; ok && time.Now().Before(cached.expiresAt) {
		v.mu.Unlock()
		return cached.result, nil
	}
	v.mu.Unlock()

	candles, err := v.klines.GetRecentClosedCandles(instrument, "1m", atrPeriod+1)
	if err != nil {
		return VolatilityResult{}, fmt.Errorf("volatility estimate %s: %w", instrument, err)
	}
	if len(candles) < atrPeriod+1 {
		return VolatilityResult{}, fmt.Errorf("volatility estimate %s: need %d closed candles, have %d", instrument, atrPeriod+1, len(candles))
	}

	trueRanges := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr1 := high - low
		tr2 := math.Abs(high - prevClose)
		tr3 := math.Abs(low - prevClose)
		trueRanges = append(trueRanges, math.Max(tr1, math.Max(tr2, tr3)))
	}

	var sum float64
	for i := 0; i < atrPeriod; i++ {
		sum += trueRanges[i]
	}
	atr := sum / float64(atrPeriod)

	currentClose := candles[len(candles)-1].Close
	var volatilityPct float64
	if currentClose > 0 {
		volatilityPct = atr / currentClose * 100
	}

	class := VolLow
	switch {
	case volatilityPct >= 0.7:
		class = VolHigh
	case volatilityPct >= 0.3:
		class = VolMedium
	}

	result := VolatilityResult{
		ATR:           atr,
		VolatilityPct: volatilityPct,
		Class:         class,
		WorkingLow:    mid - v.workingRangeMultiplier*atr,
		WorkingHigh:   mid + v.workingRangeMultiplier*atr,
	}

	v.mu.Lock()
	v.results[instrument] = cachedVolatility{result: result, expiresAt: time.Now().Add(volatilityCacheTTL)}
	v.mu.Unlock()

	return result, nil
}
