package engine

import (
	"math"
	"sort"
	"sync"
	"time"
)

// TradeFlowAggregator maintains, per instrument, the 5-minute rolling
// trade window of §4.2 as two parallel slices (trade, notional) that are
// appended together and pruned by the same head count under one lock, so
// they always stay the same length and index-aligned.
type TradeFlowAggregator struct {
	mu          sync.Mutex
	windowTrades  []Trade
	windowNotional []float64

	floorUSD   float64
	percentile float64
}

// NewTradeFlowAggregator builds an aggregator for one instrument.
func NewTradeFlowAggregator(floorUSD, percentile float64) *TradeFlowAggregator {
	return &TradeFlowAggregator{floorUSD: floorUSD, percentile: percentile}
}

const tradeWindow = 5 * time.Minute

// Ingest records a new trade, pruning entries older than 5 minutes by
// trade event time (not wall-clock, per the Data Model invariant).
// Malformed trades (non-numeric already filtered upstream, zero
// quantity here) are dropped without aborting the window.
func (a *TradeFlowAggregator) Ingest(t Trade) {
	if t.Quantity <= 0 || t.Price <= 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := t.TimestampMs - tradeWindow.Milliseconds()
	a.pruneLocked(cutoff)

	a.windowTrades = append(a.windowTrades, t)
	a.windowNotional = append(a.windowNotional, t.Notional())
}

// pruneLocked drops head entries strictly older than cutoffMs. Callers
// must hold a.mu.
func (a *TradeFlowAggregator) pruneLocked(cutoffMs int64) {
	drop := 0
	for drop < len(a.windowTrades) && a.windowTrades[drop].TimestampMs < cutoffMs {
		drop++
	}
	if drop == 0 {
		return
	}
	a.windowTrades = append([]Trade(nil), a.windowTrades[drop:]...)
	a.windowNotional = append([]float64(nil), a.windowNotional[drop:]...)
}

// DynamicThreshold returns the 99th-percentile notional size of the
// window, floored by the configured minimum, per §3's
// "Dynamic large-trade threshold". Requires >= 20 trades or falls back
// to the floor.
func (a *TradeFlowAggregator) DynamicThreshold() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dynamicThresholdLocked()
}

func (a *TradeFlowAggregator) dynamicThresholdLocked() float64 {
	if len(a.windowNotional) < 20 {
		return a.floorUSD
	}
	sorted := append([]float64(nil), a.windowNotional...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(a.percentile/100.0*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	pct := sorted[idx]
	return math.Max(pct, a.floorUSD)
}

// Features computes the current Feature Tuple's trade-flow-derived
// members: large_buys/sells, volume_per_minute, buy/sell volume,
// avg_trade_size, vwap, and the dynamic threshold itself.
func (a *TradeFlowAggregator) Features() FeatureTuple {
	a.mu.Lock()
	defer a.mu.Unlock()

	threshold := a.dynamicThresholdLocked()

	var largeBuys, largeSells int
	var buyVolume, sellVolume, totalNotional, totalQty, priceQtySum float64

	for i, t := range a.windowTrades {
		notional := a.windowNotional[i]
		isBuy := t.AggressorBuy

		totalNotional += notional
		totalQty += t.Quantity
		priceQtySum += t.Price * t.Quantity

		if isBuy {
			buyVolume += notional
		} else {
			sellVolume += notional
		}

		if notional >= threshold {
			if isBuy {
				largeBuys++
			} else {
				largeSells++
			}
		}
	}

	var avgTradeSize, vwap float64
	if n := len(a.windowTrades); n > 0 {
		avgTradeSize = totalNotional / float64(n)
	}
	if totalQty > 0 {
		vwap = priceQtySum / totalQty
	}

	return FeatureTuple{
		LargeBuys:        largeBuys,
		LargeSells:       largeSells,
		VolumePerMinute:  totalNotional / 5.0,
		BuyVolume:        buyVolume,
		SellVolume:       sellVolume,
		AvgTradeSize:     avgTradeSize,
		VWAP:             vwap,
		DynamicThreshold: threshold,
	}
}

// Len reports the current window length, mainly for tests and the
// |trades|==|trade_sizes| invariant.
func (a *TradeFlowAggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.windowTrades)
}
