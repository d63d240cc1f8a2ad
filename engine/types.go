// Package engine implements the per-instrument analysis and exit
// pipeline: the Trade Flow Aggregator, Order-Book Analyzer, Volatility
// Estimator, Levels Analyzer, Dynamic SL/TP Placer, Signal Validator &
// Scorer, Entry Persistence Tracker, Signal Emitter, Fast Signal Tracker
// and Cache Resynchronizer (§4).
package engine

import "time"

// Direction is a signal's side.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Priority is a signal's priority label (§4.7).
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Trade is one ephemeral aggregated-trade event (§3 "Trade").
type Trade struct {
	TimestampMs int64
	Price       float64
	Quantity    float64
	AggressorBuy bool // true when the aggressor was a buyer
}

// Notional returns price*quantity.
func (t Trade) Notional() float64 { return t.Price * t.Quantity }

// DepthLevel is one (price, size) resting order level.
type DepthLevel struct {
	Price float64
	Size  float64
}

// DepthSnapshot is an ordered bid/ask book (§3 "Depth Snapshot").
type DepthSnapshot struct {
	Instrument string
	EventTime  time.Time
	Bids       []DepthLevel // descending price
	Asks       []DepthLevel // ascending price
}

// Kline is one OHLCV candle.
type Kline struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Closed   bool
}

// FeatureTuple is the derived feature set of §3; its trade-flow members
// are cached under the trade_flow key with cache.TTLTradeFlow (60 s).
type FeatureTuple struct {
	Imbalance        float64
	LargeBuys        int
	LargeSells       int
	VolumePerMinute  float64
	BuyVolume        float64
	SellVolume       float64
	AvgTradeSize     float64
	VWAP             float64
	DynamicThreshold float64
}

// VolatilityClass is the classification band of §4.4.
type VolatilityClass string

const (
	VolLow    VolatilityClass = "LOW"
	VolMedium VolatilityClass = "MEDIUM"
	VolHigh   VolatilityClass = "HIGH"
)

// VolatilityResult is the output of the Volatility Estimator.
type VolatilityResult struct {
	ATR           float64
	VolatilityPct float64
	Class         VolatilityClass
	WorkingLow    float64
	WorkingHigh   float64
}

// Level is a significant support/resistance price with its fused volume
// (§4.5).
type Level struct {
	Price  float64
	Volume float64
}

// LevelsResult is the output of the Levels Analyzer.
type LevelsResult struct {
	POC              Level
	Supports         []Level // nearest-first
	Resistances      []Level // nearest-first
	StrongestSupport    Level
	StrongestResistance Level
	LowVolumeZones   []Level
}

// Placement is the output of the Dynamic SL/TP Placer (§4.6).
type Placement struct {
	Stop          float64
	StopReason    string
	TP1           float64
	TP1Reason     string
	TP2           float64
	TP2Reason     string
	SupportAnchor float64
	ResistanceAnchor float64
	Valid         bool
	RejectReason  string
}

// ValidationResult is the output of the Signal Validator & Scorer (§4.7).
type ValidationResult struct {
	Accepted   bool
	Reasons    []string
	Quality    float64
	Priority   Priority
}

// PartialCloseStatus mirrors the Signal's lifecycle field (§3).
type PartialCloseStatus string

const (
	PartialNone       PartialCloseStatus = "NONE"
	PartialTP1Closed  PartialCloseStatus = "TP1_CLOSED"
	PartialFullyClosed PartialCloseStatus = "FULLY_CLOSED"
)

// SignalStatus mirrors the Signal's status field (§3).
type SignalStatus string

const (
	StatusOpen   SignalStatus = "OPEN"
	StatusClosed SignalStatus = "CLOSED"
)
