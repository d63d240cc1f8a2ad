// Package models holds the GORM-tagged row types for the persistent store.
package models

import "time"

// Kline represents one closed minute or 15-minute candle for an instrument.
//
// Key Fields:
//   - Instrument: the perpetual-futures symbol (e.g. BTCUSDT)
//   - Interval: "1m" or "15m"
//   - OpenTime: the candle's open timestamp, unique together with
//     (Instrument, Interval) per §6
type Kline struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Instrument string    `gorm:"size:20;not null;index:idx_kline_lookup,priority:1" json:"instrument"`
	Interval   string    `gorm:"size:5;not null;index:idx_kline_lookup,priority:2" json:"interval"`
	OpenTime   time.Time `gorm:"not null;index:idx_kline_lookup,priority:3" json:"open_time"`
	Open       float64   `gorm:"type:decimal(20,8);not null" json:"open"`
	High       float64   `gorm:"type:decimal(20,8);not null" json:"high"`
	Low        float64   `gorm:"type:decimal(20,8);not null" json:"low"`
	Close      float64   `gorm:"type:decimal(20,8);not null" json:"close"`
	Volume     float64   `gorm:"type:decimal(24,8);not null" json:"volume"`
}

// TableName specifies the table name for Kline.
func (Kline) TableName() string {
	return "klines"
}

// Signal represents a persisted trading signal. Its status and
// partial_close_status fields form the core lifecycle state machine of §3/§4.10:
// status transitions OPEN -> CLOSED exactly once, partial_close_status
// progresses strictly NONE -> TP1_CLOSED -> FULLY_CLOSED.
type Signal struct {
	ID                 int64      `gorm:"primaryKey" json:"id"`
	Instrument         string     `gorm:"size:20;not null;index" json:"instrument"`
	Direction          string     `gorm:"size:5;not null" json:"direction"` // LONG, SHORT
	Priority           string     `gorm:"size:6;not null" json:"priority"`  // HIGH, MEDIUM, LOW
	Entry              float64    `gorm:"type:decimal(20,8);not null" json:"entry"`
	Stop               float64    `gorm:"type:decimal(20,8);not null" json:"stop"`
	TP1                float64    `gorm:"type:decimal(20,8);not null" json:"tp1"`
	TP2                float64    `gorm:"type:decimal(20,8);not null" json:"tp2"`
	Quality            float64    `gorm:"type:decimal(6,2);not null" json:"quality"`
	Imbalance          float64    `gorm:"type:decimal(10,6)" json:"imbalance"`
	LargeTrades        int        `json:"large_trades"`
	VolumeIntensity    float64    `gorm:"type:decimal(10,4)" json:"volume_intensity"`
	Confidence         float64    `gorm:"type:decimal(6,2)" json:"confidence"`
	RR                 float64    `gorm:"type:decimal(10,4)" json:"rr"`
	StopReason         string     `gorm:"type:text" json:"stop_reason"`
	TP1Reason          string     `gorm:"type:text" json:"tp1_reason"`
	TP2Reason          string     `gorm:"type:text" json:"tp2_reason"`
	SupportAnchor      float64    `gorm:"type:decimal(20,8)" json:"support_anchor"`
	ResistanceAnchor   float64    `gorm:"type:decimal(20,8)" json:"resistance_anchor"`
	Status             string     `gorm:"size:10;not null;index" json:"status"`               // OPEN, CLOSED
	PartialCloseStatus string     `gorm:"size:15;not null" json:"partial_close_status"`        // NONE, TP1_CLOSED, FULLY_CLOSED
	BreakevenMoved     bool       `json:"breakeven_moved"`
	CurrentStop        float64    `gorm:"type:decimal(20,8);not null" json:"current_stop"`
	TP1FillPrice       *float64   `gorm:"type:decimal(20,8)" json:"tp1_fill_price,omitempty"`
	TP1FillTime        *time.Time `json:"tp1_fill_time,omitempty"`
	TP1PnLPct          *float64   `gorm:"type:decimal(10,4)" json:"tp1_pnl_pct,omitempty"`
	TP2FillPrice       *float64   `gorm:"type:decimal(20,8)" json:"tp2_fill_price,omitempty"`
	TP2FillTime        *time.Time `json:"tp2_fill_time,omitempty"`
	TP2PnLPct          *float64   `gorm:"type:decimal(10,4)" json:"tp2_pnl_pct,omitempty"`
	CreatedAt          time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null" json:"updated_at"`
	NotificationID     string     `gorm:"size:64" json:"notification_id,omitempty"`
}

// TableName specifies the table name for Signal.
func (Signal) TableName() string {
	return "signals"
}

// TradeRecord is the immutable closure history written once on full
// closure, copying the final values from the Signal plus the exit reason,
// hold time, and PnL (§3 "Trade Record").
type TradeRecord struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SignalID         int64     `gorm:"not null;index" json:"signal_id"`
	Instrument       string    `gorm:"size:20;not null;index" json:"instrument"`
	Direction        string    `gorm:"size:5;not null" json:"direction"`
	Entry            float64   `gorm:"type:decimal(20,8);not null" json:"entry"`
	Exit             float64   `gorm:"type:decimal(20,8);not null" json:"exit"`
	Stop             float64   `gorm:"type:decimal(20,8);not null" json:"stop"`
	TP1              float64   `gorm:"type:decimal(20,8);not null" json:"tp1"`
	TP2              float64   `gorm:"type:decimal(20,8);not null" json:"tp2"`
	ExitReason       string    `gorm:"size:32;not null" json:"exit_reason"`
	PnL              float64   `gorm:"type:decimal(20,8);not null" json:"pnl"`
	PnLPercent       float64   `gorm:"type:decimal(10,4);not null" json:"pnl_percent"`
	HoldTimeMinutes  float64   `gorm:"type:decimal(10,2);not null" json:"hold_time_minutes"`
	PartialClosed    bool      `json:"partial_closed"`
	TP1FillPrice     *float64  `gorm:"type:decimal(20,8)" json:"tp1_fill_price,omitempty"`
	TP1PnLPercent    *float64  `gorm:"type:decimal(10,4)" json:"tp1_pnl_percent,omitempty"`
	EntryTime        time.Time `gorm:"not null" json:"entry_time"`
	ExitTime         time.Time `gorm:"not null" json:"exit_time"`
	Status           string    `gorm:"size:10;not null" json:"status"`
}

// TableName specifies the table name for TradeRecord.
func (TradeRecord) TableName() string {
	return "trades"
}

// PerformanceMetric is an hourly aggregation row, out of core scope beyond
// its write schema (§6).
type PerformanceMetric struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Instrument      string    `gorm:"size:20;index" json:"instrument"`
	BucketHour      time.Time `gorm:"not null;index" json:"bucket_hour"`
	SignalsOpened   int       `json:"signals_opened"`
	SignalsClosed   int       `json:"signals_closed"`
	Wins            int       `json:"wins"`
	Losses          int       `json:"losses"`
	AvgPnLPercent   float64   `gorm:"type:decimal(10,4)" json:"avg_pnl_percent"`
	TotalPnLPercent float64   `gorm:"type:decimal(10,4)" json:"total_pnl_percent"`
}

// TableName specifies the table name for PerformanceMetric.
func (PerformanceMetric) TableName() string {
	return "performance_metrics"
}

// DailyStat is an hourly-refreshed daily aggregation row (§6 daily_stats).
type DailyStat struct {
	Day             time.Time `gorm:"primaryKey" json:"day"`
	Instrument      string    `gorm:"primaryKey;size:20" json:"instrument"`
	TotalSignals    int       `json:"total_signals"`
	Wins            int       `json:"wins"`
	Losses          int       `json:"losses"`
	WinRatePct      float64   `gorm:"type:decimal(6,2)" json:"win_rate_pct"`
	AvgPnLPercent   float64   `gorm:"type:decimal(10,4)" json:"avg_pnl_percent"`
	TotalPnLPercent float64   `gorm:"type:decimal(10,4)" json:"total_pnl_percent"`
}

// TableName specifies the table name for DailyStat.
func (DailyStat) TableName() string {
	return "daily_stats"
}
