package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"perpsignal/cache"
	"perpsignal/database"
	models "perpsignal/database/models_pkg"
	"perpsignal/notify"
)

// Exit-loop tuning constants (§6).
const (
	imbalanceReversalThreshold = 0.4
	persistenceReversalSamples = 75
	minHoldSeconds             = 30 * time.Second
)

// ExitKind tags the Fast Tracker's per-tick decision (§9 "Tagged
// variants for exit outcomes"). There is no inheritance: the batch
// commit pathway switches on Kind alone.
type ExitKind int

const (
	ExitNone ExitKind = iota
	ExitTP1Partial
	ExitTP2Full
	ExitStopBreakeven
	ExitStopFull
	ExitReversal
)

// ExitDecision is the tagged value produced by evaluating one open
// signal for one tick.
type ExitDecision struct {
	Kind      ExitKind
	NewStop   float64
	TP1PnL    float64
	TotalPnL  float64
	ExitPrice float64
}

// trackedSignal is the tracker's reflected, read-mostly copy of an open
// signal plus its in-process exit state (§3 "Ownership & lifecycle").
type trackedSignal struct {
	signal          models.Signal
	reversalCounter int
}

// FastTracker is the 100 ms exit loop of §4.10: it evaluates every open
// signal against the layered exit policy using the snapshot cache, and
// commits each signal's closure or partial as soon as it is decided.
type FastTracker struct {
	mu   sync.Mutex
	open map[int64]*trackedSignal

	cache   *cache.SnapshotCache
	signals *database.SignalRepository
	trades  *database.TradeRecordRepository
	bus     *notify.Bus
}

// NewFastTracker builds an empty tracker.
func NewFastTracker(snapshotCache *cache.SnapshotCache, signals *database.SignalRepository, trades *database.TradeRecordRepository, bus *notify.Bus) *FastTracker {
	return &FastTracker{
		open:    make(map[int64]*trackedSignal),
		cache:   snapshotCache,
		signals: signals,
		trades:  trades,
		bus:     bus,
	}
}

// Load seeds or replaces the tracker's reflected map, used by both the
// initial load and the Cache Resynchronizer's 5 s refresh.
func (f *FastTracker) Load(signals []models.Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()

	present := make(map[int64]struct{}, len(signals))
	for _, s := range signals {
		present[s.ID] = struct{}{}
		if existing, ok := f.open[s.ID]; ok {
			existing.signal = s
			continue
		}
		f.open[s.ID] = &trackedSignal{signal: s}
	}
	for id := range f.open {
		if _, ok := present[id]; !ok {
			delete(f.open, id)
		}
	}
}

// Tick evaluates every open signal once, applying the priority-ordered
// exit rules (§4.10). Each closure or partial is committed on its own
// conditional update as it is decided; closures from one tick are not
// grouped into a shared transaction.
func (f *FastTracker) Tick(ctx context.Context) {
	f.mu.Lock()
	ids := make([]int64, 0, len(f.open))
	for id := range f.open {
		ids = append(ids, id)
	}
	f.mu.Unlock()

	for _, id := range ids {
		f.evaluateOne(ctx, id)
	}
}

func (f *FastTracker) evaluateOne(ctx context.Context, id int64) {
	f.mu.Lock()
	tracked, ok := f.open[id]
	if !ok {
		f.mu.Unlock()
		return
	}
	signalCopy := tracked.signal
	f.mu.Unlock()

	var price cache.PriceValue
	found, err := f.cache.Get(ctx, cache.PriceKey(signalCopy.Instrument), &price)
	if err != nil || !found {
		return // absence => skip this tick, do not advance counters (§7)
	}
	var imbalance cache.ImbalanceValue
	found, err = f.cache.Get(ctx, cache.ImbalanceKey(signalCopy.Instrument), &imbalance)
	if err != nil || !found {
		return
	}

	decision := f.decide(tracked, price.Mid, imbalance.Imbalance)
	if decision.Kind == ExitNone {
		return
	}
	f.commit(id, decision)
}

// decide implements the fixed priority order TP2 -> TP1 -> SL -> reversal
// (§5 "Ordering guarantees").
func (f *FastTracker) decide(tracked *trackedSignal, mid, imbalance float64) ExitDecision {
	s := &tracked.signal
	long := s.Direction == string(Long)
	holdTime := time.Since(s.CreatedAt)

	// TP2: only from TP1_CLOSED.
	if s.PartialCloseStatus == string(PartialTP1Closed) {
		hit := (long && mid >= s.TP2) || (!long && mid <= s.TP2)
		if hit {
			reward2 := (s.TP2 - s.Entry) / s.Entry
			if !long {
				reward2 = -reward2
			}
			tp1PnL := 0.0
			if s.TP1PnLPct != nil {
				tp1PnL = *s.TP1PnLPct
			}
			total := tp1PnL + 0.5*reward2
			return ExitDecision{Kind: ExitTP2Full, TotalPnL: total, ExitPrice: mid}
		}
	}

	// TP1: only from NONE.
	if s.PartialCloseStatus == string(PartialNone) {
		hit := (long && mid >= s.TP1) || (!long && mid <= s.TP1)
		if hit {
			reward1 := (s.TP1 - s.Entry) / s.Entry
			if !long {
				reward1 = -reward1
			}
			tp1PnL := 0.5 * reward1
			return ExitDecision{Kind: ExitTP1Partial, NewStop: s.Entry, TP1PnL: tp1PnL, ExitPrice: mid}
		}
	}

	// Stop.
	stopHit := (long && mid <= s.CurrentStop) || (!long && mid >= s.CurrentStop)
	if stopHit {
		if s.PartialCloseStatus == string(PartialTP1Closed) {
			tp1PnL := 0.0
			if s.TP1PnLPct != nil {
				tp1PnL = *s.TP1PnLPct
			}
			return ExitDecision{Kind: ExitStopBreakeven, TotalPnL: tp1PnL, ExitPrice: mid}
		}
		pnl := (mid - s.Entry) / s.Entry
		if !long {
			pnl = -pnl
		}
		return ExitDecision{Kind: ExitStopFull, TotalPnL: pnl, ExitPrice: mid}
	}

	// Sustained reversal, layered.
	if holdTime < minHoldSeconds {
		return ExitDecision{Kind: ExitNone}
	}
	opposingSign := imbalance
	if long {
		opposingSign = -imbalance
	}
	reversed := opposingSign > imbalanceReversalThreshold
	if !reversed {
		tracked.reversalCounter = 0
		return ExitDecision{Kind: ExitNone}
	}
	tracked.reversalCounter++
	if tracked.reversalCounter >= persistenceReversalSamples {
		pnl := (mid - s.Entry) / s.Entry
		if !long {
			pnl = -pnl
		}
		return ExitDecision{Kind: ExitReversal, TotalPnL: pnl, ExitPrice: mid}
	}
	return ExitDecision{Kind: ExitNone}
}

// commit applies one decision via the store's conditional update, then
// updates the in-process map and fires notifications. Race losses
// (row already CLOSED) are logged and skipped, never treated as errors
// (§5, §7 "Race on closure").
func (f *FastTracker) commit(id int64, decision ExitDecision) {
	f.mu.Lock()
	tracked, ok := f.open[id]
	f.mu.Unlock()
	if !ok {
		return
	}
	s := tracked.signal

	switch decision.Kind {
	case ExitTP1Partial:
		updates := map[string]interface{}{
			"partial_close_status": string(PartialTP1Closed),
			"breakeven_moved":      true,
			"current_stop":         decision.NewStop,
			"tp1_fill_price":       decision.ExitPrice,
			"tp1_fill_time":        time.Now(),
			"tp1_pn_l_pct":         decision.TP1PnL,
		}
		updated, err := f.signals.UpdatePartial(id, updates)
		if err != nil {
			return
		}
		if !updated {
			fmt.Printf("⚠️  TP1 partial for signal %d skipped: signal is no longer OPEN\n", id)
			return
		}
		f.mu.Lock()
		tracked.signal.PartialCloseStatus = string(PartialTP1Closed)
		tracked.signal.CurrentStop = decision.NewStop
		tracked.signal.BreakevenMoved = true
		pnl := decision.TP1PnL
		tracked.signal.TP1PnLPct = &pnl
		f.mu.Unlock()

		f.bus.Publish(notify.Message{
			SignalID: id, Kind: "tp1_partial", Instrument: s.Instrument, Direction: s.Direction,
			Text:    fmt.Sprintf("TP1 hit at %.6f, stop moved to breakeven", decision.ExitPrice),
			ReplyTo: s.NotificationID,
		})

	default:
		f.closeFully(id, &s, decision)
	}
}

func (f *FastTracker) closeFully(id int64, s *models.Signal, decision ExitDecision) {
	reason := exitReason(decision.Kind)
	updates := map[string]interface{}{
		"partial_close_status": string(PartialFullyClosed),
	}
	if decision.Kind == ExitTP2Full {
		updates["tp2_fill_price"] = decision.ExitPrice
		updates["tp2_fill_time"] = time.Now()
		updates["tp2_pn_l_pct"] = decision.TotalPnL
	}

	closed, err := f.signals.CloseSignal(id, updates)
	if err != nil || !closed {
		return
	}

	f.mu.Lock()
	delete(f.open, id)
	f.mu.Unlock()

	holdMinutes := time.Since(s.CreatedAt).Minutes()
	record := &models.TradeRecord{
		SignalID:        id,
		Instrument:      s.Instrument,
		Direction:       s.Direction,
		Entry:           s.Entry,
		Exit:            decision.ExitPrice,
		Stop:            s.CurrentStop,
		TP1:             s.TP1,
		TP2:             s.TP2,
		ExitReason:      reason,
		PnL:             decision.TotalPnL * s.Entry,
		PnLPercent:      decision.TotalPnL * 100,
		HoldTimeMinutes: holdMinutes,
		PartialClosed:   s.PartialCloseStatus == string(PartialTP1Closed),
		TP1FillPrice:    s.TP1FillPrice,
		TP1PnLPercent:   s.TP1PnLPct,
		EntryTime:       s.CreatedAt,
		ExitTime:        time.Now(),
		Status:          "CLOSED",
	}
	if err := f.trades.SaveTradeRecord(record); err != nil {
		fmt.Printf("⚠️  failed to write trade record for signal %d: %v\n", id, err)
	}

	f.bus.Publish(notify.Message{
		SignalID: id, Kind: "closed", Instrument: s.Instrument, Direction: s.Direction,
		Text:    fmt.Sprintf("%s at %.6f, pnl=%.3f%%", reason, decision.ExitPrice, decision.TotalPnL*100),
		ReplyTo: s.NotificationID,
	})
}

func exitReason(kind ExitKind) string {
	switch kind {
	case ExitTP2Full:
		return "TAKE_PROFIT"
	case ExitStopBreakeven:
		return "STOP_LOSS_BREAKEVEN"
	case ExitStopFull:
		return "STOP_LOSS"
	case ExitReversal:
		return "IMBALANCE_REVERSED"
	default:
		return "UNKNOWN"
	}
}
