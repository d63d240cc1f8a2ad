package engine

import (
	"testing"
	"time"

	models "perpsignal/database/models_pkg"
)

func newTrackedLong() *trackedSignal {
	return &trackedSignal{
		signal: models.Signal{
			Direction:          string(Long),
			Entry:              100,
			CurrentStop:        98,
			TP1:                102,
			TP2:                105,
			PartialCloseStatus: string(PartialNone),
			CreatedAt:          time.Now().Add(-time.Hour),
		},
	}
}

func TestFastTracker_Decide_TP1HitFromNone(t *testing.T) {
	f := &FastTracker{}
	tracked := newTrackedLong()

	decision := f.decide(tracked, 102.5, 0)
	if decision.Kind != ExitTP1Partial {
		t.Fatalf("expected ExitTP1Partial, got %v", decision.Kind)
	}
	if decision.NewStop != 100 {
		t.Errorf("expected stop moved to breakeven entry 100, got %v", decision.NewStop)
	}
	if decision.TP1PnL <= 0 {
		t.Errorf("expected a positive TP1 pnl, got %v", decision.TP1PnL)
	}
}

func TestFastTracker_Decide_TP2OnlyFromTP1Closed(t *testing.T) {
	f := &FastTracker{}
	tracked := newTrackedLong()
	tracked.signal.PartialCloseStatus = string(PartialNone)

	// Price beyond TP2 but still NONE: must not fire TP2, falls through to TP1 check.
	decision := f.decide(tracked, 106, 0)
	if decision.Kind != ExitTP1Partial {
		t.Fatalf("expected TP1 to take priority when still NONE, got %v", decision.Kind)
	}
}

func TestFastTracker_Decide_TP2HitAfterTP1Closed(t *testing.T) {
	f := &FastTracker{}
	tracked := newTrackedLong()
	tp1pnl := 0.01
	tracked.signal.PartialCloseStatus = string(PartialTP1Closed)
	tracked.signal.TP1PnLPct = &tp1pnl
	tracked.signal.CurrentStop = 100 // moved to breakeven already

	decision := f.decide(tracked, 106, 0)
	if decision.Kind != ExitTP2Full {
		t.Fatalf("expected ExitTP2Full, got %v", decision.Kind)
	}
	if decision.TotalPnL <= tp1pnl {
		t.Errorf("expected total pnl to add TP2 leg on top of tp1pnl, got %v", decision.TotalPnL)
	}
}

func TestFastTracker_Decide_StopFullFromNone(t *testing.T) {
	f := &FastTracker{}
	tracked := newTrackedLong()

	decision := f.decide(tracked, 97, 0)
	if decision.Kind != ExitStopFull {
		t.Fatalf("expected ExitStopFull, got %v", decision.Kind)
	}
	if decision.TotalPnL >= 0 {
		t.Errorf("expected a negative pnl on a losing stop, got %v", decision.TotalPnL)
	}
}

func TestFastTracker_Decide_StopBreakevenAfterTP1(t *testing.T) {
	f := &FastTracker{}
	tracked := newTrackedLong()
	tp1pnl := 0.01
	tracked.signal.PartialCloseStatus = string(PartialTP1Closed)
	tracked.signal.TP1PnLPct = &tp1pnl
	tracked.signal.CurrentStop = 100

	decision := f.decide(tracked, 100, 0)
	if decision.Kind != ExitStopBreakeven {
		t.Fatalf("expected ExitStopBreakeven, got %v", decision.Kind)
	}
	if decision.TotalPnL != tp1pnl {
		t.Errorf("expected total pnl to equal the banked tp1 pnl, got %v want %v", decision.TotalPnL, tp1pnl)
	}
}

func TestFastTracker_Decide_NoExitBeforeMinHold(t *testing.T) {
	f := &FastTracker{}
	tracked := newTrackedLong()
	tracked.signal.CreatedAt = time.Now() // just opened, inside minHoldSeconds

	decision := f.decide(tracked, 100.5, -0.9) // strong opposing imbalance
	if decision.Kind != ExitNone {
		t.Fatalf("expected no exit before min hold time elapses, got %v", decision.Kind)
	}
}

func TestFastTracker_Decide_ReversalRequiresSustainedSamples(t *testing.T) {
	f := &FastTracker{}
	tracked := newTrackedLong()

	for i := 0; i < persistenceReversalSamples-1; i++ {
		decision := f.decide(tracked, 100.5, -0.9)
		if decision.Kind != ExitNone {
			t.Fatalf("expected no exit before sample threshold, fired early at sample %d", i)
		}
	}
	decision := f.decide(tracked, 100.5, -0.9)
	if decision.Kind != ExitReversal {
		t.Fatalf("expected ExitReversal once sample threshold reached, got %v", decision.Kind)
	}
}

func TestFastTracker_Decide_ReversalCounterResetsOnNonReversingTick(t *testing.T) {
	f := &FastTracker{}
	tracked := newTrackedLong()

	f.decide(tracked, 100.5, -0.9)
	f.decide(tracked, 100.5, -0.9)
	if tracked.reversalCounter != 2 {
		t.Fatalf("expected counter to accumulate, got %d", tracked.reversalCounter)
	}

	f.decide(tracked, 100.5, 0) // imbalance back to neutral, breaks the streak
	if tracked.reversalCounter != 0 {
		t.Errorf("expected reversal counter reset on a non-reversing tick, got %d", tracked.reversalCounter)
	}
}

func TestFastTracker_Decide_ShortDirectionMirrorsLogic(t *testing.T) {
	f := &FastTracker{}
	tracked := &trackedSignal{
		signal: models.Signal{
			Direction:          string(Short),
			Entry:              100,
			CurrentStop:        102,
			TP1:                98,
			TP2:                95,
			PartialCloseStatus: string(PartialNone),
			CreatedAt:          time.Now().Add(-time.Hour),
		},
	}

	decision := f.decide(tracked, 97.5, 0)
	if decision.Kind != ExitTP1Partial {
		t.Fatalf("expected short TP1 hit below TP1 level, got %v", decision.Kind)
	}
	if decision.TP1PnL <= 0 {
		t.Errorf("expected a positive pnl for a winning short TP1, got %v", decision.TP1PnL)
	}
}

func TestExitReason_MapsEachKind(t *testing.T) {
	cases := []struct {
		kind ExitKind
		want string
	}{
		{ExitTP2Full, "TAKE_PROFIT"},
		{ExitStopBreakeven, "STOP_LOSS_BREAKEVEN"},
		{ExitStopFull, "STOP_LOSS"},
		{ExitReversal, "IMBALANCE_REVERSED"},
		{ExitNone, "UNKNOWN"},
	}
	for _, c := range cases {
		if got := exitReason(c.kind); got != c.want {
			t.Errorf("exitReason(%v) = %q, want %q", c.kind, got, c.want)
		}
	}
}
