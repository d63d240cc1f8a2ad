package engine

import "testing"

// baseLongLevels keeps the stop within max_stop_pct (1.5%) of a 100 entry
// while leaving enough reward distance to clear min_rr (0.8).
func baseLongLevels() LevelsResult {
	return LevelsResult{
		Supports:            []Level{{Price: 99}, {Price: 90}},
		Resistances:         []Level{{Price: 102}, {Price: 105}},
		StrongestSupport:    Level{Price: 99},
		StrongestResistance: Level{Price: 102},
	}
}

func TestSLTPPlacer_PlaceLong_ValidPlacement(t *testing.T) {
	p := NewSLTPPlacer()
	placement := p.Place(Long, 100, baseLongLevels(), 0.2)

	if !placement.Valid {
		t.Fatalf("expected a valid placement, got reject reason %q", placement.RejectReason)
	}
	if placement.Stop != 99-1.5*0.2 {
		t.Errorf("stop = %v, want %v", placement.Stop, 99-1.5*0.2)
	}
	if placement.TP1 <= 100 || placement.TP1 >= 102 {
		t.Errorf("tp1 = %v, want strictly between entry and nearest resistance", placement.TP1)
	}
}

func TestSLTPPlacer_PlaceLong_RejectsZeroLevels(t *testing.T) {
	p := NewSLTPPlacer()
	placement := p.Place(Long, 100, LevelsResult{}, 1.0)
	if placement.Valid {
		t.Fatal("expected rejection with zero significant levels")
	}
	if placement.RejectReason != "zero significant levels found" {
		t.Errorf("unexpected reject reason: %q", placement.RejectReason)
	}
}

func TestSLTPPlacer_PlaceLong_RejectsStopBeyondMaxPct(t *testing.T) {
	p := NewSLTPPlacer()
	levels := baseLongLevels()
	// A huge ATR pushes the stop distance well past max_stop_pct (1.5%).
	placement := p.Place(Long, 100, levels, 50.0)
	if placement.Valid {
		t.Fatal("expected rejection for stop distance exceeding max_stop_pct")
	}
	if placement.RejectReason != "stop distance exceeds max_stop_pct" {
		t.Errorf("unexpected reject reason: %q", placement.RejectReason)
	}
}

func TestSLTPPlacer_PlaceLong_SingleResistanceFallsBackForTP2(t *testing.T) {
	p := NewSLTPPlacer()
	levels := baseLongLevels()
	levels.Resistances = []Level{{Price: 102}}
	placement := p.Place(Long, 100, levels, 0.2)

	if !placement.Valid {
		t.Fatalf("expected valid placement, got reject reason %q", placement.RejectReason)
	}
	wantTP2 := 100 + 1.5*(placement.TP1-100)
	if placement.TP2 != wantTP2 {
		t.Errorf("tp2 fallback = %v, want %v", placement.TP2, wantTP2)
	}
}

func TestSLTPPlacer_PlaceShort_ValidPlacement(t *testing.T) {
	p := NewSLTPPlacer()
	levels := LevelsResult{
		Supports:            []Level{{Price: 98}, {Price: 95}},
		Resistances:         []Level{{Price: 101}, {Price: 103}},
		StrongestSupport:    Level{Price: 98},
		StrongestResistance: Level{Price: 101},
	}
	placement := p.Place(Short, 100, levels, 0.2)

	if !placement.Valid {
		t.Fatalf("expected a valid placement, got reject reason %q", placement.RejectReason)
	}
	if placement.Stop != 101+1.5*0.2 {
		t.Errorf("stop = %v, want %v", placement.Stop, 101+1.5*0.2)
	}
	if placement.TP1 >= 100 || placement.TP1 <= 98 {
		t.Errorf("tp1 = %v, want strictly between nearest support and entry", placement.TP1)
	}
}

func TestSLTPPlacer_PlaceLong_RejectsBelowMinRR(t *testing.T) {
	p := NewSLTPPlacer()
	// Risk (1.45%) stays under max_stop_pct, reward (0.798%) clears
	// min_tp_pct, but the resulting R/R (~0.55) still misses min_rr (0.8).
	levels := LevelsResult{
		Supports:            []Level{{Price: 99}},
		Resistances:         []Level{{Price: 100.84}},
		StrongestSupport:    Level{Price: 99},
		StrongestResistance: Level{Price: 100.84},
	}
	placement := p.Place(Long, 100, levels, 0.3)
	if placement.Valid {
		t.Fatalf("expected rejection, got valid placement %+v", placement)
	}
	if placement.RejectReason != "risk/reward at TP1 below min_rr" {
		t.Errorf("unexpected reject reason: %q", placement.RejectReason)
	}
}
