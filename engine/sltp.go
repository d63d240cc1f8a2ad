package engine

import "fmt"

// sltpConfig holds the configured thresholds governing placement and
// rejection (§6 "max_stop_pct", "min_tp_pct", "min_rr").
type sltpConfig struct {
	ATRStopBuffer float64 // 1.5
	TP1Fraction   float64 // 0.95
	TP2Fallback   float64 // 1.5
	MaxStopPct    float64 // 1.5
	MinTPPct      float64 // 0.50
	MinRR         float64 // 0.8
}

// defaultSLTPConfig returns the spec's configured defaults (§6).
func defaultSLTPConfig() sltpConfig {
	return sltpConfig{
		ATRStopBuffer: 1.5,
		TP1Fraction:   0.95,
		TP2Fallback:   1.5,
		MaxStopPct:    1.5,
		MinTPPct:      0.50,
		MinRR:         0.8,
	}
}

// SLTPPlacer derives stop and take-profit levels anchored on the
// strongest support/resistance clusters and ATR (§4.6).
type SLTPPlacer struct {
	cfg sltpConfig
}

// NewSLTPPlacer builds a placer with the spec's default configuration.
func NewSLTPPlacer() *SLTPPlacer { return &SLTPPlacer{cfg: defaultSLTPConfig()} }

// Place computes the placement for a candidate entry, given the levels
// and ATR already derived upstream.
func (p *SLTPPlacer) Place(direction Direction, entry float64, levels LevelsResult, atr float64) Placement {
	cfg := p.cfg

	if direction == Long {
		return p.placeLong(entry, levels, atr, cfg)
	}
	return p.placeShort(entry, levels, atr, cfg)
}

func (p *SLTPPlacer) placeLong(entry float64, levels LevelsResult, atr float64, cfg sltpConfig) Placement {
	if len(levels.Supports) == 0 || len(levels.Resistances) == 0 {
		return Placement{RejectReason: "zero significant levels found"}
	}

	support := levels.StrongestSupport
	stop := support.Price - cfg.ATRStopBuffer*atr
	stopReason := fmt.Sprintf("1.5xATR below strongest support %.4f", support.Price)

	if stop >= entry {
		return Placement{RejectReason: "stop on wrong side of entry", SupportAnchor: support.Price}
	}
	if stopPct := (entry - stop) / entry * 100; stopPct > cfg.MaxStopPct {
		return Placement{RejectReason: "stop distance exceeds max_stop_pct", SupportAnchor: support.Price}
	}

	nearestResistance := levels.Resistances[0]
	tp1 := entry + cfg.TP1Fraction*(nearestResistance.Price-entry)
	tp1Reason := fmt.Sprintf("95%% of distance to nearest resistance %.4f", nearestResistance.Price)

	var tp2 float64
	var tp2Reason string
	if len(levels.Resistances) > 1 {
		second := levels.Resistances[1]
		tp2 = entry + cfg.TP1Fraction*(second.Price-entry)
		tp2Reason = fmt.Sprintf("95%% of distance to second resistance %.4f", second.Price)
	} else {
		tp2 = entry + cfg.TP2Fallback*(tp1-entry)
		tp2Reason = "fallback: 1.5x reward at TP1 (single resistance cluster)"
	}

	risk := entry - stop
	reward := tp1 - entry
	if tp1Pct := reward / entry * 100; tp1Pct < cfg.MinTPPct {
		return Placement{RejectReason: "TP1 distance below min_tp_pct", SupportAnchor: support.Price, ResistanceAnchor: nearestResistance.Price}
	}
	var rr float64
	if risk > 0 {
		rr = reward / risk
	}
	if rr < cfg.MinRR {
		return Placement{RejectReason: "risk/reward at TP1 below min_rr", SupportAnchor: support.Price, ResistanceAnchor: nearestResistance.Price}
	}

	return Placement{
		Stop: stop, StopReason: stopReason,
		TP1: tp1, TP1Reason: tp1Reason,
		TP2: tp2, TP2Reason: tp2Reason,
		SupportAnchor:    support.Price,
		ResistanceAnchor: nearestResistance.Price,
		Valid:            true,
	}
}

func (p *SLTPPlacer) placeShort(entry float64, levels LevelsResult, atr float64, cfg sltpConfig) Placement {
	if len(levels.Supports) == 0 || len(levels.Resistances) == 0 {
		return Placement{RejectReason: "zero significant levels found"}
	}

	resistance := levels.StrongestResistance
	stop := resistance.Price + cfg.ATRStopBuffer*atr
	stopReason := fmt.Sprintf("1.5xATR above strongest resistance %.4f", resistance.Price)

	if stop <= entry {
		return Placement{RejectReason: "stop on wrong side of entry", ResistanceAnchor: resistance.Price}
	}
	if stopPct := (stop - entry) / entry * 100; stopPct > cfg.MaxStopPct {
		return Placement{RejectReason: "stop distance exceeds max_stop_pct", ResistanceAnchor: resistance.Price}
	}

	nearestSupport := levels.Supports[0]
	tp1 := entry - cfg.TP1Fraction*(entry-nearestSupport.Price)
	tp1Reason := fmt.Sprintf("95%% of distance to nearest support %.4f", nearestSupport.Price)

	var tp2 float64
	var tp2Reason string
	if len(levels.Supports) > 1 {
		second := levels.Supports[1]
		tp2 = entry - cfg.TP1Fraction*(entry-second.Price)
		tp2Reason = fmt.Sprintf("95%% of distance to second support %.4f", second.Price)
	} else {
		tp2 = entry - cfg.TP2Fallback*(entry-tp1)
		tp2Reason = "fallback: 1.5x reward at TP1 (single support cluster)"
	}

	risk := stop - entry
	reward := entry - tp1
	if tp1Pct := reward / entry * 100; tp1Pct < cfg.MinTPPct {
		return Placement{RejectReason: "TP1 distance below min_tp_pct", ResistanceAnchor: resistance.Price, SupportAnchor: nearestSupport.Price}
	}
	var rr float64
	if risk > 0 {
		rr = reward / risk
	}
	if rr < cfg.MinRR {
		return Placement{RejectReason: "risk/reward at TP1 below min_rr", ResistanceAnchor: resistance.Price, SupportAnchor: nearestSupport.Price}
	}

	return Placement{
		Stop: stop, StopReason: stopReason,
		TP1: tp1, TP1Reason: tp1Reason,
		TP2: tp2, TP2Reason: tp2Reason,
		SupportAnchor:    nearestSupport.Price,
		ResistanceAnchor: resistance.Price,
		Valid:            true,
	}
}
