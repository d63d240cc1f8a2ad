package engine

import "math"

// validatorConfig holds the spec's configured thresholds (§6).
type validatorConfig struct {
	ImbalanceEntryThreshold float64 // 0.15
	MinLargeTrades          int     // 2
	VolumeConfirmationMult  float64 // 1.5
	MaxStopPct              float64 // 1.5
	MinRR                   float64 // 0.8
	PriorityHigh            float64 // 0.25
	PriorityMedium          float64 // 0.20
}

func defaultValidatorConfig() validatorConfig {
	return validatorConfig{
		ImbalanceEntryThreshold: 0.15,
		MinLargeTrades:          2,
		VolumeConfirmationMult:  1.5,
		MaxStopPct:              1.5,
		MinRR:                   0.8,
		PriorityHigh:            0.25,
		PriorityMedium:          0.20,
	}
}

// Validator enforces minimum thresholds and computes a 0-100 quality
// score plus a priority label (§4.7).
type Validator struct {
	cfg validatorConfig
}

// NewValidator builds a validator with the spec's default configuration.
func NewValidator() *Validator { return &Validator{cfg: defaultValidatorConfig()} }

// CandidateSignal bundles everything the validator needs to judge one
// proposed entry.
type CandidateSignal struct {
	Direction       Direction
	Entry           float64
	Imbalance       float64
	LargeTradeSide  int // large trades counted on this signal's side
	VolumeIntensity float64
	Placement       Placement
	LevelsCount     int
}

// Validate enforces the hard-rejects, computes the quality score, and
// assigns a priority (§4.7).
func (v *Validator) Validate(c CandidateSignal) ValidationResult {
	cfg := v.cfg
	var reasons []string

	absImbalance := math.Abs(c.Imbalance)
	if absImbalance < cfg.ImbalanceEntryThreshold {
		reasons = append(reasons, "imbalance below entry threshold")
	}
	if c.LargeTradeSide < cfg.MinLargeTrades {
		reasons = append(reasons, "insufficient large-trade count on signal side")
	}
	if c.VolumeIntensity < cfg.VolumeConfirmationMult {
		reasons = append(reasons, "volume intensity below confirmation multiplier")
	}
	if !c.Placement.Valid {
		reasons = append(reasons, "invalid SL/TP placement: "+c.Placement.RejectReason)
	}
	if c.LevelsCount == 0 {
		reasons = append(reasons, "zero significant levels found")
	}

	var rr float64
	if c.Placement.Valid {
		risk := math.Abs(c.Entry - c.Placement.Stop)
		reward := math.Abs(c.Placement.TP1 - c.Entry)
		if risk > 0 {
			rr = reward / risk
		}
		if rr < 0.8 {
			reasons = append(reasons, "risk/reward at TP1 below minimum")
		}
	}

	if len(reasons) > 0 {
		return ValidationResult{Accepted: false, Reasons: reasons}
	}

	priority := PriorityLow
	switch {
	case absImbalance >= cfg.PriorityHigh:
		priority = PriorityHigh
	case absImbalance >= cfg.PriorityMedium:
		priority = PriorityMedium
	}

	quality := scoreImbalance(absImbalance) +
		scoreLargeTrades(c.LargeTradeSide) +
		scoreVolumeIntensity(c.VolumeIntensity) +
		scoreRR(rr) +
		scoreLevelsClarity(c.LevelsCount)

	return ValidationResult{Accepted: true, Quality: quality, Priority: priority}
}

func scoreImbalance(abs float64) float64 {
	switch {
	case abs >= 0.25:
		return 30
	case abs >= 0.20:
		return 25
	case abs >= 0.15:
		return 15
	default:
		return math.Max(0, 60*abs)
	}
}

func scoreLargeTrades(count int) float64 {
	switch {
	case count >= 5:
		return 20
	case count >= 3:
		return 15
	case count >= 2:
		return 10
	default:
		return 5 * float64(count)
	}
}

func scoreVolumeIntensity(v float64) float64 {
	switch {
	case v >= 3.0:
		return 20
	case v >= 2.0:
		return 15
	case v >= 1.5:
		return 10
	default:
		return math.Max(0, 20*(v-1))
	}
}

func scoreRR(rr float64) float64 {
	switch {
	case rr >= 2.0:
		return 20
	case rr >= 1.5:
		return 15
	case rr >= 1.0:
		return 10
	case rr >= 0.8:
		return 5
	default:
		return 0
	}
}

func scoreLevelsClarity(count int) float64 {
	switch {
	case count >= 5:
		return 10
	case count >= 3:
		return 7
	case count >= 1:
		return 5
	default:
		return 0
	}
}
