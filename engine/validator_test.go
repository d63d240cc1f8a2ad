package engine

import "testing"

func acceptableCandidate() CandidateSignal {
	return CandidateSignal{
		Direction:       Long,
		Entry:           100,
		Imbalance:       0.30,
		LargeTradeSide:  5,
		VolumeIntensity: 3.0,
		Placement: Placement{
			Valid: true,
			Stop:  98,
			TP1:   104,
		},
		LevelsCount: 5,
	}
}

func TestValidator_Validate_AcceptsStrongCandidate(t *testing.T) {
	v := NewValidator()
	result := v.Validate(acceptableCandidate())

	if !result.Accepted {
		t.Fatalf("expected acceptance, got reasons %v", result.Reasons)
	}
	if result.Priority != PriorityHigh {
		t.Errorf("priority = %v, want HIGH for 0.30 imbalance", result.Priority)
	}
	if result.Quality != 100 {
		t.Errorf("quality = %v, want max score 100 for a maxed-out candidate", result.Quality)
	}
}

func TestValidator_Validate_RejectsWeakImbalance(t *testing.T) {
	v := NewValidator()
	c := acceptableCandidate()
	c.Imbalance = 0.05
	result := v.Validate(c)

	if result.Accepted {
		t.Fatal("expected rejection for imbalance below entry threshold")
	}
	if len(result.Reasons) != 1 || result.Reasons[0] != "imbalance below entry threshold" {
		t.Errorf("unexpected reasons: %v", result.Reasons)
	}
}

func TestValidator_Validate_RejectsInsufficientLargeTrades(t *testing.T) {
	v := NewValidator()
	c := acceptableCandidate()
	c.LargeTradeSide = 1
	result := v.Validate(c)

	if result.Accepted {
		t.Fatal("expected rejection for insufficient large-trade count")
	}
}

func TestValidator_Validate_RejectsInvalidPlacement(t *testing.T) {
	v := NewValidator()
	c := acceptableCandidate()
	c.Placement = Placement{Valid: false, RejectReason: "zero significant levels found"}
	result := v.Validate(c)

	if result.Accepted {
		t.Fatal("expected rejection for invalid SL/TP placement")
	}
}

func TestValidator_Validate_RejectsLowRR(t *testing.T) {
	v := NewValidator()
	c := acceptableCandidate()
	c.Placement = Placement{Valid: true, Stop: 99, TP1: 100.3} // risk 1, reward 0.3 -> rr 0.3
	result := v.Validate(c)

	if result.Accepted {
		t.Fatal("expected rejection for risk/reward below minimum")
	}
}

func TestValidator_Validate_MediumPriorityBand(t *testing.T) {
	v := NewValidator()
	c := acceptableCandidate()
	c.Imbalance = 0.22
	result := v.Validate(c)

	if !result.Accepted {
		t.Fatalf("expected acceptance, got reasons %v", result.Reasons)
	}
	if result.Priority != PriorityMedium {
		t.Errorf("priority = %v, want MEDIUM for 0.22 imbalance", result.Priority)
	}
}

func TestScoreLadders(t *testing.T) {
	if got := scoreImbalance(0.30); got != 30 {
		t.Errorf("scoreImbalance(0.30) = %v, want 30", got)
	}
	if got := scoreLargeTrades(10); got != 20 {
		t.Errorf("scoreLargeTrades(10) = %v, want 20", got)
	}
	if got := scoreVolumeIntensity(3.5); got != 20 {
		t.Errorf("scoreVolumeIntensity(3.5) = %v, want 20", got)
	}
	if got := scoreRR(2.5); got != 20 {
		t.Errorf("scoreRR(2.5) = %v, want 20", got)
	}
	if got := scoreLevelsClarity(5); got != 10 {
		t.Errorf("scoreLevelsClarity(5) = %v, want 10", got)
	}
}
