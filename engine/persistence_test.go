package engine

import "testing"

func fullPreconditions() Preconditions {
	return Preconditions{ImbalanceMet: true, LargeTradeCountMet: true, VolumeIntensityMet: true, PriceVsVWAPMet: true}
}

func TestPersistenceTracker_Tick_FiresAtThreshold(t *testing.T) {
	tr := NewPersistenceTracker()
	for i := 0; i < persistenceEntrySamples-1; i++ {
		if tr.Tick("BTCUSDT", fullPreconditions()) {
			t.Fatalf("fired early at tick %d", i+1)
		}
	}
	if !tr.Tick("BTCUSDT", fullPreconditions()) {
		t.Fatalf("expected fire on the %dth consecutive satisfying tick", persistenceEntrySamples)
	}
	if got := tr.Count("BTCUSDT"); got != 0 {
		t.Errorf("counter should reset to 0 after firing, got %d", got)
	}
}

func TestPersistenceTracker_Tick_ResetsOnMiss(t *testing.T) {
	tr := NewPersistenceTracker()
	for i := 0; i < 10; i++ {
		tr.Tick("ETHUSDT", fullPreconditions())
	}
	if got := tr.Count("ETHUSDT"); got != 10 {
		t.Fatalf("expected counter at 10, got %d", got)
	}

	missed := fullPreconditions()
	missed.ImbalanceMet = false
	tr.Tick("ETHUSDT", missed)

	if got := tr.Count("ETHUSDT"); got != 0 {
		t.Errorf("expected counter reset to 0 after a missed precondition, got %d", got)
	}
}

func TestPersistenceTracker_InstrumentsAreIsolated(t *testing.T) {
	tr := NewPersistenceTracker()
	tr.Tick("BTCUSDT", fullPreconditions())
	tr.Tick("BTCUSDT", fullPreconditions())

	if got := tr.Count("ETHUSDT"); got != 0 {
		t.Errorf("expected untouched instrument to have a zero counter, got %d", got)
	}
	if got := tr.Count("BTCUSDT"); got != 2 {
		t.Errorf("expected BTCUSDT counter at 2, got %d", got)
	}
}

func TestPersistenceTracker_Prune(t *testing.T) {
	tr := NewPersistenceTracker()
	tr.Tick("BTCUSDT", fullPreconditions())
	tr.Tick("ETHUSDT", fullPreconditions())

	tr.Prune(map[string]struct{}{"BTCUSDT": {}})

	if got := tr.Count("ETHUSDT"); got != 0 {
		t.Errorf("expected ETHUSDT counter pruned to 0, got %d", got)
	}
	if got := tr.Count("BTCUSDT"); got != 1 {
		t.Errorf("expected BTCUSDT counter to survive prune at 1, got %d", got)
	}
}

func TestPreconditions_Satisfied(t *testing.T) {
	if !fullPreconditions().Satisfied() {
		t.Fatal("expected all-true preconditions to be satisfied")
	}
	partial := fullPreconditions()
	partial.VolumeIntensityMet = false
	if partial.Satisfied() {
		t.Fatal("expected one false precondition to fail Satisfied()")
	}
}
