package engine

import "sync"

// persistenceEntrySamples is the count of consecutive 100 ms samples the
// full confluence must hold before a signal proposal fires (§6
// "persistence_entry_samples (50)").
const persistenceEntrySamples = 50

// Preconditions is the four-way confluence gate evaluated each tick
// (§4.8): imbalance threshold met, large-trade count, volume intensity,
// and price-vs-VWAP for the candidate direction.
type Preconditions struct {
	ImbalanceMet        bool
	LargeTradeCountMet  bool
	VolumeIntensityMet  bool
	PriceVsVWAPMet      bool
}

// Satisfied reports whether all four preconditions hold.
func (p Preconditions) Satisfied() bool {
	return p.ImbalanceMet && p.LargeTradeCountMet && p.VolumeIntensityMet && p.PriceVsVWAPMet
}

// PersistenceTracker maintains a per-instrument counter that must reach
// persistenceEntrySamples consecutive satisfying ticks before a signal is
// proposed (§4.8). Counters are process-local (§9).
type PersistenceTracker struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewPersistenceTracker builds an empty tracker.
func NewPersistenceTracker() *PersistenceTracker {
	return &PersistenceTracker{counters: make(map[string]int)}
}

// Tick advances the counter for instrument given this sample's
// preconditions, returning true exactly when the counter reaches the
// threshold (at which point it is reset to zero so the next proposal
// requires a fresh run).
func (t *PersistenceTracker) Tick(instrument string, preconditions Preconditions) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !preconditions.Satisfied() {
		t.counters[instrument] = 0
		return false
	}

	t.counters[instrument]++
	if t.counters[instrument] >= persistenceEntrySamples {
		t.counters[instrument] = 0
		return true
	}
	return false
}

// Count returns the current counter value for instrument, mainly for
// tests and metrics.
func (t *PersistenceTracker) Count(instrument string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters[instrument]
}

// Remove drops the counter for an instrument that left the active set
// (§3 "Ownership & lifecycle").
func (t *PersistenceTracker) Remove(instrument string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counters, instrument)
}

// Prune drops counters for every instrument not present in active.
func (t *PersistenceTracker) Prune(active map[string]struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for instrument := range t.counters {
		if _, ok := active[instrument]; !ok {
			delete(t.counters, instrument)
		}
	}
}
