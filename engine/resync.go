package engine

import (
	"context"
	"log"
	"time"

	"perpsignal/database"
)

// cacheSyncInterval is the resync cadence (§6 "cache_sync_interval (5 s)").
const cacheSyncInterval = 5 * time.Second

// Resynchronizer reloads the open-signal set from the store into the
// Fast Tracker's in-memory map every 5 s, discarding reversal counters
// for signals no longer open (§4.11).
type Resynchronizer struct {
	signals *database.SignalRepository
	tracker *FastTracker
}

// NewResynchronizer builds a resynchronizer wired to the tracker it
// refreshes.
func NewResynchronizer(signals *database.SignalRepository, tracker *FastTracker) *Resynchronizer {
	return &Resynchronizer{signals: signals, tracker: tracker}
}

// Run blocks, resyncing on a 5 s ticker until ctx is canceled.
func (r *Resynchronizer) Run(ctx context.Context) {
	r.syncOnce()

	ticker := time.NewTicker(cacheSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.syncOnce()
		}
	}
}

func (r *Resynchronizer) syncOnce() {
	signals, err := r.signals.GetOpenSignals()
	if err != nil {
		log.Printf("⚠️  resync: failed to load open signals: %v", err)
		return
	}
	r.tracker.Load(signals)
}
