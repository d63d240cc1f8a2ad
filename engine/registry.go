package engine

import (
	"context"
	"log"
	"sync"

	"perpsignal/cache"
	"perpsignal/database"
)

// Registry maps instrument symbols to their InstrumentHandler, creating
// handlers lazily on first frame and removing them when the universe
// rescan reports a symbol inactive (SPEC_FULL.md §4.0).
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*InstrumentHandler

	snapshotCache *cache.SnapshotCache
	klines        *database.KlineRepository
	volatility    *VolatilityEstimator
	persistence   *PersistenceTracker
	emitter       *Emitter
	cfg           InstrumentConfig
}

// NewRegistry builds an empty registry wired to the shared process-wide
// components every handler needs.
func NewRegistry(
	snapshotCache *cache.SnapshotCache,
	klines *database.KlineRepository,
	volatility *VolatilityEstimator,
	persistence *PersistenceTracker,
	emitter *Emitter,
	cfg InstrumentConfig,
) *Registry {
	return &Registry{
		handlers:      make(map[string]*InstrumentHandler),
		snapshotCache: snapshotCache,
		klines:        klines,
		volatility:    volatility,
		persistence:   persistence,
		emitter:       emitter,
		cfg:           cfg,
	}
}

// Get returns the handler for instrument, creating it on first access.
func (r *Registry) Get(instrument string) *InstrumentHandler {
	r.mu.RLock()
	h, ok := r.handlers[instrument]
	r.mu.RUnlock()
	if ok {
		return h
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handlers[instrument]; ok {
		return h
	}
	h = NewInstrumentHandler(instrument, r.snapshotCache, r.klines, r.volatility, r.persistence, r.emitter, r.cfg)
	r.handlers[instrument] = h
	log.Printf("📈 activated instrument handler for %s", instrument)
	return h
}

// Reconcile removes handlers for instruments no longer in the active
// set reported by the universe rescan (§4.8 inactive-instrument
// cleanup, §3 "Ownership & lifecycle").
func (r *Registry) Reconcile(active []string) {
	activeSet := make(map[string]struct{}, len(active))
	for _, s := range active {
		activeSet[s] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for instrument, h := range r.handlers {
		if _, ok := activeSet[instrument]; !ok {
			h.Close()
			delete(r.handlers, instrument)
			log.Printf("📉 deactivated instrument handler for %s", instrument)
		}
	}
	r.persistence.Prune(activeSet)
}

// EvaluateAll runs the entry-persistence tick for every active handler;
// called on the 100 ms cadence alongside the Fast Tracker's tick (§5).
func (r *Registry) EvaluateAll(ctx context.Context) {
	r.mu.RLock()
	handlers := make([]*InstrumentHandler, 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		h.EvaluateEntry(ctx)
	}
}
