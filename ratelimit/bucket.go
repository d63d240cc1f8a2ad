// Package ratelimit gates outbound REST calls by a token-bucket of
// configured weight per minute (§5 "Rate limits").
package ratelimit

import (
	"context"
	"log"
	"sync"

	"golang.org/x/time/rate"
)

// Gate wraps rate.Limiter configured from the exchange's documented REST
// weight-per-minute budget, and lowers its rate from server-reported
// used-weight headers when they exceed that budget.
type Gate struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	weightCap int
}

// NewGate builds a Gate for a weight-per-minute budget.
func NewGate(weightPerMinute int) *Gate {
	perSecond := rate.Limit(float64(weightPerMinute) / 60.0)
	return &Gate{
		limiter:   rate.NewLimiter(perSecond, weightPerMinute),
		weightCap: weightPerMinute,
	}
}

// Wait blocks until `weight` tokens are available or ctx is canceled.
func (g *Gate) Wait(ctx context.Context, weight int) error {
	return g.limiter.WaitN(ctx, weight)
}

// ReportUsedWeight lowers the gate's rate when the exchange's reported
// used-weight (e.g. an X-MBX-USED-WEIGHT-style response header) exceeds
// the configured per-minute budget by more than toleranceFraction. The
// gate keeps no count of its own spending to compare against, and a
// report below the budget never changes the rate.
func (g *Gate) ReportUsedWeight(usedWeight int, toleranceFraction float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	budget := float64(g.weightCap)
	observed := float64(usedWeight)
	if budget <= 0 {
		return
	}

	deviation := (observed - budget) / budget
	if deviation > toleranceFraction {
		corrected := rate.Limit((budget - observed) / 60.0)
		if corrected < 0 {
			corrected = 0
		}
		log.Printf("⚠️  REST used-weight %d exceeds budget %d by %.1f%%, tightening rate gate", usedWeight, g.weightCap, deviation*100)
		g.limiter.SetLimit(corrected)
	}
}
