package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestGate_Wait_AllowsWithinBudget(t *testing.T) {
	g := NewGate(1200)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := g.Wait(ctx, 1); err != nil {
		t.Fatalf("expected a single weight-1 call to pass immediately, got %v", err)
	}
}

func TestGate_Wait_RejectsOversizedBurst(t *testing.T) {
	g := NewGate(60)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Burst size equals the bucket capacity (weightPerMinute); requesting
	// more than that in one call can never be satisfied and should fail
	// fast rather than hang.
	if err := g.Wait(ctx, 1000); err == nil {
		t.Fatal("expected an error for a burst exceeding bucket capacity")
	}
}

func TestGate_ReportUsedWeight_TightensOnOverage(t *testing.T) {
	g := NewGate(1200)
	// Way over budget with a tight tolerance: the limiter's rate should
	// be reduced without panicking or deadlocking.
	g.ReportUsedWeight(2000, 0.1)
}
