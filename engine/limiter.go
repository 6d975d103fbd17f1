/*
limiter.go - Shared rate limiter for all outbound catalog calls

PURPOSE:
  The remote API enforces a per-account call budget; exceeding it risks
  throttling the whole account. One Pacer instance is shared between
  catalog pagination and the mutation loop so the combined call rate stays
  within budget.

DESIGN:
  A Pacer is an explicit ticket acquired before every outbound call, not an
  ambient sleep. This keeps the policy swappable (fixed delay today, token
  bucket later) and lets unit tests inject a no-wait pacer instead of
  burning wall-clock time.

SEE ALSO:
  - resolver.go: Waits before every page fetch
  - apply.go:    Waits before every mutation
*/
package engine

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCallInterval is the minimum spacing between outbound catalog calls.
const DefaultCallInterval = 500 * time.Millisecond

// Pacer gates outbound calls to the remote catalog API.
type Pacer interface {
	// Wait blocks until the next call may proceed, or ctx is done.
	Wait(ctx context.Context) error
}

// =============================================================================
// FIXED-INTERVAL PACER - Production default
// =============================================================================

// IntervalPacer enforces a fixed minimum delay between calls using a
// single-permit token bucket.
type IntervalPacer struct {
	limiter *rate.Limiter
}

// NewIntervalPacer returns a pacer with the given minimum spacing.
// A non-positive interval falls back to DefaultCallInterval.
func NewIntervalPacer(interval time.Duration) *IntervalPacer {
	if interval <= 0 {
		interval = DefaultCallInterval
	}
	return &IntervalPacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *IntervalPacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// =============================================================================
// NOP PACER - For tests
// =============================================================================

// NopPacer never waits.
type NopPacer struct{}

func (NopPacer) Wait(context.Context) error { return nil }
