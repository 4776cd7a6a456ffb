package logistics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
)

// Gate enforces a minimum interval between releases of flight data.
// It is a single-token bucket that starts empty, so the first release waits a
// full interval and callers arriving together are released one interval apart.
// A zero interval disables the gate.
type Gate struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewGate returns a gate releasing at most once per interval.
func NewGate(interval time.Duration) *Gate {
	g := &Gate{interval: interval}
	if interval > 0 {
		g.limiter = rate.NewLimiter(rate.Every(interval), 1)
		g.limiter.Allow()
	}
	return g
}

// Interval returns the configured interval.
func (g *Gate) Interval() time.Duration { return g.interval }

// Wait blocks until the gate releases or ctx is done. When ctx has a deadline that
// falls before the next release, Wait returns context.DeadlineExceeded without waiting.
func (g *Gate) Wait(ctx context.Context) error {
	if g == nil || g.limiter == nil {
		return ctx.Err()
	}
	start := time.Now()
	err := g.limiter.Wait(ctx)
	observability.RateGateWaitSeconds.Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
}
