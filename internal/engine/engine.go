// Package engine turns strategy requests into supervised, cancellable
// sequences of child orders: time-sliced execution (TWAP), price-laddered
// execution (grid) and simulated OCO pairs. One worker goroutine owns each
// active run; status queries read copy-on-read snapshots from the registry.
package engine

import (
	"context"
	"math/rand"
	"time"

	"tranche/internal/gateway/exchange"
	"tranche/internal/validator"

	"github.com/google/uuid"
)

type Params struct {
	Client    exchange.Client
	Validator *validator.Validator

	// PlacementDelay spaces successive placements within one run to stay
	// under the venue's rate limits.
	PlacementDelay time.Duration
}

type Engine struct {
	client         exchange.Client
	check          *validator.Validator
	reg            *Registry
	placementDelay time.Duration

	// Test seams. jitterFn draws the randomized wait multiplier; sleep
	// returns false when the context was cancelled during the wait.
	jitterFn func() float64
	sleep    func(ctx context.Context, d time.Duration) bool
}

func New(p Params) *Engine {
	if p.PlacementDelay <= 0 {
		p.PlacementDelay = 100 * time.Millisecond
	}
	return &Engine{
		client:         p.Client,
		check:          p.Validator,
		reg:            NewRegistry(),
		placementDelay: p.PlacementDelay,
		jitterFn: func() float64 {
			return 0.8 + rand.Float64()*0.4
		},
		sleep: sleepCtx,
	}
}

// Registry exposes the run registry for status listings and shutdown.
func (e *Engine) Registry() *Registry { return e.reg }

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func newClientOrderID() string {
	return "tranche-" + uuid.NewString()
}
