// internal/engine/runner.go
package engine

import (
	"context"
	"time"

	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/bus"
)

// TickResult is one engine slice.
type TickResult struct {
	Tick uint64
	arbiter.Outcome
}

// Tick runs exactly one slice of at most one task.
func (e *Engine) Tick() TickResult {
	out := e.arb.Tick()
	e.ticks.Store(e.arb.Ticks())

	if k, ok := e.arb.Active(); ok {
		e.active.Store(uint32(k) + 1)
	} else {
		e.active.Store(0)
	}

	return TickResult{Tick: e.arb.Ticks(), Outcome: out}
}

// Run starts the ticker loop and emits completed slices on out.
// A slow consumer never stalls the loop: results it cannot take are
// dropped and counted.
func (e *Engine) Run(ctx context.Context, period time.Duration, out chan<- TickResult) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := e.Tick()
			if !res.Completed || out == nil {
				continue
			}
			select {
			case out <- res:
			default:
				e.dropped.Add(1)
			}
		}
	}
}

// Ticks counts Tick calls.
func (e *Engine) Ticks() uint64 { return e.ticks.Load() }

// Dropped counts completions Run could not deliver.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// Exchanges is the completed exchange count with dev, when the bus keeps one.
func (e *Engine) Exchanges(dev bus.Device) uint64 {
	if c, ok := e.x.(interface{ Count(bus.Device) uint64 }); ok {
		return c.Count(dev)
	}
	return 0
}
