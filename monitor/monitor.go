// Package monitor runs the periodic control loop over all active
// scopes: it re-checks the daily-loss circuit even when no orders are
// flowing and drives the idempotent square-off while a halt is active.
package monitor

import (
	"context"
	"time"

	"github.com/quantfold/riskgate/engine"
)

const DefaultInterval = 30 * time.Second

type Monitor struct {
	engine   *engine.Engine
	interval time.Duration

	// OnError receives per-scope check failures; nil means they are
	// dropped. The loop itself keeps running either way.
	OnError func(error)
}

func New(e *engine.Engine, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{engine: e, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping every active scope once
// per interval. Cancellation is honored only at the loop boundary; a
// sweep in progress always completes, so a halt or resume is never
// left half-applied.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs one pass over every active scope. Exported so tests and
// callers with their own scheduling can drive the monitor directly.
func (m *Monitor) Sweep() {
	for _, s := range m.engine.ActiveScopes() {
		if err := m.engine.CheckScope(s); err != nil && m.OnError != nil {
			m.OnError(err)
		}
	}
}
