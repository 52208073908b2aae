// Package breaker implements the halt/resume gate guarding order flow.
// One breaker exists per scope plus a single global instance; an order
// may proceed only while both are armed. The breaker holds state only —
// journaling a transition is the caller's job, so trips stay atomic
// under the engine's per-scope critical section.
package breaker

import (
	"sync"
	"time"

	"github.com/quantfold/riskgate/risk"
)

type State string

const (
	Armed     State = "ARMED"
	Triggered State = "TRIGGERED"
)

// Breaker is a two-state gate. It never self-resets: the only path out
// of Triggered is an explicit Resume.
type Breaker struct {
	mu      sync.Mutex
	state   State
	reason  risk.Reason
	since   time.Time
	trips   uint64 // halt generation, monotonically increasing
}

func New() *Breaker {
	return &Breaker{state: Armed}
}

// Trip moves the breaker to Triggered. It returns true only on the
// Armed→Triggered transition; tripping an already-triggered breaker is
// an idempotent no-op so callers emit at most one halt event.
func (b *Breaker) Trip(reason risk.Reason, at time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Triggered {
		return false
	}
	b.state = Triggered
	b.reason = reason
	b.since = at
	b.trips++
	return true
}

// Resume re-arms the breaker. Resuming an armed breaker is a no-op,
// not an error; the return value tells the caller whether to emit a
// resume event.
func (b *Breaker) Resume(at time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Armed {
		return false
	}
	b.state = Armed
	b.reason = risk.ReasonNone
	b.since = at
	return true
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Tripped reports whether the breaker currently blocks order flow.
func (b *Breaker) Tripped() bool { return b.State() == Triggered }

// Reason returns the reason recorded by the most recent trip.
func (b *Breaker) Reason() risk.Reason {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reason
}

// Generation counts trips since creation. The runtime monitor uses it
// as the idempotency key for square-off: one exit per position per
// generation.
func (b *Breaker) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}

// Status is a point-in-time copy of the breaker's state for the query
// surface.
type Status struct {
	State  State
	Reason risk.Reason
	Since  time.Time
	Trips  uint64
}

func (b *Breaker) Snapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{State: b.state, Reason: b.reason, Since: b.since, Trips: b.trips}
}
