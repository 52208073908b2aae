package engine

import (
	"fmt"

	"github.com/quantfold/riskgate/breaker"
	"github.com/quantfold/riskgate/journal"
	"github.com/quantfold/riskgate/order"
	"github.com/quantfold/riskgate/risk"
)

// effectiveLimits resolves the override chain strategy > user >
// process default for scope. Resolution is re-run on every call so a
// limits update takes effect on the very next decision.
func (e *Engine) effectiveLimits(s order.Scope) risk.Limits {
	e.mu.RLock()
	user := e.userOv[s.User]
	strat := e.stratOv[s]
	e.mu.RUnlock()
	return risk.Resolve(e.cfg.Defaults, user, strat)
}

// EffectiveLimits exposes the merged limits for a scope on the query
// surface.
func (e *Engine) EffectiveLimits(s order.Scope) risk.Limits {
	return e.effectiveLimits(s)
}

// SetUserLimits installs (or clears, with nil) the user-level override
// layer and journals the change.
func (e *Engine) SetUserLimits(user string, ov *risk.Overrides) {
	e.mu.Lock()
	if ov == nil {
		delete(e.userOv, user)
	} else {
		e.userOv[user] = ov
	}
	e.mu.Unlock()
	e.recordLimitsUpdate(order.Scope{User: user})
}

// SetStrategyLimits installs (or clears, with nil) the strategy-level
// override layer and journals the change.
func (e *Engine) SetStrategyLimits(s order.Scope, ov *risk.Overrides) {
	e.mu.Lock()
	if ov == nil {
		delete(e.stratOv, s)
	} else {
		e.stratOv[s] = ov
	}
	e.mu.Unlock()
	e.recordLimitsUpdate(s)
}

func (e *Engine) recordLimitsUpdate(s order.Scope) {
	st := e.scopeState(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := st.book.Snapshot(!e.breakers.Allowed(s), len(st.pending))
	e.record(journal.Event{
		Type:    journal.EventLimits,
		Reason:  string(risk.ReasonManual),
		Message: fmt.Sprintf("limits updated for %s", s),
	}, s, snap, e.now())
}

// Halt trips the scope's breaker on operator request. Halting an
// already-halted scope is idempotent and journals nothing further.
func (e *Engine) Halt(s order.Scope, msg string) {
	st := e.scopeState(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	now := e.now()
	snap := st.book.Snapshot(true, len(st.pending))
	if msg == "" {
		msg = "operator halt"
	}
	e.tripLocked(st, risk.ReasonManual, msg, snap, now)
}

// Resume re-arms the scope's breaker. Resuming an armed scope is a
// no-op with no duplicate event.
func (e *Engine) Resume(s order.Scope) {
	st := e.scopeState(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	now := e.now()
	if !e.breakers.ForScope(s).Resume(now) {
		return
	}
	snap := st.book.Snapshot(!e.breakers.Allowed(s), len(st.pending))
	e.record(journal.Event{
		Type:    journal.EventResume,
		Reason:  string(risk.ReasonManual),
		Message: "trading resumed",
	}, s, snap, now)
}

// HaltAll trips the global breaker, blocking every scope regardless of
// per-scope state.
func (e *Engine) HaltAll(msg string) {
	now := e.now()
	if !e.breakers.Global().Trip(risk.ReasonManual, now) {
		return
	}
	if msg == "" {
		msg = "global operator halt"
	}
	e.record(journal.Event{
		Type:    journal.EventHalt,
		Reason:  string(risk.ReasonManual),
		Message: msg,
	}, order.Scope{}, risk.Snapshot{Time: now, Halted: true}, now)
}

// ResumeAll re-arms the global breaker.
func (e *Engine) ResumeAll() {
	now := e.now()
	if !e.breakers.Global().Resume(now) {
		return
	}
	e.record(journal.Event{
		Type:    journal.EventResume,
		Reason:  string(risk.ReasonManual),
		Message: "global trading resumed",
	}, order.Scope{}, risk.Snapshot{Time: now}, now)
}

// ScopeStatus is the query-surface view of one scope's gate and
// portfolio state.
type ScopeStatus struct {
	Scope    order.Scope
	Breaker  breaker.Status
	Global   breaker.Status
	Snapshot risk.Snapshot
	Limits   risk.Limits
}

// Status reports the current breaker and portfolio state for a scope.
func (e *Engine) Status(s order.Scope) ScopeStatus {
	st := e.scopeState(s)
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := st.book.Snapshot(!e.breakers.Allowed(s), len(st.pending))
	snap.Time = e.now()
	return ScopeStatus{
		Scope:    s,
		Breaker:  e.breakers.ForScope(s).Snapshot(),
		Global:   e.breakers.Global().Snapshot(),
		Snapshot: snap,
		Limits:   e.effectiveLimits(s),
	}
}

// CheckScope is the runtime monitor's hook: it re-evaluates the
// daily-loss circuit from a fresh snapshot, independent of any order
// flow, and runs the idempotent square-off when a halt is active with
// square-off enabled. It also expires stale pending orders.
func (e *Engine) CheckScope(s order.Scope) error {
	st := e.scopeState(s)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := e.now()
	lim := e.effectiveLimits(s)
	if !lim.Enforce {
		return nil
	}

	e.expirePendingLocked(st, lim, now)

	halted := !e.breakers.Allowed(s)
	snap := st.book.Snapshot(halted, len(st.pending))
	snap.Time = now

	if !halted && risk.DailyLossBreached(lim, snap) {
		e.tripLocked(st, risk.ReasonMaxDailyLoss, fmt.Sprintf("day P&L %.2f breached daily loss limit", snap.DayPL()), snap, now)
		halted = true
	}

	// A global-only trip must flatten too, so the guard is on the
	// combined gate state, not just the scope breaker.
	if halted && lim.SquareOff {
		return e.squareOffLocked(st, now)
	}
	return nil
}
