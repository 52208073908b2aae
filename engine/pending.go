package engine

import (
	"fmt"
	"time"

	"github.com/quantfold/riskgate/journal"
	"github.com/quantfold/riskgate/metrics"
	"github.com/quantfold/riskgate/order"
	"github.com/quantfold/riskgate/risk"
)

// UpdatePrice records a new reference price for symbol across every
// scope: it re-marks ledgers, re-evaluates pending conditional orders,
// fires attached stop-loss/take-profit exits, and expires stale
// pending orders past the session cutoff. Each scope is processed
// under its own lock, so price-driven fills cannot race submissions.
func (e *Engine) UpdatePrice(symbol string, price float64) error {
	if price <= 0 {
		return fmt.Errorf("update price %s: non-positive price %v", symbol, price)
	}

	e.mu.RLock()
	states := make([]*scopeState, 0, len(e.scopes))
	for _, st := range e.scopes {
		states = append(states, st)
	}
	e.mu.RUnlock()

	for _, st := range states {
		st.mu.Lock()
		err := e.priceTickLocked(st, symbol, price)
		st.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) priceTickLocked(st *scopeState, symbol string, price float64) error {
	now := e.now()
	st.book.Mark(symbol, price)

	lim := e.effectiveLimits(st.scope)

	if err := e.firePendingLocked(st, symbol, price); err != nil {
		return err
	}
	e.expirePendingLocked(st, lim, now)
	if err := e.fireExitsLocked(st, symbol, price); err != nil {
		return err
	}

	metrics.UpdateScope(st.scope.String(), st.book.Equity(), st.book.GrossExposure())
	return nil
}

// firePendingLocked fills pending conditional orders whose trigger the
// new price has crossed. Each fire re-runs the full risk evaluation:
// the portfolio has moved since admission, and a fill under a halt or
// a breached cap must not slip through on a price tick.
func (e *Engine) firePendingLocked(st *scopeState, symbol string, price float64) error {
	remaining := st.pending[:0]
	var fire []order.Request
	for _, p := range st.pending {
		if p.Symbol == symbol && crossed(p, price) {
			fire = append(fire, p)
			continue
		}
		remaining = append(remaining, p)
	}
	st.pending = remaining

	for _, p := range fire {
		market := p
		market.Type = order.Market
		if _, _, err := e.evalAndExecLocked(st, market); err != nil {
			return err
		}
	}
	return nil
}

// expirePendingLocked drops pending orders once the session cutoff has
// passed, when the limits say unmet conditionals expire rather than
// persist. Each expiry is journaled as a rejection.
func (e *Engine) expirePendingLocked(st *scopeState, lim risk.Limits, now time.Time) {
	if !lim.ExpirePending || lim.Cutoff <= 0 || len(st.pending) == 0 {
		return
	}
	if sinceMidnight(now) < lim.Cutoff {
		return
	}

	halted := !e.breakers.Allowed(st.scope)
	for _, p := range st.pending {
		snap := st.book.Snapshot(halted, len(st.pending))
		e.record(journal.Event{
			Type:    journal.EventReject,
			Reason:  string(risk.ReasonPendingExpired),
			Message: fmt.Sprintf("pending %s %s expired at session cutoff", p.Type, p.Symbol),
		}, st.scope, snap, now)
		metrics.RecordDecision(string(risk.Reject), string(risk.ReasonPendingExpired))
	}
	st.pending = nil
}

// fireExitsLocked synthesizes close orders for positions whose
// attached stop-loss or take-profit the new price has breached. Exits
// route back through the evaluate-and-execute path so they are gated
// and journaled like any other order.
func (e *Engine) fireExitsLocked(st *scopeState, symbol string, price float64) error {
	pos := st.book.Position(symbol)
	if pos == nil {
		return nil
	}

	var cause risk.Reason
	switch {
	case hitStopLoss(pos.Qty, pos.StopLoss, price):
		cause = risk.ReasonStopLoss
	case hitTakeProfit(pos.Qty, pos.TakeProfit, price):
		cause = risk.ReasonTakeProfit
	default:
		return nil
	}

	exit := exitRequest(st.scope, pos, e.now())
	exit.Cause = string(cause)
	_, _, err := e.evalAndExecLocked(st, exit)
	return err
}

// crossed reports whether the current price satisfies a conditional
// order's trigger: limit buys fill at or below the limit, limit sells
// at or above; stops are the mirror image.
func crossed(req order.Request, cur float64) bool {
	if cur <= 0 || req.Price <= 0 {
		return false
	}
	switch req.Type {
	case order.Limit:
		if req.Side == order.Buy {
			return cur <= req.Price
		}
		return cur >= req.Price
	case order.Stop:
		if req.Side == order.Buy {
			return cur >= req.Price
		}
		return cur <= req.Price
	}
	return false
}

func hitStopLoss(qty, stop, price float64) bool {
	if stop <= 0 {
		return false
	}
	if qty > 0 {
		return price <= stop
	}
	return price >= stop
}

func hitTakeProfit(qty, take, price float64) bool {
	if take <= 0 {
		return false
	}
	if qty > 0 {
		return price >= take
	}
	return price <= take
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}
