// Package engine is the paper execution engine: the single entry point
// that evaluates a candidate order against the resolved limits and the
// circuit breaker, applies allowed orders to the scope's ledger, and
// journals every decision. Evaluation and application happen inside
// one critical section per scope, so an order evaluated as allowed can
// never be applied after a concurrent halt takes effect.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantfold/riskgate/breaker"
	"github.com/quantfold/riskgate/journal"
	"github.com/quantfold/riskgate/ledger"
	"github.com/quantfold/riskgate/metrics"
	"github.com/quantfold/riskgate/order"
	"github.com/quantfold/riskgate/pkg/id"
	"github.com/quantfold/riskgate/risk"
)

// Config carries the process-wide defaults the engine starts scopes
// with. Per-user and per-strategy overrides layer on top at evaluation
// time.
type Config struct {
	Defaults    risk.Limits
	InitialCash float64
	FeeRate     float64 // fee as a fraction of fill notional

	// RejectUnmet rejects limit/stop orders whose condition is not met
	// at submission instead of queueing them in the pending book.
	RejectUnmet bool

	// Location is the trading-day timezone the cutoff is evaluated in.
	Location *time.Location
}

type Engine struct {
	cfg Config

	mu      sync.RWMutex
	scopes  map[order.Scope]*scopeState
	userOv  map[string]*risk.Overrides
	stratOv map[order.Scope]*risk.Overrides

	breakers *breaker.Registry
	journal  journal.Journal

	journalErrs atomic.Uint64

	// clock is swappable in tests for deterministic cutoff handling.
	clock func() time.Time
}

// scopeState is everything owned by one scope: its ledger, its pending
// conditional orders, and the square-off bookkeeping. All fields are
// guarded by mu; every engine operation on a scope runs under it.
type scopeState struct {
	mu      sync.Mutex
	scope   order.Scope
	book    *ledger.Portfolio
	pending []order.Request

	// squared maps symbol -> breaker generation of the last submitted
	// square-off exit, making monitor square-off exactly-once per halt.
	squared map[string]uint64
}

func New(cfg Config, j journal.Journal) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if j == nil {
		j = journal.NewMemory()
	}
	return &Engine{
		cfg:      cfg,
		scopes:   make(map[order.Scope]*scopeState),
		userOv:   make(map[string]*risk.Overrides),
		stratOv:  make(map[order.Scope]*risk.Overrides),
		breakers: breaker.NewRegistry(),
		journal:  j,
		clock:    time.Now,
	}
}

// Breakers exposes the breaker registry for status queries.
func (e *Engine) Breakers() *breaker.Registry { return e.breakers }

// JournalErrors counts audit writes that failed. A failed write never
// changes a decision; it only shows up here.
func (e *Engine) JournalErrors() uint64 { return e.journalErrs.Load() }

func (e *Engine) now() time.Time { return e.clock().In(e.cfg.Location) }

func (e *Engine) scopeState(s order.Scope) *scopeState {
	e.mu.RLock()
	st, ok := e.scopes[s]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.scopes[s]; ok {
		return st
	}
	st = &scopeState{
		scope:   s,
		book:    ledger.New(e.cfg.InitialCash),
		squared: make(map[string]uint64),
	}
	e.scopes[s] = st
	return st
}

// ActiveScopes lists every scope the engine has seen.
func (e *Engine) ActiveScopes() []order.Scope {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]order.Scope, 0, len(e.scopes))
	for s := range e.scopes {
		out = append(out, s)
	}
	return out
}

// EvaluateAndExecute is the single inbound entry point: it resolves
// the scope's limits, consults the breaker, evaluates the order, and,
// if allowed, executes it — all as one atomic unit for the scope. The
// returned decision is authoritative even when the error is non-nil;
// errors report invariant violations, never policy rejections.
func (e *Engine) EvaluateAndExecute(ctx context.Context, req order.Request) (risk.Decision, *order.Fill, error) {
	if err := ctx.Err(); err != nil {
		return risk.Decision{}, nil, err
	}
	st := e.scopeState(req.Scope)
	st.mu.Lock()
	defer st.mu.Unlock()
	return e.evalAndExecLocked(st, req)
}

func (e *Engine) evalAndExecLocked(st *scopeState, req order.Request) (risk.Decision, *order.Fill, error) {
	now := e.now()
	if req.ID == "" {
		req.ID = id.New()
	}
	if req.Time.IsZero() {
		req.Time = now
	}

	lim := e.effectiveLimits(req.Scope)
	halted := !e.breakers.Allowed(req.Scope)
	snap := st.book.Snapshot(halted, len(st.pending))
	snap.Time = now

	dec := risk.Evaluate(req, lim, snap, now)
	metrics.RecordDecision(string(dec.Action), string(dec.Reason))

	switch dec.Action {
	case risk.HaltTrading, risk.ForceSquareOff:
		e.tripLocked(st, dec.Reason, dec.Message, snap, now)
		if dec.Action == risk.ForceSquareOff {
			if err := e.squareOffLocked(st, now); err != nil {
				return dec, nil, err
			}
		}
		return dec, nil, nil

	case risk.Reject:
		e.record(journal.Event{
			Type: journal.EventReject, Reason: string(dec.Reason), Message: dec.Message,
		}, st.scope, snap, now)
		return dec, nil, nil
	}

	qty := req.Qty
	if dec.Action == risk.ReduceQty {
		qty = dec.AllowedQty
		e.record(journal.Event{
			Type: journal.EventAllowReduced, Reason: string(dec.Reason),
			Message: fmt.Sprintf("qty reduced %.4f -> %.4f: %s", req.Qty, qty, dec.Message),
		}, st.scope, snap, now)
	}

	// Conditional orders that have not crossed their trigger go to the
	// pending book (or are rejected outright per configuration).
	if req.Type != order.Market && !crossed(req, e.currentPrice(st, req)) {
		if e.cfg.RejectUnmet {
			dec = risk.Decision{
				Action:   risk.Reject,
				Reason:   risk.ReasonNotTriggered,
				Message:  "conditional order not triggered at submission",
				Breached: dec.Breached,
			}
			e.record(journal.Event{
				Type: journal.EventReject, Reason: string(dec.Reason), Message: dec.Message,
			}, st.scope, snap, now)
			return dec, nil, nil
		}
		pend := req
		pend.Qty = qty
		// Later trigger checks run against live marks, not the price
		// injected at submission.
		pend.RefPrice = nil
		st.pending = append(st.pending, pend)
		return dec, nil, nil
	}

	fill, ferr := e.fillLocked(st, req, qty, now)
	if ferr != nil {
		if inv, ok := ferr.(*InvariantError); ok {
			return dec, nil, inv
		}
		// Execution-level policy rejection (cash/position shortfall).
		dec = risk.Decision{
			Action:   risk.Reject,
			Reason:   executionReason(ferr),
			Message:  ferr.Error(),
			Breached: dec.Breached,
		}
		e.record(journal.Event{
			Type: journal.EventReject, Reason: string(dec.Reason), Message: dec.Message,
		}, st.scope, snap, now)
		return dec, nil, nil
	}

	if req.Liquidation {
		e.record(journal.Event{
			Type:    journal.EventSquareOff,
			Reason:  string(liquidationReason(req)),
			Message: fmt.Sprintf("closed %.4f %s at %.4f", fill.Qty, fill.Symbol, fill.Price),
		}, st.scope, st.book.Snapshot(halted, len(st.pending)), now)
	}

	return dec, fill, nil
}

// insufficientErr distinguishes the two execution-level policy
// rejections from real errors.
type insufficientErr struct {
	reason risk.Reason
	msg    string
}

func (e *insufficientErr) Error() string { return e.msg }

func executionReason(err error) risk.Reason {
	if ie, ok := err.(*insufficientErr); ok {
		return ie.reason
	}
	return risk.ReasonNone
}

func liquidationReason(req order.Request) risk.Reason {
	if req.Cause != "" {
		return risk.Reason(req.Cause)
	}
	return risk.ReasonMaxDailyLoss
}

// fillLocked validates execution-level preconditions, commits the fill
// to the ledger, and journals it. Preconditions are checked before any
// mutation so a rejection leaves the ledger untouched.
func (e *Engine) fillLocked(st *scopeState, req order.Request, qty float64, now time.Time) (*order.Fill, error) {
	price := e.fillPrice(st, req)
	if price <= 0 {
		return nil, &insufficientErr{
			reason: risk.ReasonNotTriggered,
			msg:    fmt.Sprintf("no reference price for %s", req.Symbol),
		}
	}
	fees := e.cfg.FeeRate * qty * price

	pos := st.book.Position(req.Symbol)
	switch req.Side {
	case order.Buy:
		// Liquidation covers must execute even if they overdraw; only
		// entries are gated on available cash.
		if cost := qty*price + fees; cost > st.book.Cash && !req.Liquidation {
			return nil, &insufficientErr{
				reason: risk.ReasonInsufficientCash,
				msg:    fmt.Sprintf("insufficient cash: need %.2f, have %.2f", cost, st.book.Cash),
			}
		}
	case order.Sell:
		// Delivery accounts are closing-only on the sell side.
		if req.Product != order.Intraday {
			held := 0.0
			if pos != nil {
				held = pos.Qty
			}
			if qty > held {
				return nil, &insufficientErr{
					reason: risk.ReasonInsufficientPosition,
					msg:    fmt.Sprintf("insufficient position: selling %.4f, holding %.4f", qty, held),
				}
			}
		}
	}

	fill := order.Fill{
		ID:      id.New(),
		OrderID: req.ID,
		Scope:   req.Scope,
		Symbol:  req.Symbol,
		Side:    req.Side,
		Qty:     qty,
		Price:   price,
		Fees:    fees,
		Time:    now,
	}

	if err := st.book.Apply(fill); err != nil {
		return nil, &InvariantError{Scope: st.scope, Err: err}
	}
	if err := st.book.CheckInvariants(); err != nil {
		// The ledger is in doubt: block all further flow for the scope
		// rather than risk compounding the drift.
		snap := st.book.Snapshot(true, len(st.pending))
		e.tripLocked(st, risk.ReasonManual, err.Error(), snap, now)
		return nil, &InvariantError{Scope: st.scope, Err: err}
	}

	// Carry attached exit thresholds onto the position.
	if p := st.book.Position(req.Symbol); p != nil && !req.Liquidation {
		if req.StopLoss != nil {
			p.StopLoss = *req.StopLoss
		}
		if req.TakeProfit != nil {
			p.TakeProfit = *req.TakeProfit
		}
	}

	e.recordFill(fill)
	metrics.RecordFill(fill.Symbol, string(fill.Side), fill.Notional())
	metrics.UpdateScope(st.scope.String(), st.book.Equity(), st.book.GrossExposure())
	return &fill, nil
}

// fillPrice resolves the execution price: injected reference price,
// else the last known mark; conditional orders fall back to their
// trigger price.
func (e *Engine) fillPrice(st *scopeState, req order.Request) float64 {
	if req.RefPrice != nil {
		return *req.RefPrice
	}
	if mark := st.book.MarkPrice(req.Symbol); mark > 0 {
		return mark
	}
	if req.Type != order.Market {
		return req.Price
	}
	return 0
}

// currentPrice is the price a conditional order's trigger is compared
// against: the injected reference price when present, else the last
// known mark (0 when the symbol has never traded).
func (e *Engine) currentPrice(st *scopeState, req order.Request) float64 {
	if req.RefPrice != nil {
		return *req.RefPrice
	}
	return st.book.MarkPrice(req.Symbol)
}

// tripLocked trips the scope breaker and journals the halt. Tripping
// an already-triggered breaker emits nothing, so the halt event for a
// breach appears exactly once.
func (e *Engine) tripLocked(st *scopeState, reason risk.Reason, msg string, snap risk.Snapshot, now time.Time) {
	if !e.breakers.ForScope(st.scope).Trip(reason, now) {
		return
	}
	e.record(journal.Event{
		Type: journal.EventHalt, Reason: string(reason), Message: msg,
	}, st.scope, snap, now)
	metrics.RecordHalt(st.scope.String(), string(reason))
}

// squareOffLocked submits one market exit per open position for the
// current halt generation. Positions already flattened or already
// exited this generation are skipped, so re-running is idempotent. The
// generation sums the global and scope trip counts, so a global-only
// halt advances it too; it is always positive while a halt is active.
func (e *Engine) squareOffLocked(st *scopeState, now time.Time) error {
	scoped := e.breakers.ForScope(st.scope)
	gen := e.breakers.Global().Generation() + scoped.Generation()

	cause := e.breakers.Global().Reason()
	if scoped.Tripped() {
		cause = scoped.Reason()
	}

	for _, pos := range st.book.Positions() {
		if st.squared[pos.Symbol] == gen {
			continue
		}
		st.squared[pos.Symbol] = gen
		exit := exitRequest(st.scope, pos, now)
		exit.Cause = string(cause)
		if _, _, err := e.evalAndExecLocked(st, exit); err != nil {
			return err
		}
	}
	return nil
}

// exitRequest synthesizes the market order that flattens pos.
func exitRequest(scope order.Scope, pos *ledger.Position, now time.Time) order.Request {
	side := order.Sell
	if pos.Qty < 0 {
		side = order.Buy
	}
	return order.Request{
		Scope:       scope,
		Symbol:      pos.Symbol,
		Side:        side,
		Qty:         abs(pos.Qty),
		Type:        order.Market,
		Product:     order.Intraday,
		Liquidation: true,
		Time:        now,
	}
}

// record journals an audit event, attaching the scope and a JSON
// snapshot. A failed write is counted but never alters the decision it
// records.
func (e *Engine) record(ev journal.Event, scope order.Scope, snap risk.Snapshot, now time.Time) {
	ev.ID = id.New()
	ev.User = scope.User
	ev.Strategy = scope.Strategy
	ev.Time = now
	if b, err := json.Marshal(snap); err == nil {
		ev.Snapshot = string(b)
	}
	if err := e.journal.RecordEvent(ev); err != nil {
		e.journalErrs.Add(1)
	}
}

func (e *Engine) recordFill(f order.Fill) {
	err := e.journal.RecordFill(journal.FillRecord{
		FillID:   f.ID,
		OrderID:  f.OrderID,
		User:     f.Scope.User,
		Strategy: f.Scope.Strategy,
		Symbol:   f.Symbol,
		Side:     string(f.Side),
		Qty:      f.Qty,
		Price:    f.Price,
		Fees:     f.Fees,
		Time:     f.Time,
	})
	if err != nil {
		e.journalErrs.Add(1)
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
