package engine

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/quantfold/riskgate/journal"
	"github.com/quantfold/riskgate/order"
	"github.com/quantfold/riskgate/risk"
)

var testScope = order.Scope{User: "alice", Strategy: "momentum"}

func newTestEngine(t *testing.T, lim risk.Limits, cash float64) (*Engine, *journal.Memory) {
	t.Helper()
	j := journal.NewMemory()
	e := New(Config{
		Defaults:    lim,
		InitialCash: cash,
	}, j)
	return e, j
}

func ref(px float64) *float64 { return &px }

func submit(t *testing.T, e *Engine, req order.Request) (risk.Decision, *order.Fill) {
	t.Helper()
	dec, fill, err := e.EvaluateAndExecute(context.Background(), req)
	if err != nil {
		t.Fatalf("evaluate and execute: %v", err)
	}
	return dec, fill
}

func buy(symbol string, qty, px float64) order.Request {
	return order.Request{
		Scope: testScope, Symbol: symbol, Side: order.Buy, Qty: qty,
		Type: order.Market, Product: order.Intraday, RefPrice: ref(px),
	}
}

func sell(symbol string, qty, px float64) order.Request {
	return order.Request{
		Scope: testScope, Symbol: symbol, Side: order.Sell, Qty: qty,
		Type: order.Market, Product: order.Intraday, RefPrice: ref(px),
	}
}

func countEvents(j *journal.Memory, typ journal.EventType, reason string) int {
	n := 0
	for _, e := range j.Events() {
		if e.Type == typ && (reason == "" || e.Reason == reason) {
			n++
		}
	}
	return n
}

func TestMarketBuyFills(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true}, 100000)

	dec, fill := submit(t, e, buy("INFY", 10, 100))
	if dec.Action != risk.Allow {
		t.Fatalf("want ALLOW, got %s (%s)", dec.Action, dec.Reason)
	}
	if fill == nil || fill.Qty != 10 || fill.Price != 100 {
		t.Fatalf("unexpected fill: %+v", fill)
	}
	if got := len(j.Fills()); got != 1 {
		t.Fatalf("want 1 journaled fill, got %d", got)
	}
}

func TestReduceQtyScenario(t *testing.T) {
	// max_position_qty 50, market buy 80 on a flat book.
	e, j := newTestEngine(t, risk.Limits{
		Enforce: true, ReduceOnCap: true,
		MaxPositionQty: 50, MaxDailyLoss: 2000,
	}, 1000000)

	dec, fill := submit(t, e, buy("INFY", 80, 100))
	if dec.Action != risk.ReduceQty || dec.AllowedQty != 50 {
		t.Fatalf("want REDUCE_QTY to 50, got %s qty %.2f", dec.Action, dec.AllowedQty)
	}
	if fill == nil || fill.Qty != 50 {
		t.Fatalf("want fill of 50, got %+v", fill)
	}
	if n := countEvents(j, journal.EventAllowReduced, ""); n != 1 {
		t.Fatalf("want 1 ALLOW_REDUCED event, got %d", n)
	}
}

func TestDailyLossHaltsExactlyOnce(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true, MaxDailyLoss: 2000}, 100000)

	submit(t, e, buy("INFY", 100, 100))
	if err := e.UpdatePrice("INFY", 79); err != nil { // unrealized -2100
		t.Fatalf("update price: %v", err)
	}

	// First order after the breach takes the halt decision.
	dec, fill := submit(t, e, buy("INFY", 1, 79))
	if dec.Action != risk.HaltTrading || dec.Reason != risk.ReasonMaxDailyLoss {
		t.Fatalf("want HALT_TRADING/MAX_DAILY_LOSS, got %s/%s", dec.Action, dec.Reason)
	}
	if fill != nil {
		t.Fatalf("halting order must not fill")
	}

	// Every subsequent order is rejected as halted; no duplicate HALT.
	for i := 0; i < 3; i++ {
		dec, _ = submit(t, e, buy("TCS", 1, 50))
		if dec.Action != risk.Reject || dec.Reason != risk.ReasonTradingHalted {
			t.Fatalf("want REJECT/TRADING_HALTED, got %s/%s", dec.Action, dec.Reason)
		}
	}
	if n := countEvents(j, journal.EventHalt, string(risk.ReasonMaxDailyLoss)); n != 1 {
		t.Fatalf("want exactly 1 HALT event, got %d", n)
	}
}

func TestHaltAndResumeIdempotent(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true}, 100000)

	e.Halt(testScope, "operator")
	e.Halt(testScope, "operator again")
	if n := countEvents(j, journal.EventHalt, ""); n != 1 {
		t.Fatalf("want 1 HALT event, got %d", n)
	}

	e.Resume(testScope)
	e.Resume(testScope)
	if n := countEvents(j, journal.EventResume, ""); n != 1 {
		t.Fatalf("want 1 RESUME event, got %d", n)
	}

	dec, _ := submit(t, e, buy("INFY", 1, 100))
	if dec.Action != risk.Allow {
		t.Fatalf("want ALLOW after resume, got %s", dec.Action)
	}
}

func TestGlobalHaltOverridesScope(t *testing.T) {
	e, _ := newTestEngine(t, risk.Limits{Enforce: true}, 100000)

	e.HaltAll("process halt")
	dec, _ := submit(t, e, buy("INFY", 1, 100))
	if dec.Action != risk.Reject || dec.Reason != risk.ReasonTradingHalted {
		t.Fatalf("want REJECT/TRADING_HALTED under global halt, got %s/%s", dec.Action, dec.Reason)
	}

	e.ResumeAll()
	dec, _ = submit(t, e, buy("INFY", 1, 100))
	if dec.Action != risk.Allow {
		t.Fatalf("want ALLOW after global resume, got %s", dec.Action)
	}
}

func TestLimitOrderPendsUntilCrossed(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true}, 100000)

	req := order.Request{
		Scope: testScope, Symbol: "TCS", Side: order.Buy, Qty: 10,
		Type: order.Limit, Price: 100, Product: order.Intraday, RefPrice: ref(105),
	}
	dec, fill := submit(t, e, req)
	if dec.Action != risk.Allow || fill != nil {
		t.Fatalf("want pending accept without fill, got %s fill=%v", dec.Action, fill)
	}
	if len(j.Fills()) != 0 {
		t.Fatalf("no fill expected while pending")
	}

	// Price still above the limit: nothing fires.
	if err := e.UpdatePrice("TCS", 102); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(j.Fills()) != 0 {
		t.Fatalf("limit buy fired above its limit price")
	}

	// Crossing fills at the crossing price.
	if err := e.UpdatePrice("TCS", 99.5); err != nil {
		t.Fatalf("update price: %v", err)
	}
	fills := j.Fills()
	if len(fills) != 1 || fills[0].Price != 99.5 {
		t.Fatalf("want 1 fill at 99.5, got %+v", fills)
	}
}

func TestStopOrderTriggerInverted(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true}, 100000)

	// Stop buy above the market: fires when price rises through it.
	req := order.Request{
		Scope: testScope, Symbol: "TCS", Side: order.Buy, Qty: 10,
		Type: order.Stop, Price: 110, Product: order.Intraday, RefPrice: ref(105),
	}
	submit(t, e, req)

	if err := e.UpdatePrice("TCS", 108); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(j.Fills()) != 0 {
		t.Fatalf("stop buy fired below its trigger")
	}
	if err := e.UpdatePrice("TCS", 111); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(j.Fills()) != 1 {
		t.Fatalf("stop buy did not fire on cross")
	}
}

func TestRejectUnmetConfiguration(t *testing.T) {
	j := journal.NewMemory()
	e := New(Config{
		Defaults:    risk.Limits{Enforce: true},
		InitialCash: 100000,
		RejectUnmet: true,
	}, j)

	req := order.Request{
		Scope: testScope, Symbol: "TCS", Side: order.Buy, Qty: 10,
		Type: order.Limit, Price: 100, Product: order.Intraday, RefPrice: ref(105),
	}
	dec, _, err := e.EvaluateAndExecute(context.Background(), req)
	if err != nil {
		t.Fatalf("evaluate and execute: %v", err)
	}
	if dec.Action != risk.Reject || dec.Reason != risk.ReasonNotTriggered {
		t.Fatalf("want REJECT/NOT_TRIGGERED, got %s/%s", dec.Action, dec.Reason)
	}
}

func TestInsufficientPositionNoMutation(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true}, 100000)

	req := sell("INFY", 10, 100)
	req.Product = order.Delivery
	dec, fill := submit(t, e, req)
	if dec.Action != risk.Reject || dec.Reason != risk.ReasonInsufficientPosition {
		t.Fatalf("want REJECT/INSUFFICIENT_POSITION, got %s/%s", dec.Action, dec.Reason)
	}
	if fill != nil || len(j.Fills()) != 0 {
		t.Fatalf("rejected sell must not produce a fill")
	}
	if st := e.Status(testScope); st.Snapshot.Cash != 100000 {
		t.Fatalf("ledger mutated on rejection: cash %.2f", st.Snapshot.Cash)
	}
}

func TestInsufficientCash(t *testing.T) {
	e, _ := newTestEngine(t, risk.Limits{Enforce: true}, 1000)

	dec, fill := submit(t, e, buy("INFY", 100, 100))
	if dec.Action != risk.Reject || dec.Reason != risk.ReasonInsufficientCash {
		t.Fatalf("want REJECT/INSUFFICIENT_CASH, got %s/%s", dec.Action, dec.Reason)
	}
	if fill != nil {
		t.Fatalf("unexpected fill")
	}
}

func TestStopLossExitRoutedAndAudited(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true}, 100000)

	req := buy("INFY", 10, 100)
	req.StopLoss = ref(95)
	submit(t, e, req)

	if err := e.UpdatePrice("INFY", 94); err != nil {
		t.Fatalf("update price: %v", err)
	}

	fills := j.Fills()
	if len(fills) != 2 {
		t.Fatalf("want entry + stop-loss exit, got %d fills", len(fills))
	}
	if fills[1].Side != "SELL" || fills[1].Qty != 10 {
		t.Fatalf("bad exit fill: %+v", fills[1])
	}
	if n := countEvents(j, journal.EventSquareOff, string(risk.ReasonStopLoss)); n != 1 {
		t.Fatalf("want 1 SQUAREOFF/STOP_LOSS event, got %d", n)
	}
	if st := e.Status(testScope); len(st.Snapshot.Positions) != 0 {
		t.Fatalf("position not flattened by stop loss")
	}
}

func TestTakeProfitExit(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true}, 100000)

	req := buy("INFY", 10, 100)
	req.TakeProfit = ref(110)
	submit(t, e, req)

	if err := e.UpdatePrice("INFY", 111); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if n := countEvents(j, journal.EventSquareOff, string(risk.ReasonTakeProfit)); n != 1 {
		t.Fatalf("want 1 SQUAREOFF/TAKE_PROFIT event, got %d", n)
	}
}

func TestSquareOffExactlyOncePerHalt(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{
		Enforce: true, SquareOff: true, MaxDailyLoss: 2000,
	}, 100000)

	submit(t, e, buy("INFY", 100, 100))
	submit(t, e, buy("TCS", 50, 100))
	if err := e.UpdatePrice("INFY", 75); err != nil { // unrealized -2500
		t.Fatalf("update price: %v", err)
	}

	// Monitor pass: trips the breaker and flattens both positions.
	if err := e.CheckScope(testScope); err != nil {
		t.Fatalf("check scope: %v", err)
	}
	if n := countEvents(j, journal.EventHalt, string(risk.ReasonMaxDailyLoss)); n != 1 {
		t.Fatalf("want 1 HALT, got %d", n)
	}
	if n := countEvents(j, journal.EventSquareOff, ""); n != 2 {
		t.Fatalf("want 2 SQUAREOFF events, got %d", n)
	}
	if st := e.Status(testScope); len(st.Snapshot.Positions) != 0 {
		t.Fatalf("positions not flattened: %+v", st.Snapshot.Positions)
	}

	// Re-running the sweep must not duplicate exits.
	if err := e.CheckScope(testScope); err != nil {
		t.Fatalf("check scope: %v", err)
	}
	if n := countEvents(j, journal.EventSquareOff, ""); n != 2 {
		t.Fatalf("square-off duplicated on re-run: %d events", n)
	}
	if got := len(j.Fills()); got != 4 {
		t.Fatalf("want 4 fills (2 entries + 2 exits), got %d", got)
	}
}

func TestGlobalHaltSquaresOff(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true, SquareOff: true}, 100000)

	submit(t, e, buy("INFY", 100, 100))
	submit(t, e, buy("TCS", 50, 100))

	// Only the global breaker trips; the scope breaker stays armed.
	e.HaltAll("process halt")

	if err := e.CheckScope(testScope); err != nil {
		t.Fatalf("check scope: %v", err)
	}
	if n := countEvents(j, journal.EventSquareOff, string(risk.ReasonManual)); n != 2 {
		t.Fatalf("want 2 SQUAREOFF events under global halt, got %d", n)
	}
	if st := e.Status(testScope); len(st.Snapshot.Positions) != 0 {
		t.Fatalf("positions not flattened: %+v", st.Snapshot.Positions)
	}

	// Re-running the sweep must not duplicate exits.
	if err := e.CheckScope(testScope); err != nil {
		t.Fatalf("check scope: %v", err)
	}
	if got := len(j.Fills()); got != 4 {
		t.Fatalf("want 4 fills (2 entries + 2 exits), got %d", got)
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true}, 50000)

	submit(t, e, buy("A", 10, 100))
	submit(t, e, buy("B", 5, 200))
	submit(t, e, sell("A", 10, 105))
	submit(t, e, sell("B", 5, 190))

	var signed float64
	for _, f := range j.Fills() {
		s := 1.0
		if f.Side == "SELL" {
			s = -1
		}
		signed += s * f.Qty * f.Price
	}
	st := e.Status(testScope)
	if math.Abs(st.Snapshot.Cash-(50000-signed)) > 1e-9 {
		t.Fatalf("cash round trip broken: %.4f vs %.4f", st.Snapshot.Cash, 50000-signed)
	}
}

func TestCutoffRejectsAndExpiresPending(t *testing.T) {
	j := journal.NewMemory()
	e := New(Config{
		Defaults: risk.Limits{
			Enforce:       true,
			Cutoff:        15*time.Hour + 20*time.Minute,
			ExpirePending: true,
		},
		InitialCash: 100000,
	}, j)
	morning := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	e.clock = func() time.Time { return morning }

	// Pending limit order admitted in the morning.
	req := order.Request{
		Scope: testScope, Symbol: "TCS", Side: order.Buy, Qty: 10,
		Type: order.Limit, Price: 100, Product: order.Intraday, RefPrice: ref(105),
	}
	dec, _, err := e.EvaluateAndExecute(context.Background(), req)
	if err != nil || dec.Action != risk.Allow {
		t.Fatalf("morning submit: %v %s", err, dec.Action)
	}

	// Past cutoff: new orders rejected, pending book expired.
	e.clock = func() time.Time {
		return time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)
	}
	dec, _, err = e.EvaluateAndExecute(context.Background(), buy("INFY", 1, 100))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if dec.Reason != risk.ReasonCutoffReached {
		t.Fatalf("want CUTOFF_REACHED, got %s", dec.Reason)
	}

	if err := e.CheckScope(testScope); err != nil {
		t.Fatalf("check scope: %v", err)
	}
	if n := countEvents(j, journal.EventReject, string(risk.ReasonPendingExpired)); n != 1 {
		t.Fatalf("want 1 PENDING_EXPIRED rejection, got %d", n)
	}
	// Expired order must never fire, even if the price later crosses.
	if err := e.UpdatePrice("TCS", 95); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(j.Fills()) != 0 {
		t.Fatalf("expired pending order filled")
	}
}

func TestOverrideChainAffectsDecision(t *testing.T) {
	e, _ := newTestEngine(t, risk.Limits{Enforce: true, MaxPositionQty: 100}, 1000000)

	capQty := 10.0
	e.SetStrategyLimits(testScope, &risk.Overrides{MaxPositionQty: &capQty})

	dec, _ := submit(t, e, buy("INFY", 50, 100))
	if dec.Action != risk.Reject || dec.Reason != risk.ReasonMaxPositionQty {
		t.Fatalf("strategy override not applied: %s/%s", dec.Action, dec.Reason)
	}

	lim := e.EffectiveLimits(testScope)
	if lim.MaxPositionQty != 10 {
		t.Fatalf("effective limits wrong: %.0f", lim.MaxPositionQty)
	}
}

func TestScopesIsolatedAndConcurrent(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true}, 100000)

	scopes := []order.Scope{
		{User: "alice", Strategy: "a"},
		{User: "bob", Strategy: "b"},
		{User: "carol", Strategy: "c"},
	}

	var wg sync.WaitGroup
	for _, s := range scopes {
		wg.Add(1)
		go func(s order.Scope) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				req := order.Request{
					Scope: s, Symbol: "INFY", Side: order.Buy, Qty: 1,
					Type: order.Market, Product: order.Intraday, RefPrice: ref(100),
				}
				if _, _, err := e.EvaluateAndExecute(context.Background(), req); err != nil {
					t.Errorf("submit: %v", err)
					return
				}
			}
		}(s)
	}
	wg.Wait()

	if got := len(j.Fills()); got != 60 {
		t.Fatalf("want 60 fills, got %d", got)
	}
	for _, s := range scopes {
		st := e.Status(s)
		if st.Snapshot.Positions["INFY"].Qty != 20 {
			t.Fatalf("scope %s position drifted: %+v", s, st.Snapshot.Positions["INFY"])
		}
		if math.Abs(st.Snapshot.Cash-(100000-2000)) > 1e-9 {
			t.Fatalf("scope %s cash drifted: %.4f", s, st.Snapshot.Cash)
		}
	}
}

func TestHaltBlocksPendingFires(t *testing.T) {
	e, j := newTestEngine(t, risk.Limits{Enforce: true}, 100000)

	req := order.Request{
		Scope: testScope, Symbol: "TCS", Side: order.Buy, Qty: 10,
		Type: order.Limit, Price: 100, Product: order.Intraday, RefPrice: ref(105),
	}
	submit(t, e, req)

	e.Halt(testScope, "operator")

	// The trigger crosses while halted: re-evaluation rejects the
	// fire rather than slipping an entry through the halt.
	if err := e.UpdatePrice("TCS", 99); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if len(j.Fills()) != 0 {
		t.Fatalf("pending order filled through a halt")
	}
	if n := countEvents(j, journal.EventReject, string(risk.ReasonTradingHalted)); n != 1 {
		t.Fatalf("want halted rejection for the fire, got %d", n)
	}
}
