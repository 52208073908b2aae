package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/quantfold/riskgate/order"
)

// Evaluate decides whether a candidate order may proceed. It is a pure
// function of its inputs: no logging, no mutation. The caller emits the
// resulting journal event and, on Allow/ReduceQty, applies the order.
//
// Checks run in a fixed order so the first breach reported is
// deterministic: halted, cutoff, open-order count, per-symbol caps,
// portfolio exposure, daily loss. Every failing rule is appended to
// Breached even after an earlier rule has decided the outcome.
//
// Engine-synthesized exits (req.Liquidation) only reduce exposure, so
// the entry gates (halt, cutoff, order count, caps, exposure) are
// waived for them; the daily-loss circuit still reports.
func Evaluate(req order.Request, lim Limits, snap Snapshot, now time.Time) Decision {
	if !lim.Enforce {
		return Decision{Action: Allow}
	}

	d := Decision{Action: Allow}
	decide := func(v Decision) {
		if d.Action == Allow {
			reasons := d.Breached
			d = v
			d.Breached = reasons
		}
	}
	breach := func(r Reason) { d.Breached = append(d.Breached, r) }

	entry := !req.Liquidation

	// 1. Halt gate.
	if snap.Halted && entry {
		breach(ReasonTradingHalted)
		decide(Decision{
			Action:  Reject,
			Reason:  ReasonTradingHalted,
			Message: "trading is halted for this scope",
		})
	}

	// 2. Session cutoff.
	if lim.Cutoff > 0 && entry && sinceMidnight(now) >= lim.Cutoff {
		breach(ReasonCutoffReached)
		decide(Decision{
			Action:  Reject,
			Reason:  ReasonCutoffReached,
			Message: fmt.Sprintf("past session cutoff %s", fmtClock(lim.Cutoff)),
		})
	}

	// 3. Open order count.
	if lim.MaxOpenOrders > 0 && entry && snap.OpenOrders >= lim.MaxOpenOrders {
		breach(ReasonMaxOpenOrders)
		decide(Decision{
			Action:  Reject,
			Reason:  ReasonMaxOpenOrders,
			Message: fmt.Sprintf("open orders %d >= max %d", snap.OpenOrders, lim.MaxOpenOrders),
		})
	}

	price := referencePrice(req, snap)
	pos := snap.Position(req.Symbol)
	newQty := pos.Qty + req.Side.Sign()*req.Qty
	absNew := math.Abs(newQty)

	// 4. Per-symbol caps: reduce to the largest quantity satisfying
	// every breached cap, or reject outright per configuration. The
	// headroom is against the resulting signed position, so an order
	// that first closes an opposite-sign position gets credit for the
	// closed portion.
	if entry {
		headroom := math.Inf(1)
		capped := false
		if lim.MaxPositionQty > 0 && absNew > lim.MaxPositionQty {
			breach(ReasonMaxPositionQty)
			capped = true
			headroom = math.Min(headroom, lim.MaxPositionQty-req.Side.Sign()*pos.Qty)
			decideCap(&d, lim, headroom, ReasonMaxPositionQty,
				fmt.Sprintf("resulting qty %.4f exceeds max %.4f", absNew, lim.MaxPositionQty))
		}
		if lim.MaxPositionValue > 0 && price > 0 && absNew*price > lim.MaxPositionValue {
			breach(ReasonMaxPositionValue)
			capped = true
			headroom = math.Min(headroom, lim.MaxPositionValue/price-req.Side.Sign()*pos.Qty)
			decideCap(&d, lim, headroom, ReasonMaxPositionValue,
				fmt.Sprintf("resulting value %.2f exceeds max %.2f", absNew*price, lim.MaxPositionValue))
		}
		// When both caps breach, the reduce quantity must satisfy the
		// tighter of the two. No headroom at all means reject.
		if capped && d.Action == ReduceQty {
			d.AllowedQty = math.Max(headroom, 0)
			if d.AllowedQty == 0 {
				d.Action = Reject
			}
		}
	}

	// 5. Portfolio exposure, gross and net evaluated independently.
	// The symbol's current contribution is removed at its mark, the
	// price it carries inside the snapshot aggregates, and re-added at
	// the evaluation price.
	if entry {
		gross := snap.GrossExposure - math.Abs(pos.Qty)*pos.Mark + absNew*price
		net := snap.NetExposure - pos.Qty*pos.Mark + newQty*price
		if lim.MaxGrossExposure > 0 && gross > lim.MaxGrossExposure {
			breach(ReasonMaxExposure)
			decide(Decision{
				Action:  Reject,
				Reason:  ReasonMaxExposure,
				Message: fmt.Sprintf("gross exposure %.2f would exceed max %.2f", gross, lim.MaxGrossExposure),
			})
		}
		if lim.MaxNetExposure > 0 && math.Abs(net) > lim.MaxNetExposure {
			breach(ReasonMaxExposure)
			decide(Decision{
				Action:  Reject,
				Reason:  ReasonMaxExposure,
				Message: fmt.Sprintf("net exposure %.2f would exceed max %.2f", net, lim.MaxNetExposure),
			})
		}
	}

	// 6. Daily loss circuit. A breach halts the scope; with square-off
	// enabled the caller also flattens open positions.
	if DailyLossBreached(lim, snap) {
		breach(ReasonMaxDailyLoss)
		// Exits must still execute under a breached loss limit, so
		// only entries take the halt decision.
		if entry {
			action := HaltTrading
			if lim.SquareOff {
				action = ForceSquareOff
			}
			decide(Decision{
				Action:  action,
				Reason:  ReasonMaxDailyLoss,
				Message: fmt.Sprintf("day P&L %.2f breached daily loss limit", snap.DayPL()),
			})
		}
	}

	return d
}

// decideCap applies the configured cap policy: reduce when permitted
// and there is headroom, otherwise reject.
func decideCap(d *Decision, lim Limits, headroom float64, r Reason, msg string) {
	if d.Action != Allow {
		return
	}
	if lim.ReduceOnCap && headroom > 0 {
		d.Action = ReduceQty
		d.Reason = r
		d.Message = msg
		d.AllowedQty = headroom
		return
	}
	d.Action = Reject
	d.Reason = r
	d.Message = msg
	d.AllowedQty = 0
}

// DailyLossBreached reports whether the scope's day P&L has crossed the
// configured daily-loss limit. The absolute and percentage limits
// combine per lim.DailyLossCombo; the default (ANY) halts when either
// enabled limit is breached.
func DailyLossBreached(lim Limits, snap Snapshot) bool {
	dayPL := snap.DayPL()

	absEnabled := lim.MaxDailyLoss > 0
	absHit := absEnabled && dayPL <= -lim.MaxDailyLoss

	pctEnabled := lim.MaxDailyLossPct > 0 && snap.DayStartEquity > 0
	pctHit := pctEnabled && dayPL <= -lim.MaxDailyLossPct*snap.DayStartEquity

	switch {
	case absEnabled && pctEnabled:
		if lim.DailyLossCombo == LossComboBoth {
			return absHit && pctHit
		}
		return absHit || pctHit
	case absEnabled:
		return absHit
	case pctEnabled:
		return pctHit
	default:
		return false
	}
}

// referencePrice picks the price used for cap and exposure math: the
// injected reference price when present, the order's trigger price for
// conditional orders, else the last known mark.
func referencePrice(req order.Request, snap Snapshot) float64 {
	if req.RefPrice != nil {
		return *req.RefPrice
	}
	if req.Type != order.Market && req.Price > 0 {
		return req.Price
	}
	return snap.Position(req.Symbol).Mark
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

func fmtClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
