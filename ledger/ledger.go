// Package ledger holds per-scope portfolio state: cash, open positions
// with volume-weighted entry prices, realized and unrealized P&L, and
// exposure. The execution engine is the sole writer and serializes all
// access under its per-scope lock, so the types here carry no locking
// of their own.
package ledger

import (
	"fmt"
	"math"

	"github.com/quantfold/riskgate/order"
	"github.com/quantfold/riskgate/risk"
)

// Position is one open position. Qty is signed: positive long,
// negative short. StopLoss/TakeProfit of zero mean unset.
type Position struct {
	Symbol     string
	Qty        float64
	AvgPrice   float64
	StopLoss   float64
	TakeProfit float64
}

// Portfolio is the accounting state for one scope.
type Portfolio struct {
	Cash           float64
	DayStartEquity float64
	RealizedPL     float64 // day's realized P&L

	positions map[string]*Position
	marks     map[string]float64
}

func New(cash float64) *Portfolio {
	return &Portfolio{
		Cash:           cash,
		DayStartEquity: cash,
		positions:      make(map[string]*Position),
		marks:          make(map[string]float64),
	}
}

// Position returns the open position for symbol, or nil when flat.
func (p *Portfolio) Position(symbol string) *Position {
	pos := p.positions[symbol]
	if pos == nil || pos.Qty == 0 {
		return nil
	}
	return pos
}

// Positions returns all open positions.
func (p *Portfolio) Positions() []*Position {
	out := make([]*Position, 0, len(p.positions))
	for _, pos := range p.positions {
		if pos.Qty != 0 {
			out = append(out, pos)
		}
	}
	return out
}

// Mark records the latest reference price for symbol.
func (p *Portfolio) Mark(symbol string, price float64) {
	p.marks[symbol] = price
}

// MarkPrice returns the last recorded mark, falling back to the
// position's entry price so a never-marked position values at cost.
func (p *Portfolio) MarkPrice(symbol string) float64 {
	if px, ok := p.marks[symbol]; ok {
		return px
	}
	if pos := p.positions[symbol]; pos != nil {
		return pos.AvgPrice
	}
	return 0
}

// Apply commits a fill: cash moves by the signed notional plus fees,
// the position quantity and volume-weighted entry price update, and
// P&L realizes on any reducing portion. Apply either fully commits or
// leaves the portfolio untouched.
func (p *Portfolio) Apply(f order.Fill) error {
	if f.Qty <= 0 || f.Price <= 0 {
		return fmt.Errorf("apply fill %s: non-positive qty or price", f.ID)
	}

	pos := p.positions[f.Symbol]
	if pos == nil {
		pos = &Position{Symbol: f.Symbol}
	}

	signed := f.Side.Sign() * f.Qty
	oldQty := pos.Qty
	newQty := oldQty + signed

	// Realize P&L on the portion that reduces the existing position.
	var realized float64
	reducing := oldQty != 0 && sign(signed) != sign(oldQty)
	if reducing {
		closed := math.Min(math.Abs(signed), math.Abs(oldQty))
		realized = (f.Price - pos.AvgPrice) * closed * sign(oldQty)
	}

	// New average entry: VWAP on same-side additions, entry resets to
	// the fill price when the position flips through zero.
	newAvg := pos.AvgPrice
	switch {
	case newQty == 0:
		newAvg = 0
	case oldQty == 0 || sign(newQty) != sign(oldQty):
		newAvg = f.Price
	case !reducing:
		newAvg = (pos.AvgPrice*math.Abs(oldQty) + f.Price*math.Abs(signed)) / math.Abs(newQty)
	}

	p.Cash -= signed*f.Price + f.Fees
	p.RealizedPL += realized
	pos.Qty = newQty
	pos.AvgPrice = newAvg
	if newQty == 0 {
		delete(p.positions, f.Symbol)
	} else {
		p.positions[f.Symbol] = pos
	}
	p.marks[f.Symbol] = f.Price
	return nil
}

// UnrealizedPL marks every open position against its last known price.
func (p *Portfolio) UnrealizedPL() float64 {
	var pl float64
	for sym, pos := range p.positions {
		if pos.Qty == 0 {
			continue
		}
		pl += (p.MarkPrice(sym) - pos.AvgPrice) * pos.Qty
	}
	return pl
}

// GrossExposure is the sum of absolute position values at mark.
func (p *Portfolio) GrossExposure() float64 {
	var v float64
	for sym, pos := range p.positions {
		v += math.Abs(pos.Qty) * p.MarkPrice(sym)
	}
	return v
}

// NetExposure is the signed sum of position values at mark.
func (p *Portfolio) NetExposure() float64 {
	var v float64
	for sym, pos := range p.positions {
		v += pos.Qty * p.MarkPrice(sym)
	}
	return v
}

// Equity is cash plus the marked value of open positions.
func (p *Portfolio) Equity() float64 {
	return p.Cash + p.NetExposure()
}

// ResetDay rebases the day-start equity and clears the day's realized
// P&L, typically at session rollover.
func (p *Portfolio) ResetDay() {
	p.DayStartEquity = p.Equity()
	p.RealizedPL = 0
}

// CheckInvariants verifies the accounting is still self-consistent
// after a mutation. A failure here is an engine bug, never a policy
// rejection, and the caller must halt the scope defensively.
func (p *Portfolio) CheckInvariants() error {
	if math.IsNaN(p.Cash) || math.IsInf(p.Cash, 0) {
		return fmt.Errorf("ledger drift: cash is %v", p.Cash)
	}
	for sym, pos := range p.positions {
		if math.IsNaN(pos.Qty) || math.IsNaN(pos.AvgPrice) || pos.AvgPrice < 0 {
			return fmt.Errorf("ledger drift: position %s qty=%v avg=%v", sym, pos.Qty, pos.AvgPrice)
		}
	}
	return nil
}

// Snapshot builds the read-only view handed to the risk manager. The
// caller supplies the gate state and open-order count it observed
// under the same lock.
func (p *Portfolio) Snapshot(halted bool, openOrders int) risk.Snapshot {
	views := make(map[string]risk.PositionView, len(p.positions))
	for sym, pos := range p.positions {
		if pos.Qty == 0 {
			continue
		}
		views[sym] = risk.PositionView{
			Qty:      pos.Qty,
			AvgPrice: pos.AvgPrice,
			Mark:     p.MarkPrice(sym),
		}
	}
	return risk.Snapshot{
		Halted:         halted,
		Cash:           p.Cash,
		Equity:         p.Equity(),
		DayStartEquity: p.DayStartEquity,
		RealizedPL:     p.RealizedPL,
		UnrealizedPL:   p.UnrealizedPL(),
		GrossExposure:  p.GrossExposure(),
		NetExposure:    p.NetExposure(),
		OpenOrders:     openOrders,
		Positions:      views,
	}
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
