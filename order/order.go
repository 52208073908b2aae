// Package order holds the shared vocabulary types that move between the
// risk manager, circuit breaker and execution engine: order requests,
// fills, and the (user, strategy) scope they belong to.
package order

import "time"

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

type Type string

const (
	Market Type = "MARKET"
	Limit  Type = "LIMIT"
	Stop   Type = "STOP"
)

// Product selects the account treatment of an order. Delivery accounts
// are long-only: a sell may never exceed the open position. Intraday
// accounts may run signed (short) positions.
type Product string

const (
	Delivery Product = "DELIVERY"
	Intraday Product = "INTRADAY"
)

// Request is a candidate order as handed to the engine. Price is the
// limit/stop trigger price and is ignored for market orders. RefPrice,
// when non-nil, pins the fill price so backtests and tests are
// deterministic; otherwise the last known mark is used.
type Request struct {
	ID      string
	Scope   Scope
	Symbol  string
	Side    Side
	Qty     float64
	Type    Type
	Product Product

	Price    float64
	RefPrice *float64

	// Optional exit thresholds attached to the resulting position.
	StopLoss   *float64
	TakeProfit *float64

	// Liquidation marks an engine-synthesized exit (stop-loss,
	// take-profit or square-off). Exits only reduce exposure, so the
	// risk manager waives entry gates for them while still recording
	// the decision. Cause carries the trigger's reason code.
	Liquidation bool
	Cause       string

	Time time.Time
}

// Fill is the write-once result of a successful execution.
type Fill struct {
	ID      string
	OrderID string
	Scope   Scope
	Symbol  string
	Side    Side
	Qty     float64
	Price   float64
	Fees    float64
	Time    time.Time
}

// Notional returns the unsigned cash value of the fill before fees.
func (f Fill) Notional() float64 { return f.Qty * f.Price }
