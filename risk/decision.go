package risk

type Action string

const (
	Allow          Action = "ALLOW"
	Reject         Action = "REJECT"
	ReduceQty      Action = "REDUCE_QTY"
	HaltTrading    Action = "HALT_TRADING"
	ForceSquareOff Action = "FORCE_SQUARE_OFF"
)

// Reason is a machine-readable code attached to every non-allow
// decision. Policy rejections carry these; they are values, never Go
// errors.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonTradingHalted        Reason = "TRADING_HALTED"
	ReasonCutoffReached        Reason = "CUTOFF_REACHED"
	ReasonMaxOpenOrders        Reason = "MAX_OPEN_ORDERS"
	ReasonMaxPositionQty       Reason = "MAX_POSITION_QTY"
	ReasonMaxPositionValue     Reason = "MAX_POSITION_VALUE"
	ReasonMaxExposure          Reason = "MAX_EXPOSURE"
	ReasonMaxDailyLoss         Reason = "MAX_DAILY_LOSS"
	ReasonInsufficientCash     Reason = "INSUFFICIENT_CASH"
	ReasonInsufficientPosition Reason = "INSUFFICIENT_POSITION"
	ReasonPendingExpired       Reason = "PENDING_EXPIRED"
	ReasonNotTriggered         Reason = "NOT_TRIGGERED"
	ReasonStopLoss             Reason = "STOP_LOSS"
	ReasonTakeProfit           Reason = "TAKE_PROFIT"
	ReasonManual               Reason = "MANUAL"
)

// Decision is the risk manager's verdict on one candidate order. It is
// never persisted on its own; the caller records it via the resulting
// journal event. Breached enumerates every rule that failed, including
// rules evaluated after the outcome was already decided.
type Decision struct {
	Action     Action
	Reason     Reason
	Message    string
	AllowedQty float64 // populated only for ReduceQty
	Breached   []Reason
}

// Blocked reports whether the order must not reach the execution
// engine.
func (d Decision) Blocked() bool {
	return d.Action != Allow && d.Action != ReduceQty
}
