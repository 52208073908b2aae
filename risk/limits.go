package risk

import "time"

// LossCombo selects how absolute and percentage daily-loss limits
// combine when both are enabled.
type LossCombo string

const (
	// LossComboAny halts when either limit is breached (default).
	LossComboAny LossCombo = "ANY"
	// LossComboBoth halts only when both limits are breached.
	LossComboBoth LossCombo = "BOTH"
)

// Limits is a fully resolved set of risk limits for one scope. A zero
// value on any cap field disables that cap.
type Limits struct {
	// Enforcement switches
	Enforce     bool
	SquareOff   bool // flatten open positions when a daily-loss halt fires
	ReduceOnCap bool // reduce instead of reject on per-symbol cap breach

	// Daily loss circuit
	MaxDailyLoss    float64 // absolute, account currency
	MaxDailyLossPct float64 // fraction of day-start equity
	DailyLossCombo  LossCombo

	// Per-symbol caps
	MaxPositionValue float64
	MaxPositionQty   float64

	// Portfolio-wide caps
	MaxGrossExposure float64
	MaxNetExposure   float64

	MaxOpenOrders int

	// Cutoff is the trading-day time-of-day (offset from midnight in
	// the trading location) after which new entries are rejected.
	Cutoff time.Duration

	// ExpirePending drops unmet limit/stop orders at the cutoff
	// instead of carrying them indefinitely.
	ExpirePending bool
}

// Overrides is one layer of the override chain. Only non-nil fields
// take effect, so a user or strategy layer can pin a single field and
// inherit the rest.
type Overrides struct {
	Enforce     *bool
	SquareOff   *bool
	ReduceOnCap *bool

	MaxDailyLoss    *float64
	MaxDailyLossPct *float64
	DailyLossCombo  *LossCombo

	MaxPositionValue *float64
	MaxPositionQty   *float64
	MaxGrossExposure *float64
	MaxNetExposure   *float64
	MaxOpenOrders    *int

	Cutoff        *time.Duration
	ExpirePending *bool
}

// Resolve merges the override chain strategy > user > default into one
// concrete Limits. Resolution happens per field at evaluation time and
// is never cached across evaluations.
func Resolve(def Limits, user, strat *Overrides) Limits {
	out := def
	for _, o := range []*Overrides{user, strat} {
		if o == nil {
			continue
		}
		if o.Enforce != nil {
			out.Enforce = *o.Enforce
		}
		if o.SquareOff != nil {
			out.SquareOff = *o.SquareOff
		}
		if o.ReduceOnCap != nil {
			out.ReduceOnCap = *o.ReduceOnCap
		}
		if o.MaxDailyLoss != nil {
			out.MaxDailyLoss = *o.MaxDailyLoss
		}
		if o.MaxDailyLossPct != nil {
			out.MaxDailyLossPct = *o.MaxDailyLossPct
		}
		if o.DailyLossCombo != nil {
			out.DailyLossCombo = *o.DailyLossCombo
		}
		if o.MaxPositionValue != nil {
			out.MaxPositionValue = *o.MaxPositionValue
		}
		if o.MaxPositionQty != nil {
			out.MaxPositionQty = *o.MaxPositionQty
		}
		if o.MaxGrossExposure != nil {
			out.MaxGrossExposure = *o.MaxGrossExposure
		}
		if o.MaxNetExposure != nil {
			out.MaxNetExposure = *o.MaxNetExposure
		}
		if o.MaxOpenOrders != nil {
			out.MaxOpenOrders = *o.MaxOpenOrders
		}
		if o.Cutoff != nil {
			out.Cutoff = *o.Cutoff
		}
		if o.ExpirePending != nil {
			out.ExpirePending = *o.ExpirePending
		}
	}
	return out
}
