package risk

import "math"

// SizeInputs feeds the risk-per-trade sizer.
type SizeInputs struct {
	Equity     float64
	RiskPct    float64 // fraction of equity risked if the stop is hit
	EntryPrice float64
	StopPrice  float64
}

// SizeResult carries the computed quantity together with the figures
// that produced it, for journaling.
type SizeResult struct {
	Qty        float64
	StopDist   float64
	RiskAmount float64
}

// RiskPerTrade sizes a position so that hitting the stop loses at most
// Equity*RiskPct. Quantity is floored to whole units.
func RiskPerTrade(in SizeInputs) SizeResult {
	dist := math.Abs(in.EntryPrice - in.StopPrice)
	riskAmt := in.Equity * in.RiskPct
	if dist <= 0 || riskAmt <= 0 {
		return SizeResult{StopDist: dist, RiskAmount: riskAmt}
	}
	return SizeResult{
		Qty:        math.Floor(riskAmt / dist),
		StopDist:   dist,
		RiskAmount: riskAmt,
	}
}

// FixedFraction sizes a position as a fixed fraction of equity at the
// given price, floored to whole units.
func FixedFraction(equity, fraction, price float64) float64 {
	if price <= 0 || fraction <= 0 || equity <= 0 {
		return 0
	}
	return math.Floor(equity * fraction / price)
}
