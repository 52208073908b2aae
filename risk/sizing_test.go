package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskPerTrade(t *testing.T) {
	res := RiskPerTrade(SizeInputs{
		Equity:     100000,
		RiskPct:    0.01,
		EntryPrice: 100,
		StopPrice:  98,
	})
	// 1% of 100k = 1000 at risk, stop distance 2 -> 500 units
	assert.Equal(t, 500.0, res.Qty)
	assert.Equal(t, 2.0, res.StopDist)
	assert.Equal(t, 1000.0, res.RiskAmount)
}

func TestRiskPerTradeDegenerate(t *testing.T) {
	res := RiskPerTrade(SizeInputs{Equity: 100000, RiskPct: 0.01, EntryPrice: 100, StopPrice: 100})
	assert.Zero(t, res.Qty)
}

func TestFixedFraction(t *testing.T) {
	assert.Equal(t, 100.0, FixedFraction(100000, 0.1, 100))
	assert.Zero(t, FixedFraction(100000, 0, 100))
	assert.Zero(t, FixedFraction(100000, 0.1, 0))
}
