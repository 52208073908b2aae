package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/riskgate/order"
)

func fill(symbol string, side order.Side, qty, price float64) order.Fill {
	return order.Fill{
		ID: "f", OrderID: "o",
		Symbol: symbol, Side: side, Qty: qty, Price: price,
	}
}

func TestApplyBuyThenVWAP(t *testing.T) {
	p := New(100000)

	require.NoError(t, p.Apply(fill("INFY", order.Buy, 10, 100)))
	require.NoError(t, p.Apply(fill("INFY", order.Buy, 10, 110)))

	pos := p.Position("INFY")
	require.NotNil(t, pos)
	assert.Equal(t, 20.0, pos.Qty)
	assert.Equal(t, 105.0, pos.AvgPrice)
	assert.Equal(t, 100000.0-10*100-10*110, p.Cash)
}

func TestApplyRealizesOnReduce(t *testing.T) {
	p := New(100000)

	require.NoError(t, p.Apply(fill("INFY", order.Buy, 10, 100)))
	require.NoError(t, p.Apply(fill("INFY", order.Sell, 4, 110)))

	assert.Equal(t, 40.0, p.RealizedPL) // (110-100) * 4
	pos := p.Position("INFY")
	require.NotNil(t, pos)
	assert.Equal(t, 6.0, pos.Qty)
	assert.Equal(t, 100.0, pos.AvgPrice) // entry unchanged on reduce
}

func TestApplyFlipThroughZero(t *testing.T) {
	p := New(100000)

	require.NoError(t, p.Apply(fill("INFY", order.Buy, 10, 100)))
	require.NoError(t, p.Apply(fill("INFY", order.Sell, 15, 90)))

	assert.Equal(t, -100.0, p.RealizedPL) // closed 10 at -10 each
	pos := p.Position("INFY")
	require.NotNil(t, pos)
	assert.Equal(t, -5.0, pos.Qty)
	assert.Equal(t, 90.0, pos.AvgPrice) // short entry resets to flip price
}

func TestApplyFlattenRemovesPosition(t *testing.T) {
	p := New(100000)
	require.NoError(t, p.Apply(fill("INFY", order.Buy, 10, 100)))
	require.NoError(t, p.Apply(fill("INFY", order.Sell, 10, 105)))

	assert.Nil(t, p.Position("INFY"))
	assert.Equal(t, 50.0, p.RealizedPL)
	assert.Empty(t, p.Positions())
}

func TestCashRoundTrip(t *testing.T) {
	// Final cash equals initial cash minus the signed sum of
	// qty*price across fills (no fees modeled here).
	p := New(50000)
	fills := []order.Fill{
		fill("A", order.Buy, 10, 100),
		fill("B", order.Buy, 5, 200),
		fill("A", order.Sell, 10, 105),
		fill("B", order.Sell, 5, 190),
	}
	var signed float64
	for _, f := range fills {
		require.NoError(t, p.Apply(f))
		signed += f.Side.Sign() * f.Qty * f.Price
	}
	assert.InDelta(t, 50000-signed, p.Cash, 1e-9)
}

func TestMarkToMarket(t *testing.T) {
	p := New(100000)
	require.NoError(t, p.Apply(fill("INFY", order.Buy, 10, 100)))

	p.Mark("INFY", 95)
	assert.InDelta(t, -50.0, p.UnrealizedPL(), 1e-9)
	assert.InDelta(t, 950.0, p.GrossExposure(), 1e-9)
	assert.InDelta(t, 950.0, p.NetExposure(), 1e-9)
	assert.InDelta(t, p.Cash+950, p.Equity(), 1e-9)
}

func TestExposureSignedAndAbsolute(t *testing.T) {
	p := New(100000)
	require.NoError(t, p.Apply(fill("LONG", order.Buy, 10, 100)))
	require.NoError(t, p.Apply(fill("SHORT", order.Sell, 10, 100)))

	assert.InDelta(t, 2000.0, p.GrossExposure(), 1e-9)
	assert.InDelta(t, 0.0, p.NetExposure(), 1e-9)
}

func TestApplyRejectsBadFill(t *testing.T) {
	p := New(1000)
	assert.Error(t, p.Apply(fill("X", order.Buy, 0, 100)))
	assert.Error(t, p.Apply(fill("X", order.Buy, 10, 0)))
	assert.Equal(t, 1000.0, p.Cash)
}

func TestCheckInvariants(t *testing.T) {
	p := New(1000)
	require.NoError(t, p.CheckInvariants())

	p.Cash = math.NaN()
	assert.Error(t, p.CheckInvariants())
}

func TestSnapshotIsDetached(t *testing.T) {
	p := New(100000)
	require.NoError(t, p.Apply(fill("INFY", order.Buy, 10, 100)))

	snap := p.Snapshot(false, 2)
	assert.Equal(t, 2, snap.OpenOrders)
	assert.Equal(t, 10.0, snap.Positions["INFY"].Qty)

	// Mutating the book must not leak into an issued snapshot.
	require.NoError(t, p.Apply(fill("INFY", order.Sell, 10, 100)))
	assert.Equal(t, 10.0, snap.Positions["INFY"].Qty)
}

func TestResetDay(t *testing.T) {
	p := New(100000)
	require.NoError(t, p.Apply(fill("INFY", order.Buy, 10, 100)))
	require.NoError(t, p.Apply(fill("INFY", order.Sell, 10, 90)))
	assert.Equal(t, -100.0, p.RealizedPL)

	p.ResetDay()
	assert.Zero(t, p.RealizedPL)
	assert.InDelta(t, p.Equity(), p.DayStartEquity, 1e-9)
}
