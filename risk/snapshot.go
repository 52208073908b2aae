package risk

import "time"

// PositionView is the read-only view of one open position inside a
// Snapshot.
type PositionView struct {
	Qty      float64 // signed: positive long, negative short
	AvgPrice float64
	Mark     float64
}

// Snapshot is a point-in-time, read-only view of one scope's portfolio
// and gate state. The execution engine builds it under the scope lock;
// Evaluate only ever reads it.
type Snapshot struct {
	Time   time.Time
	Halted bool

	Cash           float64
	Equity         float64
	DayStartEquity float64
	RealizedPL     float64
	UnrealizedPL   float64
	GrossExposure  float64
	NetExposure    float64

	OpenOrders int
	Positions  map[string]PositionView
}

// DayPL is the day's realized plus unrealized P&L.
func (s Snapshot) DayPL() float64 { return s.RealizedPL + s.UnrealizedPL }

// Position returns the view for symbol, zero-valued if flat.
func (s Snapshot) Position(symbol string) PositionView {
	return s.Positions[symbol]
}
