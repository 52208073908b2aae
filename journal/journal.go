// Package journal is the append-only audit trail: every risk decision,
// breaker transition and executed fill lands here exactly once and is
// never mutated or deleted.
package journal

import "time"

// EventType classifies an audit event.
type EventType string

const (
	EventReject       EventType = "REJECT"
	EventAllowReduced EventType = "ALLOW_REDUCED"
	EventHalt         EventType = "HALT"
	EventSquareOff    EventType = "SQUAREOFF"
	EventResume       EventType = "RESUME"
	EventLimits       EventType = "LIMITS_UPDATED"
)

// Event is one immutable audit record. Snapshot carries the JSON
// portfolio snapshot observed when the decision was made.
type Event struct {
	ID       string
	Type     EventType
	Reason   string
	Message  string
	User     string
	Strategy string
	Snapshot string
	Time     time.Time
}

// FillRecord is the journal's view of an executed fill.
type FillRecord struct {
	FillID   string
	OrderID  string
	User     string
	Strategy string
	Symbol   string
	Side     string
	Qty      float64
	Price    float64
	Fees     float64
	Time     time.Time
}

type Journal interface {
	RecordEvent(Event) error
	RecordFill(FillRecord) error
	Close() error
}
