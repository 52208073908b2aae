package journal

import (
	"sync"
	"time"
)

// Memory is an in-process journal. It backs tests and also serves as
// the authoritative in-memory view when the durable backend is written
// asynchronously.
type Memory struct {
	mu     sync.Mutex
	events []Event
	fills  []FillRecord
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordEvent(e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) RecordFill(f FillRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fills = append(m.fills, f)
	return nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of all recorded events in append order.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Fills returns a copy of all recorded fills in append order.
func (m *Memory) Fills() []FillRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FillRecord, len(m.fills))
	copy(out, m.fills)
	return out
}

// EventsBetween returns events within [start, end), paged.
func (m *Memory) EventsBetween(start, end time.Time, limit, offset int) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var window []Event
	for _, e := range m.events {
		if !e.Time.Before(start) && e.Time.Before(end) {
			window = append(window, e)
		}
	}
	if offset >= len(window) {
		return nil
	}
	window = window[offset:]
	if limit > 0 && limit < len(window) {
		window = window[:limit]
	}
	return window
}
