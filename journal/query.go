package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// GetEvent returns a single event by ID.
func (j *SQLiteJournal) GetEvent(eventID string) (Event, error) {
	var e Event
	var typ string

	row := j.db.QueryRow(`
		SELECT event_id, type, reason, message, user, strategy, snapshot, time
		FROM events
		WHERE event_id = ?`, eventID)

	err := row.Scan(&e.ID, &typ, &e.Reason, &e.Message, &e.User, &e.Strategy, &e.Snapshot, &e.Time)
	if err != nil {
		if err == sql.ErrNoRows {
			return Event{}, fmt.Errorf("event %q not found", eventID)
		}
		return Event{}, err
	}
	e.Type = EventType(typ)
	return e, nil
}

// ListEventsBetween returns events whose time is within [start, end),
// oldest first, paged by limit/offset. A limit of 0 means no limit.
func (j *SQLiteJournal) ListEventsBetween(start, end time.Time, limit, offset int) ([]Event, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := j.db.Query(`
		SELECT event_id, type, reason, message, user, strategy, snapshot, time
		FROM events
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, event_id ASC
		LIMIT ? OFFSET ?`, start, end, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.Reason, &e.Message, &e.User, &e.Strategy, &e.Snapshot, &e.Time); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFillsBetween returns fills whose time is within [start, end),
// oldest first, paged by limit/offset.
func (j *SQLiteJournal) ListFillsBetween(start, end time.Time, limit, offset int) ([]FillRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.Query(`
		SELECT fill_id, order_id, user, strategy, symbol, side, qty, price, fees, time
		FROM fills
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, fill_id ASC
		LIMIT ? OFFSET ?`, start, end, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var f FillRecord
		if err := rows.Scan(&f.FillID, &f.OrderID, &f.User, &f.Strategy, &f.Symbol,
			&f.Side, &f.Qty, &f.Price, &f.Fees, &f.Time); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
