package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordEvent(e Event) error {
	_, err := j.db.Exec(`
		INSERT INTO events
		(event_id, type, reason, message, user, strategy, snapshot, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Reason, e.Message,
		e.User, e.Strategy, e.Snapshot, e.Time,
	)
	return err
}

func (j *SQLiteJournal) RecordFill(f FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills
		(fill_id, order_id, user, strategy, symbol, side, qty, price, fees, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.FillID, f.OrderID, f.User, f.Strategy, f.Symbol,
		f.Side, f.Qty, f.Price, f.Fees, f.Time,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
