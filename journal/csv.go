// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	events *csv.Writer
	fills  *csv.Writer
	evf    *os.File
	flf    *os.File
}

func NewCSV(eventsPath, fillsPath string) (*CSVJournal, error) {
	evf, err := os.Create(eventsPath)
	if err != nil {
		return nil, err
	}
	flf, err := os.Create(fillsPath)
	if err != nil {
		evf.Close()
		return nil, err
	}

	ew := csv.NewWriter(evf)
	fw := csv.NewWriter(flf)

	if err := ew.Write([]string{"event_id", "type", "reason", "message", "user", "strategy", "snapshot", "time"}); err != nil {
		return nil, err
	}
	if err := fw.Write([]string{"fill_id", "order_id", "user", "strategy", "symbol", "side", "qty", "price", "fees", "time"}); err != nil {
		return nil, err
	}

	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}
	fw.Flush()
	if err := fw.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{events: ew, fills: fw, evf: evf, flf: flf}, nil
}

func (j *CSVJournal) RecordEvent(e Event) error {
	err := j.events.Write([]string{
		e.ID,
		string(e.Type),
		e.Reason,
		e.Message,
		e.User,
		e.Strategy,
		e.Snapshot,
		e.Time.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.events.Flush()
	return j.events.Error()
}

func (j *CSVJournal) RecordFill(rec FillRecord) error {
	err := j.fills.Write([]string{
		rec.FillID,
		rec.OrderID,
		rec.User,
		rec.Strategy,
		rec.Symbol,
		rec.Side,
		f(rec.Qty),
		f(rec.Price),
		f(rec.Fees),
		rec.Time.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.fills.Flush()
	return j.fills.Error()
}

func (j *CSVJournal) Close() error {
	j.events.Flush()
	if err := j.events.Error(); err != nil {
		return err
	}
	j.fills.Flush()
	if err := j.fills.Error(); err != nil {
		return err
	}
	if err := j.evf.Close(); err != nil {
		return err
	}
	return j.flf.Close()
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
