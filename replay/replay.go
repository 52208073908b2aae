// Package replay drives the engine from a recorded CSV session: price
// ticks interleaved with scripted orders and operator actions. It is
// the offline counterpart of the live run loop, useful for replaying
// an incident or exercising a limits configuration against history.
package replay

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/quantfold/riskgate/engine"
	"github.com/quantfold/riskgate/order"
	"github.com/quantfold/riskgate/risk"
)

// Stats summarizes one replay pass.
type Stats struct {
	Ticks    int
	Orders   int
	Allowed  int
	Reduced  int
	Rejected int
	Halts    int
}

// CSV replays a session file against the engine, one row at a time.
//
// Row formats (case-insensitive kinds, header row optional):
//
//	tick,SYMBOL,PRICE
//	order,USER,STRATEGY,SYMBOL,SIDE,QTY[,TYPE,TRIGGER]
//	halt,USER,STRATEGY[,MESSAGE]
//	resume,USER,STRATEGY
//
// SIDE is BUY or SELL; TYPE defaults to MARKET, with LIMIT and STOP
// taking the trigger price from the last column. Decisions land in the
// engine's journal exactly as they would live; the returned stats only
// summarize the pass.
func CSV(ctx context.Context, path string, e *engine.Engine) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var stats Stats
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		row, err := r.Read()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		line++
		if len(row) == 0 {
			continue
		}
		kind := strings.ToLower(strings.TrimSpace(row[0]))
		if line == 1 && kind == "kind" {
			continue // header
		}
		if err := handleRow(ctx, e, kind, row, &stats); err != nil {
			return stats, fmt.Errorf("line %d: %w", line, err)
		}
	}
}

func handleRow(ctx context.Context, e *engine.Engine, kind string, row []string, stats *Stats) error {
	switch kind {
	case "tick":
		if len(row) < 3 {
			return fmt.Errorf("tick needs symbol and price")
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return fmt.Errorf("tick price: %w", err)
		}
		stats.Ticks++
		return e.UpdatePrice(strings.TrimSpace(row[1]), price)

	case "order":
		if len(row) < 6 {
			return fmt.Errorf("order needs user, strategy, symbol, side, qty")
		}
		req, err := parseOrder(row)
		if err != nil {
			return err
		}
		stats.Orders++
		dec, _, err := e.EvaluateAndExecute(ctx, req)
		if err != nil {
			return err
		}
		switch dec.Action {
		case risk.Allow:
			stats.Allowed++
		case risk.ReduceQty:
			stats.Reduced++
		case risk.Reject:
			stats.Rejected++
		case risk.HaltTrading, risk.ForceSquareOff:
			stats.Halts++
		}
		return nil

	case "halt":
		if len(row) < 3 {
			return fmt.Errorf("halt needs user and strategy")
		}
		msg := ""
		if len(row) > 3 {
			msg = strings.TrimSpace(row[3])
		}
		e.Halt(scopeOf(row), msg)
		return nil

	case "resume":
		if len(row) < 3 {
			return fmt.Errorf("resume needs user and strategy")
		}
		e.Resume(scopeOf(row))
		return nil
	}
	return fmt.Errorf("unknown row kind %q", kind)
}

func scopeOf(row []string) order.Scope {
	return order.Scope{
		User:     strings.TrimSpace(row[1]),
		Strategy: strings.TrimSpace(row[2]),
	}
}

func parseOrder(row []string) (order.Request, error) {
	qty, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
	if err != nil {
		return order.Request{}, fmt.Errorf("order qty: %w", err)
	}

	var side order.Side
	switch strings.ToUpper(strings.TrimSpace(row[4])) {
	case "BUY":
		side = order.Buy
	case "SELL":
		side = order.Sell
	default:
		return order.Request{}, fmt.Errorf("order side %q: want BUY or SELL", row[4])
	}

	req := order.Request{
		Scope:   scopeOf(row),
		Symbol:  strings.TrimSpace(row[3]),
		Side:    side,
		Qty:     qty,
		Type:    order.Market,
		Product: order.Intraday,
	}

	if len(row) > 6 && strings.TrimSpace(row[6]) != "" {
		switch strings.ToUpper(strings.TrimSpace(row[6])) {
		case "MARKET":
		case "LIMIT":
			req.Type = order.Limit
		case "STOP":
			req.Type = order.Stop
		default:
			return order.Request{}, fmt.Errorf("order type %q", row[6])
		}
	}
	if req.Type != order.Market {
		if len(row) < 8 {
			return order.Request{}, fmt.Errorf("%s order needs a trigger price", req.Type)
		}
		trigger, err := strconv.ParseFloat(strings.TrimSpace(row[7]), 64)
		if err != nil {
			return order.Request{}, fmt.Errorf("order trigger: %w", err)
		}
		req.Price = trigger
	}
	return req, nil
}
