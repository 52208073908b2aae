package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quantfold/riskgate/engine"
	"github.com/quantfold/riskgate/journal"
	"github.com/quantfold/riskgate/order"
	"github.com/quantfold/riskgate/risk"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a deterministic demo session through the gate",
	Long: `Submit a small scripted order flow against tight limits and print
every decision, fill and audit event. Useful for a quick feel of the
decision procedure without any configuration.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	j := journal.NewMemory()
	eng := engine.New(engine.Config{
		Defaults: risk.Limits{
			Enforce:        true,
			ReduceOnCap:    true,
			MaxPositionQty: 50,
			MaxDailyLoss:   2000,
			MaxOpenOrders:  5,
		},
		InitialCash: 100000,
	}, j)

	scope := order.Scope{User: "demo", Strategy: "manual"}
	ref := func(px float64) *float64 { return &px }
	ctx := context.Background()

	requests := []order.Request{
		{Scope: scope, Symbol: "INFY", Side: order.Buy, Qty: 30, Type: order.Market, Product: order.Intraday, RefPrice: ref(100)},
		{Scope: scope, Symbol: "INFY", Side: order.Buy, Qty: 80, Type: order.Market, Product: order.Intraday, RefPrice: ref(100)},
		{Scope: scope, Symbol: "TCS", Side: order.Buy, Qty: 10, Type: order.Limit, Price: 95, Product: order.Intraday, RefPrice: ref(105)},
		{Scope: scope, Symbol: "INFY", Side: order.Sell, Qty: 20, Type: order.Market, Product: order.Intraday, RefPrice: ref(104)},
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Order", "Action", "Reason", "Filled", "Price"})
	for _, req := range requests {
		dec, fill, err := eng.EvaluateAndExecute(ctx, req)
		if err != nil {
			return err
		}
		filled, price := "-", "-"
		if fill != nil {
			filled = fmt.Sprintf("%.0f", fill.Qty)
			price = fmt.Sprintf("%.2f", fill.Price)
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%s %s %.0f", req.Side, req.Symbol, req.Qty),
			dec.Action, dec.Reason, filled, price,
		})
	}

	// The pending TCS limit buy fires once the price crosses.
	if err := eng.UpdatePrice("TCS", 94); err != nil {
		return err
	}

	t.Render()

	fmt.Println("\naudit trail:")
	for _, e := range j.Events() {
		fmt.Printf("  %-14s %-20s %s\n", e.Type, e.Reason, e.Message)
	}
	fmt.Printf("\nfills: %d, status: %s\n", len(j.Fills()), eng.Status(scope).Breaker.State)
	return nil
}
