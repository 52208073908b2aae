package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quantfold/riskgate/journal"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query the audit journal",
	Long: `Query and display audit events and fills from a SQLite journal.

Examples:
  riskgate events list --db riskgate.sqlite --from 2026-08-01 --to 2026-09-01
  riskgate events fills --db riskgate.sqlite --from 2026-08-28 --limit 50`,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events in a time range",
	Args:  cobra.NoArgs,
	RunE:  runEventsList,
}

var eventsFillsCmd = &cobra.Command{
	Use:   "fills",
	Short: "List executed fills in a time range",
	Args:  cobra.NoArgs,
	RunE:  runEventsFills,
}

var (
	eventsDBPath string
	eventsFrom   string
	eventsTo     string
	eventsLimit  int
	eventsOffset int
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsFillsCmd)

	eventsCmd.PersistentFlags().StringVarP(&eventsDBPath, "db", "d", "./riskgate.sqlite", "path to SQLite journal DB")
	eventsCmd.PersistentFlags().StringVar(&eventsFrom, "from", "", "start date YYYY-MM-DD (default: today)")
	eventsCmd.PersistentFlags().StringVar(&eventsTo, "to", "", "end date YYYY-MM-DD, exclusive (default: from+1d)")
	eventsCmd.PersistentFlags().IntVar(&eventsLimit, "limit", 100, "page size (0 = unlimited)")
	eventsCmd.PersistentFlags().IntVar(&eventsOffset, "offset", 0, "page offset")
}

func runEventsList(cmd *cobra.Command, args []string) error {
	j, start, end, err := openJournalRange()
	if err != nil {
		return err
	}
	defer j.Close()

	events, err := j.ListEventsBetween(start, end, eventsLimit, eventsOffset)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Time", "Type", "Reason", "Scope", "Message"})
	for _, e := range events {
		scope := e.User
		if e.Strategy != "" {
			scope += "/" + e.Strategy
		}
		t.AppendRow(table.Row{e.Time.Format(time.RFC3339), e.Type, e.Reason, scope, e.Message})
	}
	t.Render()
	fmt.Printf("%d event(s)\n", len(events))
	return nil
}

func runEventsFills(cmd *cobra.Command, args []string) error {
	j, start, end, err := openJournalRange()
	if err != nil {
		return err
	}
	defer j.Close()

	fills, err := j.ListFillsBetween(start, end, eventsLimit, eventsOffset)
	if err != nil {
		return fmt.Errorf("query fills: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Time", "Scope", "Symbol", "Side", "Qty", "Price", "Fees"})
	for _, f := range fills {
		scope := f.User
		if f.Strategy != "" {
			scope += "/" + f.Strategy
		}
		t.AppendRow(table.Row{
			f.Time.Format(time.RFC3339), scope, f.Symbol, f.Side,
			fmt.Sprintf("%.4f", f.Qty), fmt.Sprintf("%.4f", f.Price), fmt.Sprintf("%.4f", f.Fees),
		})
	}
	t.Render()
	fmt.Printf("%d fill(s)\n", len(fills))
	return nil
}

func openJournalRange() (*journal.SQLiteJournal, time.Time, time.Time, error) {
	j, err := journal.NewSQLite(eventsDBPath)
	if err != nil {
		return nil, time.Time{}, time.Time{}, fmt.Errorf("open db: %w", err)
	}

	from := eventsFrom
	if from == "" {
		from = time.Now().Format("2006-01-02")
	}
	start, err := time.ParseInLocation("2006-01-02", from, time.Local)
	if err != nil {
		j.Close()
		return nil, time.Time{}, time.Time{}, fmt.Errorf("parse --from: %w", err)
	}

	end := start.AddDate(0, 0, 1)
	if eventsTo != "" {
		end, err = time.ParseInLocation("2006-01-02", eventsTo, time.Local)
		if err != nil {
			j.Close()
			return nil, time.Time{}, time.Time{}, fmt.Errorf("parse --to: %w", err)
		}
	}
	return j, start, end, nil
}
