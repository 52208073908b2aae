package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quantfold/riskgate/config"
	"github.com/quantfold/riskgate/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <session.csv>",
	Short: "Replay a recorded session through the gate",
	Long: `Replay a CSV session of price ticks, orders and operator actions
through the engine under the configured limits. Decisions are journaled
exactly as they would be live, so a replayed incident can be inspected
with 'riskgate events'.

Row formats:
  tick,SYMBOL,PRICE
  order,USER,STRATEGY,SYMBOL,SIDE,QTY[,TYPE,TRIGGER]
  halt,USER,STRATEGY[,MESSAGE]
  resume,USER,STRATEGY

Example:
  riskgate replay session.csv --config riskgate.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var replayConfigPath string

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&replayConfigPath, "config", "c", "riskgate.yaml", "path to config file")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(replayConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, j, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	stats, err := replay.CSV(context.Background(), args[0], eng)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Ticks", "Orders", "Allowed", "Reduced", "Rejected", "Halts"})
	t.AppendRow(table.Row{stats.Ticks, stats.Orders, stats.Allowed, stats.Reduced, stats.Rejected, stats.Halts})
	t.Render()

	for _, s := range eng.ActiveScopes() {
		st := eng.Status(s)
		fmt.Printf("%s: cash %.2f equity %.2f realized %.2f breaker %s\n",
			s, st.Snapshot.Cash, st.Snapshot.Equity, st.Snapshot.RealizedPL, st.Breaker.State)
	}
	return nil
}
