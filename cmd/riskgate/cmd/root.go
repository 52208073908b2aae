package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "riskgate",
	Short: "Order risk-gating and simulated execution engine",
	Long: `Riskgate sits between a strategy's intent and any effect on capital.

It provides:
  - Per-order risk evaluation against layered limits (strategy > user > default)
  - Per-scope and global circuit breakers with explicit halt/resume
  - A paper execution engine with market, limit and stop orders
  - Stop-loss/take-profit monitoring and forced square-off
  - An append-only audit journal of every decision and fill
  - A periodic runtime monitor for the daily-loss circuit`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
