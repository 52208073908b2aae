package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quantfold/riskgate/config"
	"github.com/quantfold/riskgate/order"
	"github.com/quantfold/riskgate/risk"
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show effective merged limits for a scope",
	Long: `Resolve the three-level override chain (strategy > user > default)
from a config file and print the effective limits for a scope.

Example:
  riskgate limits --config riskgate.yaml --user alice --strategy momentum`,
	RunE: runLimits,
}

var (
	limitsConfigPath string
	limitsUser       string
	limitsStrategy   string
)

func init() {
	rootCmd.AddCommand(limitsCmd)
	limitsCmd.Flags().StringVarP(&limitsConfigPath, "config", "c", "riskgate.yaml", "path to config file")
	limitsCmd.Flags().StringVarP(&limitsUser, "user", "u", "", "user scope")
	limitsCmd.Flags().StringVarP(&limitsStrategy, "strategy", "s", "", "strategy scope (optional)")
}

func runLimits(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(limitsConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	def, err := cfg.Limits.ToLimits()
	if err != nil {
		return err
	}

	var user, strat *risk.Overrides
	if ov, ok := cfg.Users[limitsUser]; ok {
		if user, err = ov.ToOverrides(); err != nil {
			return err
		}
	}
	scope := order.Scope{User: limitsUser, Strategy: limitsStrategy}
	if ov, ok := cfg.Strategies[scopeKey(scope)]; ok {
		if strat, err = ov.ToOverrides(); err != nil {
			return err
		}
	}

	lim := risk.Resolve(def, user, strat)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Limit", "Value"})
	t.AppendRows([]table.Row{
		{"enforce", lim.Enforce},
		{"square_off", lim.SquareOff},
		{"reduce_on_cap", lim.ReduceOnCap},
		{"max_daily_loss", lim.MaxDailyLoss},
		{"max_daily_loss_pct", lim.MaxDailyLossPct},
		{"daily_loss_combo", lim.DailyLossCombo},
		{"max_position_value", lim.MaxPositionValue},
		{"max_position_qty", lim.MaxPositionQty},
		{"max_gross_exposure", lim.MaxGrossExposure},
		{"max_net_exposure", lim.MaxNetExposure},
		{"max_open_orders", lim.MaxOpenOrders},
		{"cutoff", lim.Cutoff},
		{"expire_pending", lim.ExpirePending},
	})
	t.Render()
	fmt.Printf("scope: %s\n", scope)
	return nil
}

func scopeKey(s order.Scope) string {
	return s.User + "/" + s.Strategy
}

func splitScopeKey(key string) order.Scope {
	parts := strings.SplitN(key, "/", 2)
	s := order.Scope{User: parts[0]}
	if len(parts) == 2 {
		s.Strategy = parts[1]
	}
	return s
}
