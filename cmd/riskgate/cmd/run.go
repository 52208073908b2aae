package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantfold/riskgate/config"
	"github.com/quantfold/riskgate/engine"
	"github.com/quantfold/riskgate/journal"
	"github.com/quantfold/riskgate/metrics"
	"github.com/quantfold/riskgate/monitor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gate with its runtime monitor until interrupted",
	Long: `Start the engine, the periodic runtime monitor and (if configured)
the Prometheus metrics endpoint, then block until SIGINT/SIGTERM.

Example:
  riskgate run --config riskgate.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "riskgate.yaml", "path to config file")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	eng, j, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	interval, _ := cfg.Monitor.ParseInterval()
	mon := monitor.New(eng, interval)
	mon.OnError = func(err error) { log.Printf("monitor: %v", err) }

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Printf("metrics listening on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	log.Printf("riskgate running, monitor interval %s", interval)
	if err := mon.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	log.Printf("shutting down")
	return nil
}

// buildEngine wires the configured journal backend into a fresh engine.
func buildEngine(cfg *config.Config) (*engine.Engine, journal.Journal, error) {
	var (
		j   journal.Journal
		err error
	)
	switch cfg.Journal.Type {
	case "sqlite":
		j, err = journal.NewSQLite(cfg.Journal.DBPath)
	case "csv":
		j, err = journal.NewCSV(cfg.Journal.EventsFile, cfg.Journal.FillsFile)
	default:
		j = journal.NewMemory()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	if cfg.Journal.Buffer > 0 {
		j = journal.NewBuffered(j, cfg.Journal.Buffer)
	}

	defaults, err := cfg.Limits.ToLimits()
	if err != nil {
		j.Close()
		return nil, nil, err
	}

	eng := engine.New(engine.Config{
		Defaults:    defaults,
		InitialCash: cfg.Account.Cash,
		FeeRate:     cfg.Account.FeeRate,
		RejectUnmet: cfg.Account.RejectUnmet,
		Location:    cfg.Location(),
	}, j)

	for user, ov := range cfg.Users {
		o, err := ov.ToOverrides()
		if err != nil {
			j.Close()
			return nil, nil, err
		}
		eng.SetUserLimits(user, o)
	}
	for key, ov := range cfg.Strategies {
		o, err := ov.ToOverrides()
		if err != nil {
			j.Close()
			return nil, nil, err
		}
		eng.SetStrategyLimits(splitScopeKey(key), o)
	}
	return eng, j, nil
}
