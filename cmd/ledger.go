package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sontungtran/dopt/opt"
)

var (
	inspectObjectivePath string // gjson path to the objective inside a result
	inspectGoal          string // minimize | maximize
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Work with observation ledgers",
}

// ledgerInspectCmd replays a ledger with the same strict loader the coordinator uses
var ledgerInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Replay a ledger and print its observation count and best result",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(configPath)
		if cmd.Flags().Changed("ledger") {
			cfg.Ledger.Backend = "file"
			cfg.Ledger.Path = ledgerPath
		}
		objective := cfg.Objective()
		if cmd.Flags().Changed("objective") {
			objective.Path = inspectObjectivePath
		}
		if cmd.Flags().Changed("goal") {
			objective.Goal = inspectGoal
		}
		if !opt.ValidGoals[objective.Goal] {
			logrus.Fatalf("Unknown goal %q", objective.Goal)
		}
		if err := inspectLedger(context.Background(), os.Stdout, cfg.Ledger, objective); err != nil {
			logrus.Fatalf("Ledger inspection failed: %v", err)
		}
	},
}

func inspectLedger(ctx context.Context, w io.Writer, cfg LedgerConfig, objective opt.ObjectiveSpec) error {
	if cfg.Backend != "redis" {
		if _, err := os.Stat(cfg.Path); err != nil {
			return err
		}
	}
	log, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	store, err := opt.LoadObservationStore(ctx, log)
	if err != nil {
		return err
	}
	writeReport(w, store, objective, nil)

	scored := 0
	for _, obs := range store.Observations() {
		if _, ok := objective.Value(obs.Result); ok {
			scored++
		}
	}
	fmt.Fprintf(w, "With objective value: %d\n", scored)
	return nil
}

func addInspectFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "", "Run config naming the ledger backend and objective")
	cmd.Flags().StringVar(&ledgerPath, "ledger", DefaultLedgerPath, "Ledger file path")
	cmd.Flags().StringVar(&inspectObjectivePath, "objective", "", "Path to the objective value inside each result")
	cmd.Flags().StringVar(&inspectGoal, "goal", "minimize", "Objective goal (minimize, maximize)")
}
