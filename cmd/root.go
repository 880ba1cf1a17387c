package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel        string // Log verbosity level
	configPath      string // Path to run.yaml
	seed            int64  // Master seed for every RNG subsystem
	ledgerPath      string // Ledger file, overrides ledger.path
	maxObservations int    // Observation budget, overrides stop.max_observations
	listenAddr      string // TCP listen address, switches transport to tcp
	metricsAddr     string // Prometheus endpoint address
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "dopt",
	Short: "Coordinator for distributed hyperparameter search",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addRunFlags registers the flags shared by run and simulate. Each one
// overrides the config file only when given explicitly.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configPath, "config", "", "Path to run config YAML (defaults apply when empty)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Master seed; a random seed is drawn and logged when unset")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Ledger file path (selects the file backend)")
	cmd.Flags().IntVar(&maxObservations, "max-observations", 0, "Stop once the ledger holds more than this many observations")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

// applyRunFlags copies explicitly set flags over cfg.
func applyRunFlags(cmd *cobra.Command, cfg *RunConfig) {
	if cmd.Flags().Changed("seed") {
		s := seed
		cfg.Seed = &s
	}
	if cmd.Flags().Changed("ledger") {
		cfg.Ledger.Backend = "file"
		cfg.Ledger.Path = ledgerPath
	}
	if cmd.Flags().Changed("max-observations") {
		cfg.Stop.MaxObservations = maxObservations
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if cmd.Flags().Lookup("listen") != nil && cmd.Flags().Changed("listen") {
		cfg.Transport.Mode = "tcp"
		cfg.Transport.Listen = listenAddr
	}
}

// loadConfig reads --config, or returns the defaults when it is empty.
func loadConfig(path string) *RunConfig {
	if path == "" {
		return DefaultRunConfig()
	}
	cfg, err := LoadRunConfig(path)
	if err != nil {
		logrus.Fatalf("Failed to load run config: %v", err)
	}
	return cfg
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&listenAddr, "listen", "", "Accept one TCP connection on this address instead of using stdio")
	rootCmd.AddCommand(runCmd)

	addRunFlags(simulateCmd)
	addSimulateFlags(simulateCmd)
	rootCmd.AddCommand(simulateCmd)

	ledgerCmd.AddCommand(ledgerInspectCmd)
	addInspectFlags(ledgerInspectCmd)
	rootCmd.AddCommand(ledgerCmd)
}
