package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sontungtran/dopt/opt"
	"github.com/sontungtran/dopt/opt/simulate"
)

var (
	simTrainers   int     // Concurrent simulated trainers
	simFunction   string  // Synthetic objective name
	simNoise      float64 // Gaussian noise on the objective
	simContention float64 // Contention failure probability
	simDropout    float64 // Drop-out (Remove) probability
	simMaxRounds  int     // Rounds before the pool hangs up; 0 = until the coordinator stops
)

// defaultSimulationBounds is the search space used when the config has none.
var defaultSimulationBounds = map[string]BoundConfig{
	"x1": {Min: 0, Max: 1},
	"x2": {Min: 0, Max: 1},
}

// simulateCmd runs a coordinator against an in-process synthetic trainer pool
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a search against simulated trainers in-process",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(configPath)
		applyRunFlags(cmd, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		simCfg := simulate.Config{
			Trainers:   simTrainers,
			Function:   simFunction,
			Noise:      simNoise,
			Contention: simContention,
			Dropout:    simDropout,
			MaxRounds:  simMaxRounds,
		}
		if err := runSimulation(ctx, cmd, cfg, simCfg); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// prepareSimulationConfig fills what a simulation needs and a config file may
// leave out: bounds, a seed, a scratch ledger and the objective path.
func prepareSimulationConfig(cmd *cobra.Command, cfg *RunConfig) {
	if len(cfg.Bounds) == 0 {
		cfg.Bounds = defaultSimulationBounds
	}
	if cfg.Seed == nil {
		s := time.Now().UnixNano()
		logrus.Infof("No seed configured, using --seed %d", s)
		cfg.Seed = &s
	}
	if configPath == "" && !cmd.Flags().Changed("ledger") {
		cfg.Ledger.Path = filepath.Join(os.TempDir(), fmt.Sprintf("dopt-simulate-%d.jsonl", *cfg.Seed))
	}
	if cfg.Strategy.Objective.Path == "" {
		cfg.Strategy.Objective.Path = simulate.ResultKey
	}
}

func runSimulation(ctx context.Context, cmd *cobra.Command, cfg *RunConfig, simCfg simulate.Config) error {
	prepareSimulationConfig(cmd, cfg)
	if err := simCfg.Validate(); err != nil {
		return fmt.Errorf("invalid simulation: %w", err)
	}
	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()
	logrus.Infof("Simulating %d trainers on %s, ledger %s", simCfg.Trainers, simCfg.Function, cfg.Ledger.Path)

	coordEnd, poolEnd := opt.NewPipe()
	pool, err := simulate.New(simCfg, s.bounds, s.rng, poolEnd)
	if err != nil {
		return err
	}
	coord, err := s.coordinator(coordEnd, time.Now())
	if err != nil {
		return err
	}

	coordErr, simErr := simulate.RunPair(ctx, coord, pool, coordEnd)
	if coordErr != nil {
		return fmt.Errorf("coordinator: %w", coordErr)
	}
	if simErr != nil {
		return fmt.Errorf("trainer pool: %w", simErr)
	}

	stats := pool.Stats()
	writeReport(os.Stdout, s.store, cfg.Objective(), s.trace)
	fmt.Printf("=== Trainer Pool ===\n")
	fmt.Printf("Rounds: %d\n", stats.Rounds)
	fmt.Printf("Evaluations: %d\n", stats.Observations)
	fmt.Printf("Contention failures: %d\n", stats.Contention)
	fmt.Printf("Drop-outs: %d\n", stats.Removed)
	return nil
}

func addSimulateFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&simTrainers, "trainers", 4, "Number of concurrent simulated trainers")
	cmd.Flags().StringVar(&simFunction, "objective", "branin", fmt.Sprintf("Synthetic objective %v", simulate.ValidFunctionNames()))
	cmd.Flags().Float64Var(&simNoise, "noise", 0, "Standard deviation of Gaussian noise added to every evaluation")
	cmd.Flags().Float64Var(&simContention, "contention", 0, "Probability that an evaluation reports a contention failure")
	cmd.Flags().Float64Var(&simDropout, "drop", 0, "Probability that a trainer abandons its candidate with a Remove command")
	cmd.Flags().IntVar(&simMaxRounds, "max-rounds", 0, "Rounds before the trainer pool hangs up (0 = until the coordinator stops)")
}
