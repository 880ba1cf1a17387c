package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sontungtran/dopt/opt"
	"github.com/sontungtran/dopt/opt/trace"
)

// RunConfig is the run.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type RunConfig struct {
	Seed      *int64                 `yaml:"seed"` // nil: a seed is drawn and logged
	Bounds    map[string]BoundConfig `yaml:"bounds"`
	Ledger    LedgerConfig           `yaml:"ledger"`
	Stop      StopConfig             `yaml:"stop"`
	Strategy  StrategyConfig         `yaml:"strategy"`
	Transport TransportConfig        `yaml:"transport"`
	Metrics   MetricsConfig          `yaml:"metrics"`
	Trace     string                 `yaml:"trace"`
}

// BoundConfig is one inclusive parameter range.
type BoundConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// LedgerConfig selects where observations are persisted.
type LedgerConfig struct {
	Backend string      `yaml:"backend"` // file | redis
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig addresses the Redis list holding the ledger.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// StopConfig bounds the run.
type StopConfig struct {
	MaxObservations int           `yaml:"max_observations"`
	WallClock       time.Duration `yaml:"wall_clock"` // 0 means no deadline
}

// StrategyConfig selects the candidate generator.
type StrategyConfig struct {
	Name           string          `yaml:"name"`
	InitialSamples int             `yaml:"initial_samples"`
	NumCandidates  int             `yaml:"num_candidates"`
	Acquisition    string          `yaml:"acquisition"`
	Beta           float64         `yaml:"beta"`
	Xi             float64         `yaml:"xi"`
	KernelWidth    float64         `yaml:"kernel_width"`
	Objective      ObjectiveConfig `yaml:"objective"`
}

// ObjectiveConfig locates the objective value inside a trainer result.
type ObjectiveConfig struct {
	Path string `yaml:"path"`
	Goal string `yaml:"goal"`
}

// TransportConfig selects how the coordinator talks to the remote side.
type TransportConfig struct {
	Mode        string        `yaml:"mode"` // stdio | tcp
	Listen      string        `yaml:"listen"`
	RecvTimeout time.Duration `yaml:"recv_timeout"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Valid* registries for the string-typed config fields.
var (
	ValidLedgerBackends = map[string]bool{"": true, "file": true, "redis": true}
	ValidTransportModes = map[string]bool{"": true, "stdio": true, "tcp": true}
)

// DefaultLedgerPath is used when neither the config nor --ledger names one.
const DefaultLedgerPath = "observations.jsonl"

// DefaultRunConfig returns the configuration used when no file is given.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Ledger:    LedgerConfig{Backend: "file", Path: DefaultLedgerPath},
		Stop:      StopConfig{MaxObservations: opt.DefaultMaxObservations},
		Strategy:  StrategyConfig{Name: "random", Acquisition: "ucb", Beta: 2, Xi: 0.01},
		Transport: TransportConfig{Mode: "stdio"},
		Trace:     string(trace.TraceLevelNone),
	}
}

// LoadRunConfig reads path over DefaultRunConfig with strict field checking:
// an unknown key is an error.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	cfg := DefaultRunConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks names against the Valid* registries and numeric ranges.
func (c *RunConfig) Validate() error {
	if len(c.Bounds) == 0 {
		return fmt.Errorf("bounds: at least one parameter is required")
	}
	if _, err := c.BoundSpec(); err != nil {
		return fmt.Errorf("bounds: %w", err)
	}
	if !ValidLedgerBackends[c.Ledger.Backend] {
		return fmt.Errorf("ledger.backend: unknown backend %q", c.Ledger.Backend)
	}
	switch c.Ledger.Backend {
	case "", "file":
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger.path: required for the file backend")
		}
	case "redis":
		if c.Ledger.Redis.Addr == "" {
			return fmt.Errorf("ledger.redis.addr: required for the redis backend")
		}
	}
	if c.Stop.MaxObservations < 0 {
		return fmt.Errorf("stop.max_observations: must be non-negative, got %d", c.Stop.MaxObservations)
	}
	if c.Stop.WallClock < 0 {
		return fmt.Errorf("stop.wall_clock: must be non-negative, got %s", c.Stop.WallClock)
	}
	if err := c.GeneratorConfig(nil).Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if !ValidTransportModes[c.Transport.Mode] {
		return fmt.Errorf("transport.mode: unknown mode %q", c.Transport.Mode)
	}
	if c.Transport.Mode == "tcp" && c.Transport.Listen == "" {
		return fmt.Errorf("transport.listen: required for tcp mode")
	}
	if c.Transport.RecvTimeout < 0 {
		return fmt.Errorf("transport.recv_timeout: must be non-negative, got %s", c.Transport.RecvTimeout)
	}
	if c.Trace != "" && !trace.IsValidTraceLevel(c.Trace) {
		return fmt.Errorf("trace: unknown level %q", c.Trace)
	}
	return nil
}

// BoundSpec builds the search space.
func (c *RunConfig) BoundSpec() (opt.BoundSpec, error) {
	ranges := make(map[string]opt.Bound, len(c.Bounds))
	for name, b := range c.Bounds {
		ranges[name] = opt.Bound{Min: b.Min, Max: b.Max}
	}
	return opt.NewBoundSpec(ranges)
}

// GeneratorConfig maps the strategy section onto opt.GeneratorConfig.
func (c *RunConfig) GeneratorConfig(rng *opt.PartitionedRNG) opt.GeneratorConfig {
	gc := opt.GeneratorConfig{
		Name:           c.Strategy.Name,
		InitialSamples: c.Strategy.InitialSamples,
		NumCandidates:  c.Strategy.NumCandidates,
		Acquisition:    c.Strategy.Acquisition,
		Beta:           c.Strategy.Beta,
		Xi:             c.Strategy.Xi,
		KernelWidth:    c.Strategy.KernelWidth,
		Objective:      c.Objective(),
	}
	if rng != nil {
		gc.RNG = rng.ForSubsystem(opt.SubsystemGenerator)
	}
	return gc
}

// Objective returns the objective locator shared by the generator, trace and reports.
func (c *RunConfig) Objective() opt.ObjectiveSpec {
	return opt.ObjectiveSpec{Path: c.Strategy.Objective.Path, Goal: c.Strategy.Objective.Goal}
}

// StoppingPredicate combines the observation budget with the optional deadline.
func (c *RunConfig) StoppingPredicate(start time.Time) opt.StoppingPredicate {
	budget := opt.MaxObservations(c.Stop.MaxObservations)
	if c.Stop.WallClock == 0 {
		return budget
	}
	return opt.AllOf(budget, opt.Deadline{At: start.Add(c.Stop.WallClock)})
}
