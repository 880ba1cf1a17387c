package opt

import (
	"errors"
	"fmt"
	"math/rand"
)

// CandidateGenerator proposes the next parameter set to evaluate.
// observations is the current history in arrival order; the returned Params
// must only use names declared in bounds. The coordinator assigns the id.
type CandidateGenerator interface {
	Propose(observations []Observation, bounds BoundSpec) (Params, error)
}

// ObjectiveSpec locates the scalar objective inside an observation's result.
// Path is a gjson path; empty means the result itself is the number.
type ObjectiveSpec struct {
	Path string
	Goal string // "minimize" (default) or "maximize"
}

// GeneratorConfig selects and parameterizes a strategy.
type GeneratorConfig struct {
	Name           string
	InitialSamples int     // random proposals before the model is used
	NumCandidates  int     // random proposals scored per model-guided step
	Acquisition    string  // ucb | ei | pi | thompson
	Beta           float64 // UCB exploration weight
	Xi             float64 // PI/EI improvement margin
	KernelWidth    float64 // RBF length scale on the unit-normalized space
	Objective      ObjectiveSpec
	RNG            *rand.Rand // from PartitionedRNG.ForSubsystem(SubsystemGenerator)
}

// ValidStrategies is the set of recognized strategy names. Empty defaults to random.
var ValidStrategies = map[string]bool{"": true, "random": true, "bayes": true}

// ValidAcquisitions is the set of recognized acquisition function names. Empty defaults to ucb.
var ValidAcquisitions = map[string]bool{"": true, "ucb": true, "ei": true, "pi": true, "thompson": true}

// ValidGoals is the set of recognized objective goals. Empty defaults to minimize.
var ValidGoals = map[string]bool{"": true, "minimize": true, "maximize": true}

// Validate checks names and numeric ranges.
func (c GeneratorConfig) Validate() error {
	if !ValidStrategies[c.Name] {
		return fmt.Errorf("unknown strategy %q", c.Name)
	}
	if !ValidAcquisitions[c.Acquisition] {
		return fmt.Errorf("unknown acquisition function %q", c.Acquisition)
	}
	if !ValidGoals[c.Objective.Goal] {
		return fmt.Errorf("unknown objective goal %q", c.Objective.Goal)
	}
	if c.InitialSamples < 0 {
		return fmt.Errorf("initial_samples must be non-negative, got %d", c.InitialSamples)
	}
	if c.NumCandidates < 0 {
		return fmt.Errorf("num_candidates must be non-negative, got %d", c.NumCandidates)
	}
	if c.Beta < 0 {
		return fmt.Errorf("beta must be non-negative, got %f", c.Beta)
	}
	if c.KernelWidth < 0 {
		return fmt.Errorf("kernel_width must be non-negative, got %f", c.KernelWidth)
	}
	return nil
}

// NewGeneratorFunc is set by opt/strategy's init(). Production code imports
// opt/strategy; tests in package opt use their own generators.
var NewGeneratorFunc func(cfg GeneratorConfig) (CandidateGenerator, error)

// NewGenerator builds the strategy named by cfg through NewGeneratorFunc.
func NewGenerator(cfg GeneratorConfig) (CandidateGenerator, error) {
	if NewGeneratorFunc == nil {
		return nil, errors.New("no candidate strategies registered: import github.com/sontungtran/dopt/opt/strategy")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RNG == nil {
		return nil, errors.New("generator config requires an RNG")
	}
	return NewGeneratorFunc(cfg)
}
