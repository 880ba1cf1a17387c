// register.go wires the strategy constructors into opt.NewGeneratorFunc.
// This init() runs when any package imports opt/strategy, breaking the import
// cycle between opt/ (interface owner) and opt/strategy/ (implementations).
package strategy

import (
	"fmt"

	"github.com/sontungtran/dopt/opt"
)

func init() {
	opt.NewGeneratorFunc = New
}

// New creates the strategy named by cfg.Name. Empty defaults to random.
func New(cfg opt.GeneratorConfig) (opt.CandidateGenerator, error) {
	switch cfg.Name {
	case "", "random":
		return NewRandom(cfg.RNG), nil
	case "bayes":
		return NewBayes(cfg), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Name)
	}
}
