package strategy

import (
	"math/rand"

	"github.com/sontungtran/dopt/opt"
)

// Random proposes points uniformly within the bounds, ignoring history.
type Random struct {
	rng *rand.Rand
}

// NewRandom creates a Random strategy drawing from rng.
func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

// Propose implements opt.CandidateGenerator.
func (r *Random) Propose(_ []opt.Observation, bounds opt.BoundSpec) (opt.Params, error) {
	return fromUnit(unitPoint(r.rng, bounds.Len()), bounds), nil
}
