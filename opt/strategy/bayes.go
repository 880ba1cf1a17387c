package strategy

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/sontungtran/dopt/opt"
)

const (
	defaultNumCandidates = 100
	defaultKernelWidth   = 0.2
)

// Bayes proposes candidates by Bayesian optimization:
//  1. Until InitialSamples usable observations exist, propose uniformly at random.
//  2. Otherwise fit a Gaussian Process to the history (inputs normalized to the
//     unit cube, objective standardized and oriented for minimization), draw
//     NumCandidates random points and return the one with the lowest acquisition score.
//
// Observations whose result carries no objective value, or whose candidate lacks
// a declared parameter, are ignored by the model.
type Bayes struct {
	rng           *rand.Rand
	initial       int
	numCandidates int
	acquire       acquisitionFunc
	params        acquisitionParams
	objective     opt.ObjectiveSpec
	gp            *gaussianProcess
}

// NewBayes creates a Bayes strategy. Zero NumCandidates and KernelWidth take defaults.
// Panics on an unknown acquisition name; GeneratorConfig.Validate rejects those first.
func NewBayes(cfg opt.GeneratorConfig) *Bayes {
	acquire, ok := acquisitionFuncs[cfg.Acquisition]
	if !ok {
		panic("unknown acquisition function " + cfg.Acquisition)
	}
	numCandidates := cfg.NumCandidates
	if numCandidates <= 0 {
		numCandidates = defaultNumCandidates
	}
	width := cfg.KernelWidth
	if width <= 0 {
		width = defaultKernelWidth
	}
	return &Bayes{
		rng:           cfg.RNG,
		initial:       cfg.InitialSamples,
		numCandidates: numCandidates,
		acquire:       acquire,
		params:        acquisitionParams{beta: cfg.Beta, xi: cfg.Xi, rng: cfg.RNG},
		objective:     cfg.Objective,
		gp:            newGaussianProcess(width),
	}
}

// Propose implements opt.CandidateGenerator.
func (b *Bayes) Propose(observations []opt.Observation, bounds opt.BoundSpec) (opt.Params, error) {
	x, y := b.trainingSet(observations, bounds)
	if len(x) == 0 || len(x) < b.initial {
		return b.random(bounds), nil
	}

	targets, best := standardize(y)
	if err := b.gp.fit(x, targets); err != nil {
		logrus.Warnf("bayes: falling back to random proposal: %v", err)
		return b.random(bounds), nil
	}

	var bestPoint []float64
	bestScore := math.Inf(1)
	for i := 0; i < b.numCandidates; i++ {
		u := unitPoint(b.rng, bounds.Len())
		mean, variance := b.gp.predict(u)
		score := b.acquire(mean, variance, best, b.params)
		if score < bestScore {
			bestScore = score
			bestPoint = u
		}
	}
	if bestPoint == nil {
		return b.random(bounds), nil
	}
	return fromUnit(bestPoint, bounds), nil
}

func (b *Bayes) random(bounds opt.BoundSpec) opt.Params {
	return fromUnit(unitPoint(b.rng, bounds.Len()), bounds)
}

// trainingSet extracts unit-cube inputs and objective values oriented so that
// lower is better.
func (b *Bayes) trainingSet(observations []opt.Observation, bounds opt.BoundSpec) ([][]float64, []float64) {
	x := make([][]float64, 0, len(observations))
	y := make([]float64, 0, len(observations))
	for _, obs := range observations {
		if obs.ContentionFailure {
			continue
		}
		v, ok := b.objective.Value(obs.Result)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		u, ok := toUnit(obs.Candidate, bounds)
		if !ok {
			continue
		}
		if !b.objective.Minimize() {
			v = -v
		}
		x = append(x, u)
		y = append(y, v)
	}
	return x, y
}

// standardize rescales y to zero mean and unit variance and returns the
// smallest rescaled value. Constant targets are only centered.
func standardize(y []float64) ([]float64, float64) {
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	var ss float64
	for _, v := range y {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(y)))
	if std == 0 {
		std = 1
	}

	out := make([]float64, len(y))
	best := math.Inf(1)
	for i, v := range y {
		out[i] = (v - mean) / std
		best = math.Min(best, out[i])
	}
	return out, best
}
