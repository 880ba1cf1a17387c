package strategy

import (
	"math"
	"math/rand"
)

// acquisitionFunc scores a point from its posterior mean and variance.
// The model always minimizes, so lower scores are more promising.
// best is the lowest standardized target seen so far.
type acquisitionFunc func(mean, variance, best float64, p acquisitionParams) float64

type acquisitionParams struct {
	beta float64    // exploration weight for UCB
	xi   float64    // improvement margin for PI and EI
	rng  *rand.Rand // draws for Thompson sampling
}

// acquisitionFuncs maps config names to implementations.
var acquisitionFuncs = map[string]acquisitionFunc{
	"":         upperConfidenceBound,
	"ucb":      upperConfidenceBound,
	"ei":       expectedImprovement,
	"pi":       probabilityOfImprovement,
	"thompson": thompsonSampling,
}

// upperConfidenceBound is the optimistic bound for minimization: mean - β·σ.
func upperConfidenceBound(mean, variance, _ float64, p acquisitionParams) float64 {
	return mean - p.beta*math.Sqrt(variance)
}

func probabilityOfImprovement(mean, variance, best float64, p acquisitionParams) float64 {
	z := (best - p.xi - mean) / math.Sqrt(variance)
	return -normalCDF(z)
}

func expectedImprovement(mean, variance, best float64, p acquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	improvement := best - p.xi - mean
	z := improvement / sigma
	return -(improvement*normalCDF(z) + sigma*normalPDF(z))
}

func thompsonSampling(mean, variance, _ float64, p acquisitionParams) float64 {
	return mean + math.Sqrt(variance)*p.rng.NormFloat64()
}

func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}
