package strategy

import (
	"math/rand"

	"golang.org/x/exp/constraints"

	"github.com/sontungtran/dopt/opt"
)

type number interface {
	constraints.Integer | constraints.Float
}

func clamp[T number](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lerp maps u in [0,1] onto [lo, hi].
func lerp[T constraints.Float](u, lo, hi T) T {
	return lo + clamp(u, 0, 1)*(hi-lo)
}

// normalize maps v in [lo, hi] onto [0,1]. A degenerate bound maps to 0.5.
func normalize[T constraints.Float](v, lo, hi T) T {
	if hi == lo {
		return 0.5
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}

// unitPoint draws a point uniformly from the unit cube of dimension dim.
func unitPoint(rng *rand.Rand, dim int) []float64 {
	u := make([]float64, dim)
	for i := range u {
		u[i] = rng.Float64()
	}
	return u
}

// fromUnit maps a unit-cube point onto the bounds, in key order.
func fromUnit(u []float64, bounds opt.BoundSpec) opt.Params {
	params := make(opt.Params, bounds.Len())
	for i, b := range bounds.Bounds() {
		params[b.Name] = lerp(u[i], b.Min, b.Max)
	}
	return params
}

// toUnit maps a candidate onto the unit cube. It reports false when the
// candidate lacks one of the declared parameters.
func toUnit(c opt.Candidate, bounds opt.BoundSpec) ([]float64, bool) {
	u := make([]float64, bounds.Len())
	for i, b := range bounds.Bounds() {
		v, ok := c.Param(b.Name)
		if !ok {
			return nil, false
		}
		u[i] = normalize(v, b.Min, b.Max)
	}
	return u, true
}
