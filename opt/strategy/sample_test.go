package strategy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sontungtran/dopt/opt"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-0.5, 0.0, 1.0))
	assert.Equal(t, 1.0, clamp(1.5, 0.0, 1.0))
	assert.Equal(t, 0.25, clamp(0.25, 0.0, 1.0))
	assert.Equal(t, 3, clamp(7, 1, 3))
}

func TestLerpNormalize_RoundTrip(t *testing.T) {
	for _, u := range []float64{0, 0.25, 0.5, 1} {
		v := lerp(u, -2.0, 6.0)
		assert.InDelta(t, u, normalize(v, -2.0, 6.0), 1e-12)
	}
	assert.Equal(t, 0.5, normalize(3.0, 3.0, 3.0), "degenerate bound maps to the middle")
	assert.Equal(t, 1.0, normalize(10.0, 0.0, 1.0), "out-of-range values are clamped")
}

func TestFromUnitToUnit(t *testing.T) {
	bounds, err := opt.NewBoundSpec(map[string]opt.Bound{
		"lr":       {Min: 0.001, Max: 0.1},
		"momentum": {Min: 0, Max: 1},
	})
	require.NoError(t, err)

	params := fromUnit([]float64{0.5, 0.25}, bounds)
	assert.InDelta(t, 0.0505, params["lr"], 1e-12)
	assert.InDelta(t, 0.25, params["momentum"], 1e-12)

	u, ok := toUnit(opt.NewCandidate(1, params), bounds)
	require.True(t, ok)
	assert.InDelta(t, 0.5, u[0], 1e-12)
	assert.InDelta(t, 0.25, u[1], 1e-12)

	_, ok = toUnit(opt.NewCandidate(1, opt.Params{"lr": 0.01}), bounds)
	assert.False(t, ok, "missing parameter")
}

func TestUnitPoint_InCube(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		for _, v := range unitPoint(rng, 3) {
			assert.True(t, v >= 0 && v < 1, "value %v outside [0,1)", v)
		}
	}
}
