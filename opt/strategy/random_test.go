package strategy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sontungtran/dopt/opt"
)

func searchSpace(t *testing.T) opt.BoundSpec {
	t.Helper()
	bounds, err := opt.NewBoundSpec(map[string]opt.Bound{
		"x": {Min: 0, Max: 1},
		"y": {Min: -5, Max: 10},
	})
	require.NoError(t, err)
	return bounds
}

func TestRandom_ProposalsWithinBounds(t *testing.T) {
	// GIVEN a random strategy
	bounds := searchSpace(t)
	r := NewRandom(rand.New(rand.NewSource(42)))

	// WHEN proposing many candidates
	for i := 0; i < 200; i++ {
		params, err := r.Propose(nil, bounds)
		require.NoError(t, err)

		// THEN every proposal declares exactly the bounded parameters, in range
		require.NoError(t, bounds.Validate(params))
		require.Len(t, params, 2)
		for _, b := range bounds.Bounds() {
			assert.True(t, b.Contains(params[b.Name]), "%s=%v outside [%v,%v]", b.Name, params[b.Name], b.Min, b.Max)
		}
	}
}

func TestRandom_SameSeedSameSequence(t *testing.T) {
	bounds := searchSpace(t)
	a := NewRandom(rand.New(rand.NewSource(7)))
	b := NewRandom(rand.New(rand.NewSource(7)))

	for i := 0; i < 10; i++ {
		pa, _ := a.Propose(nil, bounds)
		pb, _ := b.Propose(nil, bounds)
		assert.Equal(t, pa, pb)
	}
}

func TestNew_RegistryBuildsEveryStrategy(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, name := range []string{"", "random", "bayes"} {
		gen, err := opt.NewGenerator(opt.GeneratorConfig{Name: name, RNG: rng})
		require.NoError(t, err, "strategy %q", name)
		assert.NotNil(t, gen)
	}
	_, err := New(opt.GeneratorConfig{Name: "grid", RNG: rng})
	assert.Error(t, err)
}
