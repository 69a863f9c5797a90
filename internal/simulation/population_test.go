package simulation

import (
	"testing"

	"impactsim/domain/core"
	"impactsim/domain/scenario"
	"impactsim/internal/config"
	"impactsim/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_ReproducibleForSameCell(t *testing.T) {
	kit := testkit.NewTestKit()
	gen := NewGenerator(config.DefaultConstants(), config.PolicyReject)

	a, err := gen.Generate(1000, 4, kit.Stream(1000, 4, testkit.DefaultSeed))
	require.NoError(t, err)
	b, err := gen.Generate(1000, 4, kit.Stream(1000, 4, testkit.DefaultSeed))
	require.NoError(t, err)

	// Bit-identical draws, including the decisions of every scenario.
	assert.Equal(t, a, b)

	c, err := gen.Generate(1000, 5, kit.Stream(1000, 5, testkit.DefaultSeed))
	require.NoError(t, err)
	assert.NotEqual(t, a.Earnings, c.Earnings)
}

func TestGenerate_ColumnInvariants(t *testing.T) {
	kit := testkit.NewTestKit()
	gen := NewGenerator(config.DefaultConstants(), config.PolicyReject)

	pop, err := gen.Generate(2000, 0, kit.Stream(2000, 0, 1))
	require.NoError(t, err)

	assert.Len(t, pop.Race, 2000)
	assert.Len(t, pop.Incarcerated, 2000)
	assert.Len(t, pop.Earnings, 2000)
	for _, sc := range scenario.All {
		assert.Len(t, pop.Decision(sc), 2000)
	}

	raceOnes := 0
	for i := 0; i < pop.N; i++ {
		assert.Contains(t, []int{0, 1}, pop.Race[i])
		assert.Contains(t, []int{0, 1}, pop.Incarcerated[i])
		assert.Greater(t, pop.Earnings[i], 0.0)
		if pop.Race[i] == 0 {
			assert.Equal(t, 0, pop.Flagged[i], "only race=1 individuals can be flagged")
		}
		raceOnes += pop.Race[i]
	}

	// Bernoulli(0.14) over 2000 draws: expect ~280, sd ~15.5.
	assert.InDelta(t, 280, raceOnes, 80)
}

func TestGenerate_IncarcerationDependsOnRace(t *testing.T) {
	kit := testkit.NewTestKit()
	gen := NewGenerator(config.DefaultConstants(), config.PolicyReject)

	pop, err := gen.Generate(4000, 0, kit.Stream(4000, 0, 11))
	require.NoError(t, err)

	var inc, cnt [2]float64
	for i, r := range pop.Race {
		cnt[r]++
		inc[r] += float64(pop.Incarcerated[i])
	}
	// Expected rates 0.04 and 0.281.
	assert.InDelta(t, 0.04, inc[0]/cnt[0], 0.02)
	assert.InDelta(t, 0.281, inc[1]/cnt[1], 0.08)
}

func TestGenerate_OutOfRangeProbability(t *testing.T) {
	k := config.DefaultConstants()
	k.IncarcerationBase = 0.9
	k.IncarcerationNoise = 0
	kit := testkit.NewTestKit()

	_, err := NewGenerator(k, config.PolicyReject).Generate(500, 0, kit.Stream(500, 0, 3))
	require.Error(t, err)
	assert.True(t, core.IsNumericalDomainError(err))
	assert.Contains(t, err.Error(), "incarceration_probability")

	pop, err := NewGenerator(k, config.PolicyClamp).Generate(500, 0, kit.Stream(500, 0, 3))
	require.NoError(t, err)
	for i, r := range pop.Race {
		if r == 1 {
			assert.Equal(t, 1, pop.Incarcerated[i], "clamped probability of 1 always incarcerates")
		}
	}
}

func TestGenerate_SingleIndividualHasNoLogRange(t *testing.T) {
	kit := testkit.NewTestKit()
	_, err := NewGenerator(config.DefaultConstants(), config.PolicyReject).Generate(1, 0, kit.Stream(1, 0, 3))
	require.Error(t, err)
	assert.True(t, core.IsNumericalDomainError(err))
}
