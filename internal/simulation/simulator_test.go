package simulation

import (
	"context"
	"testing"

	"impactsim/domain/core"
	"impactsim/domain/scenario"
	"impactsim/internal/testkit"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmpiricalRatio(t *testing.T) {
	race := []int{1, 1, 1, 1, 0, 0, 0, 0}
	decisions := []int{1, 0, 0, 0, 1, 1, 0, 0}

	ratio, err := EmpiricalRatio(race, decisions)
	require.NoError(t, err)
	assert.InDelta(t, 0.25/0.5, ratio, 1e-12)

	_, err = EmpiricalRatio([]int{1, 1}, []int{1, 0})
	assert.ErrorIs(t, err, core.ErrDegenerateGroup)

	_, err = EmpiricalRatio(race, []int{1, 0, 0, 0, 0, 0, 0, 0})
	assert.True(t, core.IsNumericalDomainError(err))
}

func TestSimulate_SingleCell(t *testing.T) {
	kit := testkit.NewTestKit()
	cfg := testkit.SmallConfig(1000, 1000, 200, 1)
	sim := NewSimulator(cfg, testkit.QuietLogger())

	res, err := sim.Simulate(context.Background(), 1000, 0, kit.Stream(1000, 0, cfg.Run.Seed))
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.Equal(t, 1000, res.N)

	for _, sc := range scenario.All {
		o := res.Outcome(sc)
		require.True(t, o.OK(), "%s: %v", sc, o.Err)
		assert.Equal(t, sc, o.Scenario)
		assert.Greater(t, o.EstimatedRatio, 0.0)
		assert.Greater(t, o.EmpiricalRatio, 0.0)
		assert.GreaterOrEqual(t, o.PValue, 0.0)
		assert.LessOrEqual(t, o.PValue, 1.0)
		assert.Greater(t, o.FitIterations, 0)
	}
}

func TestSimulate_Reproducible(t *testing.T) {
	kit := testkit.NewTestKit()
	cfg := testkit.SmallConfig(600, 600, 200, 1)
	sim := NewSimulator(cfg, testkit.QuietLogger())

	a, err := sim.Simulate(context.Background(), 600, 2, kit.Stream(600, 2, 77))
	require.NoError(t, err)
	b, err := sim.Simulate(context.Background(), 600, 2, kit.Stream(600, 2, 77))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSimulate_DomainErrorAbortsCell(t *testing.T) {
	kit := testkit.NewTestKit()
	cfg := testkit.SmallConfig(400, 400, 200, 1)
	cfg.Constants.IncarcerationBase = 0.95
	sim := NewSimulator(cfg, testkit.QuietLogger())

	_, err := sim.Simulate(context.Background(), 400, 0, kit.Stream(400, 0, 1))
	require.Error(t, err)
	assert.True(t, core.IsNumericalDomainError(err))
	assert.Contains(t, err.Error(), "n=400/iter=0")
}

// meanOutcomes averages the outcomes of scenario sc over iterations cells of size n
func meanOutcomes(t *testing.T, n, iterations int, sc scenario.Scenario) (est, p float64) {
	t.Helper()
	kit := testkit.NewTestKit()
	cfg := testkit.SmallConfig(n, n, 200, iterations)
	sim := NewSimulator(cfg, testkit.QuietLogger())

	var ests, ps []float64
	for it := 0; it < iterations; it++ {
		res, err := sim.Simulate(context.Background(), n, it, kit.Stream(n, it, cfg.Run.Seed))
		require.NoError(t, err)
		if o := res.Outcome(sc); o.OK() {
			ests = append(ests, o.EstimatedRatio)
			ps = append(ps, o.PValue)
		}
	}
	require.NotEmpty(t, ests)
	est, _ = stats.Mean(ests)
	p, _ = stats.Mean(ps)
	return est, p
}

func TestScenarios_DirectDiscriminationDetected(t *testing.T) {
	if testing.Short() {
		t.Skip("Monte Carlo property")
	}
	est, p := meanOutcomes(t, 2000, 30, scenario.Direct)
	assert.Less(t, est, 1.0)
	assert.Less(t, p, 0.05)

	est, _ = meanOutcomes(t, 2000, 30, scenario.Partial)
	assert.Less(t, est, 1.0)
}

func TestScenarios_ProxyDiscriminationMasked(t *testing.T) {
	if testing.Short() {
		t.Skip("Monte Carlo property")
	}
	proxyEst, proxyP := meanOutcomes(t, 1000, 40, scenario.Proxy)
	directEst, _ := meanOutcomes(t, 1000, 40, scenario.Direct)

	// Controlling for the mediators hides the disparity entirely.
	assert.Greater(t, proxyP, 0.05)
	assert.Less(t, absDiff(proxyEst, 1), absDiff(directEst, 1))
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
