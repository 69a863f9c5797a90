package simulation

import (
	"context"
	"testing"

	"impactsim/domain/core"
	"impactsim/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_SlotsFollowGrid(t *testing.T) {
	kit := testkit.NewTestKit()
	cfg := testkit.SmallConfig(200, 600, 200, 3)
	log := testkit.QuietLogger()
	runner := NewRunner(NewSimulator(cfg, log), kit.RNGAdapter(), cfg, log)

	results, err := runner.Run(context.Background(), cfg.Grid)
	require.NoError(t, err)
	require.Len(t, results, 9)

	for si, n := range cfg.Grid.SampleSizes() {
		for it := 0; it < 3; it++ {
			res := results[si*3+it]
			assert.Equal(t, n, res.N)
			assert.Equal(t, it, res.Iteration)
		}
	}
}

func TestRunner_IndependentOfWorkerCount(t *testing.T) {
	kit := testkit.NewTestKit()
	log := testkit.QuietLogger()

	serial := testkit.SmallConfig(200, 400, 200, 4)
	serial.Run.Workers = 1
	parallel := testkit.SmallConfig(200, 400, 200, 4)
	parallel.Run.Workers = 8

	a, err := NewRunner(NewSimulator(serial, log), kit.RNGAdapter(), serial, log).Run(context.Background(), serial.Grid)
	require.NoError(t, err)
	b, err := NewRunner(NewSimulator(parallel, log), kit.RNGAdapter(), parallel, log).Run(context.Background(), parallel.Grid)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestRunner_DomainFailureRecorded(t *testing.T) {
	kit := testkit.NewTestKit()
	cfg := testkit.SmallConfig(200, 400, 200, 2)
	cfg.Constants.IncarcerationBase = 0.95
	log := testkit.QuietLogger()

	results, err := NewRunner(NewSimulator(cfg, log), kit.RNGAdapter(), cfg, log).Run(context.Background(), cfg.Grid)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, res := range results {
		assert.True(t, res.Failed())
		assert.True(t, core.IsNumericalDomainError(res.Failure))
	}
}

func TestRunner_FailFast(t *testing.T) {
	kit := testkit.NewTestKit()
	cfg := testkit.SmallConfig(200, 400, 200, 2)
	cfg.Constants.IncarcerationBase = 0.95
	cfg.Run.FailFast = true
	log := testkit.QuietLogger()

	_, err := NewRunner(NewSimulator(cfg, log), kit.RNGAdapter(), cfg, log).Run(context.Background(), cfg.Grid)
	require.Error(t, err)
	assert.True(t, core.IsNumericalDomainError(err))
}

func TestRunner_Cancelled(t *testing.T) {
	kit := testkit.NewTestKit()
	cfg := testkit.SmallConfig(200, 400, 200, 2)
	log := testkit.QuietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(NewSimulator(cfg, log), kit.RNGAdapter(), cfg, log).Run(ctx, cfg.Grid)
	assert.Error(t, err)
}
