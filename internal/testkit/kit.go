package testkit

import (
	"context"
	"io"
	"log"
	"math/rand/v2"
	"sync"

	"impactsim/adapters/rng"
	"impactsim/domain/core"
	"impactsim/domain/scenario"
	"impactsim/internal"
	"impactsim/internal/config"
)

// DefaultSeed is the seed used by the reference run
const DefaultSeed int64 = 9487565

// TestKit provides testing utilities and fixtures
type TestKit struct {
	rng *rng.SeededAdapter
}

// NewTestKit creates a new test kit instance
func NewTestKit() *TestKit {
	return &TestKit{rng: rng.NewSeededAdapter()}
}

// RNGAdapter returns the deterministic RNG adapter
func (t *TestKit) RNGAdapter() *rng.SeededAdapter {
	return t.rng
}

// Stream returns the stream the runner would use for cell (n, it)
func (t *TestKit) Stream(n, it int, seed int64) *rand.Rand {
	r, err := t.rng.CellStream(context.Background(), core.NewCellKey(n, it), seed)
	if err != nil {
		panic(err)
	}
	return r
}

// SmallConfig returns a validated configuration over a reduced grid
func SmallConfig(minN, maxN, step, iterations int) *config.Config {
	cfg := config.Default()
	cfg.Grid = config.GridConfig{MinN: minN, MaxN: maxN, Step: step, Iterations: iterations}
	cfg.Run.Seed = DefaultSeed
	cfg.Run.Workers = 2
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

var quietOnce sync.Once

// QuietLogger returns an ERROR-level logger and silences the standard log
// output for the rest of the test binary
func QuietLogger() *internal.Logger {
	quietOnce.Do(func() { log.SetOutput(io.Discard) })
	return internal.NewLogger(internal.LogLevelError)
}

// Values is a (estimated ratio, p-value, empirical ratio) triple
type Values struct {
	Est, P, Emp float64
}

// Result builds a successful cell result with the given per-scenario values
func Result(n, it int, direct, partial, proxy Values) scenario.Result {
	res := scenario.Result{N: n, Iteration: it}
	for i, v := range [scenario.Count]Values{direct, partial, proxy} {
		res.Outcomes[i] = scenario.Outcome{
			Scenario:       scenario.All[i],
			EstimatedRatio: v.Est,
			PValue:         v.P,
			EmpiricalRatio: v.Emp,
		}
	}
	return res
}

// UniformResults builds a full grid where every outcome carries v
func UniformResults(sizes []int, iterations int, v Values) []scenario.Result {
	out := make([]scenario.Result, 0, len(sizes)*iterations)
	for _, n := range sizes {
		for it := 0; it < iterations; it++ {
			out = append(out, Result(n, it, v, v, v))
		}
	}
	return out
}

// Summary builds an aggregated summary over sizes with distinct, decreasing
// ratios per scenario. When gapAt is one of the sizes, the proxy row at that
// size becomes a gap.
func Summary(sizes []int, iterations, gapAt int) *scenario.Summary {
	s := &scenario.Summary{SampleSizes: append([]int(nil), sizes...), Iterations: iterations}
	for _, sc := range scenario.All {
		for i, n := range sizes {
			if sc == scenario.Proxy && n == gapAt {
				s.Rows = append(s.Rows, scenario.NewGapRow(sc, n, iterations))
				s.Gaps = append(s.Gaps, scenario.Gap{Scenario: sc, N: n, NonConvergence: iterations})
				continue
			}
			base := 0.6 + 0.1*float64(sc.Index())
			s.Rows = append(s.Rows, scenario.Aggregated{
				Scenario:             sc,
				N:                    n,
				MeanEstimatedRatio:   base + 0.01*float64(i),
				MeanPValue:           0.5 / float64(i+1),
				MeanEmpiricalRatio:   base + 0.02,
				SDEstimatedRatio:     0.05,
				MedianEstimatedRatio: base + 0.01*float64(i),
				Q25EstimatedRatio:    base - 0.03,
				Q75EstimatedRatio:    base + 0.04,
				RejectionRate:        0.25,
				FourFifthsRate:       0.5,
				Included:             iterations,
				Status:               scenario.StatusOK,
			})
		}
	}
	return s
}
