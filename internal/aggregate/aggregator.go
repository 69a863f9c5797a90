package aggregate

import (
	"fmt"

	"impactsim/domain/core"
	"impactsim/domain/scenario"
	"impactsim/internal"
	"impactsim/internal/errors"

	"github.com/montanaflynn/stats"
)

// Aggregator reduces cell results to per (scenario, sample size) means
type Aggregator struct {
	alpha      float64
	fourFifths float64
	logger     *internal.Logger
}

// New creates an aggregator. alpha is the significance level used for the
// rejection rate, fourFifths the empirical-ratio threshold.
func New(alpha, fourFifths float64, logger *internal.Logger) *Aggregator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Aggregator{alpha: alpha, fourFifths: fourFifths, logger: logger.With("Aggregator")}
}

type groupKey struct {
	sc scenario.Scenario
	n  int
}

type group struct {
	est, p, emp    []float64
	nonConvergence int
	cellFailures   int
}

// Aggregate validates results against the grid and reduces them. Every
// (scenario, sample size) pair yields exactly one row; pairs with no usable
// record become gap rows and are listed in Summary.Gaps.
func (a *Aggregator) Aggregate(results []scenario.Result, sizes []int, iterations int) (*scenario.Summary, error) {
	if err := validate(results, sizes, iterations); err != nil {
		return nil, errors.AggregationContract(err)
	}

	groups := make(map[groupKey]*group, len(sizes)*scenario.Count)
	for _, sc := range scenario.All {
		for _, n := range sizes {
			groups[groupKey{sc, n}] = &group{}
		}
	}

	failedCells := 0
	for _, res := range results {
		if res.Failed() {
			failedCells++
		}
		for _, sc := range scenario.All {
			g := groups[groupKey{sc, res.N}]
			if res.Failed() {
				g.cellFailures++
				continue
			}
			o := res.Outcome(sc)
			if !o.OK() {
				g.nonConvergence++
				continue
			}
			g.est = append(g.est, o.EstimatedRatio)
			g.p = append(g.p, o.PValue)
			g.emp = append(g.emp, o.EmpiricalRatio)
		}
	}

	summary := &scenario.Summary{
		SampleSizes:  append([]int(nil), sizes...),
		Iterations:   iterations,
		CellFailures: failedCells,
	}
	for _, sc := range scenario.All {
		for _, n := range sizes {
			g := groups[groupKey{sc, n}]
			excluded := g.nonConvergence + g.cellFailures
			if excluded > 0 {
				a.logger.Info("%s n=%d: excluded %d of %d iterations (%d non-converged, %d failed cells)",
					sc, n, excluded, iterations, g.nonConvergence, g.cellFailures)
			}

			if len(g.est) == 0 {
				gap := scenario.Gap{Scenario: sc, N: n, NonConvergence: g.nonConvergence, CellFailures: g.cellFailures}
				a.logger.Warn("gap: %s", gap)
				summary.Gaps = append(summary.Gaps, gap)
				summary.Rows = append(summary.Rows, scenario.NewGapRow(sc, n, excluded))
				continue
			}

			row, err := a.reduce(sc, n, g)
			if err != nil {
				return nil, errors.Wrapf(err, "reduce %s n=%d", sc, n)
			}
			row.Excluded = excluded
			summary.Rows = append(summary.Rows, row)
		}
	}

	return summary, nil
}

func (a *Aggregator) reduce(sc scenario.Scenario, n int, g *group) (scenario.Aggregated, error) {
	row := scenario.Aggregated{Scenario: sc, N: n, Included: len(g.est), Status: scenario.StatusOK}

	var err error
	if row.MeanEstimatedRatio, err = stats.Mean(g.est); err != nil {
		return row, err
	}
	if row.MeanPValue, err = stats.Mean(g.p); err != nil {
		return row, err
	}
	if row.MeanEmpiricalRatio, err = stats.Mean(g.emp); err != nil {
		return row, err
	}
	spread, err := AnalyzeSpread(g.est)
	if err != nil {
		return row, err
	}
	row.MedianEstimatedRatio = spread.Median
	row.Q25EstimatedRatio = spread.Q25
	row.Q75EstimatedRatio = spread.Q75
	if spread.Outliers > 0 {
		a.logger.Debug("%s n=%d: %d estimated ratio outlier(s) outside 1.5 IQR", sc, n, spread.Outliers)
	}
	if len(g.est) > 1 {
		if row.SDEstimatedRatio, err = stats.StandardDeviationSample(g.est); err != nil {
			return row, err
		}
	}

	rejected, flagged := 0, 0
	for i := range g.p {
		if g.p[i] < a.alpha {
			rejected++
		}
		if g.emp[i] < a.fourFifths {
			flagged++
		}
	}
	row.RejectionRate = float64(rejected) / float64(row.Included)
	row.FourFifthsRate = float64(flagged) / float64(row.Included)
	return row, nil
}

// validate enforces the input contract: every record belongs to the grid,
// no cell appears twice, and every grid cell is present
func validate(results []scenario.Result, sizes []int, iterations int) error {
	if len(sizes) == 0 || iterations <= 0 {
		return core.NewContractError("empty grid (%d sample sizes, %d iterations)", len(sizes), iterations)
	}

	counts := make(map[int]int, len(sizes))
	for _, n := range sizes {
		if _, dup := counts[n]; dup {
			return core.NewContractError("sample size %d listed twice", n)
		}
		counts[n] = 0
	}

	seen := make(map[core.CellKey]bool, len(results))
	for _, res := range results {
		key := core.NewCellKey(res.N, res.Iteration)
		if _, ok := counts[res.N]; !ok {
			return core.NewContractError("record %s: sample size not in grid", key)
		}
		if res.Iteration < 0 || res.Iteration >= iterations {
			return core.NewContractError("record %s: iteration outside [0,%d)", key, iterations)
		}
		if seen[key] {
			return core.NewContractError("record %s appears twice", key)
		}
		seen[key] = true
		counts[res.N]++

		if res.Failed() {
			continue
		}
		for i, o := range res.Outcomes {
			if o.Scenario != scenario.All[i] {
				return core.NewContractError("record %s: outcome slot %d holds %s", key, i, o.Scenario)
			}
		}
	}

	var missing []string
	for _, n := range sizes {
		if counts[n] != iterations {
			missing = append(missing, fmt.Sprintf("n=%d has %d/%d", n, counts[n], iterations))
		}
	}
	if len(missing) > 0 {
		return core.NewContractError("missing iterations: %v", missing)
	}
	return nil
}
