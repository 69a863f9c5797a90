package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"

	"impactsim/domain/core"
	"impactsim/domain/scenario"
	"impactsim/internal"
	"impactsim/internal/config"
	"impactsim/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// Design matrix columns
const (
	colIntercept = iota
	colRace
	colEarnings
	colIncarcerated
	numCols
)

// Simulator produces one Result per (sample size, iteration) cell
type Simulator struct {
	gen    *Generator
	fit    FitOptions
	logger *internal.Logger
}

// NewSimulator builds a simulator from the run configuration
func NewSimulator(cfg *config.Config, logger *internal.Logger) *Simulator {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Simulator{
		gen: NewGenerator(cfg.Constants, cfg.Run.ProbabilityPolicy),
		fit: FitOptions{
			MaxIter:   cfg.Run.MaxFitIterations,
			Tolerance: cfg.Run.FitTolerance,
		},
		logger: logger.With("Simulator"),
	}
}

// Generator exposes the population generator
func (s *Simulator) Generator() *Generator { return s.gen }

// Simulate draws a population from src and extracts the three scenario
// outcomes. A numerical domain error aborts the whole cell and is returned;
// a failed model fit only marks that scenario's outcome.
func (s *Simulator) Simulate(ctx context.Context, n, iteration int, src *rand.Rand) (scenario.Result, error) {
	res := scenario.Result{N: n, Iteration: iteration}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	key := core.NewCellKey(n, iteration)

	pop, err := s.gen.Generate(n, iteration, src)
	if err != nil {
		return res, errors.Wrapf(errors.NumericalDomain(err), "cell %s", key)
	}

	ones, zeros := groupSizes(pop.Race)
	if ones == 0 || zeros == 0 {
		return res, errors.Wrapf(errors.NumericalDomain(
			fmt.Errorf("%w: %d with race=1, %d with race=0", core.ErrDegenerateGroup, ones, zeros)), "cell %s", key)
	}

	x := designMatrix(pop)
	for _, sc := range scenario.All {
		res.Outcomes[sc.Index()] = s.extract(x, pop, sc)
		if o := res.Outcomes[sc.Index()]; !o.OK() {
			s.logger.Debug("%s %s excluded: %v", key, sc, o.Err)
		}
	}
	return res, nil
}

// extract fits the scenario's model and derives its three statistics
func (s *Simulator) extract(x *mat.Dense, pop *scenario.Population, sc scenario.Scenario) scenario.Outcome {
	out := scenario.Outcome{Scenario: sc}
	decisions := pop.Decision(sc)

	emp, err := EmpiricalRatio(pop.Race, decisions)
	if err != nil {
		out.Err = err
		return out
	}
	out.EmpiricalRatio = emp

	y := make([]float64, len(decisions))
	for i, d := range decisions {
		y[i] = float64(d)
	}
	fit, err := FitLogit(x, y, s.fit)
	if err != nil {
		out.Err = errors.NonConvergence(err)
		return out
	}

	out.RaceCoef = fit.Coef[colRace]
	out.StdErr = fit.StdErr[colRace]
	out.PValue = fit.PValue(colRace)
	out.FitIterations = fit.Iterations
	out.EstimatedRatio = ModelRatio(fit)
	return out
}

// ModelRatio is the predicted selection probability at race=1 over race=0,
// with earnings and incarceration held at zero
func ModelRatio(fit *LogitFit) float64 {
	treated := make([]float64, numCols)
	reference := make([]float64, numCols)
	treated[colIntercept], treated[colRace] = 1, 1
	reference[colIntercept] = 1
	return fit.Predict(treated) / fit.Predict(reference)
}

// EmpiricalRatio is the raw selection rate of race=1 over that of race=0
func EmpiricalRatio(race, decisions []int) (float64, error) {
	var sel, cnt [2]float64
	for i, r := range race {
		cnt[r]++
		sel[r] += float64(decisions[i])
	}
	if cnt[0] == 0 || cnt[1] == 0 {
		return 0, core.ErrDegenerateGroup
	}
	rate0 := sel[0] / cnt[0]
	if rate0 == 0 {
		return 0, fmt.Errorf("%w: no race=0 individual selected", core.ErrNumericalDomain)
	}
	return (sel[1] / cnt[1]) / rate0, nil
}

// designMatrix builds [1, race, earnings, incarcerated]. Earnings are divided
// by their sample mean to keep the information matrix well conditioned; the
// intercept and race coefficient do not depend on that scale.
func designMatrix(pop *scenario.Population) *mat.Dense {
	mean := 0.0
	for _, e := range pop.Earnings {
		mean += e
	}
	mean /= float64(pop.N)

	data := make([]float64, pop.N*numCols)
	for i := 0; i < pop.N; i++ {
		row := data[i*numCols : (i+1)*numCols]
		row[colIntercept] = 1
		row[colRace] = float64(pop.Race[i])
		row[colEarnings] = pop.Earnings[i] / mean
		row[colIncarcerated] = float64(pop.Incarcerated[i])
	}
	return mat.NewDense(pop.N, numCols, data)
}

func groupSizes(race []int) (ones, zeros int) {
	for _, r := range race {
		if r == 1 {
			ones++
		} else {
			zeros++
		}
	}
	return ones, zeros
}
