package simulation

import (
	"math"
	"math/rand/v2"

	"impactsim/domain/core"
	"impactsim/domain/scenario"
	"impactsim/internal/config"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Generator draws synthetic populations from the configured process
type Generator struct {
	k      config.Constants
	policy string
}

// NewGenerator creates a generator. policy is config.PolicyReject or config.PolicyClamp.
func NewGenerator(k config.Constants, policy string) *Generator {
	return &Generator{k: k, policy: policy}
}

// Generate draws one population of size n. Columns are drawn one after the
// other (race, noise, incarceration, earnings, flags, then the three
// decisions) so the same stream always reproduces the same population.
func (g *Generator) Generate(n, iteration int, src rand.Source) (*scenario.Population, error) {
	if n <= 0 {
		return nil, core.NewValidationError("n", "sample size must be positive")
	}
	k := g.k

	pop := &scenario.Population{
		N:            n,
		Iteration:    iteration,
		Race:         make([]int, n),
		Incarcerated: make([]int, n),
		Earnings:     make([]float64, n),
		Flagged:      make([]int, n),
	}

	raceDist := distuv.Bernoulli{P: k.RaceRate, Src: src}
	for i := range pop.Race {
		pop.Race[i] = int(raceDist.Rand())
	}

	noise := make([]float64, n)
	noiseDist := distuv.Uniform{Min: -k.IncarcerationNoise, Max: k.IncarcerationNoise, Src: src}
	for i := range noise {
		noise[i] = noiseDist.Rand()
	}

	for i := range pop.Incarcerated {
		p := k.IncarcerationBase + k.IncarcerationRaceEffect*float64(pop.Race[i]) + noise[i]
		p, err := g.probability("incarceration_probability", i, p)
		if err != nil {
			return nil, err
		}
		pop.Incarcerated[i] = int(distuv.Bernoulli{P: p, Src: src}.Rand())
	}

	gamma := distuv.Gamma{Alpha: k.GammaShape, Beta: k.GammaRate, Src: src}
	for i := range pop.Earnings {
		factor := 1 - k.EarningsIncarcerationPenalty*float64(pop.Incarcerated[i]) - k.EarningsRacePenalty*float64(pop.Race[i])
		e := gamma.Rand() * k.EarningsScale * factor
		if !(e > 0) || math.IsInf(e, 0) {
			return nil, core.NewDomainError("earnings", i, e)
		}
		pop.Earnings[i] = e
	}

	flagDist := distuv.Bernoulli{P: k.FlagRate, Src: src}
	for i := range pop.Flagged {
		f := int(flagDist.Rand())
		if pop.Race[i] == 1 {
			pop.Flagged[i] = f
		}
	}

	probs, err := g.selectionProbabilities(pop)
	if err != nil {
		return nil, err
	}
	for s := range probs {
		decisions := make([]int, n)
		for i, p := range probs[s] {
			decisions[i] = int(distuv.Bernoulli{P: p, Src: src}.Rand())
		}
		pop.Decisions[s] = decisions
	}

	return pop, nil
}

// selectionProbabilities computes the per-scenario selection probability of
// every individual. The log-earnings term is min-max rescaled over this sample.
func (g *Generator) selectionProbabilities(pop *scenario.Population) ([scenario.Count][]float64, error) {
	var probs [scenario.Count][]float64
	k := g.k
	n := pop.N

	logE := make([]float64, n)
	for i, e := range pop.Earnings {
		logE[i] = math.Log(e)
	}
	lo, hi := floats.Min(logE), floats.Max(logE)
	span := hi - lo
	if !(span > 0) || math.IsInf(span, 0) {
		return probs, core.NewDomainError("log_earnings_range", 0, span)
	}

	for s := range probs {
		probs[s] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		norm := (logE[i] - lo) / span
		inc := float64(pop.Incarcerated[i])
		base := norm * (1 - k.JailPenalty*inc)

		candidates := [scenario.Count]float64{
			base * (1 - k.DirectRacePenalty*float64(pop.Race[i])),
			base * (1 - k.FlagPenalty*float64(pop.Flagged[i])),
			norm * (1 - k.ProxyJailPenalty*inc),
		}
		for s, p := range candidates {
			p, err := g.probability(scenario.All[s].String()+"_selection_probability", i, p)
			if err != nil {
				return probs, err
			}
			probs[s][i] = p
		}
	}
	return probs, nil
}

// probability applies the configured policy to a value that must lie in [0,1]
func (g *Generator) probability(what string, i int, p float64) (float64, error) {
	if p >= 0 && p <= 1 {
		return p, nil
	}
	if g.policy == config.PolicyClamp && !math.IsNaN(p) {
		return math.Min(math.Max(p, 0), 1), nil
	}
	return 0, core.NewDomainError(what, i, p)
}
