package scenario

import (
	"fmt"
	"math"
	"strings"
)

// Scenario identifies one of the three synthetic decision-generating processes
type Scenario int

const (
	// Direct discrimination: race enters the selection probability directly.
	Direct Scenario = iota + 1
	// Partial discrimination: only a random subset of race=1 individuals is penalised.
	Partial
	// Proxy discrimination: race acts only through earnings and incarceration.
	Proxy
)

// Count is the number of scenarios every result carries
const Count = 3

// All lists the scenarios in reporting order
var All = [Count]Scenario{Direct, Partial, Proxy}

// Index returns the zero-based slot of the scenario in per-scenario arrays
func (s Scenario) Index() int { return int(s) - 1 }

// Valid reports whether s is one of the known scenarios
func (s Scenario) Valid() bool { return s >= Direct && s <= Proxy }

func (s Scenario) String() string {
	switch s {
	case Direct:
		return "direct"
	case Partial:
		return "partial"
	case Proxy:
		return "proxy"
	default:
		return fmt.Sprintf("scenario(%d)", int(s))
	}
}

// Label is the human readable name used in charts and tables
func (s Scenario) Label() string {
	switch s {
	case Direct:
		return "Scenario 1 (direct)"
	case Partial:
		return "Scenario 2 (partial)"
	case Proxy:
		return "Scenario 3 (proxy)"
	default:
		return s.String()
	}
}

// Parse accepts either the name ("direct") or the number ("1")
func Parse(v string) (Scenario, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "direct", "1":
		return Direct, nil
	case "partial", "2":
		return Partial, nil
	case "proxy", "3":
		return Proxy, nil
	}
	return 0, fmt.Errorf("unknown scenario %q", v)
}

// Population is one synthetic sample. It is created per grid cell and
// discarded once the cell's result has been extracted.
type Population struct {
	N            int
	Iteration    int
	Race         []int
	Incarcerated []int
	Earnings     []float64
	Flagged      []int
	Decisions    [Count][]int
}

// Decision returns the decision column for scenario s
func (p *Population) Decision(s Scenario) []int {
	return p.Decisions[s.Index()]
}

// Outcome holds the per-scenario extraction for one cell. Err is set when
// the model fit failed; the numeric fields are then meaningless.
type Outcome struct {
	Scenario       Scenario `json:"scenario"`
	EstimatedRatio float64  `json:"estimated_ratio"`
	PValue         float64  `json:"p_value"`
	EmpiricalRatio float64  `json:"empirical_ratio"`
	RaceCoef       float64  `json:"race_coef"`
	StdErr         float64  `json:"std_err"`
	FitIterations  int      `json:"fit_iterations"`
	Err            error    `json:"-"`
}

// OK reports whether the outcome may contribute to aggregation
func (o Outcome) OK() bool { return o.Err == nil }

// Result is the immutable record of one (sample size, iteration) cell.
// Failure is set when the whole cell was aborted (numerical domain error);
// Outcomes is then empty.
type Result struct {
	N         int            `json:"n"`
	Iteration int            `json:"iteration"`
	Outcomes  [Count]Outcome `json:"outcomes"`
	Failure   error          `json:"-"`
}

// Failed reports whether the cell was aborted
func (r Result) Failed() bool { return r.Failure != nil }

// Outcome returns the outcome for scenario s
func (r Result) Outcome(s Scenario) Outcome { return r.Outcomes[s.Index()] }

// Status of an aggregated row
type Status string

const (
	StatusOK  Status = "ok"
	StatusGap Status = "gap"
)

// Aggregated is the per (scenario, sample size) reduction. Means are over the
// Included records only; a Gap row has Included == 0 and NaN means.
type Aggregated struct {
	Scenario             Scenario `json:"scenario"`
	N                    int      `json:"n"`
	MeanEstimatedRatio   float64  `json:"mean_estimated_ratio"`
	MeanPValue           float64  `json:"mean_p_value"`
	MeanEmpiricalRatio   float64  `json:"mean_empirical_ratio"`
	SDEstimatedRatio     float64  `json:"sd_estimated_ratio"`
	MedianEstimatedRatio float64  `json:"median_estimated_ratio"`
	Q25EstimatedRatio    float64  `json:"q25_estimated_ratio"`
	Q75EstimatedRatio    float64  `json:"q75_estimated_ratio"`
	RejectionRate        float64  `json:"rejection_rate"`
	FourFifthsRate       float64  `json:"four_fifths_rate"`
	Included             int      `json:"included"`
	Excluded             int      `json:"excluded"`
	Status               Status   `json:"status"`
}

// NewGapRow builds the explicit row for a group with no usable records
func NewGapRow(s Scenario, n, excluded int) Aggregated {
	nan := math.NaN()
	return Aggregated{
		Scenario:             s,
		N:                    n,
		MeanEstimatedRatio:   nan,
		MeanPValue:           nan,
		MeanEmpiricalRatio:   nan,
		SDEstimatedRatio:     nan,
		MedianEstimatedRatio: nan,
		Q25EstimatedRatio:    nan,
		Q75EstimatedRatio:    nan,
		RejectionRate:        nan,
		FourFifthsRate:       nan,
		Excluded:             excluded,
		Status:               StatusGap,
	}
}

// Gap describes a (scenario, sample size) group with zero included records
type Gap struct {
	Scenario       Scenario `json:"scenario"`
	N              int      `json:"n"`
	NonConvergence int      `json:"non_convergence"`
	CellFailures   int      `json:"cell_failures"`
}

func (g Gap) String() string {
	return fmt.Sprintf("%s n=%d: no usable iterations (%d non-converged, %d failed cells)",
		g.Scenario, g.N, g.NonConvergence, g.CellFailures)
}

// Summary is the aggregator output consumed by the reporter
type Summary struct {
	Rows         []Aggregated `json:"rows"`
	Gaps         []Gap        `json:"gaps"`
	SampleSizes  []int        `json:"sample_sizes"`
	Iterations   int          `json:"iterations"`
	CellFailures int          `json:"cell_failures"`
}

// Complete reports whether every group had at least one usable record
func (s *Summary) Complete() bool { return len(s.Gaps) == 0 }

// Series returns the rows of scenario sc ordered by sample size
func (s *Summary) Series(sc Scenario) []Aggregated {
	var out []Aggregated
	for _, r := range s.Rows {
		if r.Scenario == sc {
			out = append(out, r)
		}
	}
	return out
}

// Row finds the row for (sc, n)
func (s *Summary) Row(sc Scenario, n int) (Aggregated, bool) {
	for _, r := range s.Rows {
		if r.Scenario == sc && r.N == n {
			return r, true
		}
	}
	return Aggregated{}, false
}
