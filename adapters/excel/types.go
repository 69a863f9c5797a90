package excel

// RawRowData represents a row of raw table data as header -> cell text
type RawRowData map[string]string

// TableData represents a complete table read from an Excel or CSV file
type TableData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Column names of the aggregated results table
const (
	ColScenario           = "scenario"
	ColN                  = "n"
	ColStatus             = "status"
	ColMeanEstimatedRatio = "mean_estimated_ratio"
	ColMeanPValue         = "mean_p_value"
	ColMeanEmpiricalRatio = "mean_empirical_ratio"
	ColSDEstimatedRatio   = "sd_estimated_ratio"
	ColMedianEstRatio     = "median_estimated_ratio"
	ColQ25EstRatio        = "q25_estimated_ratio"
	ColQ75EstRatio        = "q75_estimated_ratio"
	ColRejectionRate      = "rejection_rate"
	ColFourFifthsRate     = "four_fifths_rate"
	ColIncluded           = "included"
	ColExcluded           = "excluded"
)

// SummaryHeaders is the column order of the aggregated results table
var SummaryHeaders = []string{
	ColScenario,
	ColN,
	ColStatus,
	ColMeanEstimatedRatio,
	ColMeanPValue,
	ColMeanEmpiricalRatio,
	ColSDEstimatedRatio,
	ColMedianEstRatio,
	ColQ25EstRatio,
	ColQ75EstRatio,
	ColRejectionRate,
	ColFourFifthsRate,
	ColIncluded,
	ColExcluded,
}

// CellHeaders is the column order of the per-cell table
var CellHeaders = []string{
	"n",
	"iteration",
	"scenario",
	"estimated_ratio",
	"p_value",
	"empirical_ratio",
	"race_coef",
	"std_err",
	"fit_iterations",
	"error",
}

const (
	resultsSheet = "results"
	gapsSheet    = "gaps"
)
