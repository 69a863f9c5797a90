package ports

import (
	"context"

	"impactsim/domain/scenario"
)

// TableWriter persists aggregated rows in a tabular format
type TableWriter interface {
	WriteSummary(ctx context.Context, path string, summary *scenario.Summary) error
	WriteCells(ctx context.Context, path string, results []scenario.Result) error
}

// TableReader loads aggregated rows written by a TableWriter
type TableReader interface {
	ReadSummary(ctx context.Context, path string) (*scenario.Summary, error)
}

// ChartSpec describes one line chart: one series per scenario plus
// horizontal reference lines
type ChartSpec struct {
	Title      string
	XLabel     string
	YLabel     string
	XMin, XMax float64
	Series     []ChartSeries
	References []ReferenceLine
}

// ChartSeries is one scenario's line
type ChartSeries struct {
	Label string
	X, Y  []float64
}

// ReferenceLine is a horizontal threshold drawn across the chart
type ReferenceLine struct {
	Label string
	Y     float64
}

// ChartRenderer writes a chart to an image file; the extension selects the format
type ChartRenderer interface {
	Render(ctx context.Context, path string, spec ChartSpec) error
}

// DocumentRenderer converts a Markdown document to a standalone HTML page
type DocumentRenderer interface {
	RenderHTML(title string, markdown []byte) []byte
}
