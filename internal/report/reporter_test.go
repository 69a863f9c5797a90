package report

import (
	"context"
	stderrors "errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"impactsim/adapters/excel"
	"impactsim/adapters/markdown"
	"impactsim/adapters/plot"
	"impactsim/domain/core"
	"impactsim/domain/scenario"
	"impactsim/internal/errors"
	"impactsim/internal/testkit"
	"impactsim/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(dir string) Options {
	return Options{Dir: dir, ChartFormat: "svg", TrueRatio: 0.75, FourFifths: 0.8, Alpha: 0.05, WriteCells: true}
}

func newReporter(dir string) *Reporter {
	return New(excel.NewTableWriter(), plot.NewLineChartRenderer(), markdown.NewHTMLRenderer(), testOptions(dir), testkit.QuietLogger())
}

func TestReport_WritesAllOutputs(t *testing.T) {
	dir := t.TempDir()
	sizes := []int{200, 400, 600}
	summary := testkit.Summary(sizes, 4, 400)
	results := testkit.UniformResults(sizes, 4, testkit.Values{Est: 0.7, P: 0.02, Emp: 0.7})

	outputs, err := newReporter(dir).Report(context.Background(), summary, results)
	require.NoError(t, err)

	want := []string{"ratio.svg", "pvalue.svg", ResultsCSV, ResultsXLSX, CellsCSV, SummaryMarkdown, SummaryHTML}
	assert.Equal(t, want, outputs)
	for _, name := range want {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestReport_WithoutCells(t *testing.T) {
	dir := t.TempDir()
	outputs, err := newReporter(dir).Report(context.Background(), testkit.Summary([]int{200}, 2, 0), nil)
	require.NoError(t, err)
	assert.NotContains(t, outputs, CellsCSV)
}

func TestCharts_MissingScenario(t *testing.T) {
	summary := testkit.Summary([]int{200, 400}, 2, 0)
	var kept []scenario.Aggregated
	for _, row := range summary.Rows {
		if row.Scenario != scenario.Partial {
			kept = append(kept, row)
		}
	}
	summary.Rows = kept

	_, err := newReporter(t.TempDir()).Charts(context.Background(), summary)
	require.Error(t, err)
	assert.Equal(t, errors.CodeReportError, errors.GetCode(err))
	assert.True(t, stderrors.Is(err, core.ErrMissingScenario))
	assert.Contains(t, err.Error(), "partial")
}

func TestRatioChart(t *testing.T) {
	summary := testkit.Summary([]int{200, 400, 600}, 2, 400)
	spec := newReporter(t.TempDir()).RatioChart(summary)

	assert.Equal(t, 200.0, spec.XMin)
	assert.Equal(t, 600.0, spec.XMax)
	require.Len(t, spec.Series, scenario.Count)
	require.Len(t, spec.References, 2)
	assert.Equal(t, 0.75, spec.References[0].Y)
	assert.Equal(t, 0.8, spec.References[1].Y)

	proxy := spec.Series[scenario.Proxy.Index()]
	assert.Equal(t, scenario.Proxy.Label(), proxy.Label)
	assert.Equal(t, []float64{200, 400, 600}, proxy.X)
	assert.True(t, math.IsNaN(proxy.Y[1]))
	assert.False(t, math.IsNaN(proxy.Y[0]))
}

func TestPValueChart(t *testing.T) {
	spec := newReporter(t.TempDir()).PValueChart(testkit.Summary([]int{200, 400}, 2, 0))
	require.Len(t, spec.References, 1)
	assert.Equal(t, 0.05, spec.References[0].Y)
	assert.InDelta(t, 0.25, spec.Series[0].Y[1], 1e-12)
}

func TestSummaryMarkdown_ListsGaps(t *testing.T) {
	r := newReporter(t.TempDir())

	md := string(r.SummaryMarkdown(testkit.Summary([]int{200, 400}, 3, 400)))
	assert.Contains(t, md, "## Scenario 1 (direct)")
	assert.Contains(t, md, "proxy n=400: no usable iterations (3 non-converged, 0 failed cells)")
	assert.Contains(t, md, "n/a")

	complete := string(r.SummaryMarkdown(testkit.Summary([]int{200}, 3, 0)))
	assert.True(t, strings.Contains(complete, "None."))
}

type failingTables struct{}

func (failingTables) WriteSummary(context.Context, string, *scenario.Summary) error {
	return assert.AnError
}

func (failingTables) WriteCells(context.Context, string, []scenario.Result) error {
	return assert.AnError
}

var _ ports.TableWriter = failingTables{}

func TestReport_TableFailure(t *testing.T) {
	dir := t.TempDir()
	r := New(failingTables{}, plot.NewLineChartRenderer(), markdown.NewHTMLRenderer(), testOptions(dir), testkit.QuietLogger())

	_, err := r.Report(context.Background(), testkit.Summary([]int{200}, 1, 0), nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeReportError, errors.GetCode(err))
	assert.ErrorIs(t, err, assert.AnError)
}
