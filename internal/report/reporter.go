package report

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"impactsim/domain/core"
	"impactsim/domain/scenario"
	"impactsim/internal"
	"impactsim/internal/config"
	"impactsim/internal/errors"
	"impactsim/ports"

	"gonum.org/v1/gonum/floats"
)

// Output file names, relative to Options.Dir
const (
	RatioChartName  = "ratio"
	PValueChartName = "pvalue"
	ResultsCSV      = "results.csv"
	ResultsXLSX     = "results.xlsx"
	CellsCSV        = "cells.csv"
	SummaryMarkdown = "summary.md"
	SummaryHTML     = "summary.html"
)

// Options controls where and how the reporter writes
type Options struct {
	Dir         string
	ChartFormat string
	TrueRatio   float64
	FourFifths  float64
	Alpha       float64
	WriteCells  bool
	Title       string
}

// OptionsFromConfig maps the run configuration onto reporter options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Dir:         cfg.Output.Dir,
		ChartFormat: cfg.Output.ChartFormat,
		TrueRatio:   cfg.Output.TrueRatio,
		FourFifths:  cfg.Output.FourFifths,
		Alpha:       cfg.Run.Alpha,
		WriteCells:  cfg.Output.WriteCells,
		Title:       "impactsim run",
	}
}

// Reporter turns an aggregated summary into charts, tables and a run summary
type Reporter struct {
	tables ports.TableWriter
	charts ports.ChartRenderer
	docs   ports.DocumentRenderer
	opts   Options
	logger *internal.Logger
}

// New creates a reporter over the given output adapters
func New(tables ports.TableWriter, charts ports.ChartRenderer, docs ports.DocumentRenderer, opts Options, logger *internal.Logger) *Reporter {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if opts.ChartFormat == "" {
		opts.ChartFormat = "png"
	}
	if opts.Title == "" {
		opts.Title = "impactsim run"
	}
	return &Reporter{tables: tables, charts: charts, docs: docs, opts: opts, logger: logger.With("Reporter")}
}

// Report writes every output for a completed run and returns the file names
// written. results may be nil, in which case no per-cell table is produced.
func (r *Reporter) Report(ctx context.Context, summary *scenario.Summary, results []scenario.Result) ([]string, error) {
	if err := os.MkdirAll(r.opts.Dir, 0o755); err != nil {
		return nil, errors.ReportError("create output directory", err)
	}

	outputs, err := r.Charts(ctx, summary)
	if err != nil {
		return nil, err
	}

	for _, name := range []string{ResultsCSV, ResultsXLSX} {
		if err := r.tables.WriteSummary(ctx, r.path(name), summary); err != nil {
			return nil, errors.ReportError("write "+name, err)
		}
		outputs = append(outputs, name)
	}

	if r.opts.WriteCells && results != nil {
		if err := r.tables.WriteCells(ctx, r.path(CellsCSV), results); err != nil {
			return nil, errors.ReportError("write "+CellsCSV, err)
		}
		outputs = append(outputs, CellsCSV)
	}

	docs, err := r.Documents(summary)
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, docs...)

	r.logger.Info("wrote %d outputs to %s", len(outputs), r.opts.Dir)
	return outputs, nil
}

// Charts renders the ratio and p-value charts. A scenario with no rows at all
// is an error; gap rows are drawn as breaks in the line.
func (r *Reporter) Charts(ctx context.Context, summary *scenario.Summary) ([]string, error) {
	if err := checkScenarios(summary); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.opts.Dir, 0o755); err != nil {
		return nil, errors.ReportError("create output directory", err)
	}
	if !summary.Complete() {
		r.logger.Warn("%d gap(s) in summary; affected points are left out of the charts", len(summary.Gaps))
	}

	specs := []struct {
		name string
		spec ports.ChartSpec
	}{
		{RatioChartName, r.RatioChart(summary)},
		{PValueChartName, r.PValueChart(summary)},
	}

	var outputs []string
	for _, s := range specs {
		name := s.name + "." + r.opts.ChartFormat
		if err := r.charts.Render(ctx, r.path(name), s.spec); err != nil {
			return nil, errors.ReportError("render "+name, err)
		}
		outputs = append(outputs, name)
	}
	return outputs, nil
}

// Documents writes summary.md and its HTML rendering
func (r *Reporter) Documents(summary *scenario.Summary) ([]string, error) {
	md := r.SummaryMarkdown(summary)
	if err := os.WriteFile(r.path(SummaryMarkdown), md, 0o644); err != nil {
		return nil, errors.ReportError("write "+SummaryMarkdown, err)
	}
	if err := os.WriteFile(r.path(SummaryHTML), r.docs.RenderHTML(r.opts.Title, md), 0o644); err != nil {
		return nil, errors.ReportError("write "+SummaryHTML, err)
	}
	return []string{SummaryMarkdown, SummaryHTML}, nil
}

// RatioChart plots mean estimated ratio against sample size
func (r *Reporter) RatioChart(summary *scenario.Summary) ports.ChartSpec {
	spec := r.baseSpec(summary, "Mean estimated ratio by sample size", "Estimated ratio")
	spec.Series = series(summary, func(a scenario.Aggregated) float64 { return a.MeanEstimatedRatio })
	spec.References = []ports.ReferenceLine{
		{Label: fmt.Sprintf("True ratio (%.2f)", r.opts.TrueRatio), Y: r.opts.TrueRatio},
		{Label: fmt.Sprintf("Four-fifths rule (%.2f)", r.opts.FourFifths), Y: r.opts.FourFifths},
	}
	return spec
}

// PValueChart plots mean p-value against sample size
func (r *Reporter) PValueChart(summary *scenario.Summary) ports.ChartSpec {
	spec := r.baseSpec(summary, "Mean p-value by sample size", "p-value")
	spec.Series = series(summary, func(a scenario.Aggregated) float64 { return a.MeanPValue })
	spec.References = []ports.ReferenceLine{
		{Label: fmt.Sprintf("alpha = %.2f", r.opts.Alpha), Y: r.opts.Alpha},
	}
	return spec
}

func (r *Reporter) baseSpec(summary *scenario.Summary, title, ylabel string) ports.ChartSpec {
	spec := ports.ChartSpec{Title: title, XLabel: "Sample size", YLabel: ylabel}
	if len(summary.SampleSizes) > 0 {
		xs := toFloats(summary.SampleSizes)
		spec.XMin = floats.Min(xs)
		spec.XMax = floats.Max(xs)
	}
	return spec
}

func series(summary *scenario.Summary, value func(scenario.Aggregated) float64) []ports.ChartSeries {
	out := make([]ports.ChartSeries, 0, scenario.Count)
	for _, sc := range scenario.All {
		rows := summary.Series(sc)
		s := ports.ChartSeries{Label: sc.Label(), X: make([]float64, len(rows)), Y: make([]float64, len(rows))}
		for i, row := range rows {
			s.X[i] = float64(row.N)
			s.Y[i] = value(row)
		}
		out = append(out, s)
	}
	return out
}

// SummaryMarkdown renders the run summary: per-scenario tables, gaps and
// exclusion counts
func (r *Reporter) SummaryMarkdown(summary *scenario.Summary) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", r.opts.Title)
	fmt.Fprintf(&b, "- Sample sizes: %d (%s)\n", len(summary.SampleSizes), sizeRange(summary.SampleSizes))
	fmt.Fprintf(&b, "- Iterations per sample size: %d\n", summary.Iterations)
	fmt.Fprintf(&b, "- Failed cells: %d\n", summary.CellFailures)
	fmt.Fprintf(&b, "- Reference lines: true ratio %.2f, four-fifths %.2f, alpha %.2f\n\n",
		r.opts.TrueRatio, r.opts.FourFifths, r.opts.Alpha)

	for _, sc := range scenario.All {
		fmt.Fprintf(&b, "## %s\n\n", sc.Label())
		b.WriteString("| n | mean estimated ratio | mean p-value | mean empirical ratio | sd estimated ratio | median estimated ratio | rejection rate | below four-fifths | included | excluded |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|---|---|\n")
		for _, row := range summary.Series(sc) {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s | %s | %d | %d |\n",
				row.N,
				num(row.MeanEstimatedRatio),
				num(row.MeanPValue),
				num(row.MeanEmpiricalRatio),
				num(row.SDEstimatedRatio),
				num(row.MedianEstimatedRatio),
				num(row.RejectionRate),
				num(row.FourFifthsRate),
				row.Included,
				row.Excluded)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Gaps\n\n")
	if summary.Complete() {
		b.WriteString("None. Every sample size has at least one usable iteration per scenario.\n")
	} else {
		for _, g := range summary.Gaps {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}
	return b.Bytes()
}

func (r *Reporter) path(name string) string {
	return filepath.Join(r.opts.Dir, name)
}

func checkScenarios(summary *scenario.Summary) error {
	if summary == nil {
		return errors.ReportError("nothing to report", core.ErrMissingScenario)
	}
	for _, sc := range scenario.All {
		if len(summary.Series(sc)) == 0 {
			return errors.ReportError("cannot plot", fmt.Errorf("%w: %s", core.ErrMissingScenario, sc.Label()))
		}
	}
	return nil
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}

func sizeRange(sizes []int) string {
	if len(sizes) == 0 {
		return "none"
	}
	return fmt.Sprintf("%d..%d", sizes[0], sizes[len(sizes)-1])
}

func toFloats(v []int) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
