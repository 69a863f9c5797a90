package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"impactsim/domain/scenario"
	"impactsim/ports"

	"github.com/xuri/excelize/v2"
)

// TableWriter writes aggregated results as .xlsx or .csv, chosen by extension
type TableWriter struct{}

var _ ports.TableWriter = (*TableWriter)(nil)

// NewTableWriter creates a table writer
func NewTableWriter() *TableWriter {
	return &TableWriter{}
}

// WriteSummary writes one row per (scenario, sample size), gap rows included
func (w *TableWriter) WriteSummary(ctx context.Context, path string, summary *scenario.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := summaryRows(summary)

	switch fileType(path) {
	case "csv":
		return writeCSV(path, SummaryHeaders, rows)
	case "xlsx":
		return writeXLSX(path, SummaryHeaders, rows, summary.Gaps)
	default:
		return fmt.Errorf("unsupported table format: %s", filepath.Ext(path))
	}
}

// WriteCells writes the raw per-cell outcomes as CSV, one line per (cell, scenario)
func (w *TableWriter) WriteCells(ctx context.Context, path string, results []scenario.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := make([][]string, 0, len(results)*scenario.Count)
	for _, res := range results {
		for _, sc := range scenario.All {
			if res.Failed() {
				rows = append(rows, []string{
					strconv.Itoa(res.N), strconv.Itoa(res.Iteration), sc.String(),
					"", "", "", "", "", "", res.Failure.Error(),
				})
				continue
			}
			o := res.Outcome(sc)
			errText := ""
			if o.Err != nil {
				errText = o.Err.Error()
			}
			rows = append(rows, []string{
				strconv.Itoa(res.N),
				strconv.Itoa(res.Iteration),
				sc.String(),
				fToStr(o.EstimatedRatio),
				fToStr(o.PValue),
				fToStr(o.EmpiricalRatio),
				fToStr(o.RaceCoef),
				fToStr(o.StdErr),
				strconv.Itoa(o.FitIterations),
				errText,
			})
		}
	}
	return writeCSV(path, CellHeaders, rows)
}

func summaryRows(summary *scenario.Summary) [][]string {
	rows := make([][]string, 0, len(summary.Rows))
	for _, r := range summary.Rows {
		rows = append(rows, []string{
			r.Scenario.String(),
			strconv.Itoa(r.N),
			string(r.Status),
			fToStr(r.MeanEstimatedRatio),
			fToStr(r.MeanPValue),
			fToStr(r.MeanEmpiricalRatio),
			fToStr(r.SDEstimatedRatio),
			fToStr(r.MedianEstimatedRatio),
			fToStr(r.Q25EstimatedRatio),
			fToStr(r.Q75EstimatedRatio),
			fToStr(r.RejectionRate),
			fToStr(r.FourFifthsRate),
			strconv.Itoa(r.Included),
			strconv.Itoa(r.Excluded),
		})
	}
	return rows
}

func writeCSV(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

func writeXLSX(path string, headers []string, rows [][]string, gaps []scenario.Gap) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := setRow(f, resultsSheet, 1, toCells(headers)); err != nil {
		return err
	}
	for r, row := range rows {
		cells := make([]interface{}, len(row))
		for c, v := range row {
			cells[c] = typedCell(v)
		}
		if err := setRow(f, resultsSheet, r+2, cells); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(resultsSheet, 1, 1, bold); err != nil {
		return err
	}

	if len(gaps) > 0 {
		if _, err := f.NewSheet(gapsSheet); err != nil {
			return err
		}
		if err := setRow(f, gapsSheet, 1, toCells([]string{"scenario", "n", "non_convergence", "cell_failures"})); err != nil {
			return err
		}
		for i, g := range gaps {
			if err := setRow(f, gapsSheet, i+2, []interface{}{g.Scenario.String(), g.N, g.NonConvergence, g.CellFailures}); err != nil {
				return err
			}
		}
		if err := f.SetRowStyle(gapsSheet, 1, 1, bold); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

// typedCell stores finite numbers as numeric cells and everything else,
// NaN included, as text
func typedCell(v string) interface{} {
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if x, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(x) && !math.IsInf(x, 0) {
		return x
	}
	return v
}

func fToStr(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

func fileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".xlsx":
		return "xlsx"
	default:
		return ""
	}
}
