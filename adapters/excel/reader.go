package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"impactsim/domain/scenario"
	"impactsim/ports"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading results tables from Excel and CSV files
type DataReader struct{}

var _ ports.TableReader = (*DataReader)(nil)

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader() *DataReader {
	return &DataReader{}
}

// ReadData reads the first sheet (xlsx) or the whole file (csv) into TableData
func (r *DataReader) ReadData(path string) (*TableData, error) {
	kind := fileType(path)
	log.Printf("[DataReader] Starting to read %s file: %s", kind, path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(kind), path)
	}

	switch kind {
	case "csv":
		return r.readCSVData(path)
	case "xlsx":
		return r.readExcelData(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

// ReadSummary rebuilds an aggregated summary from a table written by TableWriter.
// Gap reason counts are not stored in the results sheet and read back as zero.
func (r *DataReader) ReadSummary(ctx context.Context, path string) (*scenario.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.ReadData(path)
	if err != nil {
		return nil, err
	}
	if err := requireHeaders(data.Headers, SummaryHeaders); err != nil {
		return nil, err
	}

	summary := &scenario.Summary{}
	sizes := make(map[int]bool)
	for i, row := range data.Rows {
		agg, err := parseAggregated(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		summary.Rows = append(summary.Rows, agg)
		sizes[agg.N] = true
		if total := agg.Included + agg.Excluded; total > summary.Iterations {
			summary.Iterations = total
		}
		if agg.Status == scenario.StatusGap {
			summary.Gaps = append(summary.Gaps, scenario.Gap{Scenario: agg.Scenario, N: agg.N})
		}
	}
	for n := range sizes {
		summary.SampleSizes = append(summary.SampleSizes, n)
	}
	sort.Ints(summary.SampleSizes)

	log.Printf("[DataReader] Summary rebuilt (%d rows, %d sample sizes, %d gaps)",
		len(summary.Rows), len(summary.SampleSizes), len(summary.Gaps))
	return summary, nil
}

// readExcelData reads the first sheet of a workbook
func (r *DataReader) readExcelData(path string) (*TableData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	log.Printf("[DataReader] Excel file opened in %.2fms", float64(time.Since(startTime).Nanoseconds())/1e6)

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("Excel file must have at least a header row and one data row")
	}

	return r.processRows("xlsx", rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData(path string) (*TableData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	readStart := time.Now()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	log.Printf("[DataReader] CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have at least a header row and one data row")
	}

	return r.processRows("csv", rows)
}

// processRows converts raw string rows into TableData
func (r *DataReader) processRows(kind string, rows [][]string) (*TableData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	log.Printf("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(kind), len(headers), len(dataRows))

	return &TableData{Headers: headers, Rows: dataRows}, nil
}

func requireHeaders(have, want []string) error {
	present := make(map[string]bool, len(have))
	for _, h := range have {
		present[h] = true
	}
	var missing []string
	for _, h := range want {
		if !present[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func parseAggregated(row RawRowData) (scenario.Aggregated, error) {
	var agg scenario.Aggregated
	var err error

	if agg.Scenario, err = scenario.Parse(row[ColScenario]); err != nil {
		return agg, err
	}
	if agg.N, err = strconv.Atoi(row[ColN]); err != nil {
		return agg, fmt.Errorf("invalid %s %q", ColN, row[ColN])
	}
	if agg.Included, err = strconv.Atoi(row[ColIncluded]); err != nil {
		return agg, fmt.Errorf("invalid %s %q", ColIncluded, row[ColIncluded])
	}
	if agg.Excluded, err = strconv.Atoi(row[ColExcluded]); err != nil {
		return agg, fmt.Errorf("invalid %s %q", ColExcluded, row[ColExcluded])
	}

	switch scenario.Status(row[ColStatus]) {
	case scenario.StatusOK, "":
		agg.Status = scenario.StatusOK
	case scenario.StatusGap:
		agg.Status = scenario.StatusGap
	default:
		return agg, fmt.Errorf("invalid %s %q", ColStatus, row[ColStatus])
	}

	floatCols := []struct {
		name string
		dst  *float64
	}{
		{ColMeanEstimatedRatio, &agg.MeanEstimatedRatio},
		{ColMeanPValue, &agg.MeanPValue},
		{ColMeanEmpiricalRatio, &agg.MeanEmpiricalRatio},
		{ColSDEstimatedRatio, &agg.SDEstimatedRatio},
		{ColMedianEstRatio, &agg.MedianEstimatedRatio},
		{ColQ25EstRatio, &agg.Q25EstimatedRatio},
		{ColQ75EstRatio, &agg.Q75EstimatedRatio},
		{ColRejectionRate, &agg.RejectionRate},
		{ColFourFifthsRate, &agg.FourFifthsRate},
	}
	for _, c := range floatCols {
		v, err := parseFloat(row[c.name])
		if err != nil {
			return agg, fmt.Errorf("invalid %s %q", c.name, row[c.name])
		}
		*c.dst = v
	}
	return agg, nil
}

// parseFloat reads an empty cell as NaN
func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
