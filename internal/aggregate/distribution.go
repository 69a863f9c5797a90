package aggregate

import (
	"github.com/montanaflynn/stats"
)

// Spread summarises the distribution of a group's estimated ratios
type Spread struct {
	Median   float64
	Q25      float64
	Q75      float64
	Outliers int // values outside the 1.5·IQR fences
}

// AnalyzeSpread computes median, quartiles and the IQR outlier count.
// Quartiles follow montanaflynn/stats Percentile; groups too small for a
// quartile rank fall back to the minimum and maximum.
func AnalyzeSpread(data []float64) (Spread, error) {
	var s Spread
	var err error

	if s.Median, err = stats.Median(data); err != nil {
		return s, err
	}
	// Percentile rejects ranks below the first element, which small groups hit
	if s.Q25, err = stats.Percentile(data, 25); err != nil {
		if s.Q25, err = stats.Min(data); err != nil {
			return s, err
		}
	}
	if s.Q75, err = stats.Percentile(data, 75); err != nil {
		if s.Q75, err = stats.Max(data); err != nil {
			return s, err
		}
	}
	s.Outliers = detectOutliers(data, s.Q25, s.Q75)
	return s, nil
}

// detectOutliers identifies outliers using IQR method
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}
	return outlierCount
}
