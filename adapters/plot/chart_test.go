package plot

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"impactsim/internal/testkit"
	"impactsim/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSpec() ports.ChartSpec {
	return ports.ChartSpec{
		Title:  "Mean estimated ratio",
		XLabel: "sample size",
		YLabel: "ratio",
		XMin:   200,
		XMax:   600,
		Series: []ports.ChartSeries{
			{Label: "direct", X: []float64{200, 400, 600}, Y: []float64{0.7, 0.72, 0.74}},
			{Label: "proxy", X: []float64{200, 400, 600}, Y: []float64{0.95, math.NaN(), 0.97}},
		},
		References: []ports.ReferenceLine{{Label: "true ratio", Y: 0.75}, {Label: "four-fifths", Y: 0.8}},
	}
}

func TestRender_Formats(t *testing.T) {
	testkit.QuietLogger()
	r := NewLineChartRenderer()

	for _, name := range []string{"ratio.png", "ratio.svg"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, r.Render(context.Background(), path, sampleSpec()))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestRender_SVGContainsLabels(t *testing.T) {
	testkit.QuietLogger()
	path := filepath.Join(t.TempDir(), "ratio.svg")
	require.NoError(t, NewLineChartRenderer().Render(context.Background(), path, sampleSpec()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	svg := string(raw)
	for _, label := range []string{"direct", "proxy", "four-fifths"} {
		assert.True(t, strings.Contains(svg, label), "missing %q", label)
	}
}

func TestRender_Errors(t *testing.T) {
	testkit.QuietLogger()
	r := NewLineChartRenderer()
	dir := t.TempDir()

	err := r.Render(context.Background(), filepath.Join(dir, "ratio.bmp"), sampleSpec())
	assert.Error(t, err)

	err = r.Render(context.Background(), filepath.Join(dir, "empty.png"), ports.ChartSpec{Title: "empty"})
	assert.Error(t, err)

	bad := sampleSpec()
	bad.Series[0].Y = bad.Series[0].Y[:2]
	err = r.Render(context.Background(), filepath.Join(dir, "bad.png"), bad)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Render(ctx, filepath.Join(dir, "c.png"), sampleSpec()), context.Canceled)
}

func TestSplitSegments(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{1, math.NaN(), 3, 4, math.Inf(1)}

	segs := splitSegments(x, y)
	require.Len(t, segs, 2)
	assert.Len(t, segs[0], 1)
	assert.Len(t, segs[1], 2)
	assert.Equal(t, 3.0, segs[1][0].X)

	assert.Empty(t, splitSegments([]float64{1}, []float64{math.NaN()}))
}
