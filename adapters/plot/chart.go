package plot

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"math"
	"path/filepath"
	"strings"

	"impactsim/ports"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Default canvas size
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 5 * vg.Inch
)

var referenceColors = []color.Color{
	color.RGBA{R: 120, G: 120, B: 120, A: 255},
	color.RGBA{R: 200, G: 60, B: 60, A: 255},
	color.RGBA{R: 60, G: 60, B: 200, A: 255},
}

// LineChartRenderer implements ports.ChartRenderer with gonum/plot
type LineChartRenderer struct {
	Width, Height vg.Length
}

var _ ports.ChartRenderer = (*LineChartRenderer)(nil)

// NewLineChartRenderer creates a renderer with the default canvas size
func NewLineChartRenderer() *LineChartRenderer {
	return &LineChartRenderer{Width: DefaultWidth, Height: DefaultHeight}
}

// Render draws one line per series and a dashed horizontal line per reference.
// NaN points split a series into separate segments instead of being drawn.
func (r *LineChartRenderer) Render(ctx context.Context, path string, spec ports.ChartSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkFormat(path); err != nil {
		return err
	}
	if len(spec.Series) == 0 {
		return fmt.Errorf("chart %q has no series", spec.Title)
	}

	p := plot.New()
	p.Title.Text = spec.Title
	p.X.Label.Text = spec.XLabel
	p.Y.Label.Text = spec.YLabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for i, s := range spec.Series {
		if len(s.X) != len(s.Y) {
			return fmt.Errorf("series %q: %d x values, %d y values", s.Label, len(s.X), len(s.Y))
		}
		segments := splitSegments(s.X, s.Y)
		if len(segments) == 0 {
			log.Printf("[Plot] series %q has no finite points, omitted from %s", s.Label, filepath.Base(path))
			continue
		}
		for j, seg := range segments {
			line, points, err := plotter.NewLinePoints(seg)
			if err != nil {
				return fmt.Errorf("series %q: %w", s.Label, err)
			}
			line.Color = plotutil.Color(i)
			points.Color = plotutil.Color(i)
			points.Shape = plotutil.Shape(i)
			p.Add(line, points)
			if j == 0 {
				p.Legend.Add(s.Label, line, points)
			}
		}
	}

	// Fix the x range before adding functions, which sample over it
	if spec.XMax > spec.XMin {
		p.X.Min = spec.XMin
		p.X.Max = spec.XMax
	}
	for i, ref := range spec.References {
		y := ref.Y
		f := plotter.NewFunction(func(float64) float64 { return y })
		f.Color = referenceColors[i%len(referenceColors)]
		f.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		f.Width = vg.Points(1)
		p.Add(f)
		p.Legend.Add(ref.Label, f)
		if y < p.Y.Min {
			p.Y.Min = y
		}
		if y > p.Y.Max {
			p.Y.Max = y
		}
	}

	if err := p.Save(r.Width, r.Height, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	log.Printf("[Plot] wrote %s (%d series, %d references)", filepath.Base(path), len(spec.Series), len(spec.References))
	return nil
}

// splitSegments breaks a series at NaN or infinite y values
func splitSegments(x, y []float64) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i := range x {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: x[i], Y: y[i]})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func checkFormat(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".svg", ".pdf":
		return nil
	default:
		return fmt.Errorf("unsupported chart format: %s", filepath.Ext(path))
	}
}
