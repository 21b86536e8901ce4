package replay

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/thesyncim/arf/pkg/arf/testutil"
)

var (
	rawColor      = color.RGBA{R: 200, G: 60, B: 60, A: 255}
	filteredColor = color.RGBA{R: 40, G: 90, B: 200, A: 255}
)

// PlotPath renders the raw reports of trace and the filtered output of
// result on one XY plot and saves it to path. The image format follows the
// file extension (png, svg, pdf...).
func PlotPath(trace *testutil.StrokeTrace, result Result, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - raw vs filtered", trace.Name)
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	raw := make(plotter.XYs, 0, len(trace.Reports))
	for _, r := range trace.Reports {
		if r.Kind == "" && r.InRange {
			raw = append(raw, plotter.XY{X: r.X, Y: r.Y})
		}
	}
	filtered := make(plotter.XYs, 0, len(result.Outputs))
	for _, o := range result.Outputs {
		if o.IsFinite() {
			filtered = append(filtered, plotter.XY{X: o.X, Y: o.Y})
		}
	}

	if len(raw) > 0 {
		rawPoints, err := plotter.NewScatter(raw)
		if err != nil {
			return err
		}
		rawPoints.GlyphStyle.Color = rawColor
		rawPoints.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(rawPoints)
		p.Legend.Add("raw", rawPoints)
	}
	if len(filtered) > 0 {
		line, err := plotter.NewLine(filtered)
		if err != nil {
			return err
		}
		line.Color = filteredColor
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("filtered", line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
