package report

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/banshee-data/antispoofing.motion/internal/timeanalysis"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to plot")

var (
	instColor = color.NRGBA{B: 255, A: 153}
	avgColor  = color.NRGBA{A: 255}
	dashed    = []vg.Length{vg.Points(6), vg.Points(2)}
	dotted    = []vg.Length{vg.Points(1), vg.Points(2)}
)

type curve struct {
	label  string
	x, y   []float64
	color  color.Color
	dashes []vg.Length
}

// PlotTimeAnalysis draws FAR, FRR and HTER against time for both views
// and saves the figure. The format follows the file extension (.pdf,
// .png, .svg, ...).
func PlotTimeAnalysis(path, title string, inst, cum timeanalysis.Series) error {
	if inst.Len() == 0 && cum.Len() == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frames"
	p.Y.Label.Text = "Error (%)"
	grid := plotter.NewGrid()
	grid.Vertical.Color = color.Gray{Y: 200}
	grid.Horizontal.Color = color.Gray{Y: 200}
	p.Add(grid)

	curves := []curve{
		{"Inst.FAR", inst.Time, inst.FAR, instColor, dashed},
		{"Inst.FRR", inst.Time, inst.FRR, instColor, dotted},
		{"Inst.HTER", inst.Time, inst.HTER, instColor, nil},
		{"Avg.FAR", cum.Time, cum.FAR, avgColor, dashed},
		{"Avg.FRR", cum.Time, cum.FRR, avgColor, dotted},
		{"Avg.HTER", cum.Time, cum.HTER, avgColor, nil},
	}
	for _, c := range curves {
		if len(c.x) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(c.x))
		for i := range c.x {
			pts[i] = plotter.XY{X: c.x[i], Y: c.y[i]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to create %s line: %w", c.label, err)
		}
		line.LineStyle = draw.LineStyle{Color: c.color, Width: vg.Points(1), Dashes: c.dashes}
		p.Add(line)
		p.Legend.Add(c.label, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
