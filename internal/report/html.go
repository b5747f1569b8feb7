package report

import (
	"fmt"
	"io"

	"github.com/banshee-data/antispoofing.motion/internal/timeanalysis"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML writes an interactive page with one chart per view. An
// Analyzer's views share their time axis unless steps were dropped, so
// each chart carries its own axis.
func RenderHTML(w io.Writer, title string, inst, cum timeanalysis.Series) error {
	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(
		lineChart("Instantaneous", title, inst),
		lineChart("Averaged", title, cum),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func lineChart(view, title string, s timeanalysis.Series) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: view, Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frames", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Error (%)", Min: 0, Max: 100}),
	)

	x := make([]string, s.Len())
	for i, t := range s.Time {
		x[i] = fmt.Sprintf("%g", t)
	}
	line.SetXAxis(x).
		AddSeries("FAR", lineData(s.FAR), charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"})).
		AddSeries("FRR", lineData(s.FRR), charts.WithLineStyleOpts(opts.LineStyle{Type: "dotted"})).
		AddSeries("HTER", lineData(s.HTER))
	return line
}

func lineData(vs []float64) []opts.LineData {
	out := make([]opts.LineData, len(vs))
	for i, v := range vs {
		out[i] = opts.LineData{Value: v}
	}
	return out
}
