package evcompbasic

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// plotMeans writes the luma-vs-EV chart as a PNG.
func plotMeans(path string, evs []int, lumas []float64) error {
	if len(evs) != len(lumas) {
		return fmt.Errorf("plot: %d EV values but %d luma samples", len(evs), len(lumas))
	}

	p := plot.New()
	p.X.Label.Text = "EV Compensation"
	p.Y.Label.Text = "Mean Luma (Normalized)"

	pts := make(plotter.XYs, len(evs))
	for i, ev := range evs {
		pts[i] = plotter.XY{X: float64(ev), Y: lumas[i]}
	}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	red := color.RGBA{R: 255, A: 255}
	line.Color = red
	line.Width = vg.Points(1)
	points.Shape = draw.CircleGlyph{}
	points.Color = red
	p.Add(line, points)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating plot directory: %w", err)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save means plot: %w", err)
	}
	return nil
}

// writeMeansChart writes an interactive HTML chart of luma and RGB means.
func writeMeansChart(path, testName string, evs []int, s Series) error {
	x := make([]string, len(evs))
	for i, ev := range evs {
		x[i] = fmt.Sprintf("%d", ev)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: testName, Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean values vs EV compensation", Subtitle: testName}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "EV Compensation", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Mean (Normalized)", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x).
		AddSeries("luma", lineData(s.Lumas)).
		AddSeries("red", lineData(s.Reds)).
		AddSeries("green", lineData(s.Greens)).
		AddSeries("blue", lineData(s.Blues))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating chart directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func lineData(vals []float64) []opts.LineData {
	data := make([]opts.LineData, len(vals))
	for i, v := range vals {
		data[i] = opts.LineData{Value: v}
	}
	return data
}
