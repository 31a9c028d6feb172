package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	chartDPI    = 150
	chartWidth  = 16 * vg.Centimeter
	chartHeight = 9 * vg.Centimeter
	stripHeight = 5 * vg.Centimeter
	gridHeight  = 20 * vg.Centimeter

	// legends beyond this many entries cover the plot area
	maxLegendEntries = 12
)

var (
	colorSeries  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorAlert   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorFull    = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	colorBand    = color.RGBA{R: 128, G: 128, B: 128, A: 64}
	colorSalmon  = color.RGBA{R: 250, G: 128, B: 114, A: 255}
	colorNeutral = color.RGBA{R: 100, G: 149, B: 237, A: 255}
)

type namedSeries struct {
	name string
	xys  plotter.XYs
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

func encodePNG(width, height vg.Length, drawFn func(dc draw.Canvas)) ([]byte, error) {
	c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(chartDPI))
	drawFn(draw.New(c))
	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func plotPNG(p *plot.Plot, height vg.Length) ([]byte, error) {
	return encodePNG(chartWidth, height, p.Draw)
}

func unix(t time.Time) float64 {
	return float64(t.Unix())
}

// timeXYs pairs timestamps with values and drops missing readings.
func timeXYs(ts []time.Time, values []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: unix(ts[i]), Y: v})
	}
	return xys
}

func dateTicks(p *plot.Plot, layout string) {
	p.X.Tick.Marker = plot.TimeTicks{Format: layout}
}

func rotateXLabels(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
}

// seriesChart draws one line per series. Series without points are skipped.
func seriesChart(title, xLabel, yLabel string, series []namedSeries, timeAxis bool) ([]byte, error) {
	p := newPlot(title, xLabel, yLabel)
	if timeAxis {
		dateTicks(p, "2006-01-02")
		rotateXLabels(p)
	}
	legend := len(series) <= maxLegendEntries
	drawn := 0
	for _, s := range series {
		if len(s.xys) == 0 {
			continue
		}
		l, err := plotter.NewLine(s.xys)
		if err != nil {
			return nil, fmt.Errorf("failed to plot %s: %w", s.name, err)
		}
		l.LineStyle.Width = vg.Points(1)
		l.LineStyle.Color = plotutil.Color(drawn)
		l.LineStyle.Dashes = plotutil.Dashes(drawn / len(plotutil.SoftColors))
		p.Add(l)
		if legend {
			p.Legend.Add(s.name, l)
		}
		drawn++
	}
	p.Legend.Top = true
	p.Legend.TextStyle.Font.Size = vg.Points(7)
	return plotPNG(p, chartHeight)
}

// barChart draws one bar per label.
func barChart(title, xLabel, yLabel string, labels []string, values []float64, c color.Color) ([]byte, error) {
	if len(values) == 0 {
		return nil, errors.New("no bars to draw")
	}
	p := newPlot(title, xLabel, yLabel)
	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(14))
	if err != nil {
		return nil, fmt.Errorf("failed to build bars: %w", err)
	}
	bars.Color = c
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(labels...)
	rotateXLabels(p)
	return plotPNG(p, chartHeight)
}

// coverageChart draws the daily total as green bars for full days and red for partial ones.
func coverageChart(days []time.Time, totals []float64, full, partial []bool) ([]byte, error) {
	p := newPlot("Total consumption per day", "Date", "Consumption (kWh)")
	fullVals := make(plotter.Values, len(days))
	partVals := make(plotter.Values, len(days))
	labels := make([]string, len(days))
	for i, d := range days {
		labels[i] = d.Format("2006-01-02")
		switch {
		case full[i]:
			fullVals[i] = totals[i]
		case partial[i]:
			partVals[i] = totals[i]
		}
	}
	w := vg.Points(8)
	for _, b := range []struct {
		name   string
		vals   plotter.Values
		c      color.Color
		offset vg.Length
	}{
		{"Full days", fullVals, colorFull, -w / 2},
		{"Partial days", partVals, colorAlert, w / 2},
	} {
		bars, err := plotter.NewBarChart(b.vals, w)
		if err != nil {
			return nil, fmt.Errorf("failed to build bars: %w", err)
		}
		bars.Color = b.c
		bars.LineStyle.Width = 0
		bars.Offset = b.offset
		p.Add(bars)
		p.Legend.Add(b.name, bars)
	}
	p.Legend.Top = true
	p.NominalX(labels...)
	rotateXLabels(p)
	return plotPNG(p, chartHeight)
}

// anomalyPlot draws the readings, the rolling mean, the sigma band and the flagged points.
// With compact set the legend and axis labels are left out.
func anomalyPlot(title string, ts []time.Time, values []float64, mean, std []float64, points []int, sigma float64, compact bool) (*plot.Plot, error) {
	p := newPlot(title, "Date and time", "Consumption (kWh)")
	dateTicks(p, "01-02 15h")
	if compact {
		p.X.Label.Text, p.Y.Label.Text = "", ""
		p.Title.TextStyle.Font.Size = vg.Points(8)
		p.X.Tick.Label.Font.Size = vg.Points(6)
		p.Y.Tick.Label.Font.Size = vg.Points(6)
	}

	var upper, lower plotter.XYs
	for i := range values {
		if math.IsNaN(mean[i]) || math.IsNaN(std[i]) {
			continue
		}
		x := unix(ts[i])
		upper = append(upper, plotter.XY{X: x, Y: mean[i] + sigma*std[i]})
		lower = append(lower, plotter.XY{X: x, Y: mean[i] - sigma*std[i]})
	}
	if len(upper) > 1 {
		ring := append(plotter.XYs(nil), upper...)
		for i := len(lower) - 1; i >= 0; i-- {
			ring = append(ring, lower[i])
		}
		band, err := plotter.NewPolygon(ring)
		if err != nil {
			return nil, fmt.Errorf("failed to build band: %w", err)
		}
		band.Color = colorBand
		band.LineStyle.Width = 0
		p.Add(band)
		if !compact {
			p.Legend.Add(fmt.Sprintf("±%gσ", sigma), band)
		}
	}

	readings, err := plotter.NewLine(timeXYs(ts, values))
	if err != nil {
		return nil, fmt.Errorf("failed to plot readings: %w", err)
	}
	readings.LineStyle.Color = colorSeries
	readings.LineStyle.Width = vg.Points(0.8)
	p.Add(readings)

	if m := timeXYs(ts, mean); len(m) > 0 {
		ml, err := plotter.NewLine(m)
		if err != nil {
			return nil, fmt.Errorf("failed to plot rolling mean: %w", err)
		}
		ml.LineStyle.Color = colorAlert
		ml.LineStyle.Width = vg.Points(0.8)
		p.Add(ml)
		if !compact {
			p.Legend.Add("Rolling mean", ml)
		}
	}

	if len(points) > 0 {
		xys := make(plotter.XYs, len(points))
		for i, idx := range points {
			xys[i] = plotter.XY{X: unix(ts[idx]), Y: values[idx]}
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to plot anomalies: %w", err)
		}
		sc.GlyphStyle.Color = colorAlert
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		if !compact {
			p.Legend.Add("Anomalies", sc)
		}
	}
	if !compact {
		p.Legend.Add("Consumption", readings)
		p.Legend.Top = true
	}
	return p, nil
}

// gridPNG lays plots out row by row in a rows x cols grid.
func gridPNG(plots []*plot.Plot, rows, cols int) ([]byte, error) {
	tiles := draw.Tiles{
		Rows: rows, Cols: cols,
		PadX: vg.Millimeter, PadY: vg.Millimeter,
		PadTop: vg.Millimeter, PadBottom: vg.Millimeter,
		PadLeft: vg.Millimeter, PadRight: vg.Millimeter,
	}
	return encodePNG(chartWidth, gridHeight, func(dc draw.Canvas) {
		for i, p := range plots {
			if i >= rows*cols {
				break
			}
			p.Draw(tiles.At(dc, i%cols, i/cols))
		}
	})
}

// thresholdChart draws a device's readings against a horizontal threshold and marks
// the readings below it.
func thresholdChart(device string, ts []time.Time, values []float64, threshold float64) ([]byte, error) {
	p := newPlot("Underutilization analysis for "+device, "Date and time", "Consumption (kWh)")
	dateTicks(p, "01-02 15h")

	xys := timeXYs(ts, values)
	readings, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("failed to plot readings: %w", err)
	}
	readings.LineStyle.Color = colorSeries
	readings.LineStyle.Width = vg.Points(0.8)
	p.Add(readings)
	p.Legend.Add("Consumption", readings)

	if len(xys) > 0 {
		edge := plotter.XYs{{X: xys[0].X, Y: threshold}, {X: xys[len(xys)-1].X, Y: threshold}}
		tl, err := plotter.NewLine(edge)
		if err != nil {
			return nil, fmt.Errorf("failed to plot threshold: %w", err)
		}
		tl.LineStyle.Color = colorAlert
		tl.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(tl)
		p.Legend.Add("Underutilization threshold", tl)
	}

	var below plotter.XYs
	for _, xy := range xys {
		if xy.Y < threshold {
			below = append(below, xy)
		}
	}
	if len(below) > 0 {
		sc, err := plotter.NewScatter(below)
		if err != nil {
			return nil, fmt.Errorf("failed to plot flagged readings: %w", err)
		}
		sc.GlyphStyle.Color = colorAlert
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
	}
	p.Legend.Top = true
	return plotPNG(p, stripHeight)
}
