package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"

	"report-service/internal/analysis"
	"report-service/internal/document"
)

const (
	placeholderTitle = "report_title"
	placeholderBody  = "report_body"

	dateLayout = "02.01.2006"

	anomalyCharts   = 3
	underutilCharts = 3
	underutilTop    = 5
	offTimeTable    = 15
	offTimeChart    = 10
	conclusionTop   = 3
	gridRows        = 5
	gridCols        = 2
)

// Section placeholders in report order. A section whose placeholder is absent from the
// template goes to {{report_body}}, or is dropped when that is absent too.
const (
	sectionDaily       = "daily_chart"
	sectionTop         = "top_consumers"
	sectionCategories  = "categories"
	sectionHourly      = "hourly_profile"
	sectionCoverage    = "day_coverage"
	sectionAnomalies   = "anomalies"
	sectionStates      = "device_states"
	sectionUnderutil   = "underutilization"
	sectionConclusions = "conclusions"
)

type section struct {
	name string
	body *document.Body
}

type composer struct {
	res     *Results
	opts    Options
	figures int
	text    map[string]string
}

func newComposer(res *Results, opts Options) *composer {
	return &composer{res: res, opts: opts, text: make(map[string]string)}
}

func (c *composer) compose() (map[string]string, []section, error) {
	c.heading()
	builders := []struct {
		name  string
		build func(b *document.Body) error
	}{
		{sectionDaily, c.daily},
		{sectionTop, c.topConsumers},
		{sectionCategories, c.categories},
		{sectionHourly, c.hourly},
		{sectionCoverage, c.coverage},
		{sectionAnomalies, c.anomalies},
		{sectionStates, c.states},
		{sectionUnderutil, c.underutil},
		{sectionConclusions, c.conclusions},
	}
	sections := make([]section, 0, len(builders))
	for _, s := range builders {
		b := document.NewBody()
		if err := s.build(b); err != nil {
			return nil, nil, fmt.Errorf("section %s: %w", s.name, err)
		}
		sections = append(sections, section{name: s.name, body: b})
	}
	return c.text, sections, nil
}

// place assigns each section to its own placeholder or to the body placeholder.
func place(tmpl *document.Template, sections []section) map[string]*document.Body {
	blocks := make(map[string]*document.Body, len(sections)+1)
	rest := document.NewBody()
	for _, s := range sections {
		if tmpl.Has(s.name) {
			blocks[s.name] = s.body
			continue
		}
		rest.Append(s.body)
	}
	if tmpl.Has(placeholderBody) {
		blocks[placeholderBody] = rest
	}
	return blocks
}

func (c *composer) figure(b *document.Body, png []byte, caption string) error {
	if err := b.Image(png, c.opts.ImageWidthMM); err != nil {
		return err
	}
	c.figures++
	b.Caption(fmt.Sprintf("Figure %d. %s", c.figures, caption))
	return nil
}

func kwh(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func threshold(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return kwh(v)
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func (c *composer) heading() {
	days := c.res.Agg.Daily.Days
	start, end := days[0].Format(dateLayout), days[len(days)-1].Format(dateLayout)
	peak, peakSum := c.res.Agg.Hourly.PeakHour()

	c.text[placeholderTitle] = fmt.Sprintf("Electricity consumption report for %s to %s", start, end)
	c.text["start_date"] = start
	c.text["end_date"] = end
	c.text["device_count"] = strconv.Itoa(len(c.res.Table.Devices))
	c.text["peak_hour"] = strconv.Itoa(peak)
	c.text["peak_hour_next"] = strconv.Itoa(peak + 1)
	c.text["peak_consumption"] = kwh(peakSum)
	c.text["sigma_threshold"] = strconv.FormatFloat(c.opts.AnomalySigma, 'g', -1, 64)
	c.text["window_size"] = strconv.Itoa(c.opts.AnomalyWindow)
	c.text["top_n"] = strconv.Itoa(c.opts.TopN)
	c.text["best_method"] = c.opts.bestMethod().String()
}

func (c *composer) dailySeries(devices []int) []namedSeries {
	daily := c.res.Agg.Daily
	out := make([]namedSeries, 0, len(devices))
	for _, d := range devices {
		out = append(out, namedSeries{name: daily.Devices[d], xys: timeXYs(daily.Days, daily.Values[d])})
	}
	return out
}

func (c *composer) topDevices() []int {
	ranked := c.res.Agg.Daily.Ranked()
	if len(ranked) > c.opts.TopN {
		ranked = ranked[:c.opts.TopN]
	}
	return ranked
}

func (c *composer) daily(b *document.Body) error {
	all := make([]int, len(c.res.Table.Devices))
	for i := range all {
		all[i] = i
	}
	png, err := seriesChart("Daily electricity consumption (all devices)", "Date", "Consumption (kWh)",
		c.dailySeries(all), true)
	if err != nil {
		return err
	}
	b.Heading(1, "Daily consumption")
	return c.figure(b, png, "Daily consumption of all devices.")
}

func (c *composer) topConsumers(b *document.Body) error {
	top := c.topDevices()
	png, err := seriesChart(fmt.Sprintf("Daily consumption: top %d devices", len(top)), "Date", "Consumption (kWh)",
		c.dailySeries(top), true)
	if err != nil {
		return err
	}
	b.Heading(1, "Largest consumers")
	if err := c.figure(b, png, fmt.Sprintf("Top %d electricity consumers.", len(top))); err != nil {
		return err
	}
	totals := c.res.Agg.Daily.Totals()
	rows := make([][]string, len(top))
	for i, d := range top {
		rows[i] = []string{strconv.Itoa(i + 1), c.res.Table.Devices[d], kwh(totals[d])}
	}
	b.Table([]string{"#", "Device", "Consumption (kWh)"}, rows)
	return nil
}

func (c *composer) categories(b *document.Body) error {
	cats := c.res.Categories
	if len(cats) == 0 {
		return nil
	}
	series := make([]namedSeries, len(cats))
	rows := make([][]string, len(cats))
	for i, cat := range cats {
		series[i] = namedSeries{name: string(cat.Category), xys: timeXYs(c.res.Agg.Daily.Days, cat.Daily)}
		rows[i] = []string{string(cat.Category), strconv.Itoa(len(cat.Members)), strings.Join(cat.Members, ", ")}
	}
	png, err := seriesChart("Daily consumption by equipment category", "Date", "Consumption (kWh)", series, true)
	if err != nil {
		return err
	}
	b.Heading(1, "Equipment categories")
	if err := c.figure(b, png, "Total consumption by equipment category."); err != nil {
		return err
	}
	b.Table([]string{"Category", "Devices", "Members"}, rows)
	return nil
}

func (c *composer) hourly(b *document.Body) error {
	hp := c.res.Agg.Hourly
	top := c.topDevices()
	series := make([]namedSeries, 0, len(top))
	for _, d := range top {
		var xys plotter.XYs
		for h, v := range hp.Values[d] {
			if !math.IsNaN(v) {
				xys = append(xys, plotter.XY{X: float64(h), Y: v})
			}
		}
		series = append(series, namedSeries{name: hp.Devices[d], xys: xys})
	}
	png, err := seriesChart(fmt.Sprintf("Mean consumption by hour of day (top %d devices)", len(top)),
		"Hour of day", "Mean consumption (kWh)", series, false)
	if err != nil {
		return err
	}
	b.Heading(1, "Typical day")
	if err := c.figure(b, png, fmt.Sprintf("Mean consumption by hour of day for the top %d devices.", len(top))); err != nil {
		return err
	}
	b.Paragraph(fmt.Sprintf("Peak consumption falls between %s:00 and %s:00, %s kWh summed over all devices.",
		c.text["peak_hour"], c.text["peak_hour_next"], c.text["peak_consumption"]))
	return nil
}

func (c *composer) coverage(b *document.Body) error {
	days := c.res.Agg.Daily.Days
	if len(days) < 2 {
		return nil
	}
	cov := c.res.Coverage
	full := make([]bool, len(days))
	partial := make([]bool, len(days))
	fullN, partialN := 0, 0
	j := 0
	for i, d := range days {
		for j < len(cov.Days) && cov.Days[j].Before(d) {
			j++
		}
		if j < len(cov.Days) && cov.Days[j].Equal(d) {
			if cov.Full[j] {
				full[i] = true
				fullN++
			} else {
				partial[i] = true
				partialN++
			}
		}
	}
	png, err := coverageChart(days, c.res.Agg.Daily.DayTotals(), full, partial)
	if err != nil {
		return err
	}
	b.Heading(1, "Data completeness")
	if err := c.figure(b, png, "Total consumption per day, full and partial days."); err != nil {
		return err
	}
	b.Paragraph(fmt.Sprintf("%d full and %d partial days. A day is full when it has at least 95%% of the samples of the busiest day.",
		fullN, partialN))
	return nil
}

func (c *composer) anomalies(b *document.Body) error {
	if len(c.res.Anomalies) == 0 {
		return nil
	}
	top := analysis.TopAnomalies(c.res.Anomalies, c.opts.TopN)

	b.Heading(1, "Consumption anomalies")
	b.Paragraph(fmt.Sprintf("A reading is anomalous when it leaves the band of ±%sσ around the rolling mean of the last %d readings. Top %d devices by total deviation:",
		c.text["sigma_threshold"], c.opts.AnomalyWindow, len(top)))
	rows := make([][]string, len(top))
	for i, r := range top {
		rows[i] = []string{r.Device, strconv.Itoa(r.Count), kwh(r.MaxDeviation), kwh(r.MeanDeviation), kwh(r.TotalDeviation)}
	}
	b.Table([]string{"Device", "Anomalies", "Max deviation (kWh)", "Mean deviation (kWh)", "Total deviation (kWh)"}, rows)

	var thumbs []*plot.Plot
	for i, r := range top {
		ts, values := c.res.Table.Observed(c.res.Table.Index(r.Device))
		s := analysis.DetectSeries(values, c.opts.AnomalyWindow, c.opts.AnomalySigma)
		if i < anomalyCharts {
			p, err := anomalyPlot("Consumption anomalies for "+r.Device, ts, values, s.Mean, s.Std, s.Points, c.opts.AnomalySigma, false)
			if err != nil {
				return err
			}
			png, err := plotPNG(p, stripHeight)
			if err != nil {
				return err
			}
			if err := c.figure(b, png, fmt.Sprintf("Consumption anomalies for %s (top %d).", r.Device, i+1)); err != nil {
				return err
			}
		}
		if i < gridRows*gridCols {
			p, err := anomalyPlot(fmt.Sprintf("%s\nAnomalies: %d", r.Device, r.Count), ts, values, s.Mean, s.Std, s.Points, c.opts.AnomalySigma, true)
			if err != nil {
				return err
			}
			thumbs = append(thumbs, p)
		}
	}
	png, err := gridPNG(thumbs, gridRows, gridCols)
	if err != nil {
		return err
	}
	return c.figure(b, png, fmt.Sprintf("Consumption anomalies for the top %d meters.", len(thumbs)))
}

func (c *composer) states(b *document.Body) error {
	step := c.res.Agg.IntervalHours()
	b.Heading(1, "Device states")
	rows := make([][]string, len(c.res.States))
	for i, s := range c.res.States {
		rows[i] = []string{
			s.Device, pct(s.OffPercent), pct(s.IdlePercent), pct(s.ActivePercent),
			kwh(float64(s.MaxOffRun) * step), kwh(float64(s.MaxIdleRun) * step), kwh(float64(s.MaxActiveRun) * step),
		}
	}
	if len(rows) > 0 {
		b.Table([]string{"Device", "Off (%)", "Idle (%)", "Active (%)", "Longest off (h)", "Longest idle (h)", "Longest active (h)"}, rows)
	}

	off := c.res.OffTime
	if len(off) == 0 || off[0].Hours == 0 {
		b.Paragraph("No device reported zero consumption.")
		return nil
	}
	b.Heading(2, "Switched-off equipment")
	n := min(offTimeTable, len(off))
	offRows := make([][]string, n)
	for i, r := range off[:n] {
		offRows[i] = []string{r.Device, kwh(r.Hours), pct(r.Percent)}
	}
	b.Table([]string{"Device", "Hours off", "Off (%)"}, offRows)

	n = min(offTimeChart, len(off))
	labels := make([]string, n)
	values := make([]float64, n)
	for i, r := range off[:n] {
		labels[i], values[i] = r.Device, r.Hours
	}
	png, err := barChart(fmt.Sprintf("Top %d devices by time switched off", n), "Device", "Hours off", labels, values, colorNeutral)
	if err != nil {
		return err
	}
	return c.figure(b, png, fmt.Sprintf("Top %d devices by time switched off.", n))
}

func (c *composer) underutil(b *document.Body) error {
	best, ok := c.res.Best(c.opts.BestMethod)
	if !ok {
		return fmt.Errorf("no results for method %s", c.opts.BestMethod)
	}
	b.Heading(1, "Underutilization")
	if len(best.Records) == 0 {
		b.Paragraph("The workbook has no device columns to assess.")
		return nil
	}
	b.Paragraph("Hours each device spent below its underutilization threshold, per method.")
	for _, u := range c.res.Underutil {
		b.Heading(2, "Method "+u.Method.String())
		header := []string{"Device", "Hours", "Share (%)"}
		if u.Method.HasThreshold() {
			header = append(header, "Threshold (kWh)")
		}
		top := u.Top(underutilTop)
		rows := make([][]string, len(top))
		for i, r := range top {
			rows[i] = []string{r.Device, kwh(r.Hours), pct(r.Percent)}
			if u.Method.HasThreshold() {
				rows[i] = append(rows[i], threshold(r.Threshold))
			}
		}
		b.Table(header, rows)
	}

	top := best.Top(offTimeChart)
	labels := make([]string, len(top))
	values := make([]float64, len(top))
	for i, r := range top {
		labels[i], values[i] = r.Device, r.Hours
	}
	png, err := barChart(fmt.Sprintf("Top %d underutilized devices (%s)", len(top), best.Method), "Device",
		"Hours underutilized", labels, values, colorSalmon)
	if err != nil {
		return err
	}
	if err := c.figure(b, png, fmt.Sprintf("Top %d devices by underutilization (%s).", len(top), best.Method)); err != nil {
		return err
	}
	if !best.Method.HasThreshold() {
		return nil
	}
	for i, r := range best.Top(underutilCharts) {
		ts, values := c.res.Table.Observed(c.res.Table.Index(r.Device))
		if len(values) == 0 || math.IsNaN(r.Threshold) {
			continue
		}
		png, err := thresholdChart(r.Device, ts, values, r.Threshold)
		if err != nil {
			return err
		}
		if err := c.figure(b, png, fmt.Sprintf("Underutilization analysis for %s (top %d).", r.Device, i+1)); err != nil {
			return err
		}
	}
	return nil
}

func (c *composer) conclusions(b *document.Body) error {
	b.Heading(1, "Conclusions")

	var consumers []string
	for _, d := range c.res.Agg.Daily.Ranked() {
		if len(consumers) == conclusionTop {
			break
		}
		consumers = append(consumers, c.res.Table.Devices[d])
	}
	if len(consumers) > 0 {
		b.Paragraph("Largest consumers: " + strings.Join(consumers, ", ") + ".")
	}

	var off []string
	for _, r := range c.res.OffTime {
		if len(off) == conclusionTop || r.Hours == 0 {
			break
		}
		off = append(off, r.Device)
	}
	if len(off) > 0 {
		b.Paragraph("Longest switched off: " + strings.Join(off, ", ") + ".")
	}

	if best, ok := c.res.Best(c.opts.BestMethod); ok {
		var under []string
		for _, r := range best.Records {
			if len(under) == conclusionTop || r.Hours == 0 {
				break
			}
			under = append(under, r.Device)
		}
		if len(under) > 0 {
			b.Paragraph(fmt.Sprintf("Most underutilized (%s): %s.", best.Method, strings.Join(under, ", ")))
		}
	}

	if len(c.res.Anomalies) > 0 {
		var anomalous []string
		for _, r := range analysis.TopAnomalies(c.res.Anomalies, conclusionTop) {
			anomalous = append(anomalous, r.Device)
		}
		b.Paragraph("Devices with the most significant anomalies: " + strings.Join(anomalous, ", ") + ".")
	} else {
		b.Paragraph("No significant consumption anomalies were found.")
	}
	return nil
}
