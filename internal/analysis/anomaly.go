package analysis

import (
	"math"
	"sort"
)

// Anomaly detector defaults.
const (
	DefaultAnomalyWindow = 24
	DefaultAnomalySigma  = 2.0
	DefaultTopN          = 10
)

// AnomalyRecord summarizes the points of one device that left its rolling sigma band.
type AnomalyRecord struct {
	Device         string
	Count          int
	MaxDeviation   float64
	MeanDeviation  float64
	TotalDeviation float64
}

// AnomalySeries is the full-detail view of one device used for plotting.
type AnomalySeries struct {
	Points []int // positions within the observed sub-series
	Mean   []float64
	Std    []float64
}

// RollingStats returns the trailing mean and sample standard deviation over window
// samples, the current one included. The first window-1 positions are NaN, and so is
// the std whenever window < 2.
func RollingStats(values []float64, window int) (mean, std []float64) {
	mean = make([]float64, len(values))
	std = make([]float64, len(values))
	for i := range values {
		if window < 1 || i+1 < window {
			mean[i], std[i] = math.NaN(), math.NaN()
			continue
		}
		w := values[i+1-window : i+1]
		var s float64
		for _, v := range w {
			s += v
		}
		m := s / float64(window)
		mean[i] = m
		if window < 2 {
			std[i] = math.NaN()
			continue
		}
		var ss float64
		for _, v := range w {
			ss += (v - m) * (v - m)
		}
		std[i] = math.Sqrt(ss / float64(window-1))
	}
	return mean, std
}

// DetectSeries flags points outside [mean - sigma*std, mean + sigma*std].
// Positions without a defined band are never flagged.
func DetectSeries(values []float64, window int, sigma float64) AnomalySeries {
	m, s := RollingStats(values, window)
	out := AnomalySeries{Mean: m, Std: s}
	for i, v := range values {
		if math.IsNaN(m[i]) || math.IsNaN(s[i]) {
			continue
		}
		if v > m[i]+sigma*s[i] || v < m[i]-sigma*s[i] {
			out.Points = append(out.Points, i)
		}
	}
	return out
}

// DetectAnomalies runs the detector on each device's non-missing readings and returns the
// devices with at least one anomaly, ordered by total deviation, largest first.
func DetectAnomalies(t *Table, window int, sigma float64) []AnomalyRecord {
	var records []AnomalyRecord
	for d, name := range t.Devices {
		_, values := t.Observed(d)
		res := DetectSeries(values, window, sigma)
		if len(res.Points) == 0 {
			continue
		}
		rec := AnomalyRecord{Device: name, Count: len(res.Points)}
		for _, i := range res.Points {
			dev := math.Abs(values[i] - res.Mean[i])
			rec.TotalDeviation += dev
			if dev > rec.MaxDeviation {
				rec.MaxDeviation = dev
			}
		}
		rec.MeanDeviation = rec.TotalDeviation / float64(rec.Count)
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].TotalDeviation > records[j].TotalDeviation
	})
	return records
}

// TopAnomalies returns at most n leading records.
func TopAnomalies(records []AnomalyRecord, n int) []AnomalyRecord {
	if n < 0 || n >= len(records) {
		return records
	}
	return records[:n]
}
