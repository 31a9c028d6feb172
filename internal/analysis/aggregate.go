package analysis

import (
	"math"
	"sort"
	"time"
)

// DailyTable holds the per-day sum of every device. Days without readings sum to 0.
type DailyTable struct {
	Days    []time.Time
	Devices []string
	Values  [][]float64
}

// HourlyProfile is the typical day: the mean of hourly means for each hour 0-23.
// Hours never observed are NaN.
type HourlyProfile struct {
	Devices []string
	Values  [][24]float64
}

// Aggregates bundles the resampled views and the two scalars that convert sample
// counts into hours.
type Aggregates struct {
	Interval time.Duration
	Span     time.Duration
	Daily    *DailyTable
	Hourly   *HourlyProfile
}

// IntervalHours is the sampling interval in hours.
func (a *Aggregates) IntervalHours() float64 {
	return a.Interval.Hours()
}

// SpanHours is the observed span in hours.
func (a *Aggregates) SpanHours() float64 {
	return a.Span.Hours()
}

// Aggregate derives the daily and hourly views. It fails with ErrInsufficientData
// when the table has fewer than two samples.
func Aggregate(t *Table) (*Aggregates, error) {
	interval, err := t.Interval()
	if err != nil {
		return nil, err
	}
	span, err := t.Span()
	if err != nil {
		return nil, err
	}
	return &Aggregates{
		Interval: interval,
		Span:     span,
		Daily:    Daily(t),
		Hourly:   Hourly(t),
	}, nil
}

// Daily sums readings per calendar day, covering every day from the first to the last sample.
func Daily(t *Table) *DailyTable {
	out := &DailyTable{Devices: t.Devices, Values: make([][]float64, len(t.Devices))}
	if t.Len() == 0 {
		return out
	}
	first := truncateDay(t.Timestamps[0])
	last := truncateDay(t.Timestamps[t.Len()-1])
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		out.Days = append(out.Days, day)
	}
	for d := range t.Devices {
		sums := make([]float64, len(out.Days))
		for i, v := range t.Values[d] {
			if math.IsNaN(v) {
				continue
			}
			sums[dayIndex(first, t.Timestamps[i])] += v
		}
		out.Values[d] = sums
	}
	return out
}

func dayIndex(first, ts time.Time) int {
	return int(truncateDay(ts).Sub(first).Hours()/24 + 0.5)
}

// Totals returns the summed consumption of each device over the whole period.
func (dt *DailyTable) Totals() []float64 {
	totals := make([]float64, len(dt.Devices))
	for d, col := range dt.Values {
		for _, v := range col {
			totals[d] += v
		}
	}
	return totals
}

// Ranked returns device indices ordered by total consumption, largest first.
// Equal totals keep column order.
func (dt *DailyTable) Ranked() []int {
	totals := dt.Totals()
	idx := make([]int, len(totals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return totals[idx[a]] > totals[idx[b]] })
	return idx
}

// DayTotals sums all devices per day.
func (dt *DailyTable) DayTotals() []float64 {
	out := make([]float64, len(dt.Days))
	for _, col := range dt.Values {
		for i, v := range col {
			out[i] += v
		}
	}
	return out
}

// Hourly averages readings into hour bins, then averages the bins by hour of day.
func Hourly(t *Table) *HourlyProfile {
	out := &HourlyProfile{Devices: t.Devices, Values: make([][24]float64, len(t.Devices))}
	for d := range t.Devices {
		var hourSum [24]float64
		var hourN [24]int
		// timestamps are sorted, so each hour bin is a contiguous run
		var bin time.Time
		var binSum float64
		binN := 0
		flush := func() {
			if binN > 0 {
				hourSum[bin.Hour()] += binSum / float64(binN)
				hourN[bin.Hour()]++
			}
		}
		for i, v := range t.Values[d] {
			if math.IsNaN(v) {
				continue
			}
			b := t.Timestamps[i].Truncate(time.Hour)
			if !b.Equal(bin) {
				flush()
				bin, binSum, binN = b, 0, 0
			}
			binSum += v
			binN++
		}
		flush()
		for h := 0; h < 24; h++ {
			if hourN[h] == 0 {
				out.Values[d][h] = math.NaN()
				continue
			}
			out.Values[d][h] = hourSum[h] / float64(hourN[h])
		}
	}
	return out
}

// PeakHour returns the hour whose summed profile across all devices is largest,
// together with that sum. Missing hours count as 0.
func (hp *HourlyProfile) PeakHour() (int, float64) {
	peak, best := 0, math.Inf(-1)
	for h := 0; h < 24; h++ {
		var s float64
		for d := range hp.Devices {
			if v := hp.Values[d][h]; !math.IsNaN(v) {
				s += v
			}
		}
		if s > best {
			peak, best = h, s
		}
	}
	return peak, best
}

// DayCoverage counts samples per calendar day and marks a day full when its
// count reaches 95% of the busiest day.
type DayCoverage struct {
	Days   []time.Time
	Counts []int
	Full   []bool
}

// Coverage computes DayCoverage for the days present in the table.
func Coverage(t *Table) DayCoverage {
	var cov DayCoverage
	for _, ts := range t.Timestamps {
		day := truncateDay(ts)
		if n := len(cov.Days); n > 0 && cov.Days[n-1].Equal(day) {
			cov.Counts[n-1]++
			continue
		}
		cov.Days = append(cov.Days, day)
		cov.Counts = append(cov.Counts, 1)
	}
	maxCount := 0
	for _, c := range cov.Counts {
		if c > maxCount {
			maxCount = c
		}
	}
	threshold := int(float64(maxCount) * 0.95)
	cov.Full = make([]bool, len(cov.Counts))
	for i, c := range cov.Counts {
		cov.Full[i] = c >= threshold
	}
	return cov
}
