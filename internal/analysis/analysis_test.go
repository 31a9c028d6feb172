package analysis

import (
	"math"
	"testing"
	"time"
)

var testStart = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

// hourlyTable builds a table of hourly samples starting at testStart.
func hourlyTable(t *testing.T, devices []string, columns ...[]float64) *Table {
	t.Helper()
	n := 0
	if len(columns) > 0 {
		n = len(columns[0])
	}
	ts := make([]time.Time, n)
	for i := range ts {
		ts[i] = testStart.Add(time.Duration(i) * time.Hour)
	}
	tbl, err := NewTable(ts, devices, columns)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return tbl
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i%24) + 1
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewTable_RejectsBadShape(t *testing.T) {
	ts := []time.Time{testStart, testStart.Add(time.Hour)}
	if _, err := NewTable(ts, []string{"a"}, [][]float64{{1}}); err == nil {
		t.Error("expected error for short column")
	}
	if _, err := NewTable([]time.Time{testStart, testStart}, []string{"a"}, [][]float64{{1, 2}}); err == nil {
		t.Error("expected error for repeated timestamp")
	}
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		q    float64
		want float64
	}{
		{"median odd", []float64{3, 1, 2}, 0.5, 2},
		{"interpolated", []float64{1, 2, 3, 4}, 0.75, 3.25},
		{"single", []float64{7}, 0.05, 7},
		{"lower bound", []float64{4, 9}, 0, 4},
		{"upper bound", []float64{4, 9}, 1, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quantile(tt.xs, tt.q); !approx(got, tt.want) {
				t.Errorf("quantile(%v, %v) = %v, want %v", tt.xs, tt.q, got, tt.want)
			}
		})
	}
	if !math.IsNaN(quantile(nil, 0.5)) {
		t.Error("quantile of empty slice should be NaN")
	}
}

func TestStdDev(t *testing.T) {
	if got := stdDev([]float64{5}); got != 0 {
		t.Errorf("stdDev of one sample = %v, want 0", got)
	}
	if got := stdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); !approx(got, math.Sqrt(32.0/7)) {
		t.Errorf("stdDev = %v, want sample std", got)
	}
	if !math.IsNaN(stdDev(nil)) {
		t.Error("stdDev of empty slice should be NaN")
	}
}

func TestMaxRun(t *testing.T) {
	mask := []bool{true, true, false, true, true, true, false, true}
	if got := maxRun(mask); got != 3 {
		t.Errorf("maxRun = %d, want 3", got)
	}
	if got := maxRun(nil); got != 0 {
		t.Errorf("maxRun(nil) = %d, want 0", got)
	}
}

func TestAggregate_InsufficientData(t *testing.T) {
	tbl := hourlyTable(t, []string{"a"}, []float64{1})
	if _, err := Aggregate(tbl); err == nil {
		t.Fatal("expected error for single sample")
	} else if !errorIs(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestAggregate_DailyAndScalars(t *testing.T) {
	a := repeat(1, 48)
	a[5] = math.NaN()
	tbl := hourlyTable(t, []string{"a"}, a)

	agg, err := Aggregate(tbl)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if agg.IntervalHours() != 1 {
		t.Errorf("interval = %v, want 1h", agg.Interval)
	}
	if agg.SpanHours() != 47 {
		t.Errorf("span = %v, want 47h", agg.Span)
	}
	if len(agg.Daily.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(agg.Daily.Days))
	}
	if got := agg.Daily.Values[0]; got[0] != 23 || got[1] != 24 {
		t.Errorf("daily sums = %v, want [23 24]", got)
	}
	for h := 0; h < 24; h++ {
		if agg.Hourly.Values[0][h] != 1 {
			t.Errorf("hour %d mean = %v, want 1", h, agg.Hourly.Values[0][h])
		}
	}
}

func TestDaily_FillsGapDays(t *testing.T) {
	ts := []time.Time{testStart, testStart.Add(72 * time.Hour)}
	tbl, err := NewTable(ts, []string{"a"}, [][]float64{{2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	daily := Daily(tbl)
	if len(daily.Days) != 4 {
		t.Fatalf("expected 4 days, got %d", len(daily.Days))
	}
	want := []float64{2, 0, 0, 3}
	for i, v := range want {
		if daily.Values[0][i] != v {
			t.Errorf("day %d = %v, want %v", i, daily.Values[0][i], v)
		}
	}
}

func TestDailyTable_Ranked(t *testing.T) {
	tbl := hourlyTable(t, []string{"small", "big", "tie"},
		repeat(1, 24), repeat(3, 24), repeat(1, 24))
	order := Daily(tbl).Ranked()
	want := []int{1, 0, 2}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("ranked = %v, want %v", order, want)
		}
	}
}

func TestHourlyProfile_PeakHour(t *testing.T) {
	a := repeat(1, 48)
	a[13], a[37] = 10, 10
	tbl := hourlyTable(t, []string{"a", "b"}, a, repeat(0, 48))
	peak, sum := Hourly(tbl).PeakHour()
	if peak != 13 {
		t.Errorf("peak hour = %d, want 13", peak)
	}
	if sum != 10 {
		t.Errorf("peak sum = %v, want 10", sum)
	}
}

func TestCoverage(t *testing.T) {
	// 24 samples on day one, 10 on day two
	tbl := hourlyTable(t, []string{"a"}, repeat(1, 34))
	cov := Coverage(tbl)
	if len(cov.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(cov.Days))
	}
	if cov.Counts[0] != 24 || cov.Counts[1] != 10 {
		t.Errorf("counts = %v, want [24 10]", cov.Counts)
	}
	if !cov.Full[0] || cov.Full[1] {
		t.Errorf("full = %v, want [true false]", cov.Full)
	}
}
