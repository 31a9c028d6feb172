package analysis

import (
	"math"
	"math/rand"
	"testing"
)

func mustAggregate(t *testing.T, tbl *Table) *Aggregates {
	t.Helper()
	agg, err := Aggregate(tbl)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	return agg
}

func TestParseMethodKind(t *testing.T) {
	for _, s := range []string{"fixed_pct", "Percentile", " std_dev ", "KMEANS"} {
		if _, err := ParseMethodKind(s); err != nil {
			t.Errorf("ParseMethodKind(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseMethodKind("median"); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestMethod_String(t *testing.T) {
	if got := DefaultMethod(MethodPercentile).String(); got != "percentile(5)" {
		t.Errorf("String() = %q", got)
	}
	if got := DefaultMethod(MethodKMeans).String(); got != "kmeans" {
		t.Errorf("String() = %q", got)
	}
}

func TestFlags(t *testing.T) {
	values := []float64{0, 1, 2, 10, 10, 10, 10, 10, 10, 11}
	tests := []struct {
		name    string
		method  Method
		flagged int
		thr     float64
	}{
		// mean 7.4
		{"fixed pct", Method{Kind: MethodFixedPct, Param: 0.2}, 2, 1.48},
		{"percentile", Method{Kind: MethodPercentile, Param: 20}, 2, 1.8},
		{"kmeans", Method{Kind: MethodKMeans}, 3, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, thr, err := Flags(tt.method, values)
			if err != nil {
				t.Fatal(err)
			}
			n := 0
			for _, f := range flags {
				if f {
					n++
				}
			}
			if n != tt.flagged {
				t.Errorf("flagged %d, want %d", n, tt.flagged)
			}
			if math.IsNaN(tt.thr) != math.IsNaN(thr) || (!math.IsNaN(thr) && !approx(thr, tt.thr)) {
				t.Errorf("threshold = %v, want %v", thr, tt.thr)
			}
		})
	}
}

func TestFlags_StdDevClipsAtZero(t *testing.T) {
	_, thr, err := Flags(Method{Kind: MethodStdDev, Param: 3}, []float64{0, 0, 0, 100})
	if err != nil {
		t.Fatal(err)
	}
	if thr != 0 {
		t.Errorf("threshold = %v, want 0", thr)
	}
}

func TestFlags_UnknownMethod(t *testing.T) {
	if _, _, err := Flags(Method{Kind: "median"}, []float64{1}); err == nil {
		t.Error("expected error")
	}
}

func TestTwoMeansLow(t *testing.T) {
	low, ok := twoMeansLow([]float64{10, 1, 11, 1.5, 0.5})
	if !ok {
		t.Fatal("expected a split")
	}
	want := []bool{false, true, false, true, true}
	for i := range want {
		if low[i] != want[i] {
			t.Fatalf("low = %v, want %v", low, want)
		}
	}

	low, ok = twoMeansLow([]float64{4, 4, 4})
	if !ok {
		t.Fatal("constant values should form one cluster")
	}
	for i, l := range low {
		if !l {
			t.Errorf("constant value %d not in the low cluster", i)
		}
	}
	if _, ok := twoMeansLow([]float64{4}); ok {
		t.Error("a single value should not split")
	}
}

func TestEstimate_KMeansConstantDevice(t *testing.T) {
	tbl := hourlyTable(t, []string{"busy", "idle"}, ramp(8), repeat(0, 8))
	res, err := Estimate(DefaultMethod(MethodKMeans), tbl, mustAggregate(t, tbl))
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := res.Find("idle")
	if !ok {
		t.Fatal("idle device missing")
	}
	if rec.Flagged != 8 || rec.Hours != 8 {
		t.Errorf("idle flagged %d (%v h), want all readings", rec.Flagged, rec.Hours)
	}
	if res.Records[0].Device != "idle" {
		t.Errorf("first = %s, want idle", res.Records[0].Device)
	}
}

func TestEstimate_PercentileOnNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := make([]float64, 1000)
	for i := range values {
		values[i] = 10 + rng.Float64()
	}
	tbl := hourlyTable(t, []string{"noise"}, values)
	res, err := Estimate(DefaultMethod(MethodPercentile), tbl, mustAggregate(t, tbl))
	if err != nil {
		t.Fatal(err)
	}
	rec := res.Records[0]
	if rec.Flagged != 50 {
		t.Errorf("flagged = %d, want 50", rec.Flagged)
	}
	if rec.Percent < 4.5 || rec.Percent > 5.5 {
		t.Errorf("percent = %v, want about 5", rec.Percent)
	}
}

func TestEstimate_SingleReading(t *testing.T) {
	lone := repeat(math.NaN(), 10)
	lone[4] = 3
	tbl := hourlyTable(t, []string{"busy", "lone"}, ramp(10), lone)
	agg := mustAggregate(t, tbl)

	for _, m := range DefaultMethods() {
		res, err := Estimate(m, tbl, agg)
		if err != nil {
			t.Fatalf("%s: %v", m, err)
		}
		rec, ok := res.Find("lone")
		if !ok {
			t.Fatalf("%s: lone device missing", m)
		}
		if rec.Flagged != 0 || rec.Hours != 0 {
			t.Errorf("%s: lone device flagged %d", m, rec.Flagged)
		}
	}
}

func TestEstimate_RankingAndHours(t *testing.T) {
	mostlyLow := []float64{1, 1, 1, 1, 1, 1, 9, 9}
	someLow := []float64{1, 9, 9, 9, 9, 9, 9, 9}
	tbl := hourlyTable(t, []string{"some", "most"}, someLow, mostlyLow)
	res, err := Estimate(DefaultMethod(MethodKMeans), tbl, mustAggregate(t, tbl))
	if err != nil {
		t.Fatal(err)
	}
	if res.Records[0].Device != "most" {
		t.Errorf("first = %s, want most", res.Records[0].Device)
	}
	if res.Records[0].Hours != 6 {
		t.Errorf("hours = %v, want 6", res.Records[0].Hours)
	}
	if !approx(res.Records[0].Percent, 6.0/7*100) {
		t.Errorf("percent = %v", res.Records[0].Percent)
	}
	if top := res.Top(1); len(top) != 1 {
		t.Errorf("Top(1) returned %d", len(top))
	}
	if !math.IsNaN(res.Records[0].Threshold) {
		t.Error("kmeans should not report a threshold")
	}
}

func TestOffTime(t *testing.T) {
	a := []float64{0, 0, 1, 0, math.NaN()}
	b := []float64{1, 1, 1, 0, 1}
	tbl := hourlyTable(t, []string{"b", "a"}, b, a)
	off := OffTime(tbl, mustAggregate(t, tbl))
	if off[0].Device != "a" || off[0].Hours != 3 {
		t.Errorf("first = %+v, want a with 3h", off[0])
	}
	if !approx(off[0].Percent, 75) {
		t.Errorf("percent = %v, want 75", off[0].Percent)
	}
}
