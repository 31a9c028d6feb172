package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// MethodKind names an underutilization thresholding method.
type MethodKind string

const (
	MethodFixedPct   MethodKind = "fixed_pct"
	MethodPercentile MethodKind = "percentile"
	MethodStdDev     MethodKind = "std_dev"
	MethodKMeans     MethodKind = "kmeans"
)

// DefaultBestMethod drives the illustrative underutilization charts.
const DefaultBestMethod = MethodPercentile

// Method is a thresholding method together with its parameter:
// the fraction of the mean for fixed_pct, the percentile (0-100) for percentile,
// the sigma multiplier for std_dev. kmeans ignores Param.
type Method struct {
	Kind  MethodKind
	Param float64
}

func (m Method) String() string {
	if m.Kind == MethodKMeans {
		return string(m.Kind)
	}
	return fmt.Sprintf("%s(%g)", m.Kind, m.Param)
}

// HasThreshold reports whether the method produces a scalar threshold per device.
func (m Method) HasThreshold() bool {
	return m.Kind != MethodKMeans
}

// DefaultMethod returns kind with its default parameter.
func DefaultMethod(kind MethodKind) Method {
	switch kind {
	case MethodFixedPct:
		return Method{Kind: kind, Param: 0.2}
	case MethodPercentile:
		return Method{Kind: kind, Param: 5}
	case MethodStdDev:
		return Method{Kind: kind, Param: 1}
	default:
		return Method{Kind: kind}
	}
}

// DefaultMethods returns all four methods in reporting order.
func DefaultMethods() []Method {
	return []Method{
		DefaultMethod(MethodFixedPct),
		DefaultMethod(MethodPercentile),
		DefaultMethod(MethodStdDev),
		DefaultMethod(MethodKMeans),
	}
}

// ParseMethodKind accepts a method name case-insensitively.
func ParseMethodKind(s string) (MethodKind, error) {
	switch k := MethodKind(strings.ToLower(strings.TrimSpace(s))); k {
	case MethodFixedPct, MethodPercentile, MethodStdDev, MethodKMeans:
		return k, nil
	default:
		return "", fmt.Errorf("unknown underutilization method %q", s)
	}
}

// UnderutilRecord is the time one device spent below its method threshold.
// Threshold is NaN when the method defines none.
type UnderutilRecord struct {
	Device    string
	Flagged   int
	Hours     float64
	Percent   float64
	Threshold float64
}

// UnderutilResult is the ranked per-device table of one method.
type UnderutilResult struct {
	Method  Method
	Records []UnderutilRecord
}

// Top returns at most n leading records.
func (r UnderutilResult) Top(n int) []UnderutilRecord {
	if n < 0 || n >= len(r.Records) {
		return r.Records
	}
	return r.Records[:n]
}

// Find returns the record of a device.
func (r UnderutilResult) Find(device string) (UnderutilRecord, bool) {
	for _, rec := range r.Records {
		if rec.Device == device {
			return rec, true
		}
	}
	return UnderutilRecord{}, false
}

// Flags applies m to the non-missing readings of one device. The returned threshold is
// NaN for kmeans and whenever the readings cannot define one.
func Flags(m Method, values []float64) ([]bool, float64, error) {
	flags := make([]bool, len(values))
	threshold := math.NaN()
	switch m.Kind {
	case MethodFixedPct:
		threshold = mean(values) * m.Param
	case MethodPercentile:
		threshold = quantile(values, m.Param/100)
	case MethodStdDev:
		// math.Max keeps NaN, so a device without readings stays undefined
		threshold = math.Max(0, mean(values)-m.Param*stdDev(values))
	case MethodKMeans:
		low, ok := twoMeansLow(values)
		if ok {
			copy(flags, low)
		}
		return flags, threshold, nil
	default:
		return nil, threshold, fmt.Errorf("unknown underutilization method %q", m.Kind)
	}
	for i, v := range values {
		flags[i] = v < threshold
	}
	return flags, threshold, nil
}

// Estimate ranks devices by the hours spent below the method threshold:
//
//	hours   = flagged samples * sampling interval
//	percent = hours / observed span * 100
func Estimate(m Method, t *Table, agg *Aggregates) (UnderutilResult, error) {
	res := UnderutilResult{Method: m, Records: make([]UnderutilRecord, 0, len(t.Devices))}
	step, span := agg.IntervalHours(), agg.SpanHours()
	for d, name := range t.Devices {
		_, values := t.Observed(d)
		flags, threshold, err := Flags(m, values)
		if err != nil {
			return UnderutilResult{}, err
		}
		rec := UnderutilRecord{Device: name, Threshold: threshold}
		for _, f := range flags {
			if f {
				rec.Flagged++
			}
		}
		rec.Hours = float64(rec.Flagged) * step
		if span > 0 {
			rec.Percent = rec.Hours / span * 100
		}
		res.Records = append(res.Records, rec)
	}
	sort.SliceStable(res.Records, func(i, j int) bool {
		return res.Records[i].Hours > res.Records[j].Hours
	})
	return res, nil
}

// OffTimeRecord is the time a device reported exactly zero.
type OffTimeRecord struct {
	Device  string
	Hours   float64
	Percent float64
}

// OffTime ranks devices by the hours spent at zero consumption, largest first.
func OffTime(t *Table, agg *Aggregates) []OffTimeRecord {
	step, span := agg.IntervalHours(), agg.SpanHours()
	out := make([]OffTimeRecord, len(t.Devices))
	for d, name := range t.Devices {
		zeros := 0
		for _, v := range t.Values[d] {
			if v == 0 {
				zeros++
			}
		}
		out[d] = OffTimeRecord{Device: name, Hours: float64(zeros) * step}
		if span > 0 {
			out[d].Percent = out[d].Hours / span * 100
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hours > out[j].Hours })
	return out
}
