package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// present drops NaN readings.
func present(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// mean returns NaN for an empty slice.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// stdDev is the sample standard deviation (n-1 denominator).
// A single observation has no spread and yields 0; an empty slice yields NaN.
func stdDev(xs []float64) float64 {
	switch len(xs) {
	case 0:
		return math.NaN()
	case 1:
		return 0
	}
	return stat.StdDev(xs, nil)
}

// quantile returns the q-quantile of xs with linear interpolation between closest ranks,
// position (n-1)*q on the sorted data. xs is not modified.
func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := float64(len(sorted)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// sumPresent adds the non-missing readings; all-missing sums to 0.
func sumPresent(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		if !math.IsNaN(x) {
			s += x
		}
	}
	return s
}

// maxRun is the length of the longest block of consecutive true values.
func maxRun(mask []bool) int {
	best, cur := 0, 0
	for _, m := range mask {
		if !m {
			cur = 0
			continue
		}
		cur++
		if cur > best {
			best = cur
		}
	}
	return best
}
