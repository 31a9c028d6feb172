package analysis

import "sort"

// twoMeansLow splits one-dimensional values into two clusters and marks the members of
// the cluster with the lower center. In one dimension the optimal 2-means partition is a
// threshold on the sorted values, so the split minimizing the within-cluster sum of
// squares is found exactly with prefix sums; the result does not depend on a seed.
//
// When all values are equal they form a single cluster, which is then the low one.
// ok is false for fewer than two values.
func twoMeansLow(values []float64) (low []bool, ok bool) {
	n := len(values)
	if n < 2 {
		return nil, false
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	prefix := make([]float64, n+1)
	prefixSq := make([]float64, n+1)
	for i, idx := range order {
		v := values[idx]
		prefix[i+1] = prefix[i] + v
		prefixSq[i+1] = prefixSq[i] + v*v
	}
	sse := func(lo, hi int) float64 {
		cnt := float64(hi - lo)
		s := prefix[hi] - prefix[lo]
		return prefixSq[hi] - prefixSq[lo] - s*s/cnt
	}

	bestK, bestCost := -1, 0.0
	for k := 1; k < n; k++ {
		// equal values must share a cluster
		if values[order[k-1]] == values[order[k]] {
			continue
		}
		cost := sse(0, k) + sse(k, n)
		if bestK < 0 || cost < bestCost {
			bestK, bestCost = k, cost
		}
	}
	if bestK < 0 {
		bestK = n
	}

	low = make([]bool, n)
	for _, idx := range order[:bestK] {
		low[idx] = true
	}
	return low, true
}
