package analysis

import "math"

// DefaultActiveQuantile is the quantile of positive readings above which a device is active.
const DefaultActiveQuantile = 0.75

// DeviceState describes how a device splits its observed time between off, idle and active.
// Percentages are relative to non-missing samples; runs are in samples.
type DeviceState struct {
	Device          string
	OffPercent      float64
	IdlePercent     float64
	ActivePercent   float64
	MaxOffRun       int
	MaxIdleRun      int
	MaxActiveRun    int
	ActiveThreshold float64
	Observed        int
}

// ClassifyStates classifies every device of t independently:
//
//	off    = reading == 0
//	active = smoothed reading >= q-quantile of the strictly positive readings
//	idle   = every other non-missing reading
//
// A device without readings reports zeros. A device without positive readings is
// entirely off and its ActiveThreshold is NaN.
func ClassifyStates(t *Table, q float64) []DeviceState {
	out := make([]DeviceState, len(t.Devices))
	for d, name := range t.Devices {
		out[d] = classifyDevice(name, t.Values[d], q)
	}
	return out
}

func classifyDevice(name string, series []float64, q float64) DeviceState {
	st := DeviceState{Device: name, ActiveThreshold: math.NaN()}

	var positive []float64
	for _, v := range series {
		if math.IsNaN(v) {
			continue
		}
		st.Observed++
		if v > 0 {
			positive = append(positive, v)
		}
	}
	if st.Observed == 0 {
		return st
	}

	off := make([]bool, len(series))
	offN := 0
	for i, v := range series {
		if v == 0 {
			off[i] = true
			offN++
		}
	}
	total := float64(st.Observed)
	st.OffPercent = float64(offN) / total * 100
	st.MaxOffRun = maxRun(off)
	if len(positive) == 0 {
		return st
	}

	st.ActiveThreshold = quantile(positive, q)
	smooth := smoothSeries(series, 1)
	active := make([]bool, len(series))
	idle := make([]bool, len(series))
	activeN, idleN := 0, 0
	for i, v := range series {
		switch {
		case math.IsNaN(v) || off[i]:
		case smooth[i] >= st.ActiveThreshold:
			active[i] = true
			activeN++
		default:
			idle[i] = true
			idleN++
		}
	}
	st.ActivePercent = float64(activeN) / total * 100
	st.IdlePercent = float64(idleN) / total * 100
	st.MaxActiveRun = maxRun(active)
	st.MaxIdleRun = maxRun(idle)
	return st
}

// smoothSeries applies a centered rolling median. A window of 1 returns the series unchanged.
func smoothSeries(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	if window <= 1 {
		copy(out, series)
		return out
	}
	half := window / 2
	for i := range series {
		lo, hi := i-half, i+half+1
		if lo < 0 {
			lo = 0
		}
		if hi > len(series) {
			hi = len(series)
		}
		vals := present(series[lo:hi])
		out[i] = quantile(vals, 0.5)
	}
	return out
}
