// Package analysis implements the statistical engine behind consumption reports:
// loading a sampled time series, resampling it, and classifying device usage.
//
// Every function in this package is a pure transform over an immutable *Table.
// Missing readings are NaN and are excluded from denominators, never treated as zero.
package analysis

import (
	"fmt"
	"math"
	"time"
)

// Table is a uniformly sampled series with one column per device.
// Values[d][i] is the reading of Devices[d] at Timestamps[i].
type Table struct {
	Timestamps  []time.Time
	Devices     []string
	Values      [][]float64
	SkippedRows int
}

// NewTable validates the shape of the given columns and returns a Table.
func NewTable(timestamps []time.Time, devices []string, values [][]float64) (*Table, error) {
	if len(devices) != len(values) {
		return nil, fmt.Errorf("%w: %d device names for %d columns", ErrDataFormat, len(devices), len(values))
	}
	for d, col := range values {
		if len(col) != len(timestamps) {
			return nil, fmt.Errorf("%w: column %q has %d readings for %d timestamps",
				ErrDataFormat, devices[d], len(col), len(timestamps))
		}
	}
	for i := 1; i < len(timestamps); i++ {
		if !timestamps[i].After(timestamps[i-1]) {
			return nil, fmt.Errorf("%w: timestamps not strictly increasing at row %d", ErrDataFormat, i)
		}
	}
	return &Table{Timestamps: timestamps, Devices: devices, Values: values}, nil
}

// Len returns the number of samples.
func (t *Table) Len() int {
	return len(t.Timestamps)
}

// Index returns the column position of a device, or -1.
func (t *Table) Index(device string) int {
	for i, d := range t.Devices {
		if d == device {
			return i
		}
	}
	return -1
}

// Interval is the nominal sampling interval, the distance between the first two timestamps.
func (t *Table) Interval() (time.Duration, error) {
	if t.Len() < 2 {
		return 0, fmt.Errorf("%w: need at least 2 samples, have %d", ErrInsufficientData, t.Len())
	}
	return t.Timestamps[1].Sub(t.Timestamps[0]), nil
}

// Span is the distance between the first and the last timestamp.
func (t *Table) Span() (time.Duration, error) {
	if t.Len() < 2 {
		return 0, fmt.Errorf("%w: need at least 2 samples, have %d", ErrInsufficientData, t.Len())
	}
	return t.Timestamps[t.Len()-1].Sub(t.Timestamps[0]), nil
}

// Observed returns the non-missing readings of a column together with their timestamps.
func (t *Table) Observed(d int) ([]time.Time, []float64) {
	var ts []time.Time
	var vs []float64
	for i, v := range t.Values[d] {
		if math.IsNaN(v) {
			continue
		}
		ts = append(ts, t.Timestamps[i])
		vs = append(vs, v)
	}
	return ts, vs
}
