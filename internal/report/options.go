package report

import (
	"errors"
	"fmt"

	"report-service/internal/analysis"
)

// ErrRender is returned when the analysis results cannot be bound into the template.
var ErrRender = errors.New("render error")

// Options tunes one report generation.
type Options struct {
	// Sheet is the worksheet to read; empty selects the first one.
	Sheet      string
	HeaderSkip int
	// QActive is the quantile of positive readings at which a device counts as active.
	QActive          float64
	AnomalyWindow    int
	AnomalySigma     float64
	TopN             int
	UnderutilMethods []analysis.Method
	// BestMethod selects the method whose results are charted.
	BestMethod   analysis.MethodKind
	ImageWidthMM float64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		HeaderSkip:       1,
		QActive:          analysis.DefaultActiveQuantile,
		AnomalyWindow:    analysis.DefaultAnomalyWindow,
		AnomalySigma:     analysis.DefaultAnomalySigma,
		TopN:             analysis.DefaultTopN,
		UnderutilMethods: analysis.DefaultMethods(),
		BestMethod:       analysis.DefaultBestMethod,
		ImageWidthMM:     150,
	}
}

// Validate checks the ranges of every field.
func (o Options) Validate() error {
	switch {
	case o.HeaderSkip < 0:
		return fmt.Errorf("header skip must not be negative, got %d", o.HeaderSkip)
	case o.QActive <= 0 || o.QActive >= 1:
		return fmt.Errorf("active quantile must be in (0, 1), got %g", o.QActive)
	case o.AnomalyWindow < 2:
		return fmt.Errorf("anomaly window must be at least 2, got %d", o.AnomalyWindow)
	case o.AnomalySigma <= 0:
		return fmt.Errorf("anomaly sigma must be positive, got %g", o.AnomalySigma)
	case o.TopN < 1:
		return fmt.Errorf("top N must be positive, got %d", o.TopN)
	case o.ImageWidthMM <= 0:
		return fmt.Errorf("image width must be positive, got %g", o.ImageWidthMM)
	case len(o.UnderutilMethods) == 0:
		return errors.New("at least one underutilization method is required")
	}
	best := false
	for _, m := range o.UnderutilMethods {
		if _, err := analysis.ParseMethodKind(string(m.Kind)); err != nil {
			return err
		}
		if m.Kind == o.BestMethod {
			best = true
		}
	}
	if !best {
		return fmt.Errorf("best method %q is not among the configured methods", o.BestMethod)
	}
	return nil
}

func (o Options) loadOptions() analysis.LoadOptions {
	lo := analysis.DefaultLoadOptions()
	lo.Sheet = o.Sheet
	lo.HeaderSkip = o.HeaderSkip
	return lo
}

func (o Options) bestMethod() analysis.Method {
	for _, m := range o.UnderutilMethods {
		if m.Kind == o.BestMethod {
			return m
		}
	}
	return analysis.DefaultMethod(o.BestMethod)
}
