// Package report turns a consumption spreadsheet and a .docx template into a rendered
// report. Generation is synchronous and a pure function of its inputs.
package report

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"report-service/internal/analysis"
	"report-service/internal/document"
)

// Results holds every analysis the composer draws from. Nothing in it is modified
// after Analyze returns.
type Results struct {
	Table      *analysis.Table
	Agg        *analysis.Aggregates
	Coverage   analysis.DayCoverage
	Categories []analysis.CategoryAggregate
	States     []analysis.DeviceState
	OffTime    []analysis.OffTimeRecord
	Anomalies  []analysis.AnomalyRecord
	Underutil  []analysis.UnderutilResult
}

// Best returns the result of the method charted in the report.
func (r *Results) Best(kind analysis.MethodKind) (analysis.UnderutilResult, bool) {
	for _, u := range r.Underutil {
		if u.Method.Kind == kind {
			return u, true
		}
	}
	return analysis.UnderutilResult{}, false
}

// Generate loads excel, runs every analysis and renders the results into template.
// An empty template selects document.DefaultTemplate.
func Generate(ctx context.Context, excel, template []byte, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	tmpl, err := parseTemplate(template)
	if err != nil {
		return nil, err
	}
	if !tmpl.Has(placeholderTitle) {
		return nil, fmt.Errorf("%w: template has no {{%s}} placeholder", ErrRender, placeholderTitle)
	}

	table, err := analysis.Load(excel, opts.loadOptions())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := Analyze(ctx, table, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := newComposer(res, opts)
	text, blocks, err := c.compose()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := tmpl.Render(text, place(tmpl, blocks))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return out, nil
}

func parseTemplate(data []byte) (*document.Template, error) {
	if len(data) == 0 {
		def, err := document.DefaultTemplate()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to build default template: %v", ErrRender, err)
		}
		data = def
	}
	tmpl, err := document.Parse(data)
	switch {
	case errors.Is(err, document.ErrSyntax):
		return nil, fmt.Errorf("%w: %v", analysis.ErrDataFormat, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return tmpl, nil
}

// Analyze aggregates the table and runs the four independent analyses concurrently.
func Analyze(ctx context.Context, table *analysis.Table, opts Options) (*Results, error) {
	agg, err := analysis.Aggregate(table)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Results{Table: table, Agg: agg}
	var g errgroup.Group
	g.Go(func() error {
		res.States = analysis.ClassifyStates(table, opts.QActive)
		res.OffTime = analysis.OffTime(table, agg)
		return nil
	})
	g.Go(func() error {
		res.Anomalies = analysis.DetectAnomalies(table, opts.AnomalyWindow, opts.AnomalySigma)
		return nil
	})
	g.Go(func() error {
		out := make([]analysis.UnderutilResult, 0, len(opts.UnderutilMethods))
		for _, m := range opts.UnderutilMethods {
			u, err := analysis.Estimate(m, table, agg)
			if err != nil {
				return fmt.Errorf("failed to estimate %s: %w", m, err)
			}
			out = append(out, u)
		}
		res.Underutil = out
		return nil
	})
	g.Go(func() error {
		res.Coverage = analysis.Coverage(table)
		res.Categories = analysis.AggregateCategories(agg.Daily)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}
