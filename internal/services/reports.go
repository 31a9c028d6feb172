package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"report-service/internal/models"
	"report-service/internal/report"
	"report-service/internal/storage"
)

// GenerateRequest carries the uploaded sources of one report.
// Template may be empty, in which case the built-in template is used.
type GenerateRequest struct {
	UserID   int64
	Name     string
	Excel    []byte
	Template []byte
	Sheet    string
}

// GenerateReport builds the document, stores sources and result, and records the metadata.
// Nothing is stored when generation fails.
func (s *Service) GenerateReport(ctx context.Context, req GenerateRequest) (models.Report, error) {
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.UserID <= 0:
		return models.Report{}, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	case req.Name == "":
		return models.Report{}, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	case len(req.Excel) == 0:
		return models.Report{}, fmt.Errorf("%w: spreadsheet is empty", ErrInvalidRequest)
	}

	opts := s.opts
	if req.Sheet != "" {
		opts.Sheet = req.Sheet
	}
	started := s.now()
	doc, err := report.Generate(ctx, req.Excel, req.Template, opts)
	if err != nil {
		s.logger.Warnf("Report generation failed for user %d: %v", req.UserID, err)
		return models.Report{}, fmt.Errorf("failed to generate report: %w", err)
	}

	id := uuid.New()
	at := s.now()
	r := models.Report{
		ID:          id,
		UserID:      req.UserID,
		Name:        req.Name,
		ReportKey:   storage.ReportKey(id, at),
		ExcelKey:    storage.SourceKey(id, at),
		GeneratedAt: at,
	}
	if len(req.Template) > 0 {
		r.TemplateKey = storage.TemplateKey(id, at)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.blobs.Put(gctx, r.ExcelKey, req.Excel) })
	if r.TemplateKey != "" {
		g.Go(func() error { return s.blobs.Put(gctx, r.TemplateKey, req.Template) })
	}
	g.Go(func() error { return s.blobs.Put(gctx, r.ReportKey, doc) })
	if err := g.Wait(); err != nil {
		return models.Report{}, fmt.Errorf("failed to store report files: %w", err)
	}

	created, err := s.store.CreateReport(ctx, r)
	if err != nil {
		return models.Report{}, err
	}
	s.logger.Infof("Generated report %s (%q) for user %d in %v", created.ID, created.Name, created.UserID,
		at.Sub(started).Round(time.Millisecond))
	return created, nil
}

func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (models.Report, error) {
	return s.store.GetReport(ctx, id)
}

// ListReports returns a user's reports generated within [from, to]. Zero bounds are open.
func (s *Service) ListReports(ctx context.Context, userID int64, from, to time.Time) ([]models.Report, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: to is before from", ErrInvalidRequest)
	}
	return s.store.ListReports(ctx, userID, from, to)
}

// ReportURL returns a time-limited download link for the generated document.
func (s *Service) ReportURL(ctx context.Context, id uuid.UUID) (string, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return "", err
	}
	return s.blobs.Presign(ctx, r.ReportKey, s.config.Storage.PresignTTL)
}

// ReportFile returns the generated document together with its metadata.
func (s *Service) ReportFile(ctx context.Context, id uuid.UUID) (models.Report, []byte, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return models.Report{}, nil, err
	}
	data, err := s.blobs.Get(ctx, r.ReportKey)
	if err != nil {
		return models.Report{}, nil, err
	}
	return r, data, nil
}

func (s *Service) DeliveryLogs(ctx context.Context, reportID uuid.UUID) ([]models.DeliveryLog, error) {
	if _, err := s.store.GetReport(ctx, reportID); err != nil {
		return nil, err
	}
	return s.store.GetDeliveryLogs(ctx, reportID)
}

// FileName is the attachment name a report is delivered under.
func FileName(r models.Report) string {
	name := strings.Map(func(c rune) rune {
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return c
	}, r.Name)
	if name == "" {
		name = "report"
	}
	return name + path.Ext(r.ReportKey)
}
