package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"report-service/internal/models"
)

const reportColumns = `id, user_id, name, report_key, excel_key, template_key, generated_at`

// CreateReport stores the metadata of a generated report.
func (d *DB) CreateReport(ctx context.Context, r models.Report) (models.Report, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	query := `
	INSERT INTO reports (` + reportColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := d.Pool.Exec(ctx, query,
		r.ID, r.UserID, r.Name, r.ReportKey, r.ExcelKey, r.TemplateKey, r.GeneratedAt)
	if err != nil {
		return models.Report{}, fmt.Errorf("failed to create report: %w", err)
	}
	return r, nil
}

func (d *DB) GetReport(ctx context.Context, id uuid.UUID) (models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	r, err := scanReport(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Report{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
		}
		return models.Report{}, fmt.Errorf("failed to get report %s: %w", id, err)
	}
	return r, nil
}

// ListReports returns the reports of a user, newest first. Zero from or to leaves that side open.
func (d *DB) ListReports(ctx context.Context, userID int64, from, to time.Time) ([]models.Report, error) {
	query := `
	SELECT ` + reportColumns + `
	FROM reports
	WHERE user_id = $1`
	args := []interface{}{userID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND generated_at >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND generated_at <= $%d", len(args))
	}
	query += " ORDER BY generated_at DESC"

	rows, err := d.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports for user %d: %w", userID, err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return reports, nil
}

func scanReport(row pgx.Row) (models.Report, error) {
	var r models.Report
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.ReportKey, &r.ExcelKey, &r.TemplateKey, &r.GeneratedAt)
	return r, err
}
