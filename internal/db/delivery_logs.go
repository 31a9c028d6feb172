package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"report-service/internal/models"
)

func (d *DB) CreateDeliveryLog(ctx context.Context, l models.DeliveryLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	query := `
	INSERT INTO delivery_logs (id, report_id, user_id, method, status, error_message, sent_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := d.Pool.Exec(ctx, query,
		l.ID, l.ReportID, l.UserID, string(l.Method), string(l.Status), l.ErrorMessage, l.SentAt)
	if err != nil {
		return fmt.Errorf("failed to create delivery log: %w", err)
	}
	return nil
}

// GetDeliveryLogs returns the delivery history of a report in send order.
func (d *DB) GetDeliveryLogs(ctx context.Context, reportID uuid.UUID) ([]models.DeliveryLog, error) {
	query := `
	SELECT id, report_id, user_id, method, status, error_message, sent_at
	FROM delivery_logs
	WHERE report_id = $1
	ORDER BY sent_at, user_id, method`

	rows, err := d.Pool.Query(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery logs for report %s: %w", reportID, err)
	}
	defer rows.Close()

	logs := []models.DeliveryLog{}
	for rows.Next() {
		var l models.DeliveryLog
		var method, status string
		if err := rows.Scan(&l.ID, &l.ReportID, &l.UserID, &method, &status, &l.ErrorMessage, &l.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery log: %w", err)
		}
		l.Method = models.DeliveryMethod(method)
		l.Status = models.DeliveryStatus(status)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delivery logs: %w", err)
	}
	return logs, nil
}
