package models

import (
	"time"

	"github.com/google/uuid"
)

// Report is the metadata row of one generated document.
type Report struct {
	ID          uuid.UUID `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	ReportKey   string    `json:"report_key"`
	ExcelKey    string    `json:"excel_key"`
	TemplateKey string    `json:"template_key,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}
