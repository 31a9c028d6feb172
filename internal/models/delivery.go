package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DeliveryMethod string

const (
	MethodEmail    DeliveryMethod = "email"
	MethodTelegram DeliveryMethod = "telegram"
	MethodPlatform DeliveryMethod = "platform"
)

// ParseDeliveryMethod accepts a method name case-insensitively.
func ParseDeliveryMethod(s string) (DeliveryMethod, error) {
	switch m := DeliveryMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodEmail, MethodTelegram, MethodPlatform:
		return m, nil
	default:
		return "", fmt.Errorf("unknown delivery method %q", s)
	}
}

type DeliveryStatus string

const (
	StatusSent   DeliveryStatus = "sent"
	StatusFailed DeliveryStatus = "failed"
)

// DeliveryLog records one attempt to deliver a report to one user over one method.
type DeliveryLog struct {
	ID           uuid.UUID      `json:"id"`
	ReportID     uuid.UUID      `json:"report_id"`
	UserID       int64          `json:"user_id"`
	Method       DeliveryMethod `json:"method"`
	Status       DeliveryStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	SentAt       time.Time      `json:"sent_at"`
}

type Recipient struct {
	UserID  int64            `json:"user_id" binding:"required"`
	Methods []DeliveryMethod `json:"methods" binding:"required,min=1"`
}

// DeliveryRequest asks for a report to be sent to a list of recipients.
// DelaySeconds postpones the delivery; it is honoured for queued requests only.
type DeliveryRequest struct {
	ReportID     uuid.UUID   `json:"report_id"`
	Recipients   []Recipient `json:"recipients" binding:"required,min=1"`
	DelaySeconds int         `json:"delay_seconds,omitempty"`
}

// Validate checks that every recipient names at least one known method.
func (r DeliveryRequest) Validate() error {
	if len(r.Recipients) == 0 {
		return fmt.Errorf("no recipients")
	}
	if r.DelaySeconds < 0 {
		return fmt.Errorf("delay_seconds must not be negative, got %d", r.DelaySeconds)
	}
	for _, rc := range r.Recipients {
		if len(rc.Methods) == 0 {
			return fmt.Errorf("recipient %d has no delivery methods", rc.UserID)
		}
		for _, m := range rc.Methods {
			if _, err := ParseDeliveryMethod(string(m)); err != nil {
				return err
			}
		}
	}
	return nil
}
