package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseDeliveryMethod(t *testing.T) {
	tests := []struct {
		in   string
		want DeliveryMethod
		ok   bool
	}{
		{"email", MethodEmail, true},
		{" Telegram ", MethodTelegram, true},
		{"PLATFORM", MethodPlatform, true},
		{"sms", "", false},
	}
	for _, tt := range tests {
		got, err := ParseDeliveryMethod(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseDeliveryMethod(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestDeliveryRequest_Validate(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name string
		req  DeliveryRequest
		ok   bool
	}{
		{"valid", DeliveryRequest{ReportID: id, Recipients: []Recipient{{UserID: 1, Methods: []DeliveryMethod{MethodEmail}}}}, true},
		{"no recipients", DeliveryRequest{ReportID: id}, false},
		{"no methods", DeliveryRequest{ReportID: id, Recipients: []Recipient{{UserID: 1}}}, false},
		{"unknown method", DeliveryRequest{ReportID: id, Recipients: []Recipient{{UserID: 1, Methods: []DeliveryMethod{"fax"}}}}, false},
		{"negative delay", DeliveryRequest{ReportID: id, DelaySeconds: -1, Recipients: []Recipient{{UserID: 1, Methods: []DeliveryMethod{MethodEmail}}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.req.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
