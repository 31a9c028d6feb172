package providers

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"report-service/internal/config"
	"report-service/internal/logging"
	"report-service/internal/models"
)

type fakeSender struct {
	fails   int
	calls   int
	chatID  int64
	caption string
}

func (f *fakeSender) SendDocument(_ context.Context, chatID int64, _ string, _ []byte, caption string) error {
	f.calls++
	f.chatID, f.caption = chatID, caption
	if f.calls <= f.fails {
		return errors.New("telegram unavailable")
	}
	return nil
}

type fakePusher struct {
	userID  int64
	message string
}

func (f *fakePusher) SendToUser(userID int64, message []byte) int {
	f.userID, f.message = userID, string(message)
	return 1
}

func testTask(chatID *int64) models.Task {
	return models.Task{
		Report:     models.Report{Name: "April", GeneratedAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)},
		User:       models.User{ID: 7, FullName: "Ann", Email: "ann@example.com", ChatID: chatID},
		Attachment: &models.Attachment{ReportName: "April", FileName: "report.docx", Data: []byte("docx")},
	}
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Delivery.RetryAttempts = 3
	cfg.Delivery.RetryDelay = time.Millisecond
	cfg.Email.Username = "reports@example.com"
	cfg.Email.FromName = "Reports"
	return cfg
}

func TestSendTelegram(t *testing.T) {
	logger := logging.NewWriter(io.Discard)
	chat := int64(42)

	t.Run("retries then sends", func(t *testing.T) {
		sender := &fakeSender{fails: 2}
		if err := SendTelegram(context.Background(), testTask(&chat), sender, logger, testConfig()); err != nil {
			t.Fatalf("SendTelegram failed: %v", err)
		}
		if sender.calls != 3 || sender.chatID != 42 || sender.caption != "Report: April" {
			t.Errorf("sender = %+v", sender)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		sender := &fakeSender{fails: 10}
		if err := SendTelegram(context.Background(), testTask(&chat), sender, logger, testConfig()); err == nil {
			t.Error("expected an error")
		}
		if sender.calls != 3 {
			t.Errorf("calls = %d, want 3", sender.calls)
		}
	})

	t.Run("chat not linked", func(t *testing.T) {
		sender := &fakeSender{}
		if err := SendTelegram(context.Background(), testTask(nil), sender, logger, testConfig()); err == nil {
			t.Error("expected an error")
		}
		if sender.calls != 0 {
			t.Errorf("calls = %d, want 0", sender.calls)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		if err := SendTelegram(context.Background(), testTask(&chat), nil, logger, testConfig()); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestSendPlatform(t *testing.T) {
	p := &fakePusher{}
	if err := SendPlatform(testTask(nil), p, logging.NewWriter(io.Discard)); err != nil {
		t.Fatalf("SendPlatform failed: %v", err)
	}
	if p.userID != 7 || p.message != "New report: April" {
		t.Errorf("pushed %q to %d", p.message, p.userID)
	}
}

func TestSendEmail_Validation(t *testing.T) {
	task := testTask(nil)
	task.User.Email = ""
	if err := SendEmail(context.Background(), task, testConfig()); err == nil {
		t.Error("expected an error for a user without email")
	}
	if err := SendEmail(context.Background(), testTask(nil), testConfig()); err == nil {
		t.Error("expected an error for missing SMTP settings")
	}
}

func TestEmailMessage(t *testing.T) {
	msg := emailMessage(testTask(nil), testConfig())
	if msg.To != "ann@example.com" || msg.Subject != "Report: April" {
		t.Errorf("message = %+v", msg)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Name != "report.docx" {
		t.Fatalf("attachments = %+v", msg.Attachments)
	}
	if msg.Attachments[0].ContentType != "application/vnd.openxmlformats-officedocument.wordprocessingml.document" {
		t.Errorf("content type = %s", msg.Attachments[0].ContentType)
	}
}
