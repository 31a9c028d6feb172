package providers

import (
	"context"
	"fmt"

	"report-service/internal/config"
	"report-service/internal/models"
	"report-service/internal/storage"
	"report-service/pkg/email"
)

// SendEmail mails the report document to the task's user as an attachment.
func SendEmail(ctx context.Context, task models.Task, cfg config.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if task.User.Email == "" {
		return fmt.Errorf("email not set for user_id=%d", task.User.ID)
	}
	if cfg.Email.SMTPServer == "" || cfg.Email.SMTPPort == 0 || cfg.Email.Username == "" || cfg.Email.Password == "" {
		return fmt.Errorf("missing Email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
	}

	msg := emailMessage(task, cfg)
	if err := email.Send(cfg.Email.SMTPServer, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", task.User.Email, err)
	}
	return nil
}

func emailMessage(task models.Task, cfg config.Config) email.Message {
	greeting := "Hello"
	if task.User.FullName != "" {
		greeting += " " + task.User.FullName
	}
	return email.Message{
		From:     cfg.Email.Username,
		FromName: cfg.Email.FromName,
		To:       task.User.Email,
		Subject:  Caption(task.Report),
		Body: fmt.Sprintf("%s,\n\nthe report %q generated on %s is attached.\n",
			greeting, task.Report.Name, task.Report.GeneratedAt.Format("02.01.2006 15:04")),
		Attachments: []email.Attachment{{
			Name:        task.Attachment.FileName,
			ContentType: storage.ContentType(task.Attachment.FileName),
			Data:        task.Attachment.Data,
		}},
	}
}

// Caption is the short line that accompanies a delivered report.
func Caption(r models.Report) string {
	return "Report: " + r.Name
}
