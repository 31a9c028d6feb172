package providers

import (
	"context"
	"errors"
	"fmt"

	"report-service/internal/config"
	"report-service/internal/logging"
	"report-service/internal/models"
	"report-service/internal/utils"
)

// DocumentSender is implemented by pkg/telegram.Client.
type DocumentSender interface {
	SendDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error
}

// SendTelegram sends the report document to the user's linked chat, retrying transient failures.
func SendTelegram(ctx context.Context, task models.Task, sender DocumentSender, logger *logging.Logger, cfg config.Config) error {
	if sender == nil {
		return errors.New("telegram is not configured")
	}
	if task.User.ChatID == nil {
		return fmt.Errorf("telegram chat not linked for user_id=%d", task.User.ID)
	}
	chatID := *task.User.ChatID

	return utils.Retry(ctx, logger, cfg.Delivery.RetryAttempts, cfg.Delivery.RetryDelay, func() error {
		return sender.SendDocument(ctx, chatID, task.Attachment.FileName, task.Attachment.Data, Caption(task.Report))
	})
}
