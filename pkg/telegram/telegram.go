package telegram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

// Client sends documents through the Telegram Bot API under a shared rate limit.
type Client struct {
	bot     *bot.Bot
	limiter *rate.Limiter
}

// New creates a Client. ratePerSecond below one still allows one message per burst.
func New(token string, ratePerSecond float64, opts ...bot.Option) (*Client, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{bot: b, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}, nil
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}
	params := &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: fileName, Data: bytes.NewReader(data)},
		Caption:  caption,
	}
	if _, err := c.bot.SendDocument(ctx, params); err != nil {
		return fmt.Errorf("failed to send document to chat_id %d: %w", chatID, err)
	}
	return nil
}
