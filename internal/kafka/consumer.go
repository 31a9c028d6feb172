package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"report-service/internal/logging"
	"report-service/internal/models"
)

// Scheduler accepts delivery requests read from the topic.
type Scheduler interface {
	ScheduleDelivery(req models.DeliveryRequest) error
}

// Consumer reads report delivery requests and hands them to a Scheduler.
type Consumer struct {
	reader *kafka.Reader
	svc    Scheduler
	logger *logging.Logger
}

func NewConsumer(brokers []string, topic, groupID string, svc Scheduler, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})
	return &Consumer{reader: reader, svc: svc, logger: logger}
}

// Start consumes messages until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					c.logger.Infof("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				time.Sleep(time.Second)
				continue
			}

			if err := c.handleMessage(msg.Value); err != nil {
				c.logger.Errorf("Skipping message at offset %d: %v", msg.Offset, err)
			}
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Errorf("Commit failed at offset %d: %v", msg.Offset, err)
			}
		}
	}()
}

type deliveryMessage struct {
	ReportID     string             `json:"report_id"`
	Recipients   []models.Recipient `json:"recipients"`
	DelaySeconds int                `json:"delay_seconds"`
}

func (c *Consumer) handleMessage(value []byte) error {
	var m deliveryMessage
	if err := json.Unmarshal(value, &m); err != nil {
		return fmt.Errorf("unmarshal message failed: %w", err)
	}
	id, err := uuid.Parse(m.ReportID)
	if err != nil {
		return fmt.Errorf("invalid report_id %q: %w", m.ReportID, err)
	}
	req := models.DeliveryRequest{ReportID: id, Recipients: m.Recipients, DelaySeconds: m.DelaySeconds}
	if err := c.svc.ScheduleDelivery(req); err != nil {
		return err
	}
	c.logger.Infof("Accepted delivery of report %s to %d recipients", id, len(m.Recipients))
	return nil
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka reader: %w", err)
	}
	return nil
}
