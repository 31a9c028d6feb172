package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"report-service/internal/config"
	"report-service/internal/logging"
	"report-service/internal/models"
	"report-service/internal/providers"
	"report-service/internal/report"
	"report-service/internal/storage"
)

// ErrInvalidRequest marks requests rejected before any work is done.
var ErrInvalidRequest = errors.New("invalid request")

// MetadataStore persists report metadata, delivery logs and recipients.
type MetadataStore interface {
	CreateReport(ctx context.Context, r models.Report) (models.Report, error)
	GetReport(ctx context.Context, id uuid.UUID) (models.Report, error)
	ListReports(ctx context.Context, userID int64, from, to time.Time) ([]models.Report, error)
	CreateDeliveryLog(ctx context.Context, l models.DeliveryLog) error
	GetDeliveryLogs(ctx context.Context, reportID uuid.UUID) ([]models.DeliveryLog, error)
	GetUsers(ctx context.Context, ids []int64) (map[int64]models.User, error)
	UpdateUserChatID(ctx context.Context, userID, chatID int64) error
}

type providerFunc func(context.Context, models.Task) error

// Service generates reports and delivers them through a pool of workers.
type Service struct {
	store         MetadataStore
	blobs         storage.BlobStore
	logger        *logging.Logger
	config        config.Config
	opts          report.Options
	tasks         chan models.Task
	ctx           context.Context
	cancel        context.CancelFunc
	wg            *sync.WaitGroup
	providerFuncs map[models.DeliveryMethod]providerFunc
	wsManager     *WebSocketManager
	now           func() time.Time
}

// New constructs a Service. telegram may be nil when no bot is configured.
func New(store MetadataStore, blobs storage.BlobStore, telegram providers.DocumentSender,
	logger *logging.Logger, cfg config.Config, opts report.Options) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		store:     store,
		blobs:     blobs,
		logger:    logger,
		config:    cfg,
		opts:      opts,
		tasks:     make(chan models.Task, cfg.Delivery.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		wsManager: NewWebSocketManager(logger),
		now:       time.Now,
	}
	svc.providerFuncs = map[models.DeliveryMethod]providerFunc{
		models.MethodEmail: func(ctx context.Context, task models.Task) error {
			return providers.SendEmail(ctx, task, svc.config)
		},
		models.MethodTelegram: func(ctx context.Context, task models.Task) error {
			return providers.SendTelegram(ctx, task, telegram, logger, svc.config)
		},
		models.MethodPlatform: func(_ context.Context, task models.Task) error {
			return providers.SendPlatform(task, svc.wsManager, logger)
		},
	}
	return svc
}

// Logger exposes the Service's logger
func (s *Service) Logger() *logging.Logger {
	return s.logger
}

// Start launches the worker pool
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.config.Delivery.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop cancels pending work and makes the workers exit.
func (s *Service) Stop() {
	s.cancel()
}

// QueueTask enqueues a Task for processing. It reports false when the queue is full.
func (s *Service) QueueTask(task models.Task) bool {
	select {
	case s.tasks <- task:
		s.logger.Debugf("Queued task: report_id=%s user_id=%d method=%s", task.Report.ID, task.User.ID, task.Method)
		return true
	default:
		s.logger.Errorf("Queue full, dropping task: report_id=%s user_id=%d method=%s", task.Report.ID, task.User.ID, task.Method)
		return false
	}
}

// worker processes Tasks until context is cancelled
func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Worker %d stopped", id)
			return
		case task := <-s.tasks:
			s.handleTask(task)
		}
	}
}

// handleTask dispatches one delivery and records its outcome.
func (s *Service) handleTask(task models.Task) {
	var err error
	if provider, ok := s.providerFuncs[task.Method]; ok {
		err = provider(s.ctx, task)
	} else {
		err = errors.New("unsupported delivery method")
	}
	if err != nil {
		s.logger.Errorf("Dispatch error via %s for user %d: %v", task.Method, task.User.ID, err)
	} else {
		s.logger.Infof("Report %s delivered via %s to user %d", task.Report.ID, task.Method, task.User.ID)
	}
	entry := s.recordDelivery(task.Report.ID, task.User.ID, task.Method, err)
	if task.Result != nil {
		task.Result <- entry
	}
}

func (s *Service) recordDelivery(reportID uuid.UUID, userID int64, method models.DeliveryMethod, err error) models.DeliveryLog {
	entry := models.DeliveryLog{
		ID:       uuid.New(),
		ReportID: reportID,
		UserID:   userID,
		Method:   method,
		Status:   models.StatusSent,
		SentAt:   s.now(),
	}
	if err != nil {
		entry.Status = models.StatusFailed
		entry.ErrorMessage = err.Error()
	}
	if dbErr := s.store.CreateDeliveryLog(s.ctx, entry); dbErr != nil {
		s.logger.Errorf("CreateDeliveryLog failed: %v", dbErr)
	}
	return entry
}

// RegisterTelegram links a Telegram chat to a user so reports can be sent there.
func (s *Service) RegisterTelegram(ctx context.Context, userID, chatID int64) error {
	if chatID == 0 {
		return fmt.Errorf("%w: chat_id is required", ErrInvalidRequest)
	}
	if err := s.store.UpdateUserChatID(ctx, userID, chatID); err != nil {
		return err
	}
	s.logger.Infof("Linked Telegram chat %d to user %d", chatID, userID)
	return nil
}
