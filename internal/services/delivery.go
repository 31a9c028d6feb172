package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"report-service/internal/models"
)

// SendReport delivers a stored report to every recipient over each of their methods
// and returns one log entry per (user, method) pair in request order.
// A failed delivery is recorded, not returned as an error.
func (s *Service) SendReport(ctx context.Context, req models.DeliveryRequest) ([]models.DeliveryLog, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	r, err := s.store.GetReport(ctx, req.ReportID)
	if err != nil {
		return nil, err
	}
	data, err := s.blobs.Get(ctx, r.ReportKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load report document: %w", err)
	}
	attachment := &models.Attachment{ReportName: r.Name, FileName: FileName(r), Data: data}

	ids := make([]int64, 0, len(req.Recipients))
	for _, rc := range req.Recipients {
		ids = append(ids, rc.UserID)
	}
	users, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	type slot struct {
		userID int64
		method models.DeliveryMethod
	}
	var order []slot
	seen := make(map[slot]bool)
	for _, rc := range req.Recipients {
		for _, m := range rc.Methods {
			sl := slot{rc.UserID, m}
			if !seen[sl] {
				seen[sl] = true
				order = append(order, sl)
			}
		}
	}

	results := make(chan models.DeliveryLog, len(order))
	logs := make(map[slot]models.DeliveryLog, len(order))
	pending := 0
	for _, sl := range order {
		user, ok := users[sl.userID]
		if !ok {
			logs[sl] = s.recordDelivery(r.ID, sl.userID, sl.method, errors.New("user not found"))
			continue
		}
		task := models.Task{Report: r, User: user, Method: sl.method, Attachment: attachment, Result: results}
		if !s.QueueTask(task) {
			logs[sl] = s.recordDelivery(r.ID, sl.userID, sl.method, errors.New("delivery queue is full"))
			continue
		}
		pending++
	}

	for ; pending > 0; pending-- {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ctx.Done():
			return nil, errors.New("service is shutting down")
		case entry := <-results:
			logs[slot{entry.UserID, entry.Method}] = entry
		}
	}

	out := make([]models.DeliveryLog, 0, len(order))
	sent := 0
	for _, sl := range order {
		entry := logs[sl]
		if entry.Status == models.StatusSent {
			sent++
		}
		out = append(out, entry)
	}
	s.logger.Infof("Report %s: %d of %d deliveries sent", r.ID, sent, len(out))
	return out, nil
}

// ScheduleDelivery runs SendReport in the background after req.DelaySeconds.
func (s *Service) ScheduleDelivery(req models.DeliveryRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	delay := time.Duration(req.DelaySeconds) * time.Second
	if delay > 0 {
		s.logger.Infof("Delivery of report %s scheduled in %v", req.ReportID, delay)
	}
	time.AfterFunc(delay, func() {
		if s.ctx.Err() != nil {
			s.logger.Warnf("Dropping scheduled delivery of report %s: service stopped", req.ReportID)
			return
		}
		if _, err := s.SendReport(s.ctx, req); err != nil {
			s.logger.Errorf("Scheduled delivery of report %s failed: %v", req.ReportID, err)
		}
	})
	return nil
}
