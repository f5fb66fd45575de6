// internal/app/notification_service.go
package app

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pool_maintenance_service/internal/domain/apperr"
	"pool_maintenance_service/internal/domain/dosing"
	"pool_maintenance_service/internal/domain/notification"
)

// NotificationService defines how the office handles raised notifications.
type NotificationService interface {
	ListOpen(ctx context.Context, companyID, clientID int64) ([]*notification.Notification, error)
	// Assign moves a pending or in-progress notification to in_progress with the given assignee.
	Assign(ctx context.Context, companyID, id int64, assignee string) (*notification.Notification, error)
	// Resolve closes the notification; extraServiceValue records any billable extra work.
	Resolve(ctx context.Context, companyID, id int64, extraServiceValue *float64) (*notification.Notification, error)
	// AddAttachment stores a reference to a file kept elsewhere.
	AddAttachment(ctx context.Context, companyID, id int64, ref string) (*notification.Notification, error)
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	notifRepo notification.Repository
	logger    *logrus.Entry
	now       func() time.Time
}

func NewNotificationServiceImpl(nr notification.Repository, logger *logrus.Entry) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		notifRepo: nr,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *NotificationServiceImpl) ListOpen(ctx context.Context, companyID, clientID int64) ([]*notification.Notification, error) {
	if companyID <= 0 {
		return nil, apperr.Validationf("company_id is required")
	}
	if clientID < 0 {
		return nil, apperr.Validationf("client_id must not be negative")
	}
	return s.notifRepo.ListOpen(ctx, companyID, clientID)
}

func (s *NotificationServiceImpl) Assign(ctx context.Context, companyID, id int64, assignee string) (*notification.Notification, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, apperr.Validationf("assignee is required")
	}
	n, err := s.loadOpen(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	n.Status = notification.StatusInProgress
	n.Assignee = sql.NullString{String: assignee, Valid: true}
	if err := s.notifRepo.Update(ctx, n); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"company_id": companyID, "notification_id": id, "assignee": assignee}).Info("Notification assigned")
	return n, nil
}

func (s *NotificationServiceImpl) Resolve(ctx context.Context, companyID, id int64, extraServiceValue *float64) (*notification.Notification, error) {
	if extraServiceValue != nil {
		v := *extraServiceValue
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, apperr.Validationf("extra_service_value must be a non-negative number")
		}
	}
	n, err := s.loadOpen(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	n.Status = notification.StatusResolved
	n.ResolvedAt = sql.NullTime{Time: s.now(), Valid: true}
	if extraServiceValue != nil {
		n.ExtraServiceValue = sql.NullFloat64{Float64: dosing.Round2(*extraServiceValue), Valid: true}
	}
	if err := s.notifRepo.Update(ctx, n); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"company_id": companyID, "notification_id": id, "topic": n.Topic}).Info("Notification resolved")
	return n, nil
}

func (s *NotificationServiceImpl) AddAttachment(ctx context.Context, companyID, id int64, ref string) (*notification.Notification, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.Validationf("attachment reference is required")
	}
	n, err := s.loadOpen(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	for _, existing := range n.Attachments {
		if existing == ref {
			return n, nil
		}
	}
	n.Attachments = append(n.Attachments, ref)
	if err := s.notifRepo.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// loadOpen fetches the notification and rejects changes to a resolved one.
func (s *NotificationServiceImpl) loadOpen(ctx context.Context, companyID, id int64) (*notification.Notification, error) {
	if companyID <= 0 || id <= 0 {
		return nil, apperr.Validationf("company_id and notification id are required")
	}
	n, err := s.notifRepo.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if !n.IsOpen() {
		return nil, apperr.InvalidTransitionf("notification %d is already resolved", id)
	}
	return n, nil
}
