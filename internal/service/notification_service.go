package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type notificationReader interface {
	Notifications(filter models.NotificationFilter) []models.Notification
	DismissNotification(id, recipient string) bool
}

// NotificationService exposes the feed to callers. Administrators see every
// entry; everyone else sees broadcasts plus entries addressed to them.
type NotificationService struct {
	feed   notificationReader
	logger *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(feed notificationReader, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{feed: feed, logger: logger}
}

// List returns feed entries newest first.
func (s *NotificationService) List(ctx context.Context, actor *models.Actor, filter models.NotificationFilter) ([]models.Notification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		filter.Recipient = actor.Name
	}
	return s.feed.Notifications(filter), nil
}

// Dismiss removes one entry. Non-administrators may only dismiss entries
// addressed to them.
func (s *NotificationService) Dismiss(ctx context.Context, actor *models.Actor, id string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "students cannot dismiss notifications")
	}
	recipient := ""
	if !actor.IsAdmin() {
		recipient = actor.Name
	}
	if !s.feed.DismissNotification(id, recipient) {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	s.logger.Debug("notification dismissed", zap.String("id", id), zap.String("user_id", actor.UserID))
	return nil
}
