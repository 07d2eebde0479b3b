package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/mardikor/internal/domain"
	"github.com/sudo-init-do/mardikor/internal/events"
	"github.com/sudo-init-do/mardikor/internal/metrics"
	"github.com/sudo-init-do/mardikor/internal/store"
)

// Store is what notifications need: their own table and the recipients.
type Store interface {
	store.NotificationStore
	GetUser(ctx context.Context, id string) (domain.User, error)
}

// Service stores in-app notifications and announces them on the owner's
// event topic.
type Service struct {
	store Store
	pub   events.Publisher
	now   func() time.Time
}

func NewService(st Store, pub events.Publisher) *Service {
	return &Service{store: st, pub: pub, now: time.Now}
}

// CreateInput is a notification addressed to UserID.
type CreateInput struct {
	UserID    string                  `json:"userId" validate:"required"`
	Type      domain.NotificationType `json:"type" validate:"required"`
	Title     string                  `json:"title" validate:"required,max=200"`
	Message   string                  `json:"message" validate:"max=2000"`
	RelatedID string                  `json:"relatedId"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Notification, error) {
	if !in.Type.Valid() {
		return domain.Notification{}, domain.NewValidationError("type", "unknown notification type")
	}
	if strings.TrimSpace(in.Title) == "" {
		return domain.Notification{}, domain.NewValidationError("title", "is required")
	}
	if _, err := s.store.GetUser(ctx, in.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Notification{}, fmt.Errorf("recipient %s: %w", in.UserID, domain.ErrNotFound)
		}
		return domain.Notification{}, fmt.Errorf("load recipient: %w", err)
	}

	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Type:      in.Type,
		Title:     strings.TrimSpace(in.Title),
		Message:   in.Message,
		RelatedID: in.RelatedID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return domain.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	metrics.ObserveNotification(string(n.Type))

	evt, err := events.New(events.UserTopic(n.UserID), events.NotificationNew, n, n.CreatedAt)
	if err == nil {
		err = s.pub.Publish(ctx, evt)
	}
	if err != nil {
		slog.Warn("notification event not published", "notification_id", n.ID, "error", err)
	}
	return n, nil
}

// Notify is the fan-out entry used by other services. Failures are logged
// and never reach the caller's action.
func (s *Service) Notify(ctx context.Context, userID string, notice Notice, relatedID string) {
	if userID == "" {
		return
	}
	_, err := s.Create(ctx, CreateInput{
		UserID:    userID,
		Type:      notice.Type,
		Title:     notice.Title,
		Message:   notice.Message,
		RelatedID: relatedID,
	})
	if err != nil {
		slog.Warn("notification fan-out failed", "user_id", userID, "related_id", relatedID, "error", err)
	}
}

// ListForUser returns the notifications of userID, newest first.
func (s *Service) ListForUser(ctx context.Context, actor domain.User, userID string, since time.Time) ([]domain.Notification, error) {
	if userID == "" {
		userID = actor.ID
	}
	if !actor.CanManage(userID) {
		return nil, domain.ErrForbidden
	}
	items, err := s.store.ListNotifications(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

func (s *Service) owned(ctx context.Context, actor domain.User, id string) (domain.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	if !actor.CanManage(n.UserID) {
		// don't reveal other users' notifications
		return domain.Notification{}, domain.ErrNotFound
	}
	return n, nil
}

func (s *Service) MarkRead(ctx context.Context, actor domain.User, id string) (domain.Notification, error) {
	n, err := s.owned(ctx, actor, id)
	if err != nil {
		return domain.Notification{}, err
	}
	if n.IsRead {
		return n, nil
	}
	if err := s.store.MarkNotificationRead(ctx, id); err != nil {
		return domain.Notification{}, fmt.Errorf("mark read: %w", err)
	}
	n.IsRead = true
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, actor domain.User, userID string) (int, error) {
	if userID == "" {
		userID = actor.ID
	}
	if !actor.CanManage(userID) {
		return 0, domain.ErrForbidden
	}
	n, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, actor domain.User, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteNotification(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

// PollUser feeds the "user" topics of an events.Poller from the store.
func (s *Service) PollUser(ctx context.Context, userID string, since time.Time) ([]events.Event, error) {
	items, err := s.store.ListNotifications(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	out := make([]events.Event, 0, len(items))
	// stored newest first, streams go oldest first
	for i := len(items) - 1; i >= 0; i-- {
		evt, err := events.New(events.UserTopic(userID), events.NotificationNew, items[i], items[i].CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, nil
}
