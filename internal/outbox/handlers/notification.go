package handlers

import (
	"context"
	"fmt"

	"salesflow/internal/domain/notification"
	outboxdomain "salesflow/internal/domain/outbox"
	"salesflow/internal/events"
	"salesflow/internal/repository"
	"salesflow/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationHandler turns NOTIFICATION events into per-user notification rows.
type NotificationHandler struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	logger        *logger.Logger
}

func NewNotificationHandler(users repository.UserRepository, notifications repository.NotificationRepository, l *logger.Logger) *NotificationHandler {
	if l == nil {
		l = logger.NewNop()
	}
	return &NotificationHandler{users: users, notifications: notifications, logger: l}
}

func (h *NotificationHandler) Name() string { return "notification" }

func (h *NotificationHandler) TryHandle(ctx context.Context, e *outboxdomain.OutboxEvent) (bool, error) {
	if e.Type != events.EventTypeNotification {
		return false, nil
	}
	payload, err := events.DecodeNotification(e.Payload)
	if err != nil {
		h.logger.WithContext(ctx).Logger.Warn("skipping notification event with malformed payload",
			zap.String("event_id", e.ID.String()), zap.Error(err))
		return false, nil
	}

	targets := make([]uuid.UUID, 0, len(payload.Notifications))
	for _, n := range payload.Notifications {
		if id, err := uuid.Parse(n.UserID); err == nil {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return true, nil
	}

	known, err := h.users.ExistingIDs(ctx, targets)
	if err != nil {
		return true, fmt.Errorf("resolve notification recipients: %w", err)
	}

	rows := make([]notification.Notification, 0, len(payload.Notifications))
	for _, n := range payload.Notifications {
		id, err := uuid.Parse(n.UserID)
		if err != nil || !known[id] {
			continue
		}
		rows = append(rows, notification.Notification{UserID: id, Type: n.Type, Message: n.Message})
	}
	if dropped := len(payload.Notifications) - len(rows); dropped > 0 {
		h.logger.WithContext(ctx).Debugf("dropped %d notifications for unknown users on event %s", dropped, e.ID)
	}
	if len(rows) == 0 {
		return true, nil
	}
	if err := h.notifications.CreateMany(ctx, rows); err != nil {
		return true, fmt.Errorf("create notifications for event %s: %w", e.ID, err)
	}
	return true, nil
}
