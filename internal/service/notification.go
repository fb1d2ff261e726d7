package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"marketplace-handoff/internal/client"
	"marketplace-handoff/internal/dto"
	"marketplace-handoff/internal/model"
	"marketplace-handoff/internal/repository"
	"time"

	"github.com/google/uuid"
)

const (
	NotifyItemReady             = "item_ready"
	NotifyHandoffWaiting        = "handoff_waiting"
	NotifyHandoffConfirmed      = "handoff_confirmed"
	NotifyPayoutSent            = "payout_sent"
	NotifyPayoutFailed          = "payout_failed"
	NotifyOrderCompleted        = "order_completed"
	NotifyPickupMissed          = "pickup_missed"
	NotifyPickupRescheduled     = "pickup_rescheduled"
	NotifySubscriptionCompleted = "subscription_completed"
)

type Notice struct {
	UserID string
	Type   string
	Title  string
	Body   string
	Data   map[string]string
}

type NotificationService interface {
	// Notify never fails the caller: errors are logged.
	Notify(ctx context.Context, n Notice)
	List(ctx context.Context, userID string, limit int) (*dto.NotificationsResponse, error)
}

type notificationServiceImpl struct {
	notificationRepo repository.NotificationRepository
	publisher        client.EventPublisher // nil when Kafka is not configured
	logger           *slog.Logger
}

func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	publisher client.EventPublisher,
	logger *slog.Logger,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		publisher:        publisher,
		logger:           logger,
	}
}

type notificationEvent struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (s *notificationServiceImpl) Notify(ctx context.Context, n Notice) {
	if n.UserID == "" {
		return
	}

	data, err := json.Marshal(n.Data)
	if err != nil {
		s.logger.WarnContext(ctx, "encode notification data", "type", n.Type, "error", err)
		data = nil
	}

	row := &model.Notification{
		ID:        uuid.NewString(),
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		Data:      string(data),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.notificationRepo.Create(ctx, row); err != nil {
		s.logger.ErrorContext(ctx, "store notification", "type", n.Type, "user_id", n.UserID, "error", err)
	}

	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(notificationEvent{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      row.Type,
		Title:     row.Title,
		Body:      row.Body,
		Data:      n.Data,
		CreatedAt: row.CreatedAt,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "encode notification event", "type", n.Type, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, row.UserID, payload); err != nil {
		s.logger.ErrorContext(ctx, "publish notification", "type", n.Type, "user_id", n.UserID, "error", err)
	}
}

func (s *notificationServiceImpl) List(ctx context.Context, userID string, limit int) (*dto.NotificationsResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.notificationRepo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	resp := &dto.NotificationsResponse{Notifications: make([]*dto.Notification, 0, len(rows))}
	for _, n := range rows {
		resp.Notifications = append(resp.Notifications, &dto.Notification{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Body:      n.Body,
			Data:      n.Data,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	return resp, nil
}
