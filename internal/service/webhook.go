package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"marketplace-handoff/internal/apperr"
	"marketplace-handoff/internal/repository"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

type WebhookService interface {
	HandleStripeEvent(ctx context.Context, payload []byte, signature string) error
}

type webhookServiceImpl struct {
	webhookEventRepo repository.WebhookEventRepository
	vendors          VendorService
	secret           string
	logger           *slog.Logger
}

func NewWebhookService(
	webhookEventRepo repository.WebhookEventRepository,
	vendors VendorService,
	secret string,
	logger *slog.Logger,
) WebhookService {
	return &webhookServiceImpl{
		webhookEventRepo: webhookEventRepo,
		vendors:          vendors,
		secret:           secret,
		logger:           logger,
	}
}

func (s *webhookServiceImpl) HandleStripeEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return apperr.ErrInvalidInput.WithMessage("invalid webhook signature")
	}

	exists, err := s.webhookEventRepo.Exists(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if exists {
		s.logger.InfoContext(ctx, "duplicate webhook event", "event_id", event.ID)
		return nil
	}

	switch event.Type {
	case "account.updated":
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return apperr.ErrInvalidInput.WithMessage("malformed account payload")
		}
		if err := s.vendors.SyncAccountStatus(ctx, acct.ID, acct.PayoutsEnabled); err != nil {
			return err
		}
	default:
		s.logger.DebugContext(ctx, "ignored webhook event", "event_id", event.ID, "type", event.Type)
	}

	if _, err := s.webhookEventRepo.MarkProcessed(ctx, event.ID, string(event.Type)); err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}
