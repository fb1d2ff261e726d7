package service

import (
	"context"
	"fmt"
	"log/slog"
	"marketplace-handoff/internal/model"
	"marketplace-handoff/internal/repository"
)

// CompletionCoordinator finalizes a parent order or subscription once its
// last child reaches a terminal state. Each check is one conditional update,
// so concurrent callers complete the parent exactly once.
type CompletionCoordinator interface {
	CompleteOrderIfReady(ctx context.Context, order *model.Order) (bool, error)
	CompleteSubscriptionIfDone(ctx context.Context, sub *model.MarketBoxSubscription) (bool, error)
}

type completionCoordinatorImpl struct {
	orderRepo     repository.OrderRepository
	marketBoxRepo repository.MarketBoxRepository
	notifier      NotificationService
	logger        *slog.Logger
}

func NewCompletionCoordinator(
	orderRepo repository.OrderRepository,
	marketBoxRepo repository.MarketBoxRepository,
	notifier NotificationService,
	logger *slog.Logger,
) CompletionCoordinator {
	return &completionCoordinatorImpl{
		orderRepo:     orderRepo,
		marketBoxRepo: marketBoxRepo,
		notifier:      notifier,
		logger:        logger,
	}
}

func (c *completionCoordinatorImpl) CompleteOrderIfReady(ctx context.Context, order *model.Order) (bool, error) {
	done, err := c.orderRepo.MarkCompletedIfAllConfirmed(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("complete order: %w", err)
	}
	if !done {
		return false, nil
	}

	order.Status = model.OrderStatusCompleted
	c.logger.InfoContext(ctx, "order completed", "order_id", order.ID)
	c.notifier.Notify(ctx, Notice{
		UserID: order.BuyerUserID,
		Type:   NotifyOrderCompleted,
		Title:  "Order complete",
		Body:   "Every item in your order has been handed off.",
		Data:   map[string]string{"order_id": order.ID},
	})
	return true, nil
}

func (c *completionCoordinatorImpl) CompleteSubscriptionIfDone(ctx context.Context, sub *model.MarketBoxSubscription) (bool, error) {
	done, err := c.marketBoxRepo.MarkSubscriptionCompletedIfDone(ctx, sub.ID)
	if err != nil {
		return false, fmt.Errorf("complete subscription: %w", err)
	}
	if !done {
		return false, nil
	}

	sub.Status = model.SubscriptionStatusCompleted
	c.logger.InfoContext(ctx, "market box subscription completed", "subscription_id", sub.ID)
	c.notifier.Notify(ctx, Notice{
		UserID: sub.BuyerUserID,
		Type:   NotifySubscriptionCompleted,
		Title:  "Market box complete",
		Body:   fmt.Sprintf("Your %s subscription has finished.", sub.OfferingName),
		Data:   map[string]string{"subscription_id": sub.ID},
	})
	return true, nil
}
