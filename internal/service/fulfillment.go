package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"marketplace-handoff/internal/apperr"
	"marketplace-handoff/internal/dto"
	"marketplace-handoff/internal/handoff"
	"marketplace-handoff/internal/model"
	"marketplace-handoff/internal/payout"
	"marketplace-handoff/internal/repository"
	"time"
)

// FulfillmentService runs the buyer/vendor handoff for one-off order items.
type FulfillmentService interface {
	AcknowledgeReceipt(ctx context.Context, actor Actor, itemID string) (*dto.AcknowledgeResponse, error)
	ConfirmHandoff(ctx context.Context, actor Actor, itemID string) (*dto.ConfirmHandoffResponse, error)
	Fulfill(ctx context.Context, actor Actor, itemID string) (*dto.FulfillResponse, error)
	MarkReady(ctx context.Context, actor Actor, itemID string) (*dto.ItemResponse, error)
}

type fulfillmentServiceImpl struct {
	orderRepo  repository.OrderRepository
	vendors    VendorService
	payouts    PayoutService
	completion CompletionCoordinator
	notifier   NotificationService
	machine    handoff.Machine
	logger     *slog.Logger
	now        func() time.Time
}

func NewFulfillmentService(
	orderRepo repository.OrderRepository,
	vendors VendorService,
	payouts PayoutService,
	completion CompletionCoordinator,
	notifier NotificationService,
	window time.Duration,
	logger *slog.Logger,
) FulfillmentService {
	return &fulfillmentServiceImpl{
		orderRepo:  orderRepo,
		vendors:    vendors,
		payouts:    payouts,
		completion: completion,
		notifier:   notifier,
		machine:    handoff.NewMachine(window, handoff.StatusFulfilled),
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *fulfillmentServiceImpl) AcknowledgeReceipt(ctx context.Context, actor Actor, itemID string) (*dto.AcknowledgeResponse, error) {
	item, order, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if order.BuyerUserID != actor.UserID {
		return nil, apperr.ErrNotAuthorized
	}
	if err := checkOrderOpen(order); err != nil {
		return nil, err
	}
	vendor, err := s.vendors.Get(ctx, item.VendorProfileID)
	if err != nil {
		return nil, err
	}

	res, err := s.machine.Acknowledge(item.State(), handoff.Buyer, s.now())
	if err != nil {
		return nil, s.reject(ctx, item, res, err)
	}
	if err := s.persist(ctx, item, res.State); err != nil {
		return nil, err
	}

	if res.Outcome == handoff.OutcomeWaiting {
		s.notifier.Notify(ctx, Notice{
			UserID: vendor.UserID,
			Type:   NotifyHandoffWaiting,
			Title:  "Buyer confirmed receipt",
			Body:   fmt.Sprintf("Confirm the handoff of %s within %s.", item.ListingTitle, s.machine.Window),
			Data:   map[string]string{"order_item_id": item.ID},
		})
		return &dto.AcknowledgeResponse{
			Success:                     true,
			WaitingForVendor:            true,
			ConfirmationWindowExpiresAt: item.ConfirmationWindowExpiresAt,
			Message:                     "Receipt acknowledged. Waiting for the vendor to confirm the handoff.",
		}, nil
	}

	payoutErr := s.payItem(ctx, order, item, vendor)
	s.finish(ctx, order, item, vendor)

	resp := &dto.AcknowledgeResponse{
		Success:   true,
		Completed: true,
		Message:   "Handoff confirmed by both parties.",
	}
	if payoutErr != nil {
		resp.PayoutFailed = true
		resp.Message = "Handoff confirmed. The vendor payout will be retried."
	}
	return resp, nil
}

func (s *fulfillmentServiceImpl) ConfirmHandoff(ctx context.Context, actor Actor, itemID string) (*dto.ConfirmHandoffResponse, error) {
	item, order, vendor, err := s.vendorItem(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}

	res, err := s.machine.ConfirmHandoff(item.State(), s.now())
	if err != nil {
		return nil, s.reject(ctx, item, res, err)
	}
	if err := s.vendors.EnsurePayoutsEnabled(ctx, vendor); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, item, res.State); err != nil {
		return nil, err
	}

	// the handoff stands even if money movement fails
	payoutErr := s.payItem(ctx, order, item, vendor)
	s.finish(ctx, order, item, vendor)

	resp := &dto.ConfirmHandoffResponse{
		Success:           true,
		Message:           "Handoff confirmed.",
		VendorConfirmedAt: item.VendorConfirmedAt,
	}
	if payoutErr != nil {
		resp.PayoutFailed = true
		resp.Message = "Handoff confirmed. Payout failed and will be retried."
	}
	return resp, nil
}

// Fulfill completes the handoff when the buyer has acknowledged. A failed
// transfer rolls the item back so the vendor can fulfill again.
func (s *fulfillmentServiceImpl) Fulfill(ctx context.Context, actor Actor, itemID string) (*dto.FulfillResponse, error) {
	item, order, vendor, err := s.vendorItem(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}

	before := item.State()
	res, err := s.machine.Fulfill(before, s.now())
	if err != nil {
		return nil, s.reject(ctx, item, res, err)
	}

	if res.Outcome == handoff.OutcomeAwaitingBuyer {
		if err := s.persist(ctx, item, res.State); err != nil {
			return nil, err
		}
		s.notifier.Notify(ctx, Notice{
			UserID: order.BuyerUserID,
			Type:   NotifyHandoffWaiting,
			Title:  "Please confirm pickup",
			Body:   fmt.Sprintf("The vendor handed off %s. Acknowledge receipt to finish.", item.ListingTitle),
			Data:   map[string]string{"order_item_id": item.ID},
		})
		return &dto.FulfillResponse{
			Success:   true,
			Completed: false,
			Message:   "Marked fulfilled. Waiting for the buyer to acknowledge receipt.",
		}, nil
	}

	if err := s.vendors.EnsurePayoutsEnabled(ctx, vendor); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, item, res.State); err != nil {
		return nil, err
	}

	if err := s.payItem(ctx, order, item, vendor); err != nil {
		if revertErr := s.orderRepo.RevertItemHandoff(context.WithoutCancel(ctx), item, before); revertErr != nil {
			s.logger.ErrorContext(ctx, "revert fulfilled item after payout failure",
				"order_item_id", item.ID,
				"error", revertErr,
			)
		}
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apperr.ErrTransferFailed.Wrap(err)
	}
	s.finish(ctx, order, item, vendor)

	return &dto.FulfillResponse{
		Success:           true,
		Completed:         true,
		VendorConfirmedAt: item.VendorConfirmedAt,
	}, nil
}

func (s *fulfillmentServiceImpl) MarkReady(ctx context.Context, actor Actor, itemID string) (*dto.ItemResponse, error) {
	item, order, _, err := s.vendorItem(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}

	next, err := s.machine.Transition(item.State(), handoff.ActionReady, s.now(), nil)
	if err != nil {
		return nil, handoffError(err)
	}
	if err := s.persist(ctx, item, next); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, Notice{
		UserID: order.BuyerUserID,
		Type:   NotifyItemReady,
		Title:  "Ready for pickup",
		Body:   fmt.Sprintf("%s is ready for pickup.", item.ListingTitle),
		Data:   map[string]string{"order_item_id": item.ID},
	})
	return &dto.ItemResponse{Success: true, Item: toOrderItemDTO(item)}, nil
}

func (s *fulfillmentServiceImpl) loadItem(ctx context.Context, itemID string) (*model.OrderItem, *model.Order, error) {
	item, err := s.orderRepo.FindItem(ctx, itemID)
	if err != nil {
		return nil, nil, lookupError("order item", err)
	}
	order, err := s.orderRepo.FindByID(ctx, item.OrderID)
	if err != nil {
		return nil, nil, lookupError("order", err)
	}
	return item, order, nil
}

func (s *fulfillmentServiceImpl) vendorItem(ctx context.Context, actor Actor, itemID string) (*model.OrderItem, *model.Order, *model.VendorProfile, error) {
	vendor, err := s.vendors.Authorize(ctx, actor)
	if err != nil {
		return nil, nil, nil, err
	}
	item, order, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, nil, nil, err
	}
	if item.VendorProfileID != vendor.ID {
		return nil, nil, nil, apperr.ErrNotAuthorized
	}
	if err := checkOrderOpen(order); err != nil {
		return nil, nil, nil, err
	}
	return item, order, vendor, nil
}

func checkOrderOpen(order *model.Order) error {
	switch order.Status {
	case model.OrderStatusPaid, model.OrderStatusCompleted:
		return nil
	}
	return apperr.ErrInvalidTransition.WithMessage(fmt.Sprintf("order is %s", order.Status))
}

func (s *fulfillmentServiceImpl) persist(ctx context.Context, item *model.OrderItem, next handoff.State) error {
	return handoffError(s.orderRepo.UpdateItemHandoff(ctx, item, next))
}

// reject handles a refused confirmation. An expired window also clears the
// stale confirmation so the next attempt starts over.
func (s *fulfillmentServiceImpl) reject(ctx context.Context, item *model.OrderItem, res handoff.Result, cause error) error {
	if res.Outcome == handoff.OutcomeExpired {
		if err := s.persist(ctx, item, res.State); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "confirmation window expired", "order_item_id", item.ID)
	}
	return handoffError(cause)
}

func (s *fulfillmentServiceImpl) payItem(ctx context.Context, order *model.Order, item *model.OrderItem, vendor *model.VendorProfile) error {
	count, err := s.orderRepo.CountTipEligibleItems(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("count tip eligible items: %w", err)
	}
	orderID := order.ID
	_, err = s.payouts.Disburse(ctx, DisburseRequest{
		Source:        model.PayoutSourceOrderItem,
		SourceID:      item.ID,
		OrderID:       &orderID,
		TransferGroup: order.ID,
		Vendor:        vendor,
		BaseCents:     item.VendorPayoutCents,
		TipCents:      payout.TipShare(order.TipAmountCents, order.TipOnPlatformFeeCents, int(count)),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "order item payout not completed", "order_item_id", item.ID, "error", err)
	}
	return err
}

func (s *fulfillmentServiceImpl) finish(ctx context.Context, order *model.Order, item *model.OrderItem, vendor *model.VendorProfile) {
	for _, userID := range []string{order.BuyerUserID, vendor.UserID} {
		s.notifier.Notify(ctx, Notice{
			UserID: userID,
			Type:   NotifyHandoffConfirmed,
			Title:  "Handoff confirmed",
			Body:   fmt.Sprintf("%s was handed off.", item.ListingTitle),
			Data:   map[string]string{"order_item_id": item.ID, "order_id": order.ID},
		})
	}
	if _, err := s.completion.CompleteOrderIfReady(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "order completion check", "order_id", order.ID, "error", err)
	}
}

func toOrderItemDTO(item *model.OrderItem) *dto.OrderItem {
	return &dto.OrderItem{
		ID:                          item.ID,
		OrderID:                     item.OrderID,
		VendorProfileID:             item.VendorProfileID,
		ListingTitle:                item.ListingTitle,
		Quantity:                    item.Quantity,
		Status:                      string(item.Status),
		VendorPayoutCents:           item.VendorPayoutCents,
		BuyerConfirmedAt:            item.BuyerConfirmedAt,
		VendorConfirmedAt:           item.VendorConfirmedAt,
		ConfirmationWindowExpiresAt: item.ConfirmationWindowExpiresAt,
		ReadyAt:                     item.ReadyAt,
	}
}
