package service

import (
	"context"
	"fmt"
	"log/slog"
	"marketplace-handoff/internal/apperr"
	"marketplace-handoff/internal/config"
	"marketplace-handoff/internal/dto"
	"marketplace-handoff/internal/handoff"
	"marketplace-handoff/internal/model"
	"marketplace-handoff/internal/payout"
	"marketplace-handoff/internal/repository"
	"time"
)

// MarketBoxService runs weekly pickups of market-box subscriptions. Each
// pickup is confirmed and paid out on its own.
type MarketBoxService interface {
	UpdatePickup(ctx context.Context, actor Actor, pickupID string, req *dto.PickupActionRequest) (*dto.PickupResponse, error)
	ConfirmPickup(ctx context.Context, actor Actor, pickupID string) (*dto.PickupResponse, error)
}

type marketBoxServiceImpl struct {
	marketBoxRepo repository.MarketBoxRepository
	vendors       VendorService
	payouts       PayoutService
	completion    CompletionCoordinator
	notifier      NotificationService
	verticals     *config.Verticals
	machine       handoff.Machine
	logger        *slog.Logger
	now           func() time.Time
}

func NewMarketBoxService(
	marketBoxRepo repository.MarketBoxRepository,
	vendors VendorService,
	payouts PayoutService,
	completion CompletionCoordinator,
	notifier NotificationService,
	verticals *config.Verticals,
	window time.Duration,
	logger *slog.Logger,
) MarketBoxService {
	return &marketBoxServiceImpl{
		marketBoxRepo: marketBoxRepo,
		vendors:       vendors,
		payouts:       payouts,
		completion:    completion,
		notifier:      notifier,
		verticals:     verticals,
		machine:       handoff.NewMachine(window, handoff.StatusPickedUp),
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *marketBoxServiceImpl) UpdatePickup(ctx context.Context, actor Actor, pickupID string, req *dto.PickupActionRequest) (*dto.PickupResponse, error) {
	vendor, err := s.vendors.Authorize(ctx, actor)
	if err != nil {
		return nil, err
	}
	pickup, sub, err := s.loadPickup(ctx, pickupID)
	if err != nil {
		return nil, err
	}
	if sub.VendorProfileID != vendor.ID {
		return nil, apperr.ErrNotAuthorized
	}
	action, err := handoff.ParseAction(req.Action)
	if err != nil {
		return nil, handoffError(err)
	}

	now := s.now()
	var resp *dto.PickupResponse
	if action == handoff.ActionPickedUp {
		resp, err = s.confirm(ctx, pickup, sub, vendor, handoff.Vendor, now)
	} else {
		resp, err = s.transition(ctx, pickup, sub, action, req.RescheduledTo, now)
	}
	if err != nil {
		return nil, err
	}

	if req.VendorNotes != nil {
		if err := s.marketBoxRepo.UpdateVendorNotes(ctx, pickup.ID, *req.VendorNotes); err != nil {
			s.logger.WarnContext(ctx, "save vendor notes", "pickup_id", pickup.ID, "error", err)
		} else {
			pickup.VendorNotes = *req.VendorNotes
		}
	}
	resp.Pickup = toPickupDTO(pickup)
	return resp, nil
}

func (s *marketBoxServiceImpl) ConfirmPickup(ctx context.Context, actor Actor, pickupID string) (*dto.PickupResponse, error) {
	pickup, sub, err := s.loadPickup(ctx, pickupID)
	if err != nil {
		return nil, err
	}
	if sub.BuyerUserID != actor.UserID {
		return nil, apperr.ErrNotAuthorized
	}
	vendor, err := s.vendors.Get(ctx, sub.VendorProfileID)
	if err != nil {
		return nil, err
	}

	resp, err := s.confirm(ctx, pickup, sub, vendor, handoff.Buyer, s.now())
	if err != nil {
		return nil, err
	}
	resp.Pickup = toPickupDTO(pickup)
	return resp, nil
}

func (s *marketBoxServiceImpl) confirm(ctx context.Context, pickup *model.MarketBoxPickup, sub *model.MarketBoxSubscription, vendor *model.VendorProfile, party handoff.Party, now time.Time) (*dto.PickupResponse, error) {
	res, err := s.machine.Acknowledge(pickup.State(), party, now)
	if err != nil {
		if res.Outcome == handoff.OutcomeExpired {
			if perr := s.persist(ctx, pickup, res.State); perr != nil {
				return nil, perr
			}
			s.logger.InfoContext(ctx, "confirmation window expired", "pickup_id", pickup.ID)
		}
		return nil, handoffError(err)
	}
	if res.Outcome == handoff.OutcomeCompleted && party == handoff.Vendor {
		if err := s.vendors.EnsurePayoutsEnabled(ctx, vendor); err != nil {
			return nil, err
		}
	}
	if err := s.persist(ctx, pickup, res.State); err != nil {
		return nil, err
	}

	if res.Outcome == handoff.OutcomeWaiting {
		waitingOn := sub.BuyerUserID
		if party == handoff.Buyer {
			waitingOn = vendor.UserID
		}
		s.notifier.Notify(ctx, Notice{
			UserID: waitingOn,
			Type:   NotifyHandoffWaiting,
			Title:  "Confirm your market box pickup",
			Body:   fmt.Sprintf("Week %d pickup is waiting for your confirmation.", pickup.WeekNumber),
			Data:   map[string]string{"pickup_id": pickup.ID},
		})
		return pickupResponse(pickup, now, fmt.Sprintf("Confirmed. Waiting for the %s to confirm.", party.Other())), nil
	}

	payoutErr := s.payPickup(ctx, pickup, sub, vendor)
	for _, userID := range []string{sub.BuyerUserID, vendor.UserID} {
		s.notifier.Notify(ctx, Notice{
			UserID: userID,
			Type:   NotifyHandoffConfirmed,
			Title:  "Pickup confirmed",
			Body:   fmt.Sprintf("Week %d of %s was picked up.", pickup.WeekNumber, sub.OfferingName),
			Data:   map[string]string{"pickup_id": pickup.ID, "subscription_id": sub.ID},
		})
	}
	s.completeSubscription(ctx, sub)

	resp := pickupResponse(pickup, now, "Pickup confirmed by both parties.")
	if payoutErr != nil {
		resp.PayoutFailed = true
		resp.Message = "Pickup confirmed. The vendor payout will be retried."
	}
	return resp, nil
}

func (s *marketBoxServiceImpl) transition(ctx context.Context, pickup *model.MarketBoxPickup, sub *model.MarketBoxSubscription, action handoff.Action, rescheduledTo string, now time.Time) (*dto.PickupResponse, error) {
	to, err := parseRescheduleDate(rescheduledTo)
	if err != nil {
		return nil, err
	}
	next, err := s.machine.Transition(pickup.State(), action, now, to)
	if err != nil {
		return nil, handoffError(err)
	}
	if err := s.persist(ctx, pickup, next); err != nil {
		return nil, err
	}

	var msg string
	switch action {
	case handoff.ActionReady:
		msg = "Pickup marked ready."
		s.notifier.Notify(ctx, Notice{
			UserID: sub.BuyerUserID,
			Type:   NotifyItemReady,
			Title:  "Market box ready",
			Body:   fmt.Sprintf("Week %d of %s is ready for pickup.", pickup.WeekNumber, sub.OfferingName),
			Data:   map[string]string{"pickup_id": pickup.ID},
		})
	case handoff.ActionMissed:
		msg = "Pickup marked missed."
		s.notifier.Notify(ctx, Notice{
			UserID: sub.BuyerUserID,
			Type:   NotifyPickupMissed,
			Title:  "Pickup missed",
			Body:   fmt.Sprintf("You missed week %d of %s. The vendor may reschedule it.", pickup.WeekNumber, sub.OfferingName),
			Data:   map[string]string{"pickup_id": pickup.ID},
		})
		s.completeSubscription(ctx, sub)
	case handoff.ActionReschedule:
		msg = "Pickup rescheduled."
		s.notifier.Notify(ctx, Notice{
			UserID: sub.BuyerUserID,
			Type:   NotifyPickupRescheduled,
			Title:  "Pickup rescheduled",
			Body:   fmt.Sprintf("Week %d of %s moved to %s.", pickup.WeekNumber, sub.OfferingName, pickup.RescheduledTo.Format("Jan 2, 2006")),
			Data:   map[string]string{"pickup_id": pickup.ID},
		})
	}
	return pickupResponse(pickup, now, msg), nil
}

func (s *marketBoxServiceImpl) loadPickup(ctx context.Context, pickupID string) (*model.MarketBoxPickup, *model.MarketBoxSubscription, error) {
	pickup, err := s.marketBoxRepo.FindPickup(ctx, pickupID)
	if err != nil {
		return nil, nil, lookupError("pickup", err)
	}
	sub, err := s.marketBoxRepo.GetSubscription(ctx, pickup.SubscriptionID)
	if err != nil {
		return nil, nil, lookupError("subscription", err)
	}
	if sub.Status == model.SubscriptionStatusCancelled {
		return nil, nil, apperr.ErrInvalidTransition.WithMessage("subscription is cancelled")
	}
	return pickup, sub, nil
}

func (s *marketBoxServiceImpl) persist(ctx context.Context, pickup *model.MarketBoxPickup, next handoff.State) error {
	return handoffError(s.marketBoxRepo.UpdatePickupHandoff(ctx, pickup, next))
}

// payPickup pays the per-pickup price minus the vertical's vendor fee. The
// flat subscription fee was taken at purchase.
func (s *marketBoxServiceImpl) payPickup(ctx context.Context, pickup *model.MarketBoxPickup, sub *model.MarketBoxSubscription, vendor *model.VendorProfile) error {
	fee := s.verticals.Get(vendor.Vertical).VendorFeePercent
	subID := sub.ID
	_, err := s.payouts.Disburse(ctx, DisburseRequest{
		Source:         model.PayoutSourcePickup,
		SourceID:       pickup.ID,
		SubscriptionID: &subID,
		TransferGroup:  sub.ID,
		Vendor:         vendor,
		BaseCents:      payout.PickupVendorPayout(sub.PickupPriceCents, fee),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "pickup payout not completed", "pickup_id", pickup.ID, "error", err)
	}
	return err
}

func (s *marketBoxServiceImpl) completeSubscription(ctx context.Context, sub *model.MarketBoxSubscription) {
	if _, err := s.completion.CompleteSubscriptionIfDone(ctx, sub); err != nil {
		s.logger.ErrorContext(ctx, "subscription completion check", "subscription_id", sub.ID, "error", err)
	}
}

func parseRescheduleDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.ErrInvalidInput.WithMessage("rescheduled_to must be RFC 3339 or YYYY-MM-DD")
}

func pickupResponse(pickup *model.MarketBoxPickup, now time.Time, msg string) *dto.PickupResponse {
	state := pickup.State()
	waiting := state.WaitingFor(now)
	return &dto.PickupResponse{
		Completed:                   state.Confirmed(),
		WaitingForBuyer:             waiting == handoff.Buyer,
		WaitingForVendor:            waiting == handoff.Vendor,
		ConfirmationWindowExpiresAt: pickup.ConfirmationWindowExpiresAt,
		Message:                     msg,
	}
}

func toPickupDTO(p *model.MarketBoxPickup) *dto.Pickup {
	return &dto.Pickup{
		ID:                          p.ID,
		SubscriptionID:              p.SubscriptionID,
		WeekNumber:                  p.WeekNumber,
		ScheduledDate:               p.ScheduledDate,
		Status:                      string(p.Status),
		VendorNotes:                 p.VendorNotes,
		BuyerConfirmedAt:            p.BuyerConfirmedAt,
		VendorConfirmedAt:           p.VendorConfirmedAt,
		ConfirmationWindowExpiresAt: p.ConfirmationWindowExpiresAt,
		ReadyAt:                     p.ReadyAt,
		MissedAt:                    p.MissedAt,
		RescheduledTo:               p.RescheduledTo,
	}
}
