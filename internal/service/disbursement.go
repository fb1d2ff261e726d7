package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"marketplace-handoff/internal/apperr"
	"marketplace-handoff/internal/client"
	"marketplace-handoff/internal/lock"
	"marketplace-handoff/internal/model"
	"marketplace-handoff/internal/payout"
	"marketplace-handoff/internal/repository"

	"github.com/google/uuid"
)

type DisburseRequest struct {
	Source         model.PayoutSource
	SourceID       string
	OrderID        *string
	SubscriptionID *string
	TransferGroup  string
	Vendor         *model.VendorProfile
	BaseCents      int64
	TipCents       int64

	// confirmSource re-reads the item or pickup after the payout row is
	// reserved and voids the row if the handoff is no longer confirmed.
	confirmSource bool
}

type PayoutService interface {
	// Disburse pays out one order item or pickup. It is idempotent per
	// source: an existing non-failed payout is returned as is.
	Disburse(ctx context.Context, req DisburseRequest) (*model.VendorPayout, error)
	// Retry re-disburses the source of a failed payout as a new attempt. A
	// failed payout whose source is no longer confirmed is voided instead.
	Retry(ctx context.Context, failed *model.VendorPayout) (*model.VendorPayout, error)
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*model.VendorPayout, error)
}

type payoutServiceImpl struct {
	payoutRepo    repository.PayoutRepository
	orderRepo     repository.OrderRepository
	marketBoxRepo repository.MarketBoxRepository
	vendors       VendorService
	fees          FeeLedgerService
	gateway       client.PayoutGateway
	locker        lock.Locker
	notifier      NotificationService
	currency      string
	devSkip       bool
	logger        *slog.Logger
}

func NewPayoutService(
	payoutRepo repository.PayoutRepository,
	orderRepo repository.OrderRepository,
	marketBoxRepo repository.MarketBoxRepository,
	vendors VendorService,
	fees FeeLedgerService,
	gateway client.PayoutGateway,
	locker lock.Locker,
	notifier NotificationService,
	currency string,
	devSkip bool,
	logger *slog.Logger,
) PayoutService {
	return &payoutServiceImpl{
		payoutRepo:    payoutRepo,
		orderRepo:     orderRepo,
		marketBoxRepo: marketBoxRepo,
		vendors:       vendors,
		fees:          fees,
		gateway:       gateway,
		locker:        locker,
		notifier:      notifier,
		currency:      currency,
		devSkip:       devSkip,
		logger:        logger,
	}
}

func (s *payoutServiceImpl) Disburse(ctx context.Context, req DisburseRequest) (*model.VendorPayout, error) {
	existing, err := s.payoutRepo.FindActive(ctx, req.Source, req.SourceID)
	if err != nil {
		return nil, fmt.Errorf("find active payout: %w", err)
	}
	if existing != nil {
		s.logger.InfoContext(ctx, "payout already recorded",
			"payout_id", existing.ID,
			"source", req.Source,
			"source_id", req.SourceID,
		)
		return existing, nil
	}

	// the balance must not move between reading it and crediting the deduction
	unlock, err := s.locker.Lock(ctx, "fee-balance:"+req.Vendor.ID)
	if err != nil {
		return nil, fmt.Errorf("lock fee balance: %w", err)
	}
	defer unlock()

	var balance int64
	if !s.devSkip {
		balance, err = s.fees.OutstandingBalance(ctx, req.Vendor.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "fee balance unavailable, paying without deduction",
				"vendor_profile_id", req.Vendor.ID,
				"error", err,
			)
			balance = 0
		}
	}
	b := payout.Compute(req.BaseCents, balance, req.TipCents)

	attempts, err := s.payoutRepo.CountAttempts(ctx, req.Source, req.SourceID)
	if err != nil {
		return nil, fmt.Errorf("count payout attempts: %w", err)
	}

	row := &model.VendorPayout{
		ID:                uuid.NewString(),
		Source:            req.Source,
		SourceID:          req.SourceID,
		OrderID:           req.OrderID,
		SubscriptionID:    req.SubscriptionID,
		VendorProfileID:   req.Vendor.ID,
		BaseCents:         b.BaseCents,
		FeeDeductionCents: b.DeductionCents,
		TipCents:          b.TipCents,
		AmountCents:       b.TransferCents,
		Currency:          s.currency,
		Status:            model.PayoutStatusProcessing,
		Attempt:           int32(attempts) + 1,
	}
	if err := s.payoutRepo.CreateActive(ctx, row); err != nil {
		if errors.Is(err, repository.ErrPayoutExists) {
			// a concurrent request won the insert
			winner, findErr := s.payoutRepo.FindActive(ctx, req.Source, req.SourceID)
			if findErr != nil {
				return nil, fmt.Errorf("find active payout: %w", findErr)
			}
			if winner == nil {
				return nil, apperr.ErrConcurrentUpdate.Wrap(err)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("create payout: %w", err)
	}

	if req.confirmSource {
		confirmed, err := s.sourceConfirmed(ctx, row)
		if err != nil {
			s.fail(ctx, row, req.Vendor, err)
			return row, err
		}
		if !confirmed {
			return s.void(ctx, row, "handoff no longer confirmed")
		}
	}

	if s.devSkip {
		return s.settleWithoutTransfer(ctx, row, model.PayoutStatusSkippedDev)
	}

	if err := s.vendors.EnsurePayoutsEnabled(ctx, req.Vendor); err != nil {
		s.fail(ctx, row, req.Vendor, err)
		return row, err
	}

	if b.TransferCents == 0 {
		row, err = s.settleWithoutTransfer(ctx, row, model.PayoutStatusFeeOffset)
		if err != nil {
			return nil, err
		}
		s.creditDeduction(ctx, row, req)
		return row, nil
	}

	transferID, err := s.gateway.Transfer(ctx, client.TransferRequest{
		DestinationAccount: req.Vendor.StripeAccountID,
		AmountCents:        b.TransferCents,
		Currency:           s.currency,
		IdempotencyKey:     row.ID,
		TransferGroup:      req.TransferGroup,
		Metadata: map[string]string{
			"payout_id": row.ID,
			"source":    string(req.Source),
			"source_id": req.SourceID,
		},
	})
	if err != nil {
		s.fail(ctx, row, req.Vendor, err)
		return row, apperr.ErrTransferFailed.Wrap(err)
	}

	// the transfer happened: record it even if the request is gone
	bg := context.WithoutCancel(ctx)
	if err := s.payoutRepo.MarkSent(bg, row.ID, transferID); err != nil {
		s.logger.ErrorContext(ctx, "record transfer id", "payout_id", row.ID, "transfer_id", transferID, "error", err)
	}
	row.TransferID = transferID

	s.creditDeduction(bg, row, req)

	s.logger.InfoContext(ctx, "payout transferred",
		"payout_id", row.ID,
		"transfer_id", transferID,
		"vendor_profile_id", req.Vendor.ID,
		"amount_cents", row.AmountCents,
		"fee_deduction_cents", row.FeeDeductionCents,
		"tip_cents", row.TipCents,
	)
	s.notifier.Notify(ctx, Notice{
		UserID: req.Vendor.UserID,
		Type:   NotifyPayoutSent,
		Title:  "Payout sent",
		Body:   fmt.Sprintf("%s %s is on its way to your account.", payout.FormatCents(row.AmountCents), s.currency),
		Data:   map[string]string{"payout_id": row.ID, "source_id": req.SourceID},
	})
	return row, nil
}

func (s *payoutServiceImpl) Retry(ctx context.Context, failed *model.VendorPayout) (*model.VendorPayout, error) {
	if failed.Status != model.PayoutStatusFailed {
		return nil, apperr.ErrInvalidInput.WithMessage("only failed payouts can be retried")
	}
	confirmed, err := s.sourceConfirmed(ctx, failed)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		// a fulfill that rolled back; the vendor fulfills again instead
		if err := s.payoutRepo.MarkVoided(ctx, failed.ID); err != nil {
			return nil, fmt.Errorf("void payout: %w", err)
		}
		failed.Status = model.PayoutStatusVoided
		return failed, nil
	}
	vendor, err := s.vendors.Get(ctx, failed.VendorProfileID)
	if err != nil {
		return nil, err
	}

	group := failed.SourceID
	switch {
	case failed.OrderID != nil:
		group = *failed.OrderID
	case failed.SubscriptionID != nil:
		group = *failed.SubscriptionID
	}

	return s.Disburse(ctx, DisburseRequest{
		Source:         failed.Source,
		SourceID:       failed.SourceID,
		OrderID:        failed.OrderID,
		SubscriptionID: failed.SubscriptionID,
		TransferGroup:  group,
		Vendor:         vendor,
		BaseCents:      failed.BaseCents,
		TipCents:       failed.TipCents,
		confirmSource:  true,
	})
}

func (s *payoutServiceImpl) sourceConfirmed(ctx context.Context, p *model.VendorPayout) (bool, error) {
	switch p.Source {
	case model.PayoutSourceOrderItem:
		item, err := s.orderRepo.FindItem(ctx, p.SourceID)
		if err != nil {
			return false, lookupError("order item", err)
		}
		return item.State().Confirmed(), nil
	case model.PayoutSourcePickup:
		pickup, err := s.marketBoxRepo.FindPickup(ctx, p.SourceID)
		if err != nil {
			return false, lookupError("pickup", err)
		}
		return pickup.State().Confirmed(), nil
	}
	return false, fmt.Errorf("unknown payout source %q", p.Source)
}

func (s *payoutServiceImpl) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*model.VendorPayout, error) {
	payouts, err := s.payoutRepo.ListRetryable(ctx, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list retryable payouts: %w", err)
	}
	return payouts, nil
}

func (s *payoutServiceImpl) settleWithoutTransfer(ctx context.Context, row *model.VendorPayout, status model.PayoutStatus) (*model.VendorPayout, error) {
	if err := s.payoutRepo.MarkSettledWithoutTransfer(ctx, row.ID, status); err != nil {
		return nil, fmt.Errorf("settle payout: %w", err)
	}
	row.Status = status
	s.logger.InfoContext(ctx, "payout settled without transfer",
		"payout_id", row.ID,
		"status", status,
		"fee_deduction_cents", row.FeeDeductionCents,
	)
	return row, nil
}

// void releases a reserved row that must never be transferred.
func (s *payoutServiceImpl) void(ctx context.Context, row *model.VendorPayout, reason string) (*model.VendorPayout, error) {
	bg := context.WithoutCancel(ctx)
	if err := s.payoutRepo.MarkFailed(bg, row.ID, reason); err != nil {
		return nil, fmt.Errorf("release payout: %w", err)
	}
	if err := s.payoutRepo.MarkVoided(bg, row.ID); err != nil {
		return nil, fmt.Errorf("void payout: %w", err)
	}
	row.Status = model.PayoutStatusVoided
	row.ActiveKey = nil
	row.FailureReason = reason
	s.logger.InfoContext(ctx, "payout voided", "payout_id", row.ID, "source_id", row.SourceID, "reason", reason)
	return row, nil
}

// fail releases the source for a later attempt.
func (s *payoutServiceImpl) fail(ctx context.Context, row *model.VendorPayout, vendor *model.VendorProfile, cause error) {
	s.logger.ErrorContext(ctx, "payout failed",
		"payout_id", row.ID,
		"source", row.Source,
		"source_id", row.SourceID,
		"attempt", row.Attempt,
		"error", cause,
	)
	if err := s.payoutRepo.MarkFailed(context.WithoutCancel(ctx), row.ID, cause.Error()); err != nil {
		s.logger.ErrorContext(ctx, "mark payout failed", "payout_id", row.ID, "error", err)
	}
	row.Status = model.PayoutStatusFailed
	row.ActiveKey = nil
	row.FailureReason = cause.Error()

	s.notifier.Notify(ctx, Notice{
		UserID: vendor.UserID,
		Type:   NotifyPayoutFailed,
		Title:  "Payout delayed",
		Body:   "We could not send a payout. It will be retried automatically.",
		Data:   map[string]string{"payout_id": row.ID, "source_id": row.SourceID},
	})
}

func (s *payoutServiceImpl) creditDeduction(ctx context.Context, row *model.VendorPayout, req DisburseRequest) {
	if row.FeeDeductionCents == 0 {
		return
	}
	payoutID := row.ID
	err := s.fees.RecordFeeCredit(ctx, FeeCredit{
		VendorProfileID: req.Vendor.ID,
		AmountCents:     row.FeeDeductionCents,
		Reason:          fmt.Sprintf("auto-deducted from %s payout %s", req.Source, req.SourceID),
		RelatedOrderID:  req.OrderID,
		PayoutID:        &payoutID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "fee credit not recorded after deduction",
			"payout_id", row.ID,
			"vendor_profile_id", req.Vendor.ID,
			"amount_cents", row.FeeDeductionCents,
			"error", err,
		)
	}
}
