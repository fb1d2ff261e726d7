package service

import (
	"context"
	"fmt"
	"marketplace-handoff/internal/apperr"
	"marketplace-handoff/internal/dto"
	"marketplace-handoff/internal/model"
	"marketplace-handoff/internal/payout"
	"marketplace-handoff/internal/repository"
)

type FeeCredit struct {
	VendorProfileID string
	AmountCents     int64
	Reason          string
	RelatedOrderID  *string
	PayoutID        *string
}

type FeeLedgerService interface {
	OutstandingBalance(ctx context.Context, vendorID string) (int64, error)
	// RecordFeeCredit must only follow a transfer that was actually initiated
	// (or a payout fully offset against fees).
	RecordFeeCredit(ctx context.Context, credit FeeCredit) error
	RecordFeeCharge(ctx context.Context, vendorID string, amountCents int64, reason string) error
	Summary(ctx context.Context, vendorID string) (*dto.FeeBalanceResponse, error)
}

type feeLedgerServiceImpl struct {
	feeRepo repository.FeeLedgerRepository
}

func NewFeeLedgerService(feeRepo repository.FeeLedgerRepository) FeeLedgerService {
	return &feeLedgerServiceImpl{
		feeRepo: feeRepo,
	}
}

func (s *feeLedgerServiceImpl) OutstandingBalance(ctx context.Context, vendorID string) (int64, error) {
	balance, err := s.feeRepo.GetBalance(ctx, vendorID)
	if err != nil {
		return 0, fmt.Errorf("get fee balance: %w", err)
	}
	return balance, nil
}

func (s *feeLedgerServiceImpl) RecordFeeCredit(ctx context.Context, credit FeeCredit) error {
	if credit.AmountCents <= 0 {
		return nil
	}
	err := s.feeRepo.RecordCredit(ctx, &model.VendorFeeEntry{
		VendorProfileID: credit.VendorProfileID,
		AmountCents:     credit.AmountCents,
		Reason:          credit.Reason,
		RelatedOrderID:  credit.RelatedOrderID,
		PayoutID:        credit.PayoutID,
	})
	if err != nil {
		return fmt.Errorf("record fee credit: %w", err)
	}
	return nil
}

func (s *feeLedgerServiceImpl) RecordFeeCharge(ctx context.Context, vendorID string, amountCents int64, reason string) error {
	if amountCents <= 0 {
		return apperr.ErrInvalidInput.WithMessage("fee charge must be positive")
	}
	err := s.feeRepo.RecordCharge(ctx, &model.VendorFeeEntry{
		VendorProfileID: vendorID,
		AmountCents:     amountCents,
		Reason:          reason,
	})
	if err != nil {
		return fmt.Errorf("record fee charge: %w", err)
	}
	return nil
}

func (s *feeLedgerServiceImpl) Summary(ctx context.Context, vendorID string) (*dto.FeeBalanceResponse, error) {
	balance, err := s.OutstandingBalance(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	entries, err := s.feeRepo.ListEntries(ctx, vendorID, 20)
	if err != nil {
		return nil, fmt.Errorf("list fee entries: %w", err)
	}

	resp := &dto.FeeBalanceResponse{
		VendorProfileID: vendorID,
		BalanceCents:    balance,
		Balance:         payout.FormatCents(balance),
		RecentEntries:   make([]*dto.FeeEntry, 0, len(entries)),
	}
	for _, e := range entries {
		resp.RecentEntries = append(resp.RecentEntries, &dto.FeeEntry{
			Kind:           string(e.Kind),
			AmountCents:    e.AmountCents,
			Reason:         e.Reason,
			RelatedOrderID: e.RelatedOrderID,
			CreatedAt:      e.CreatedAt,
		})
	}
	return resp, nil
}
