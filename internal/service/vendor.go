package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"marketplace-handoff/internal/apperr"
	"marketplace-handoff/internal/client"
	"marketplace-handoff/internal/dto"
	"marketplace-handoff/internal/model"
	"marketplace-handoff/internal/repository"
	"time"

	"gorm.io/gorm"
)

// payoutsFlagTTL is how long a cached payouts_enabled=true is trusted
// without asking the processor again.
const payoutsFlagTTL = 24 * time.Hour

type VendorService interface {
	Get(ctx context.Context, vendorID string) (*model.VendorProfile, error)
	// Authorize loads the vendor profile named by actor and checks the
	// caller owns it.
	Authorize(ctx context.Context, actor Actor) (*model.VendorProfile, error)
	EnsurePayoutsEnabled(ctx context.Context, vendor *model.VendorProfile) error
	PayoutStatus(ctx context.Context, actor Actor) (*dto.PayoutStatusResponse, error)
	SyncAccountStatus(ctx context.Context, accountID string, enabled bool) error
}

type vendorServiceImpl struct {
	vendorRepo repository.VendorRepository
	gateway    client.PayoutGateway
	devSkip    bool
	logger     *slog.Logger
	now        func() time.Time
}

func NewVendorService(
	vendorRepo repository.VendorRepository,
	gateway client.PayoutGateway,
	devSkip bool,
	logger *slog.Logger,
) VendorService {
	return &vendorServiceImpl{
		vendorRepo: vendorRepo,
		gateway:    gateway,
		devSkip:    devSkip,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *vendorServiceImpl) Get(ctx context.Context, vendorID string) (*model.VendorProfile, error) {
	vendor, err := s.vendorRepo.Get(ctx, vendorID)
	if err != nil {
		return nil, lookupError("vendor profile", err)
	}
	return vendor, nil
}

func (s *vendorServiceImpl) Authorize(ctx context.Context, actor Actor) (*model.VendorProfile, error) {
	if actor.VendorProfileID == "" {
		return nil, apperr.ErrNotAuthorized.WithMessage("vendor profile required")
	}
	vendor, err := s.vendorRepo.Get(ctx, actor.VendorProfileID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotAuthorized
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor profile: %w", err)
	}
	if vendor.UserID != actor.UserID {
		return nil, apperr.ErrNotAuthorized
	}
	return vendor, nil
}

// EnsurePayoutsEnabled trusts a fresh cached true. Otherwise it asks the
// processor and updates the cache; only a false live answer rejects.
func (s *vendorServiceImpl) EnsurePayoutsEnabled(ctx context.Context, vendor *model.VendorProfile) error {
	if s.devSkip {
		return nil
	}
	now := s.now()
	if vendor.PayoutsEnabled && vendor.PayoutsCheckedAt != nil && now.Sub(*vendor.PayoutsCheckedAt) < payoutsFlagTTL {
		return nil
	}
	if vendor.StripeAccountID == "" {
		return apperr.ErrPayoutsNotEnabled.WithMessage("vendor has no connected payout account")
	}

	enabled, err := s.gateway.PayoutsEnabled(ctx, vendor.StripeAccountID)
	if err != nil {
		s.logger.WarnContext(ctx, "refresh payout status", "vendor_profile_id", vendor.ID, "error", err)
		if vendor.PayoutsEnabled {
			return nil
		}
		return apperr.ErrPayoutsNotEnabled.Wrap(err)
	}

	if err := s.vendorRepo.UpdatePayoutsEnabled(ctx, vendor.ID, enabled); err != nil {
		s.logger.WarnContext(ctx, "cache payout status", "vendor_profile_id", vendor.ID, "error", err)
	}
	vendor.PayoutsEnabled = enabled
	vendor.PayoutsCheckedAt = &now

	if !enabled {
		return apperr.ErrPayoutsNotEnabled
	}
	return nil
}

func (s *vendorServiceImpl) PayoutStatus(ctx context.Context, actor Actor) (*dto.PayoutStatusResponse, error) {
	vendor, err := s.Authorize(ctx, actor)
	if err != nil {
		return nil, err
	}

	// the refreshed flag is returned either way
	if err := s.EnsurePayoutsEnabled(ctx, vendor); err != nil && apperr.Code(err) != apperr.CodePayoutsNotEnabled {
		return nil, err
	}

	return &dto.PayoutStatusResponse{
		VendorProfileID:  vendor.ID,
		PayoutsEnabled:   vendor.PayoutsEnabled || s.devSkip,
		PayoutsCheckedAt: vendor.PayoutsCheckedAt,
	}, nil
}

// SyncAccountStatus applies a processor-pushed account update to the vendor
// that owns accountID. Unknown accounts are ignored.
func (s *vendorServiceImpl) SyncAccountStatus(ctx context.Context, accountID string, enabled bool) error {
	vendor, err := s.vendorRepo.FindByStripeAccount(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.InfoContext(ctx, "account update for unknown vendor", "account_id", accountID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find vendor by account: %w", err)
	}

	if err := s.vendorRepo.UpdatePayoutsEnabled(ctx, vendor.ID, enabled); err != nil {
		return fmt.Errorf("update payouts enabled: %w", err)
	}
	s.logger.InfoContext(ctx, "vendor payout status synced",
		"vendor_profile_id", vendor.ID,
		"payouts_enabled", enabled,
	)
	return nil
}
