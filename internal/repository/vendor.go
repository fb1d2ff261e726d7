package repository

import (
	"context"
	"marketplace-handoff/internal/model"
	"time"

	"gorm.io/gorm"
)

type VendorRepository interface {
	Create(ctx context.Context, vendor *model.VendorProfile) error
	Get(ctx context.Context, vendorID string) (*model.VendorProfile, error)
	FindByStripeAccount(ctx context.Context, accountID string) (*model.VendorProfile, error)
	UpdatePayoutsEnabled(ctx context.Context, vendorID string, enabled bool) error
}

type vendorRepoImpl struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) VendorRepository {
	return &vendorRepoImpl{
		db: db,
	}
}

func (r *vendorRepoImpl) Create(ctx context.Context, vendor *model.VendorProfile) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}

func (r *vendorRepoImpl) Get(ctx context.Context, vendorID string) (*model.VendorProfile, error) {
	var vendor model.VendorProfile
	err := r.db.WithContext(ctx).
		Where("id = ?", vendorID).
		First(&vendor).Error
	if err != nil {
		return nil, err
	}

	return &vendor, nil
}

func (r *vendorRepoImpl) FindByStripeAccount(ctx context.Context, accountID string) (*model.VendorProfile, error) {
	var vendor model.VendorProfile
	err := r.db.WithContext(ctx).
		Where("stripe_account_id = ?", accountID).
		First(&vendor).Error
	if err != nil {
		return nil, err
	}

	return &vendor, nil
}

func (r *vendorRepoImpl) UpdatePayoutsEnabled(ctx context.Context, vendorID string, enabled bool) error {
	now := time.Now().UTC()
	result := r.db.
		WithContext(ctx).
		Model(&model.VendorProfile{}).
		Where("id = ?", vendorID).
		Updates(map[string]interface{}{
			"payouts_enabled":    enabled,
			"payouts_checked_at": now,
			"updated_at":         now,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
