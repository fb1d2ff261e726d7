package repository

import (
	"context"
	"errors"
	"marketplace-handoff/internal/model"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInsufficientFeeBalance = errors.New("fee credit exceeds outstanding balance")

type FeeLedgerRepository interface {
	GetBalance(ctx context.Context, vendorID string) (int64, error)
	RecordCharge(ctx context.Context, entry *model.VendorFeeEntry) error
	RecordCredit(ctx context.Context, entry *model.VendorFeeEntry) error
	ListEntries(ctx context.Context, vendorID string, limit int) ([]*model.VendorFeeEntry, error)
}

type feeLedgerRepoImpl struct {
	db *gorm.DB
}

func NewFeeLedgerRepository(db *gorm.DB) FeeLedgerRepository {
	return &feeLedgerRepoImpl{
		db: db,
	}
}

// GetBalance returns the outstanding platform fees owed by the vendor. A
// vendor without a balance row owes nothing.
func (r *feeLedgerRepoImpl) GetBalance(ctx context.Context, vendorID string) (int64, error) {
	var balance model.VendorFeeBalance
	err := r.db.WithContext(ctx).
		Where("vendor_profile_id = ?", vendorID).
		First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return balance.BalanceCents, nil
}

func (r *feeLedgerRepoImpl) RecordCharge(ctx context.Context, entry *model.VendorFeeEntry) error {
	entry.Kind = model.FeeEntryCharge
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "vendor_profile_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance_cents": gorm.Expr("vendor_fee_balances.balance_cents + ?", entry.AmountCents),
				"updated_at":    now,
			}),
		}).Create(&model.VendorFeeBalance{
			VendorProfileID: entry.VendorProfileID,
			BalanceCents:    entry.AmountCents,
			UpdatedAt:       now,
		}).Error
	})
}

// RecordCredit appends a credit entry and lowers the balance by the same
// amount. The balance never goes negative.
func (r *feeLedgerRepoImpl) RecordCredit(ctx context.Context, entry *model.VendorFeeEntry) error {
	entry.Kind = model.FeeEntryCredit
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		result := tx.Model(&model.VendorFeeBalance{}).
			Where("vendor_profile_id = ? AND balance_cents >= ?", entry.VendorProfileID, entry.AmountCents).
			Updates(map[string]interface{}{
				"balance_cents": gorm.Expr("balance_cents - ?", entry.AmountCents),
				"updated_at":    time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInsufficientFeeBalance
		}
		return nil
	})
}

func (r *feeLedgerRepoImpl) ListEntries(ctx context.Context, vendorID string, limit int) ([]*model.VendorFeeEntry, error) {
	var entries []*model.VendorFeeEntry
	err := r.db.WithContext(ctx).
		Where("vendor_profile_id = ?", vendorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}
