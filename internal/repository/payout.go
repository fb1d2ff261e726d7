package repository

import (
	"context"
	"errors"
	"marketplace-handoff/internal/model"
	"time"

	"gorm.io/gorm"
)

// ErrPayoutExists is returned when a non-failed payout already holds the
// source's active key.
var ErrPayoutExists = errors.New("active payout already exists for source")

type PayoutRepository interface {
	FindActive(ctx context.Context, source model.PayoutSource, sourceID string) (*model.VendorPayout, error)
	Get(ctx context.Context, payoutID string) (*model.VendorPayout, error)
	CountAttempts(ctx context.Context, source model.PayoutSource, sourceID string) (int64, error)
	CreateActive(ctx context.Context, payout *model.VendorPayout) error
	MarkSent(ctx context.Context, payoutID, transferID string) error
	MarkSettledWithoutTransfer(ctx context.Context, payoutID string, status model.PayoutStatus) error
	MarkFailed(ctx context.Context, payoutID, reason string) error
	MarkVoided(ctx context.Context, payoutID string) error
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*model.VendorPayout, error)
	ListForSource(ctx context.Context, source model.PayoutSource, sourceID string) ([]*model.VendorPayout, error)
}

type payoutRepositoryImpl struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepositoryImpl{
		db: db,
	}
}

func (r *payoutRepositoryImpl) FindActive(ctx context.Context, source model.PayoutSource, sourceID string) (*model.VendorPayout, error) {
	var payout model.VendorPayout
	err := r.db.WithContext(ctx).
		Where("active_key = ?", model.PayoutActiveKey(source, sourceID)).
		First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &payout, nil
}

func (r *payoutRepositoryImpl) Get(ctx context.Context, payoutID string) (*model.VendorPayout, error) {
	var payout model.VendorPayout
	err := r.db.WithContext(ctx).
		Where("id = ?", payoutID).
		First(&payout).Error
	if err != nil {
		return nil, err
	}

	return &payout, nil
}

func (r *payoutRepositoryImpl) CountAttempts(ctx context.Context, source model.PayoutSource, sourceID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.VendorPayout{}).
		Where("source = ? AND source_id = ?", source, sourceID).
		Count(&count).Error

	return count, err
}

// CreateActive inserts payout holding the source's active key. The unique
// index on active_key makes this insert the step that locks in a transfer.
func (r *payoutRepositoryImpl) CreateActive(ctx context.Context, payout *model.VendorPayout) error {
	key := model.PayoutActiveKey(payout.Source, payout.SourceID)
	payout.ActiveKey = &key

	err := r.db.WithContext(ctx).Create(payout).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrPayoutExists
	}
	return err
}

func (r *payoutRepositoryImpl) MarkSent(ctx context.Context, payoutID, transferID string) error {
	return r.db.WithContext(ctx).
		Model(&model.VendorPayout{}).
		Where("id = ? AND status = ?", payoutID, model.PayoutStatusProcessing).
		Updates(map[string]interface{}{
			"transfer_id": transferID,
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *payoutRepositoryImpl) MarkSettledWithoutTransfer(ctx context.Context, payoutID string, status model.PayoutStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.VendorPayout{}).
		Where("id = ?", payoutID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

// MarkFailed releases the active key so a later attempt can insert a new row.
func (r *payoutRepositoryImpl) MarkFailed(ctx context.Context, payoutID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&model.VendorPayout{}).
		Where("id = ?", payoutID).
		Updates(map[string]interface{}{
			"status":         model.PayoutStatusFailed,
			"failure_reason": reason,
			"active_key":     nil,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *payoutRepositoryImpl) MarkVoided(ctx context.Context, payoutID string) error {
	return r.db.WithContext(ctx).
		Model(&model.VendorPayout{}).
		Where("id = ? AND status = ?", payoutID, model.PayoutStatusFailed).
		Updates(map[string]interface{}{
			"status":     model.PayoutStatusVoided,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ListRetryable returns failed payouts that are the latest attempt for their
// source and have fewer than maxAttempts attempts. A source whose latest
// attempt is failed has no active payout.
func (r *payoutRepositoryImpl) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*model.VendorPayout, error) {
	newer := r.db.Table("vendor_payouts AS p2").
		Select("1").
		Where("p2.source = vendor_payouts.source AND p2.source_id = vendor_payouts.source_id").
		Where("p2.attempt > vendor_payouts.attempt")

	var payouts []*model.VendorPayout
	err := r.db.WithContext(ctx).
		Where("status = ?", model.PayoutStatusFailed).
		Where("attempt < ?", maxAttempts).
		Where("NOT EXISTS (?)", newer).
		Order("updated_at").
		Limit(limit).
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}

	return payouts, nil
}

func (r *payoutRepositoryImpl) ListForSource(ctx context.Context, source model.PayoutSource, sourceID string) ([]*model.VendorPayout, error) {
	var payouts []*model.VendorPayout
	err := r.db.WithContext(ctx).
		Where("source = ? AND source_id = ?", source, sourceID).
		Order("attempt").
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}

	return payouts, nil
}
