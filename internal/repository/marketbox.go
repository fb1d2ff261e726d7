package repository

import (
	"context"
	"marketplace-handoff/internal/handoff"
	"marketplace-handoff/internal/model"
	"time"

	"gorm.io/gorm"
)

type MarketBoxRepository interface {
	CreateSubscription(ctx context.Context, sub *model.MarketBoxSubscription, pickups []*model.MarketBoxPickup) error
	GetSubscription(ctx context.Context, subscriptionID string) (*model.MarketBoxSubscription, error)
	FindPickup(ctx context.Context, pickupID string) (*model.MarketBoxPickup, error)
	UpdatePickupHandoff(ctx context.Context, pickup *model.MarketBoxPickup, next handoff.State) error
	UpdateVendorNotes(ctx context.Context, pickupID, notes string) error
	MarkSubscriptionCompletedIfDone(ctx context.Context, subscriptionID string) (bool, error)
}

type marketBoxRepoImpl struct {
	db *gorm.DB
}

func NewMarketBoxRepository(db *gorm.DB) MarketBoxRepository {
	return &marketBoxRepoImpl{
		db: db,
	}
}

func (r *marketBoxRepoImpl) CreateSubscription(ctx context.Context, sub *model.MarketBoxSubscription, pickups []*model.MarketBoxPickup) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		if len(pickups) == 0 {
			return nil
		}
		return tx.Create(&pickups).Error
	})
}

func (r *marketBoxRepoImpl) GetSubscription(ctx context.Context, subscriptionID string) (*model.MarketBoxSubscription, error) {
	var sub model.MarketBoxSubscription
	err := r.db.WithContext(ctx).
		Where("id = ?", subscriptionID).
		First(&sub).
		Error

	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *marketBoxRepoImpl) FindPickup(ctx context.Context, pickupID string) (*model.MarketBoxPickup, error) {
	var pickup model.MarketBoxPickup
	err := r.db.WithContext(ctx).
		Where("id = ?", pickupID).
		First(&pickup).
		Error

	if err != nil {
		return nil, err
	}

	return &pickup, nil
}

// UpdatePickupHandoff writes next with the version check. A missed pickup
// that becomes open again reopens its subscription in the same transaction,
// so a completed subscription never has an open pickup.
func (r *marketBoxRepoImpl) UpdatePickupHandoff(ctx context.Context, pickup *model.MarketBoxPickup, next handoff.State) error {
	reopens := pickup.Status == handoff.StatusMissed && next.Status != handoff.StatusMissed

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateHandoff(ctx, tx, &model.MarketBoxPickup{}, pickup.ID, pickup.HandoffVersion, next); err != nil {
			return err
		}
		if !reopens {
			return nil
		}
		return tx.Model(&model.MarketBoxSubscription{}).
			Where("id = ? AND status = ?", pickup.SubscriptionID, model.SubscriptionStatusCompleted).
			Updates(map[string]interface{}{
				"status":       model.SubscriptionStatusActive,
				"completed_at": nil,
				"updated_at":   time.Now().UTC(),
			}).
			Error
	})
	if err != nil {
		return err
	}

	pickup.Apply(next)
	return nil
}

func (r *marketBoxRepoImpl) UpdateVendorNotes(ctx context.Context, pickupID, notes string) error {
	return r.db.WithContext(ctx).
		Model(&model.MarketBoxPickup{}).
		Where("id = ?", pickupID).
		Update("vendor_notes", notes).
		Error
}

// MarkSubscriptionCompletedIfDone completes an active subscription once every
// pickup is picked up or missed. Only the caller whose update matched reports
// true.
func (r *marketBoxRepoImpl) MarkSubscriptionCompletedIfDone(ctx context.Context, subscriptionID string) (bool, error) {
	now := time.Now().UTC()

	open := r.db.Model(&model.MarketBoxPickup{}).
		Select("1").
		Where("market_box_pickups.subscription_id = market_box_subscriptions.id").
		Where("market_box_pickups.status NOT IN ?", []handoff.Status{handoff.StatusPickedUp, handoff.StatusMissed})

	result := r.db.WithContext(ctx).
		Model(&model.MarketBoxSubscription{}).
		Where("id = ? AND status = ?", subscriptionID, model.SubscriptionStatusActive).
		Where("NOT EXISTS (?)", open).
		Updates(map[string]interface{}{
			"status":       model.SubscriptionStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
