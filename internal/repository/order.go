package repository

import (
	"context"
	"marketplace-handoff/internal/handoff"
	"marketplace-handoff/internal/model"
	"time"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order, items []*model.OrderItem) error
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	FindItem(ctx context.Context, itemID string) (*model.OrderItem, error)
	GetOrderItems(ctx context.Context, orderID string) ([]*model.OrderItem, error)
	CountTipEligibleItems(ctx context.Context, orderID string) (int64, error)
	UpdateItemHandoff(ctx context.Context, item *model.OrderItem, next handoff.State) error
	RevertItemHandoff(ctx context.Context, item *model.OrderItem, prev handoff.State) error
	MarkCompletedIfAllConfirmed(ctx context.Context, orderID string) (bool, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, order *model.Order, items []*model.OrderItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

func (r *orderRepoImpl) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindItem(ctx context.Context, itemID string) (*model.OrderItem, error) {
	var item model.OrderItem
	err := r.db.WithContext(ctx).
		Where("id = ?", itemID).
		First(&item).Error

	if err != nil {
		return nil, err
	}

	return &item, nil
}

func (r *orderRepoImpl) GetOrderItems(ctx context.Context, orderID string) ([]*model.OrderItem, error) {
	var items []*model.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at, id").
		Find(&items).Error

	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *orderRepoImpl) CountTipEligibleItems(ctx context.Context, orderID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.OrderItem{}).
		Where("order_id = ?", orderID).
		Where("status <> ?", handoff.StatusCancelled).
		Count(&count).Error

	return count, err
}

func (r *orderRepoImpl) UpdateItemHandoff(ctx context.Context, item *model.OrderItem, next handoff.State) error {
	if err := updateHandoff(ctx, r.db, &model.OrderItem{}, item.ID, item.HandoffVersion, next); err != nil {
		return err
	}
	item.Apply(next)
	return nil
}

// RevertItemHandoff rolls a confirmed item back to prev unless a payout for it
// is active. A payout reserved in between wins and the item stays confirmed;
// that case reports ErrStaleHandoff.
func (r *orderRepoImpl) RevertItemHandoff(ctx context.Context, item *model.OrderItem, prev handoff.State) error {
	active := r.db.Model(&model.VendorPayout{}).
		Select("1").
		Where("active_key = ?", model.PayoutActiveKey(model.PayoutSourceOrderItem, item.ID))

	guarded := r.db.Where("NOT EXISTS (?)", active)
	if err := updateHandoff(ctx, guarded, &model.OrderItem{}, item.ID, item.HandoffVersion, prev); err != nil {
		return err
	}
	item.Apply(prev)
	return nil
}

// MarkCompletedIfAllConfirmed moves a paid order to completed in one
// conditional statement when no live item is still missing a confirmation.
// Only the caller whose update matched reports true.
func (r *orderRepoImpl) MarkCompletedIfAllConfirmed(ctx context.Context, orderID string) (bool, error) {
	now := time.Now().UTC()

	pending := r.db.Model(&model.OrderItem{}).
		Select("1").
		Where("order_items.order_id = orders.id").
		Where("order_items.status <> ?", handoff.StatusCancelled).
		Where("(order_items.buyer_confirmed_at IS NULL OR order_items.vendor_confirmed_at IS NULL)")

	live := r.db.Model(&model.OrderItem{}).
		Select("1").
		Where("order_items.order_id = orders.id").
		Where("order_items.status <> ?", handoff.StatusCancelled)

	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, model.OrderStatusPaid).
		Where("EXISTS (?)", live).
		Where("NOT EXISTS (?)", pending).
		Updates(map[string]interface{}{
			"status":       model.OrderStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
