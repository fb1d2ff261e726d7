package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID                    string      `gorm:"primaryKey;size:36;not null"`
	BuyerUserID           string      `gorm:"size:64;index;not null"`
	Status                OrderStatus `gorm:"size:32;index;not null"` // pending, paid, completed, cancelled
	TipAmountCents        int64       `gorm:"not null;default:0"`
	TipOnPlatformFeeCents int64       `gorm:"not null;default:0"` // part of the tip attributable to the platform fee
	Currency              string      `gorm:"size:8;not null"`
	CompletedAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type OrderItem struct {
	ID                string `gorm:"primaryKey;size:36;not null"`
	OrderID           string `gorm:"size:36;index;not null"` // FK → orders.id
	VendorProfileID   string `gorm:"size:36;index;not null"` // FK → vendor_profiles.id
	ListingTitle      string `gorm:"size:255"`
	Quantity          int32  `gorm:"not null;default:1"`
	VendorPayoutCents int64  `gorm:"not null"` // base payout before fee deduction and tip

	Handoff `gorm:"embedded"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
