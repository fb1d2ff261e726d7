package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCompleted SubscriptionStatus = "completed"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// MarketBoxSubscription is a prepaid multi-week pickup plan. Each pickup is
// paid out on its own; the flat fee was taken once at purchase.
type MarketBoxSubscription struct {
	ID               string             `gorm:"primaryKey;size:36;not null"`
	BuyerUserID      string             `gorm:"size:64;index;not null"`
	VendorProfileID  string             `gorm:"size:36;index;not null"`
	OfferingName     string             `gorm:"size:255"`
	PickupPriceCents int64              `gorm:"not null"`
	TotalPickups     int32              `gorm:"not null"`
	Status           SubscriptionStatus `gorm:"size:32;index;not null"`
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type MarketBoxPickup struct {
	ID             string    `gorm:"primaryKey;size:36;not null"`
	SubscriptionID string    `gorm:"size:36;index;not null"` // FK → market_box_subscriptions.id
	WeekNumber     int32     `gorm:"not null"`
	ScheduledDate  time.Time `gorm:"not null"`
	VendorNotes    string    `gorm:"size:1000"`

	Handoff `gorm:"embedded"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
