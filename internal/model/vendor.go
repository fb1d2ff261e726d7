package model

import "time"

type VendorProfile struct {
	ID               string `gorm:"primaryKey;size:36;not null"`
	UserID           string `gorm:"size:64;index;not null"`
	BusinessName     string `gorm:"size:255"`
	Vertical         string `gorm:"size:32;index;not null"` // fireworks, farmers_market, food_trucks
	StripeAccountID  string `gorm:"size:64;index"`          // connected account (or PayPal receiver)
	PayoutsEnabled   bool   `gorm:"not null;default:false"` // cached, refreshed from the processor
	PayoutsCheckedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
