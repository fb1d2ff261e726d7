package model

import "time"

type FeeEntryKind string

const (
	FeeEntryCharge FeeEntryKind = "charge" // raises the outstanding balance
	FeeEntryCredit FeeEntryKind = "credit" // withheld from a payout
)

type VendorFeeBalance struct {
	VendorProfileID string `gorm:"primaryKey;size:36;not null"`
	BalanceCents    int64  `gorm:"not null;default:0"`
	UpdatedAt       time.Time
}

type VendorFeeEntry struct {
	ID              string       `gorm:"primaryKey;size:36;not null"`
	VendorProfileID string       `gorm:"size:36;index;not null"`
	Kind            FeeEntryKind `gorm:"size:16;not null"`
	AmountCents     int64        `gorm:"not null"`
	Reason          string       `gorm:"size:255;not null"`
	RelatedOrderID  *string      `gorm:"size:36;index"`
	PayoutID        *string      `gorm:"size:36;index"`
	CreatedAt       time.Time
}
