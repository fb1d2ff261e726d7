package model

import "time"

type PayoutStatus string

const (
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusSkippedDev PayoutStatus = "skipped_dev"
	PayoutStatusFeeOffset  PayoutStatus = "fee_offset" // whole payout withheld against fees, nothing transferred
	PayoutStatusVoided     PayoutStatus = "voided"     // failed attempt whose handoff was rolled back, never retried
)

type PayoutSource string

const (
	PayoutSourceOrderItem PayoutSource = "order_item"
	PayoutSourcePickup    PayoutSource = "pickup"
)

// VendorPayout is append-only: a failed attempt is retried by inserting a new
// row. ActiveKey is set while the row is not failed and carries a unique
// index, so at most one non-failed payout exists per source.
type VendorPayout struct {
	ID              string       `gorm:"primaryKey;size:36;not null"`
	Source          PayoutSource `gorm:"size:16;index:idx_payout_source;not null"`
	SourceID        string       `gorm:"size:36;index:idx_payout_source;not null"` // order item or pickup id
	OrderID         *string      `gorm:"size:36;index"`
	SubscriptionID  *string      `gorm:"size:36;index"`
	VendorProfileID string       `gorm:"size:36;index;not null"`
	ActiveKey       *string      `gorm:"size:64;uniqueIndex"`

	BaseCents         int64  `gorm:"not null"`
	FeeDeductionCents int64  `gorm:"not null;default:0"`
	TipCents          int64  `gorm:"not null;default:0"`
	AmountCents       int64  `gorm:"not null"` // transferred amount
	Currency          string `gorm:"size:8;not null"`

	Status        PayoutStatus `gorm:"size:32;index;not null"`
	TransferID    string       `gorm:"size:128"`
	FailureReason string       `gorm:"size:1000"`
	Attempt       int32        `gorm:"not null;default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func PayoutActiveKey(source PayoutSource, sourceID string) string {
	return string(source) + ":" + sourceID
}
