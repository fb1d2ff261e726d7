package model

import (
	"time"

	"marketplace-handoff/internal/handoff"
)

// Handoff is embedded in every row that goes through the two-party
// confirmation protocol.
type Handoff struct {
	Status                      handoff.Status `gorm:"size:32;index;not null"`
	BuyerConfirmedAt            *time.Time
	VendorConfirmedAt           *time.Time
	ConfirmationWindowExpiresAt *time.Time
	ReadyAt                     *time.Time
	MissedAt                    *time.Time
	RescheduledTo               *time.Time
	HandoffVersion              int64 `gorm:"not null;default:0"` // bumped by every conditional update
}

func (h Handoff) State() handoff.State {
	return handoff.State{
		Status:            h.Status,
		BuyerConfirmedAt:  h.BuyerConfirmedAt,
		VendorConfirmedAt: h.VendorConfirmedAt,
		WindowExpiresAt:   h.ConfirmationWindowExpiresAt,
		ReadyAt:           h.ReadyAt,
		MissedAt:          h.MissedAt,
		RescheduledTo:     h.RescheduledTo,
	}
}

// Apply copies s into h after a successful conditional update.
func (h *Handoff) Apply(s handoff.State) {
	h.Status = s.Status
	h.BuyerConfirmedAt = s.BuyerConfirmedAt
	h.VendorConfirmedAt = s.VendorConfirmedAt
	h.ConfirmationWindowExpiresAt = s.WindowExpiresAt
	h.ReadyAt = s.ReadyAt
	h.MissedAt = s.MissedAt
	h.RescheduledTo = s.RescheduledTo
	h.HandoffVersion++
}

// HandoffColumns is the update set for persisting s.
func HandoffColumns(s handoff.State) map[string]interface{} {
	return map[string]interface{}{
		"status":                         s.Status,
		"buyer_confirmed_at":             s.BuyerConfirmedAt,
		"vendor_confirmed_at":            s.VendorConfirmedAt,
		"confirmation_window_expires_at": s.WindowExpiresAt,
		"ready_at":                       s.ReadyAt,
		"missed_at":                      s.MissedAt,
		"rescheduled_to":                 s.RescheduledTo,
	}
}
