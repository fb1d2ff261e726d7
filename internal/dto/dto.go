package dto

import "time"

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type OrderItem struct {
	ID                          string     `json:"id"`
	OrderID                     string     `json:"order_id"`
	VendorProfileID             string     `json:"vendor_profile_id"`
	ListingTitle                string     `json:"listing_title"`
	Quantity                    int32      `json:"quantity"`
	Status                      string     `json:"status"`
	VendorPayoutCents           int64      `json:"vendor_payout_cents"`
	BuyerConfirmedAt            *time.Time `json:"buyer_confirmed_at"`
	VendorConfirmedAt           *time.Time `json:"vendor_confirmed_at"`
	ConfirmationWindowExpiresAt *time.Time `json:"confirmation_window_expires_at"`
	ReadyAt                     *time.Time `json:"ready_at"`
}

type FulfillResponse struct {
	Success           bool       `json:"success"`
	Completed         bool       `json:"completed"`
	Message           string     `json:"message,omitempty"`
	VendorConfirmedAt *time.Time `json:"vendor_confirmed_at,omitempty"`
}

type ConfirmHandoffResponse struct {
	Success           bool       `json:"success"`
	Message           string     `json:"message"`
	PayoutFailed      bool       `json:"payoutFailed,omitempty"`
	VendorConfirmedAt *time.Time `json:"vendor_confirmed_at"`
}

type AcknowledgeResponse struct {
	Success                     bool       `json:"success"`
	Completed                   bool       `json:"completed"`
	WaitingForVendor            bool       `json:"waiting_for_vendor"`
	ConfirmationWindowExpiresAt *time.Time `json:"confirmation_window_expires_at"`
	Message                     string     `json:"message"`
	PayoutFailed                bool       `json:"payoutFailed,omitempty"`
}

type ItemResponse struct {
	Success bool       `json:"success"`
	Item    *OrderItem `json:"item"`
}

// PickupActionRequest is the vendor's PATCH body. RescheduledTo accepts
// RFC 3339 or a plain YYYY-MM-DD date.
type PickupActionRequest struct {
	Action        string  `json:"action"`
	VendorNotes   *string `json:"vendor_notes"`
	RescheduledTo string  `json:"rescheduled_to"`
}

type Pickup struct {
	ID                          string     `json:"id"`
	SubscriptionID              string     `json:"subscription_id"`
	WeekNumber                  int32      `json:"week_number"`
	ScheduledDate               time.Time  `json:"scheduled_date"`
	Status                      string     `json:"status"`
	VendorNotes                 string     `json:"vendor_notes"`
	BuyerConfirmedAt            *time.Time `json:"buyer_confirmed_at"`
	VendorConfirmedAt           *time.Time `json:"vendor_confirmed_at"`
	ConfirmationWindowExpiresAt *time.Time `json:"confirmation_window_expires_at"`
	ReadyAt                     *time.Time `json:"ready_at"`
	MissedAt                    *time.Time `json:"missed_at"`
	RescheduledTo               *time.Time `json:"rescheduled_to"`
}

type PickupResponse struct {
	Pickup                      *Pickup    `json:"pickup"`
	Completed                   bool       `json:"completed"`
	WaitingForBuyer             bool       `json:"waiting_for_buyer"`
	WaitingForVendor            bool       `json:"waiting_for_vendor"`
	ConfirmationWindowExpiresAt *time.Time `json:"confirmation_window_expires_at"`
	Message                     string     `json:"message"`
	PayoutFailed                bool       `json:"payoutFailed,omitempty"`
}

type PayoutStatusResponse struct {
	VendorProfileID  string     `json:"vendor_profile_id"`
	PayoutsEnabled   bool       `json:"payouts_enabled"`
	PayoutsCheckedAt *time.Time `json:"payouts_checked_at"`
}

type FeeEntry struct {
	Kind           string    `json:"kind"`
	AmountCents    int64     `json:"amount_cents"`
	Reason         string    `json:"reason"`
	RelatedOrderID *string   `json:"related_order_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type FeeBalanceResponse struct {
	VendorProfileID string      `json:"vendor_profile_id"`
	BalanceCents    int64       `json:"balance_cents"`
	Balance         string      `json:"balance"`
	RecentEntries   []*FeeEntry `json:"recent_entries"`
}

type Notification struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Data      string     `json:"data,omitempty"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

type NotificationsResponse struct {
	Notifications []*Notification `json:"notifications"`
}
