// Package handoff implements the two-party confirmation protocol used for
// order items and market-box pickups.
//
// The functions here are pure: they take the stored state of a record, the
// acting party and the current time, and return the next state. Persisting the
// result with a conditional update is the caller's job.
package handoff

import (
	"errors"
	"time"
)

// DefaultWindow is how long the second party has to confirm after the first.
const DefaultWindow = 30 * time.Second

type Party string

const (
	Buyer  Party = "buyer"
	Vendor Party = "vendor"
)

func (p Party) Other() Party {
	if p == Buyer {
		return Vendor
	}
	return Buyer
}

func (p Party) Valid() bool {
	return p == Buyer || p == Vendor
}

type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusReady       Status = "ready"
	StatusFulfilled   Status = "fulfilled"
	StatusPickedUp    Status = "picked_up"
	StatusMissed      Status = "missed"
	StatusRescheduled Status = "rescheduled"
	StatusCancelled   Status = "cancelled"
)

var (
	ErrAlreadyConfirmed      = errors.New("already confirmed")
	ErrWindowExpired         = errors.New("confirmation window expired")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrBuyerNotAcknowledged  = errors.New("buyer has not acknowledged receipt")
	ErrRescheduleDateMissing = errors.New("reschedule requires a target date")
	ErrRescheduleDateInPast  = errors.New("reschedule date must be in the future")
	ErrUnknownAction         = errors.New("unknown action")
)

// State is the handoff-relevant slice of an order item or pickup row.
type State struct {
	Status            Status
	BuyerConfirmedAt  *time.Time
	VendorConfirmedAt *time.Time
	WindowExpiresAt   *time.Time
	ReadyAt           *time.Time
	MissedAt          *time.Time
	RescheduledTo     *time.Time
}

func (s State) ConfirmedAt(p Party) *time.Time {
	if p == Buyer {
		return s.BuyerConfirmedAt
	}
	return s.VendorConfirmedAt
}

func (s *State) setConfirmedAt(p Party, t *time.Time) {
	if p == Buyer {
		s.BuyerConfirmedAt = t
		return
	}
	s.VendorConfirmedAt = t
}

// Confirmed reports whether both parties have confirmed.
func (s State) Confirmed() bool {
	return s.BuyerConfirmedAt != nil && s.VendorConfirmedAt != nil
}

// WindowOpen reports whether a stored one-sided confirmation can still be
// matched by the other party at now.
func (s State) WindowOpen(now time.Time) bool {
	return s.WindowExpiresAt != nil && !now.After(*s.WindowExpiresAt)
}

// WaitingFor returns the party whose confirmation is still outstanding, or ""
// when nobody has confirmed inside an open window.
func (s State) WaitingFor(now time.Time) Party {
	if s.Confirmed() || !s.WindowOpen(now) {
		return ""
	}
	switch {
	case s.BuyerConfirmedAt != nil:
		return Vendor
	case s.VendorConfirmedAt != nil:
		return Buyer
	}
	return ""
}

type Outcome int

const (
	// OutcomeWaiting: this party confirmed first and owns the window.
	OutcomeWaiting Outcome = iota + 1
	// OutcomeCompleted: both parties confirmed within the window.
	OutcomeCompleted
	// OutcomeExpired: the other party's confirmation was stale and has been
	// discarded. Returned together with ErrWindowExpired.
	OutcomeExpired
	// OutcomeAwaitingBuyer: the vendor marked an order item fulfilled before
	// the buyer acknowledged. No confirmation timestamp is written.
	OutcomeAwaitingBuyer
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWaiting:
		return "waiting"
	case OutcomeCompleted:
		return "completed"
	case OutcomeExpired:
		return "expired"
	case OutcomeAwaitingBuyer:
		return "awaiting_buyer"
	}
	return "unknown"
}

type Result struct {
	Outcome Outcome
	State   State
}

// Machine holds the per-record-kind parameters of the protocol.
type Machine struct {
	Window time.Duration
	// Terminal is the status written when both parties confirm:
	// StatusFulfilled for order items, StatusPickedUp for pickups.
	Terminal Status
}

func NewMachine(window time.Duration, terminal Status) Machine {
	if window <= 0 {
		window = DefaultWindow
	}
	return Machine{Window: window, Terminal: terminal}
}

func (m Machine) acknowledgeable(s State) bool {
	switch s.Status {
	case StatusScheduled, StatusReady, StatusRescheduled:
		return true
	case m.Terminal:
		// An order item the vendor fulfilled ahead of the buyer.
		return !s.Confirmed()
	}
	return false
}

// Acknowledge records party p's confirmation at now.
//
// A second acknowledgement by the same party inside its own open window is
// rejected with ErrAlreadyConfirmed and leaves the window untouched. A party
// whose own window lapsed without a match confirms afresh.
func (m Machine) Acknowledge(s State, p Party, now time.Time) (Result, error) {
	if s.Confirmed() {
		return Result{}, ErrAlreadyConfirmed
	}
	if !m.acknowledgeable(s) {
		return Result{}, ErrInvalidTransition
	}

	next := s
	if other := s.ConfirmedAt(p.Other()); other != nil {
		if !s.WindowOpen(now) {
			next.setConfirmedAt(p.Other(), nil)
			next.WindowExpiresAt = nil
			return Result{Outcome: OutcomeExpired, State: next}, ErrWindowExpired
		}
		return Result{Outcome: OutcomeCompleted, State: m.complete(next, p, now)}, nil
	}

	if s.ConfirmedAt(p) != nil && s.WindowOpen(now) {
		return Result{}, ErrAlreadyConfirmed
	}

	at := now
	expires := now.Add(m.Window)
	next.setConfirmedAt(p, &at)
	next.WindowExpiresAt = &expires
	if next.Status == StatusScheduled || next.Status == StatusRescheduled {
		next.Status = StatusReady
	}
	if next.ReadyAt == nil {
		next.ReadyAt = &at
	}
	return Result{Outcome: OutcomeWaiting, State: next}, nil
}

// ConfirmHandoff is the vendor's confirmation of an order item the buyer has
// already acknowledged.
func (m Machine) ConfirmHandoff(s State, now time.Time) (Result, error) {
	if s.Confirmed() {
		return Result{}, ErrAlreadyConfirmed
	}
	if s.BuyerConfirmedAt == nil {
		return Result{}, ErrBuyerNotAcknowledged
	}
	return m.Acknowledge(s, Vendor, now)
}

// Fulfill is the vendor's fulfill action on an order item. When the buyer has
// acknowledged, it completes the handoff like ConfirmHandoff. Otherwise the
// item is marked with the terminal status and left for the buyer to
// acknowledge.
func (m Machine) Fulfill(s State, now time.Time) (Result, error) {
	if s.Confirmed() {
		return Result{}, ErrAlreadyConfirmed
	}
	if !m.acknowledgeable(s) {
		return Result{}, ErrInvalidTransition
	}
	if s.BuyerConfirmedAt != nil {
		return m.Acknowledge(s, Vendor, now)
	}
	if s.Status == m.Terminal {
		return Result{}, ErrAlreadyConfirmed
	}

	next := s
	next.Status = m.Terminal
	next.VendorConfirmedAt = nil
	next.WindowExpiresAt = nil
	if next.ReadyAt == nil {
		at := now
		next.ReadyAt = &at
	}
	return Result{Outcome: OutcomeAwaitingBuyer, State: next}, nil
}

func (m Machine) complete(s State, p Party, now time.Time) State {
	at := now
	s.setConfirmedAt(p, &at)
	s.WindowExpiresAt = nil
	s.Status = m.Terminal
	if s.ReadyAt == nil {
		s.ReadyAt = &at
	}
	return s
}
