package handoff

import "time"

// Action is a vendor-initiated pickup action.
type Action string

const (
	ActionReady      Action = "ready"
	ActionPickedUp   Action = "picked_up"
	ActionMissed     Action = "missed"
	ActionReschedule Action = "reschedule"
)

func ParseAction(v string) (Action, error) {
	switch a := Action(v); a {
	case ActionReady, ActionPickedUp, ActionMissed, ActionReschedule:
		return a, nil
	}
	return "", ErrUnknownAction
}

// Transition applies one of the vendor's unilateral actions (ready, missed,
// reschedule). ActionPickedUp is a confirmation and goes through Acknowledge.
func (m Machine) Transition(s State, a Action, now time.Time, rescheduleTo *time.Time) (State, error) {
	if s.Confirmed() {
		return State{}, ErrAlreadyConfirmed
	}

	next := s
	at := now
	switch a {
	case ActionReady:
		if s.Status != StatusScheduled && s.Status != StatusRescheduled {
			return State{}, ErrInvalidTransition
		}
		next.Status = StatusReady
		next.ReadyAt = &at

	case ActionMissed:
		if s.Status != StatusScheduled && s.Status != StatusReady {
			return State{}, ErrInvalidTransition
		}
		next.Status = StatusMissed
		next.MissedAt = &at
		// a missed handoff cannot be completed by a stale one-sided confirmation
		next.BuyerConfirmedAt = nil
		next.VendorConfirmedAt = nil
		next.WindowExpiresAt = nil

	case ActionReschedule:
		if s.Status != StatusMissed {
			return State{}, ErrInvalidTransition
		}
		if rescheduleTo == nil || rescheduleTo.IsZero() {
			return State{}, ErrRescheduleDateMissing
		}
		if !rescheduleTo.After(now) {
			return State{}, ErrRescheduleDateInPast
		}
		to := *rescheduleTo
		next.Status = StatusRescheduled
		next.RescheduledTo = &to

	case ActionPickedUp:
		return State{}, ErrInvalidTransition

	default:
		return State{}, ErrUnknownAction
	}
	return next, nil
}
