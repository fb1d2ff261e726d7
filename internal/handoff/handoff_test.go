package handoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 7, 4, 18, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestAcknowledgeFirstPartyOpensWindow(t *testing.T) {
	t.Parallel()

	m := NewMachine(DefaultWindow, StatusPickedUp)

	res, err := m.Acknowledge(State{Status: StatusScheduled}, Buyer, t0)
	require.NoError(t, err)

	assert.Equal(t, OutcomeWaiting, res.Outcome)
	assert.Equal(t, StatusReady, res.State.Status)
	require.NotNil(t, res.State.BuyerConfirmedAt)
	assert.Equal(t, t0, *res.State.BuyerConfirmedAt)
	assert.Nil(t, res.State.VendorConfirmedAt)
	require.NotNil(t, res.State.WindowExpiresAt)
	assert.Equal(t, t0.Add(30*time.Second), *res.State.WindowExpiresAt)
	require.NotNil(t, res.State.ReadyAt)
	assert.Equal(t, Vendor, res.State.WaitingFor(t0))
}

func TestAcknowledgeKeepsExistingReadyAt(t *testing.T) {
	t.Parallel()

	m := NewMachine(DefaultWindow, StatusPickedUp)
	readyAt := t0.Add(-time.Hour)

	res, err := m.Acknowledge(State{Status: StatusReady, ReadyAt: &readyAt}, Vendor, t0)
	require.NoError(t, err)
	assert.Equal(t, readyAt, *res.State.ReadyAt)
	assert.Equal(t, Buyer, res.State.WaitingFor(t0))
}

func TestAcknowledgeWindowSymmetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		first   Party
		delay   time.Duration
		wantErr error
		want    Outcome
	}{
		{name: "buyer_first_29s", first: Buyer, delay: 29 * time.Second, want: OutcomeCompleted},
		{name: "vendor_first_29s", first: Vendor, delay: 29 * time.Second, want: OutcomeCompleted},
		{name: "buyer_first_exact_deadline", first: Buyer, delay: 30 * time.Second, want: OutcomeCompleted},
		{name: "buyer_first_31s", first: Buyer, delay: 31 * time.Second, want: OutcomeExpired, wantErr: ErrWindowExpired},
		{name: "vendor_first_31s", first: Vendor, delay: 31 * time.Second, want: OutcomeExpired, wantErr: ErrWindowExpired},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := NewMachine(DefaultWindow, StatusPickedUp)
			first, err := m.Acknowledge(State{Status: StatusReady}, tt.first, t0)
			require.NoError(t, err)

			second, err := m.Acknowledge(first.State, tt.first.Other(), t0.Add(tt.delay))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.want, second.Outcome)

			switch tt.want {
			case OutcomeCompleted:
				assert.Equal(t, StatusPickedUp, second.State.Status)
				assert.True(t, second.State.Confirmed())
				assert.Nil(t, second.State.WindowExpiresAt)
				assert.Equal(t, t0.Add(tt.delay), *second.State.ConfirmedAt(tt.first.Other()))
			case OutcomeExpired:
				assert.Nil(t, second.State.ConfirmedAt(tt.first))
				assert.Nil(t, second.State.ConfirmedAt(tt.first.Other()))
				assert.Nil(t, second.State.WindowExpiresAt)
				assert.Equal(t, StatusReady, second.State.Status)
			}
		})
	}
}

func TestAcknowledgeTwiceInsideOwnWindowIsRejected(t *testing.T) {
	t.Parallel()

	m := NewMachine(DefaultWindow, StatusPickedUp)
	first, err := m.Acknowledge(State{Status: StatusReady}, Buyer, t0)
	require.NoError(t, err)

	_, err = m.Acknowledge(first.State, Buyer, t0.Add(10*time.Second))
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
}

func TestAcknowledgeAfterOwnWindowLapsedStartsFresh(t *testing.T) {
	t.Parallel()

	m := NewMachine(DefaultWindow, StatusPickedUp)
	first, err := m.Acknowledge(State{Status: StatusReady}, Buyer, t0)
	require.NoError(t, err)

	later := t0.Add(2 * time.Minute)
	again, err := m.Acknowledge(first.State, Buyer, later)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWaiting, again.Outcome)
	assert.Equal(t, later, *again.State.BuyerConfirmedAt)
	assert.Equal(t, later.Add(DefaultWindow), *again.State.WindowExpiresAt)
}

func TestAcknowledgeRejectsTerminalAndMissed(t *testing.T) {
	t.Parallel()

	m := NewMachine(DefaultWindow, StatusPickedUp)
	done := State{Status: StatusPickedUp, BuyerConfirmedAt: ptr(t0), VendorConfirmedAt: ptr(t0)}

	_, err := m.Acknowledge(done, Buyer, t0)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
	_, err = m.Acknowledge(done, Vendor, t0)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)

	_, err = m.Acknowledge(State{Status: StatusMissed}, Buyer, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = m.Acknowledge(State{Status: StatusCancelled}, Vendor, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAcknowledgeFromRescheduledPromotesToReady(t *testing.T) {
	t.Parallel()

	m := NewMachine(DefaultWindow, StatusPickedUp)
	res, err := m.Acknowledge(State{Status: StatusRescheduled, RescheduledTo: ptr(t0)}, Vendor, t0)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, res.State.Status)
}

func TestFulfillBeforeBuyerAcknowledges(t *testing.T) {
	t.Parallel()

	m := NewMachine(DefaultWindow, StatusFulfilled)

	res, err := m.Fulfill(State{Status: StatusScheduled}, t0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAwaitingBuyer, res.Outcome)
	assert.Equal(t, StatusFulfilled, res.State.Status)
	assert.Nil(t, res.State.VendorConfirmedAt)
	assert.Nil(t, res.State.BuyerConfirmedAt)

	// a second fulfill while the buyer still has not acted is a stale retry
	_, err = m.Fulfill(res.State, t0.Add(time.Second))
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)

	// buyer acknowledges later, vendor confirms the handoff
	ack, err := m.Acknowledge(res.State, Buyer, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeWaiting, ack.Outcome)
	assert.Equal(t, StatusFulfilled, ack.State.Status)

	done, err := m.ConfirmHandoff(ack.State, t0.Add(time.Hour+5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, done.Outcome)
	assert.True(t, done.State.Confirmed())
}

func TestFulfillAfterBuyerAcknowledged(t *testing.T) {
	t.Parallel()

	m := NewMachine(DefaultWindow, StatusFulfilled)
	ack, err := m.Acknowledge(State{Status: StatusReady}, Buyer, t0)
	require.NoError(t, err)

	done, err := m.Fulfill(ack.State, t0.Add(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, done.Outcome)
	assert.Equal(t, StatusFulfilled, done.State.Status)

	expired, err := m.Fulfill(ack.State, t0.Add(40*time.Second))
	assert.ErrorIs(t, err, ErrWindowExpired)
	assert.Nil(t, expired.State.BuyerConfirmedAt)
}

func TestConfirmHandoffRequiresBuyer(t *testing.T) {
	t.Parallel()

	m := NewMachine(DefaultWindow, StatusFulfilled)
	_, err := m.ConfirmHandoff(State{Status: StatusReady}, t0)
	assert.ErrorIs(t, err, ErrBuyerNotAcknowledged)
}

func TestTransition(t *testing.T) {
	t.Parallel()

	future := t0.Add(7 * 24 * time.Hour)
	past := t0.Add(-time.Hour)

	tests := []struct {
		name       string
		from       State
		action     Action
		to         *time.Time
		wantStatus Status
		wantErr    error
	}{
		{name: "ready_from_scheduled", from: State{Status: StatusScheduled}, action: ActionReady, wantStatus: StatusReady},
		{name: "ready_from_rescheduled", from: State{Status: StatusRescheduled}, action: ActionReady, wantStatus: StatusReady},
		{name: "ready_from_ready", from: State{Status: StatusReady}, action: ActionReady, wantErr: ErrInvalidTransition},
		{name: "missed_from_scheduled", from: State{Status: StatusScheduled}, action: ActionMissed, wantStatus: StatusMissed},
		{name: "missed_from_ready", from: State{Status: StatusReady}, action: ActionMissed, wantStatus: StatusMissed},
		{name: "missed_from_missed", from: State{Status: StatusMissed}, action: ActionMissed, wantErr: ErrInvalidTransition},
		{name: "reschedule_from_missed", from: State{Status: StatusMissed}, action: ActionReschedule, to: &future, wantStatus: StatusRescheduled},
		{name: "reschedule_without_date", from: State{Status: StatusMissed}, action: ActionReschedule, wantErr: ErrRescheduleDateMissing},
		{name: "reschedule_in_past", from: State{Status: StatusMissed}, action: ActionReschedule, to: &past, wantErr: ErrRescheduleDateInPast},
		{name: "reschedule_from_ready", from: State{Status: StatusReady}, action: ActionReschedule, to: &future, wantErr: ErrInvalidTransition},
		{name: "picked_up_is_not_a_transition", from: State{Status: StatusReady}, action: ActionPickedUp, wantErr: ErrInvalidTransition},
		{name: "unknown", from: State{Status: StatusReady}, action: Action("teleport"), wantErr: ErrUnknownAction},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := NewMachine(DefaultWindow, StatusPickedUp)
			got, err := m.Transition(tt.from, tt.action, t0, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

func TestMissedClearsPendingConfirmation(t *testing.T) {
	t.Parallel()

	m := NewMachine(DefaultWindow, StatusPickedUp)
	ack, err := m.Acknowledge(State{Status: StatusReady}, Vendor, t0)
	require.NoError(t, err)

	missed, err := m.Transition(ack.State, ActionMissed, t0.Add(time.Minute), nil)
	require.NoError(t, err)
	assert.Nil(t, missed.VendorConfirmedAt)
	assert.Nil(t, missed.WindowExpiresAt)
	require.NotNil(t, missed.MissedAt)
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	a, err := ParseAction("reschedule")
	require.NoError(t, err)
	assert.Equal(t, ActionReschedule, a)

	_, err = ParseAction("cancel")
	assert.ErrorIs(t, err, ErrUnknownAction)
}
