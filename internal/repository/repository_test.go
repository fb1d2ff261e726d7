package repository

import (
	"context"
	"marketplace-handoff/internal/client"
	"marketplace-handoff/internal/config"
	"marketplace-handoff/internal/handoff"
	"marketplace-handoff/internal/model"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := client.OpenDatabase(config.Database{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, client.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedOrder(t *testing.T, repo OrderRepository, itemCount int) (*model.Order, []*model.OrderItem) {
	t.Helper()

	order := &model.Order{
		ID:          uuid.NewString(),
		BuyerUserID: "buyer-1",
		Status:      model.OrderStatusPaid,
		Currency:    "usd",
	}
	items := make([]*model.OrderItem, 0, itemCount)
	for i := 0; i < itemCount; i++ {
		items = append(items, &model.OrderItem{
			ID:                uuid.NewString(),
			OrderID:           order.ID,
			VendorProfileID:   "vendor-1",
			Quantity:          1,
			VendorPayoutCents: 1000,
			Handoff:           model.Handoff{Status: handoff.StatusScheduled},
		})
	}
	require.NoError(t, repo.Create(context.Background(), order, items))
	return order, items
}

func bothConfirmed(now time.Time) handoff.State {
	return handoff.State{
		Status:            handoff.StatusFulfilled,
		BuyerConfirmedAt:  &now,
		VendorConfirmedAt: &now,
		ReadyAt:           &now,
	}
}

func TestUpdateItemHandoffRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	_, items := seedOrder(t, repo, 1)

	first, err := repo.FindItem(ctx, items[0].ID)
	require.NoError(t, err)
	second, err := repo.FindItem(ctx, items[0].ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	expires := now.Add(30 * time.Second)
	next := first.State()
	next.Status = handoff.StatusReady
	next.BuyerConfirmedAt = &now
	next.WindowExpiresAt = &expires

	require.NoError(t, repo.UpdateItemHandoff(ctx, first, next))
	assert.Equal(t, int64(1), first.HandoffVersion)

	err = repo.UpdateItemHandoff(ctx, second, bothConfirmed(now))
	assert.ErrorIs(t, err, ErrStaleHandoff)

	stored, err := repo.FindItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, handoff.StatusReady, stored.Status)
	assert.Nil(t, stored.VendorConfirmedAt)
	assert.NotNil(t, stored.ConfirmationWindowExpiresAt)
}

func TestMarkCompletedIfAllConfirmed(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	order, items := seedOrder(t, repo, 2)
	now := time.Now().UTC()

	require.NoError(t, repo.UpdateItemHandoff(ctx, items[0], bothConfirmed(now)))

	done, err := repo.MarkCompletedIfAllConfirmed(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, done)

	cancelled := items[1].State()
	cancelled.Status = handoff.StatusCancelled
	require.NoError(t, repo.UpdateItemHandoff(ctx, items[1], cancelled))

	done, err = repo.MarkCompletedIfAllConfirmed(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, done)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	done, err = repo.MarkCompletedIfAllConfirmed(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestMarkCompletedIfAllConfirmedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	order, items := seedOrder(t, repo, 1)
	require.NoError(t, repo.UpdateItemHandoff(ctx, items[0], bothConfirmed(time.Now().UTC())))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done, err := repo.MarkCompletedIfAllConfirmed(ctx, order.ID)
			assert.NoError(t, err)
			if done {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestOrderWithOnlyCancelledItemsNeverCompletes(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	order, items := seedOrder(t, repo, 1)

	cancelled := items[0].State()
	cancelled.Status = handoff.StatusCancelled
	require.NoError(t, repo.UpdateItemHandoff(ctx, items[0], cancelled))

	done, err := repo.MarkCompletedIfAllConfirmed(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, done)

	count, err := repo.CountTipEligibleItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSubscriptionCompletesWhenEveryPickupTerminal(t *testing.T) {
	ctx := context.Background()
	repo := NewMarketBoxRepository(newTestDB(t))

	sub := &model.MarketBoxSubscription{
		ID:               uuid.NewString(),
		BuyerUserID:      "buyer-1",
		VendorProfileID:  "vendor-1",
		PickupPriceCents: 2500,
		TotalPickups:     2,
		Status:           model.SubscriptionStatusActive,
	}
	start := time.Now().UTC().Truncate(24 * time.Hour)
	pickups := []*model.MarketBoxPickup{
		{ID: uuid.NewString(), SubscriptionID: sub.ID, WeekNumber: 1, ScheduledDate: start, Handoff: model.Handoff{Status: handoff.StatusScheduled}},
		{ID: uuid.NewString(), SubscriptionID: sub.ID, WeekNumber: 2, ScheduledDate: start.AddDate(0, 0, 7), Handoff: model.Handoff{Status: handoff.StatusScheduled}},
	}
	require.NoError(t, repo.CreateSubscription(ctx, sub, pickups))

	now := time.Now().UTC()
	picked := bothConfirmed(now)
	picked.Status = handoff.StatusPickedUp
	require.NoError(t, repo.UpdatePickupHandoff(ctx, pickups[0], picked))

	done, err := repo.MarkSubscriptionCompletedIfDone(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, done)

	missed := pickups[1].State()
	missed.Status = handoff.StatusMissed
	missed.MissedAt = &now
	require.NoError(t, repo.UpdatePickupHandoff(ctx, pickups[1], missed))

	done, err = repo.MarkSubscriptionCompletedIfDone(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, done)

	stored, err := repo.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusCompleted, stored.Status)

	// rescheduling the missed pickup reopens the subscription
	to := now.AddDate(0, 0, 7)
	rescheduled := pickups[1].State()
	rescheduled.Status = handoff.StatusRescheduled
	rescheduled.RescheduledTo = &to
	require.NoError(t, repo.UpdatePickupHandoff(ctx, pickups[1], rescheduled))

	stored, err = repo.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionStatusActive, stored.Status)
	assert.Nil(t, stored.CompletedAt)
}

func TestRevertItemHandoffYieldsToActivePayout(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	orders := NewOrderRepository(db)
	payouts := NewPayoutRepository(db)
	_, items := seedOrder(t, orders, 1)

	item, err := orders.FindItem(ctx, items[0].ID)
	require.NoError(t, err)
	before := item.State()
	require.NoError(t, orders.UpdateItemHandoff(ctx, item, bothConfirmed(time.Now().UTC())))

	row := &model.VendorPayout{
		ID:              uuid.NewString(),
		Source:          model.PayoutSourceOrderItem,
		SourceID:        item.ID,
		VendorProfileID: "vendor-1",
		BaseCents:       1000,
		AmountCents:     1000,
		Currency:        "usd",
		Status:          model.PayoutStatusProcessing,
		Attempt:         2,
	}
	require.NoError(t, payouts.CreateActive(ctx, row))

	assert.ErrorIs(t, orders.RevertItemHandoff(ctx, item, before), ErrStaleHandoff)
	stored, err := orders.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, handoff.StatusFulfilled, stored.Status)

	require.NoError(t, payouts.MarkFailed(ctx, row.ID, "card_declined"))
	require.NoError(t, orders.RevertItemHandoff(ctx, item, before))

	stored, err = orders.FindItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, handoff.StatusScheduled, stored.Status)
	assert.Nil(t, stored.VendorConfirmedAt)
}

func TestPayoutActiveKeyIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewPayoutRepository(newTestDB(t))

	newPayout := func(attempt int32) *model.VendorPayout {
		return &model.VendorPayout{
			ID:              uuid.NewString(),
			Source:          model.PayoutSourceOrderItem,
			SourceID:        "item-1",
			VendorProfileID: "vendor-1",
			BaseCents:       1000,
			AmountCents:     1000,
			Currency:        "usd",
			Status:          model.PayoutStatusProcessing,
			Attempt:         attempt,
		}
	}

	first := newPayout(1)
	require.NoError(t, repo.CreateActive(ctx, first))
	assert.ErrorIs(t, repo.CreateActive(ctx, newPayout(2)), ErrPayoutExists)

	active, err := repo.FindActive(ctx, model.PayoutSourceOrderItem, "item-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)

	require.NoError(t, repo.MarkFailed(ctx, first.ID, "card_declined"))

	active, err = repo.FindActive(ctx, model.PayoutSourceOrderItem, "item-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	retryable, err := repo.ListRetryable(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, retryable, 1)
	assert.Equal(t, first.ID, retryable[0].ID)

	second := newPayout(2)
	require.NoError(t, repo.CreateActive(ctx, second))
	require.NoError(t, repo.MarkSent(ctx, second.ID, "tr_123"))

	retryable, err = repo.ListRetryable(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, retryable)

	attempts, err := repo.CountAttempts(ctx, model.PayoutSourceOrderItem, "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), attempts)

	stored, err := repo.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "tr_123", stored.TransferID)
	assert.Equal(t, model.PayoutStatusProcessing, stored.Status)
}

func TestFeeLedgerChargeAndCredit(t *testing.T) {
	ctx := context.Background()
	repo := NewFeeLedgerRepository(newTestDB(t))

	balance, err := repo.GetBalance(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	require.NoError(t, repo.RecordCharge(ctx, &model.VendorFeeEntry{VendorProfileID: "vendor-1", AmountCents: 200, Reason: "cash order fee"}))
	require.NoError(t, repo.RecordCharge(ctx, &model.VendorFeeEntry{VendorProfileID: "vendor-1", AmountCents: 100, Reason: "cash order fee"}))

	balance, err = repo.GetBalance(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	err = repo.RecordCredit(ctx, &model.VendorFeeEntry{VendorProfileID: "vendor-1", AmountCents: 400, Reason: "auto-deducted from payout"})
	assert.ErrorIs(t, err, ErrInsufficientFeeBalance)

	require.NoError(t, repo.RecordCredit(ctx, &model.VendorFeeEntry{VendorProfileID: "vendor-1", AmountCents: 300, Reason: "auto-deducted from payout"}))

	balance, err = repo.GetBalance(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	entries, err := repo.ListEntries(ctx, "vendor-1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestWebhookEventMarkProcessedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewWebhookEventRepository(newTestDB(t))

	first, err := repo.MarkProcessed(ctx, "evt_1", "account.updated")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := repo.MarkProcessed(ctx, "evt_1", "account.updated")
	require.NoError(t, err)
	assert.False(t, again)

	exists, err := repo.Exists(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, exists)
}
