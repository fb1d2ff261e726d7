package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"marketplace-handoff/internal/client"
	"marketplace-handoff/internal/config"
	"marketplace-handoff/internal/handoff"
	"marketplace-handoff/internal/lock"
	"marketplace-handoff/internal/model"
	"marketplace-handoff/internal/repository"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu        sync.Mutex
	transfers []client.TransferRequest
	failWith  error
	enabled   bool
}

func (g *fakeGateway) Transfer(_ context.Context, req client.TransferRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWith != nil {
		return "", g.failWith
	}
	g.transfers = append(g.transfers, req)
	return "tr_" + req.IdempotencyKey, nil
}

func (g *fakeGateway) PayoutsEnabled(context.Context, string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled, nil
}

func (g *fakeGateway) fail(err error) {
	g.mu.Lock()
	g.failWith = err
	g.mu.Unlock()
}

func (g *fakeGateway) sent() []client.TransferRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]client.TransferRequest(nil), g.transfers...)
}

var errDeclined = errors.New("destination account cannot receive transfers")

type harness struct {
	t   *testing.T
	ctx context.Context
	db  *gorm.DB
	now time.Time

	gateway *fakeGateway

	orders        repository.OrderRepository
	marketBoxes   repository.MarketBoxRepository
	vendorRepo    repository.VendorRepository
	payoutRepo    repository.PayoutRepository
	feeRepo       repository.FeeLedgerRepository
	notifications repository.NotificationRepository

	vendors     VendorService
	fees        FeeLedgerService
	payouts     PayoutService
	completion  CompletionCoordinator
	fulfillment FulfillmentService
	marketBox   MarketBoxService
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	devSkip bool
}

func withDevSkip() harnessOption {
	return func(c *harnessConfig) { c.devSkip = true }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	var cfg harnessConfig
	for _, opt := range opts {
		opt(&cfg)
	}

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

	verticals, err := config.ParseVerticals(strings.NewReader("verticals:\n  farmers_market:\n    vendor_fee_percent: \"6.5\"\n"), "10")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		t:       t,
		ctx:     context.Background(),
		db:      db,
		now:     time.Date(2026, 6, 6, 10, 0, 0, 0, time.UTC),
		gateway: &fakeGateway{enabled: true},

		orders:        repository.NewOrderRepository(db),
		marketBoxes:   repository.NewMarketBoxRepository(db),
		vendorRepo:    repository.NewVendorRepository(db),
		payoutRepo:    repository.NewPayoutRepository(db),
		feeRepo:       repository.NewFeeLedgerRepository(db),
		notifications: repository.NewNotificationRepository(db),
	}
	clock := func() time.Time { return h.now }

	notifier := NewNotificationService(h.notifications, nil, logger)
	vendors := NewVendorService(h.vendorRepo, h.gateway, cfg.devSkip, logger)
	vendors.(*vendorServiceImpl).now = clock
	h.vendors = vendors
	h.fees = NewFeeLedgerService(h.feeRepo)
	h.payouts = NewPayoutService(h.payoutRepo, h.orders, h.marketBoxes, h.vendors, h.fees, h.gateway,
		lock.NewLocalLocker(), notifier, "usd", cfg.devSkip, logger)
	h.completion = NewCompletionCoordinator(h.orders, h.marketBoxes, notifier, logger)

	fulfillment := NewFulfillmentService(h.orders, h.vendors, h.payouts, h.completion, notifier, handoff.DefaultWindow, logger)
	fulfillment.(*fulfillmentServiceImpl).now = clock
	h.fulfillment = fulfillment

	marketBox := NewMarketBoxService(h.marketBoxes, h.vendors, h.payouts, h.completion, notifier, verticals, handoff.DefaultWindow, logger)
	marketBox.(*marketBoxServiceImpl).now = clock
	h.marketBox = marketBox

	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *harness) vendor(userID string, enabled bool) *model.VendorProfile {
	h.t.Helper()
	checked := h.now
	v := &model.VendorProfile{
		ID:               uuid.NewString(),
		UserID:           userID,
		BusinessName:     "Green Acres",
		Vertical:         "farmers_market",
		StripeAccountID:  "acct_" + userID,
		PayoutsEnabled:   enabled,
		PayoutsCheckedAt: &checked,
	}
	require.NoError(h.t, h.vendorRepo.Create(h.ctx, v))
	return v
}

func (h *harness) order(buyerUserID string, tipCents, tipOnFeeCents int64, vendors ...*model.VendorProfile) (*model.Order, []*model.OrderItem) {
	h.t.Helper()
	order := &model.Order{
		ID:                    uuid.NewString(),
		BuyerUserID:           buyerUserID,
		Status:                model.OrderStatusPaid,
		TipAmountCents:        tipCents,
		TipOnPlatformFeeCents: tipOnFeeCents,
		Currency:              "usd",
	}
	items := make([]*model.OrderItem, 0, len(vendors))
	for i, v := range vendors {
		items = append(items, &model.OrderItem{
			ID:                uuid.NewString(),
			OrderID:           order.ID,
			VendorProfileID:   v.ID,
			ListingTitle:      "Heirloom tomatoes",
			Quantity:          1,
			VendorPayoutCents: 1000,
			Handoff:           model.Handoff{Status: handoff.StatusScheduled},
			CreatedAt:         h.now.Add(time.Duration(i) * time.Millisecond),
		})
	}
	require.NoError(h.t, h.orders.Create(h.ctx, order, items))
	return order, items
}

func (h *harness) subscription(buyerUserID string, vendor *model.VendorProfile, weeks int) (*model.MarketBoxSubscription, []*model.MarketBoxPickup) {
	h.t.Helper()
	sub := &model.MarketBoxSubscription{
		ID:               uuid.NewString(),
		BuyerUserID:      buyerUserID,
		VendorProfileID:  vendor.ID,
		OfferingName:     "Summer veggie box",
		PickupPriceCents: 2500,
		TotalPickups:     int32(weeks),
		Status:           model.SubscriptionStatusActive,
	}
	pickups := make([]*model.MarketBoxPickup, 0, weeks)
	for i := 0; i < weeks; i++ {
		pickups = append(pickups, &model.MarketBoxPickup{
			ID:             uuid.NewString(),
			SubscriptionID: sub.ID,
			WeekNumber:     int32(i + 1),
			ScheduledDate:  h.now.AddDate(0, 0, 7*i),
			Handoff:        model.Handoff{Status: handoff.StatusScheduled},
		})
	}
	require.NoError(h.t, h.marketBoxes.CreateSubscription(h.ctx, sub, pickups))
	return sub, pickups
}

func (h *harness) item(id string) *model.OrderItem {
	h.t.Helper()
	item, err := h.orders.FindItem(h.ctx, id)
	require.NoError(h.t, err)
	return item
}

func (h *harness) payoutsFor(source model.PayoutSource, id string) []*model.VendorPayout {
	h.t.Helper()
	rows, err := h.payoutRepo.ListForSource(h.ctx, source, id)
	require.NoError(h.t, err)
	return rows
}

func buyer(userID string) Actor {
	return Actor{UserID: userID}
}

func vendorActor(v *model.VendorProfile) Actor {
	return Actor{UserID: v.UserID, VendorProfileID: v.ID}
}
