// Package app wires repositories, clients and services from config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"marketplace-handoff/internal/client"
	"marketplace-handoff/internal/config"
	"marketplace-handoff/internal/handoff"
	"marketplace-handoff/internal/lock"
	"marketplace-handoff/internal/repository"
	"marketplace-handoff/internal/service"
	"os"
	"strings"

	"gorm.io/gorm"
)

// App holds the wired services. Close releases external connections.
type App struct {
	DB *gorm.DB

	Fulfillment  service.FulfillmentService
	MarketBox    service.MarketBoxService
	Vendors      service.VendorService
	FeeLedger    service.FeeLedgerService
	Payouts      service.PayoutService
	Notification service.NotificationService
	Webhook      service.WebhookService

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}

	db, err := client.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	gateway, devSkip, err := newGateway(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if devSkip {
		logger.Warn("payout provider is none, payouts are recorded without transfers")
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		rdb, err := client.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		locker = lock.NewRedisLocker(rdb, cfg.Payout.LockTTL)
	}

	var publisher client.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = client.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, publisher.Close)
	}

	verticals, err := config.LoadVerticals(cfg.Payout.VerticalsFile, cfg.Payout.DefaultFeePercent)
	if err != nil {
		a.Close()
		return nil, err
	}

	window := cfg.Payout.ConfirmationWindow
	if window <= 0 {
		window = handoff.DefaultWindow
	}

	orderRepo := repository.NewOrderRepository(db)
	marketBoxRepo := repository.NewMarketBoxRepository(db)
	vendorRepo := repository.NewVendorRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	feeRepo := repository.NewFeeLedgerRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	a.Notification = service.NewNotificationService(notificationRepo, publisher, logger)
	a.Vendors = service.NewVendorService(vendorRepo, gateway, devSkip, logger)
	a.FeeLedger = service.NewFeeLedgerService(feeRepo)
	a.Payouts = service.NewPayoutService(
		payoutRepo, orderRepo, marketBoxRepo,
		a.Vendors, a.FeeLedger,
		gateway, locker,
		a.Notification,
		strings.ToLower(cfg.Payout.Currency), devSkip,
		logger,
	)
	completion := service.NewCompletionCoordinator(orderRepo, marketBoxRepo, a.Notification, logger)

	a.Fulfillment = service.NewFulfillmentService(orderRepo, a.Vendors, a.Payouts, completion, a.Notification, window, logger)
	a.MarketBox = service.NewMarketBoxService(marketBoxRepo, a.Vendors, a.Payouts, completion, a.Notification, verticals, window, logger)
	a.Webhook = service.NewWebhookService(webhookEventRepo, a.Vendors, cfg.Stripe.WebhookSecret, logger)

	return a, nil
}

// newGateway picks the transfer provider. "none" is only allowed in
// development, where payouts are recorded as skipped.
func newGateway(cfg *config.Config) (client.PayoutGateway, bool, error) {
	switch strings.ToLower(cfg.Payout.Provider) {
	case "stripe":
		if cfg.Stripe.SecretKey == "" {
			return nil, false, errors.New("STRIPE_SECRET_KEY is required for the stripe payout provider")
		}
		return client.NewStripeGateway(cfg.Stripe.SecretKey), false, nil
	case "paypal":
		if cfg.Paypal.ClientID == "" || cfg.Paypal.ClientSecret == "" {
			return nil, false, errors.New("PAYPAL_CLIENT_ID and PAYPAL_CLIENT_SECRET are required for the paypal payout provider")
		}
		return client.NewPaypalGateway(&cfg.Paypal), false, nil
	case "", "none":
		if !cfg.Environment.IsDevelopment() {
			return nil, false, fmt.Errorf("payout provider none is not allowed in %s", cfg.Environment.Name)
		}
		return client.NewNoopGateway(), true, nil
	default:
		return nil, false, fmt.Errorf("unknown payout provider %q", cfg.Payout.Provider)
	}
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h)
}
