package server

import (
	"context"
	"log/slog"
	"marketplace-handoff/internal/handler"
	appmiddleware "marketplace-handoff/internal/middleware"
	"marketplace-handoff/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Services struct {
	Fulfillment  service.FulfillmentService
	MarketBox    service.MarketBoxService
	Vendor       service.VendorService
	FeeLedger    service.FeeLedgerService
	Notification service.NotificationService
	Webhook      service.WebhookService
}

type Server struct {
	echo                *echo.Echo
	jwtSecret           string
	fulfillmentHandler  *handler.FulfillmentHandler
	marketBoxHandler    *handler.MarketBoxHandler
	vendorHandler       *handler.VendorHandler
	notificationHandler *handler.NotificationHandler
	webhookHandler      *handler.WebhookHandler
}

func NewServer(services Services, jwtSecret string, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(appmiddleware.RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:                e,
		jwtSecret:           jwtSecret,
		fulfillmentHandler:  handler.NewFulfillmentHandler(services.Fulfillment),
		marketBoxHandler:    handler.NewMarketBoxHandler(services.MarketBox),
		vendorHandler:       handler.NewVendorHandler(services.Vendor, services.FeeLedger),
		notificationHandler: handler.NewNotificationHandler(services.Notification),
		webhookHandler:      handler.NewWebhookHandler(services.Webhook),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- processor callbacks (signature verified) --------
	api.POST("/webhooks/stripe", s.webhookHandler.Stripe)

	authed := api.Group("", appmiddleware.Auth(s.jwtSecret))
	authed.GET("/notifications", s.notificationHandler.List)

	// -------- buyer --------
	buyer := authed.Group("/buyer")
	buyer.POST("/order-items/:id/acknowledge", s.fulfillmentHandler.Acknowledge)
	buyer.POST("/market-boxes/pickups/:id/confirm", s.marketBoxHandler.ConfirmPickup)

	// -------- vendor --------
	vendor := authed.Group("/vendor")
	vendor.POST("/order-items/:id/fulfill", s.fulfillmentHandler.Fulfill)
	vendor.POST("/order-items/:id/confirm-handoff", s.fulfillmentHandler.ConfirmHandoff)
	vendor.POST("/order-items/:id/ready", s.fulfillmentHandler.MarkReady)
	vendor.PATCH("/market-boxes/pickups/:id", s.marketBoxHandler.UpdatePickup)
	vendor.GET("/payout-status", s.vendorHandler.PayoutStatus)
	vendor.GET("/fee-balance", s.vendorHandler.FeeBalance)
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
