package handler

import (
	"io"
	"marketplace-handoff/internal/apperr"
	"marketplace-handoff/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Upper bound on a Stripe event body.
const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	webhookService service.WebhookService
}

func NewWebhookHandler(webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

func (h *WebhookHandler) Stripe(c echo.Context) error {
	ctx := c.Request().Context()

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return apperr.ErrInvalidInput.Wrap(err)
	}

	if err := h.webhookService.HandleStripeEvent(ctx, payload, c.Request().Header.Get("Stripe-Signature")); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]bool{
		"received": true,
	})
}
