package handler

import (
	"marketplace-handoff/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type FulfillmentHandler struct {
	fulfillmentService service.FulfillmentService
}

func NewFulfillmentHandler(fulfillmentService service.FulfillmentService) *FulfillmentHandler {
	return &FulfillmentHandler{
		fulfillmentService: fulfillmentService,
	}
}

// Acknowledge records the buyer's receipt of an order item.
func (h *FulfillmentHandler) Acknowledge(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.fulfillmentService.AcknowledgeReceipt(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *FulfillmentHandler) Fulfill(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.fulfillmentService.Fulfill(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *FulfillmentHandler) ConfirmHandoff(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.fulfillmentService.ConfirmHandoff(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *FulfillmentHandler) MarkReady(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.fulfillmentService.MarkReady(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}
