package handler

import (
	"marketplace-handoff/internal/apperr"
	"marketplace-handoff/internal/dto"
	"marketplace-handoff/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type MarketBoxHandler struct {
	marketBoxService service.MarketBoxService
}

func NewMarketBoxHandler(marketBoxService service.MarketBoxService) *MarketBoxHandler {
	return &MarketBoxHandler{
		marketBoxService: marketBoxService,
	}
}

// UpdatePickup applies a vendor action to a pickup.
func (h *MarketBoxHandler) UpdatePickup(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	var req dto.PickupActionRequest
	if err := c.Bind(&req); err != nil {
		return apperr.ErrInvalidInput.Wrap(err)
	}

	resp, err := h.marketBoxService.UpdatePickup(ctx, actor, c.Param("id"), &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *MarketBoxHandler) ConfirmPickup(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.marketBoxService.ConfirmPickup(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}
