package handler

import (
	"marketplace-handoff/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

type VendorHandler struct {
	vendorService    service.VendorService
	feeLedgerService service.FeeLedgerService
}

func NewVendorHandler(vendorService service.VendorService, feeLedgerService service.FeeLedgerService) *VendorHandler {
	return &VendorHandler{
		vendorService:    vendorService,
		feeLedgerService: feeLedgerService,
	}
}

func (h *VendorHandler) PayoutStatus(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	resp, err := h.vendorService.PayoutStatus(ctx, actor)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *VendorHandler) FeeBalance(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	vendor, err := h.vendorService.Authorize(ctx, actor)
	if err != nil {
		return err
	}

	resp, err := h.feeLedgerService.Summary(ctx, vendor.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}
