package handler

import (
	"marketplace-handoff/internal/apperr"
	"marketplace-handoff/internal/service"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := actorFrom(c)
	if err != nil {
		return err
	}

	limit := defaultNotificationLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return apperr.ErrInvalidInput.WithMessage("limit must be a positive integer")
		}
		limit = min(n, maxNotificationLimit)
	}

	resp, err := h.notificationService.List(ctx, actor.UserID, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}
