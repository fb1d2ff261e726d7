package handler

import (
	"errors"
	"log/slog"
	"marketplace-handoff/internal/apperr"
	"marketplace-handoff/internal/dto"
	"marketplace-handoff/internal/middleware"
	"marketplace-handoff/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorHandler renders errors as {"code", "error"}. echo's own errors
// (404 route, 405, bind failures) keep their status.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := apperr.HTTPStatus(err)
		body := dto.ErrorResponse{Code: apperr.Code(err), Error: apperr.Message(err)}

		var (
			ae *apperr.Error
			he *echo.HTTPError
		)
		if !errors.As(err, &ae) && errors.As(err, &he) {
			status = he.Code
			body.Code = apperr.CodeInvalidInput
			if status >= http.StatusInternalServerError {
				body.Code = apperr.CodeInternal
			}
			body.Error = http.StatusText(status)
			if msg, ok := he.Message.(string); ok {
				body.Error = msg
			}
		}

		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"error", err,
			)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error("write error response", "error", writeErr)
		}
	}
}

func actorFrom(c echo.Context) (service.Actor, error) {
	userID, _ := c.Get(middleware.UserIDKey).(string)
	if userID == "" {
		return service.Actor{}, apperr.ErrUnauthenticated
	}
	vendorID, _ := c.Get(middleware.VendorProfileIDKey).(string)
	return service.Actor{UserID: userID, VendorProfileID: vendorID}, nil
}
