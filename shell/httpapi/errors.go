package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

const (
	msgInvalidJSON = "invalid JSON"
	msgValidation  = "validation error"
	msgInternal    = "internal error"
	msgTimeout     = "request timed out"
	msgRetryLater  = "the store is busy, please retry"
)

// statusFor maps a custody error to the HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, custody.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, custody.ErrConcurrencyConflict), errors.Is(err, custody.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, custody.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError renders err. Domain errors carry their own message, infrastructure errors are
// logged and hidden behind a generic one.
func respondError(c echo.Context, log *slog.Logger, operation string, err error) error {
	status := statusFor(err)
	body := echo.Map{"message": err.Error()}

	switch {
	case custody.IsRetryable(err):
		log.WarnContext(c.Request().Context(), operation, logAttrError, err.Error())
		body = echo.Map{"message": msgRetryLater, "retryable": true}

	case status == http.StatusGatewayTimeout:
		log.WarnContext(c.Request().Context(), operation, logAttrError, err.Error())
		body = echo.Map{"message": msgTimeout}

	case status == http.StatusInternalServerError:
		log.ErrorContext(c.Request().Context(), operation, logAttrError, err.Error())
		body = echo.Map{"message": msgInternal}
	}

	return c.JSON(status, body)
}

// bindAndValidate decodes the request body into req and validates it.
// It writes the 400 response itself and reports whether the handler may continue.
func bindAndValidate(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"message": msgInvalidJSON})
	}

	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{
			"message": msgValidation,
			"errors":  err.Error(),
		})
	}

	return true, nil
}
