package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	logMsgHTTP       = "http"
	logMsgUnhandled  = "http: unhandled error"
	logAttrMethod    = "method"
	logAttrPath      = "path"
	logAttrStatus    = "status"
	logAttrLatencyMS = "latency_ms"
	logAttrRequestID = "req_id"
	logAttrIP        = "ip"
	logAttrError     = "error"
)

// RegisterMiddlewares installs panic recovery, request ids and the access log.
func RegisterMiddlewares(e *echo.Echo, logger *slog.Logger) {
	e.Use(middleware.Recover())

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))

	e.Use(AccessLog(logger))
}

// AccessLog writes one info record per request.
func AccessLog(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.InfoContext(c.Request().Context(), logMsgHTTP,
				logAttrMethod, c.Request().Method,
				logAttrPath, c.Path(),
				logAttrStatus, c.Response().Status,
				logAttrLatencyMS, time.Since(start).Milliseconds(),
				logAttrRequestID, c.Response().Header().Get(echo.HeaderXRequestID),
				logAttrIP, c.RealIP(),
			)

			return nil
		}
	}
}

// httpErrorHandler renders errors that escaped the controllers, e.g. unknown routes.
func httpErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := any(msgInternal)

		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			message = he.Message
		} else {
			logger.ErrorContext(c.Request().Context(), logMsgUnhandled, logAttrError, err.Error())
		}

		_ = c.JSON(status, echo.Map{"message": message})
	}
}
