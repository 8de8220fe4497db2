package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/engine"
	"github.com/AntonStoeckl/library-custody-go/shell"
)

// CustodyController serves the three custody transitions.
type CustodyController struct {
	Engine       *engine.Engine
	Log          *slog.Logger
	Metrics      custody.MetricsCollector
	RetryOptions []shell.RetryOption
}

// POST /v1/copies/:id/borrow
func (h *CustodyController) Borrow(c echo.Context) error {
	var req BorrowReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	var tx custody.Transaction

	err := h.retry(c.Request().Context(), "borrow", func(ctx context.Context) error {
		var err error
		tx, err = h.Engine.Borrow(ctx, c.Param("id"), req.UserID, req.FromLocationID)
		return err
	})
	if err != nil {
		return respondError(c, h.Log, "borrow", err)
	}

	return c.JSON(http.StatusCreated, tx)
}

// POST /v1/copies/:id/return
func (h *CustodyController) Return(c echo.Context) error {
	var req ReturnReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	var tx custody.Transaction

	err := h.retry(c.Request().Context(), "return", func(ctx context.Context) error {
		var err error
		tx, err = h.Engine.Return(ctx, c.Param("id"), req.UserID, req.ToLocationID)
		return err
	})
	if err != nil {
		return respondError(c, h.Log, "return", err)
	}

	return c.JSON(http.StatusCreated, tx)
}

// POST /v1/books/:id/donate
func (h *CustodyController) Donate(c echo.Context) error {
	var req DonateReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	var bookCopy custody.BookCopy

	err := h.retry(c.Request().Context(), "donate", func(ctx context.Context) error {
		var err error
		bookCopy, err = h.Engine.Donate(ctx, c.Param("id"), req.UserID, req.ToLocationID)
		return err
	})
	if err != nil {
		return respondError(c, h.Log, "donate", err)
	}

	return c.JSON(http.StatusCreated, bookCopy)
}

func (h *CustodyController) retry(ctx context.Context, operation string, fn shell.RetryableFunc) error {
	options := h.RetryOptions
	if h.Metrics != nil {
		options = append(options[:len(options):len(options)], shell.WithMetrics(h.Metrics, operation))
	}

	_, err := shell.RetryWithExponentialBackoff(ctx, fn, options...)

	return err
}
