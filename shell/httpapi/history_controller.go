package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/history"
)

const defaultTransactionsLimit = 100

// HistoryController serves the read-only history and inventory queries.
type HistoryController struct {
	Svc *history.History
	Log *slog.Logger
}

// GET /v1/users/:id/history
func (h *HistoryController) UserHistory(c echo.Context) error {
	rows, err := h.Svc.UserHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, "user history", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/users/:id/returnable
func (h *HistoryController) Returnable(c echo.Context) error {
	rows, err := h.Svc.ReturnableCopies(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, "returnable copies", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/books/:id/history
func (h *HistoryController) BookHistory(c echo.Context) error {
	rows, err := h.Svc.BookHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, "book history", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/copies/available?book_id=
func (h *HistoryController) Available(c echo.Context) error {
	rows, err := h.Svc.AvailableCopies(c.Request().Context(), c.QueryParam("book_id"))
	if err != nil {
		return respondError(c, h.Log, "available copies", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/copies?status=
func (h *HistoryController) CopiesByStatus(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "status is required"})
	}

	rows, err := h.Svc.CopiesByStatus(c.Request().Context(), custody.CopyStatus(status))
	if err != nil {
		return respondError(c, h.Log, "copies by status", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/locations/:id/copies
func (h *HistoryController) AtLocation(c echo.Context) error {
	rows, err := h.Svc.CopiesAtLocation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, "copies at location", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/transactions?limit=
func (h *HistoryController) Transactions(c echo.Context) error {
	limit := defaultTransactionsLimit

	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid limit"})
		}

		limit = n
	}

	rows, err := h.Svc.AllTransactions(c.Request().Context(), limit)
	if err != nil {
		return respondError(c, h.Log, "all transactions", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}
