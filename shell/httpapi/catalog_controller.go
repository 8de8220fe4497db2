package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/registry"
)

// CatalogController serves the administration of books, locations, copies and users.
type CatalogController struct {
	Svc *registry.Registry
	Log *slog.Logger
}

/***** Books *****/

// GET /v1/books?q=&genre=
func (h *CatalogController) ListBooks(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		books []custody.Book
		err   error
	)

	switch {
	case c.QueryParam("q") != "":
		books, err = h.Svc.SearchBooks(ctx, c.QueryParam("q"))
	case c.QueryParam("genre") != "":
		books, err = h.Svc.BooksByGenre(ctx, c.QueryParam("genre"))
	default:
		books, err = h.Svc.ListBooks(ctx)
	}

	if err != nil {
		return respondError(c, h.Log, "list books", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"data": books})
}

// POST /v1/books
func (h *CatalogController) CreateBook(c echo.Context) error {
	var req registry.BookInput
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	book, err := h.Svc.CreateBook(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.Log, "create book", err)
	}

	return c.JSON(http.StatusCreated, book)
}

// GET /v1/books/:id
func (h *CatalogController) GetBook(c echo.Context) error {
	book, err := h.Svc.GetBook(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, "get book", err)
	}

	return c.JSON(http.StatusOK, book)
}

// PUT /v1/books/:id
func (h *CatalogController) UpdateBook(c echo.Context) error {
	var req registry.BookInput
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	book, err := h.Svc.UpdateBook(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return respondError(c, h.Log, "update book", err)
	}

	return c.JSON(http.StatusOK, book)
}

// DELETE /v1/books/:id
func (h *CatalogController) DeleteBook(c echo.Context) error {
	if err := h.Svc.DeleteBook(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, h.Log, "delete book", err)
	}

	return c.NoContent(http.StatusNoContent)
}

/***** Copies *****/

// POST /v1/books/:id/copies
func (h *CatalogController) AddCopies(c echo.Context) error {
	var req AddCopiesReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	copies, err := h.Svc.AddCopies(c.Request().Context(), c.Param("id"), req.LocationID, req.Count)
	if err != nil {
		return respondError(c, h.Log, "add copies", err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"data": copies})
}

// GET /v1/copies/:id
func (h *CatalogController) GetCopy(c echo.Context) error {
	bookCopy, err := h.Svc.GetCopy(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, "get copy", err)
	}

	return c.JSON(http.StatusOK, bookCopy)
}

// DELETE /v1/copies/:id
func (h *CatalogController) DeleteCopy(c echo.Context) error {
	if err := h.Svc.DeleteCopy(c.Request().Context(), c.Param("id")); err != nil {
		return respondError(c, h.Log, "delete copy", err)
	}

	return c.NoContent(http.StatusNoContent)
}

/***** Locations *****/

// GET /v1/locations?all=true
func (h *CatalogController) ListLocations(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		locations []custody.Location
		err       error
	)

	if c.QueryParam("all") == "true" {
		locations, err = h.Svc.ListLocations(ctx)
	} else {
		locations, err = h.Svc.ActiveLocations(ctx)
	}

	if err != nil {
		return respondError(c, h.Log, "list locations", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"data": locations})
}

// POST /v1/locations
func (h *CatalogController) CreateLocation(c echo.Context) error {
	var req registry.LocationInput
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	location, err := h.Svc.CreateLocation(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.Log, "create location", err)
	}

	return c.JSON(http.StatusCreated, location)
}

// GET /v1/locations/:id
func (h *CatalogController) GetLocation(c echo.Context) error {
	location, err := h.Svc.GetLocation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, "get location", err)
	}

	return c.JSON(http.StatusOK, location)
}

// PUT /v1/locations/:id
func (h *CatalogController) UpdateLocation(c echo.Context) error {
	var req registry.LocationInput
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	location, err := h.Svc.UpdateLocation(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return respondError(c, h.Log, "update location", err)
	}

	return c.JSON(http.StatusOK, location)
}

// PUT /v1/locations/:id/status
func (h *CatalogController) SetLocationStatus(c echo.Context) error {
	var req LocationStatusReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	if err := h.Svc.SetLocationStatus(c.Request().Context(), c.Param("id"), *req.IsActive); err != nil {
		return respondError(c, h.Log, "set location status", err)
	}

	return c.NoContent(http.StatusNoContent)
}

/***** Users *****/

// POST /v1/users
func (h *CatalogController) CreateUser(c echo.Context) error {
	var req registry.UserInput
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	user, err := h.Svc.CreateUser(c.Request().Context(), req)
	if err != nil {
		return respondError(c, h.Log, "create user", err)
	}

	return c.JSON(http.StatusCreated, user)
}

// GET /v1/users/:id
func (h *CatalogController) GetUser(c echo.Context) error {
	user, err := h.Svc.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, "get user", err)
	}

	return c.JSON(http.StatusOK, user)
}

// PUT /v1/users/:id
func (h *CatalogController) UpdateUser(c echo.Context) error {
	var req registry.UserInput
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	user, err := h.Svc.UpdateUser(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return respondError(c, h.Log, "update user", err)
	}

	return c.JSON(http.StatusOK, user)
}

// PUT /v1/users/:id/role
func (h *CatalogController) SetUserRole(c echo.Context) error {
	var req UserRoleReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	if err := h.Svc.SetUserRole(c.Request().Context(), c.Param("id"), custody.Role(req.Role)); err != nil {
		return respondError(c, h.Log, "set user role", err)
	}

	return c.NoContent(http.StatusNoContent)
}
