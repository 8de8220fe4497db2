package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/engine"
	"github.com/AntonStoeckl/library-custody-go/custody/history"
	"github.com/AntonStoeckl/library-custody-go/custody/registry"
	"github.com/AntonStoeckl/library-custody-go/shell"
)

var (
	ErrNilEngine   = errors.New("custody engine must not be nil")
	ErrNilRegistry = errors.New("registry must not be nil")
	ErrNilHistory  = errors.New("history must not be nil")
	ErrNilLogger   = errors.New("logger must not be nil")
)

// Deps are the services the API is built on.
type Deps struct {
	Engine   *engine.Engine
	Registry *registry.Registry
	History  *history.History
	Logger   *slog.Logger

	// Metrics is optional, it receives the retry metrics of the custody operations.
	Metrics custody.MetricsCollector

	// RetryOptions tune the backoff of the custody operations.
	RetryOptions []shell.RetryOption
}

func (d Deps) check() error {
	switch {
	case d.Engine == nil:
		return ErrNilEngine
	case d.Registry == nil:
		return ErrNilRegistry
	case d.History == nil:
		return ErrNilHistory
	case d.Logger == nil:
		return ErrNilLogger
	default:
		return nil
	}
}

// NewServer builds the echo instance with middlewares and all routes registered.
func NewServer(deps Deps) (*echo.Echo, error) {
	if err := deps.check(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}
	e.Validator = &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
	e.HTTPErrorHandler = httpErrorHandler(deps.Logger)

	RegisterMiddlewares(e, deps.Logger)

	Register(e, Controllers{
		Custody: &CustodyController{
			Engine:       deps.Engine,
			Log:          deps.Logger,
			Metrics:      deps.Metrics,
			RetryOptions: deps.RetryOptions,
		},
		History: &HistoryController{Svc: deps.History, Log: deps.Logger},
		Catalog: &CatalogController{Svc: deps.Registry, Log: deps.Logger},
	})

	return e, nil
}

// Controllers groups the route handlers.
type Controllers struct {
	Custody *CustodyController
	History *HistoryController
	Catalog *CatalogController
}

// Register wires all routes.
func Register(e *echo.Echo, c Controllers) {
	e.GET("/health", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	v1 := e.Group("/v1")

	// Custody
	v1.POST("/copies/:id/borrow", c.Custody.Borrow)
	v1.POST("/copies/:id/return", c.Custody.Return)
	v1.POST("/books/:id/donate", c.Custody.Donate)

	// History and inventory
	v1.GET("/users/:id/history", c.History.UserHistory)
	v1.GET("/users/:id/returnable", c.History.Returnable)
	v1.GET("/books/:id/history", c.History.BookHistory)
	v1.GET("/copies/available", c.History.Available)
	v1.GET("/copies", c.History.CopiesByStatus)
	v1.GET("/locations/:id/copies", c.History.AtLocation)
	v1.GET("/transactions", c.History.Transactions)

	// Catalog administration
	v1.GET("/books", c.Catalog.ListBooks)
	v1.POST("/books", c.Catalog.CreateBook)
	v1.GET("/books/:id", c.Catalog.GetBook)
	v1.PUT("/books/:id", c.Catalog.UpdateBook)
	v1.DELETE("/books/:id", c.Catalog.DeleteBook)
	v1.POST("/books/:id/copies", c.Catalog.AddCopies)
	v1.GET("/copies/:id", c.Catalog.GetCopy)
	v1.DELETE("/copies/:id", c.Catalog.DeleteCopy)
	v1.GET("/locations", c.Catalog.ListLocations)
	v1.POST("/locations", c.Catalog.CreateLocation)
	v1.GET("/locations/:id", c.Catalog.GetLocation)
	v1.PUT("/locations/:id", c.Catalog.UpdateLocation)
	v1.PUT("/locations/:id/status", c.Catalog.SetLocationStatus)
	v1.POST("/users", c.Catalog.CreateUser)
	v1.GET("/users/:id", c.Catalog.GetUser)
	v1.PUT("/users/:id", c.Catalog.UpdateUser)
	v1.PUT("/users/:id/role", c.Catalog.SetUserRole)
}
