package httpapi_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/engine"
	"github.com/AntonStoeckl/library-custody-go/custody/history"
	"github.com/AntonStoeckl/library-custody-go/custody/memstore"
	"github.com/AntonStoeckl/library-custody-go/custody/registry"
	"github.com/AntonStoeckl/library-custody-go/shell"
	"github.com/AntonStoeckl/library-custody-go/shell/httpapi"
	. "github.com/AntonStoeckl/library-custody-go/testutil/helper"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// flakyStore aborts the first failures copy transitions with a concurrency conflict.
type flakyStore struct {
	*memstore.Store
	failures atomic.Int32
}

func (s *flakyStore) ApplyCopyTransition(ctx context.Context, transition custody.CopyTransition) (custody.BookCopy, custody.Transaction, error) {
	if s.failures.Add(-1) >= 0 {
		return custody.BookCopy{}, custody.Transaction{}, custody.ErrConcurrencyConflict
	}

	return s.Store.ApplyCopyTransition(ctx, transition)
}

type fixture struct {
	server     *echo.Echo
	store      *flakyStore
	logSpy     *LogHandlerSpy
	metricsSpy *MetricsCollectorSpy
}

func newServer(t *testing.T) fixture {
	t.Helper()

	store := &flakyStore{Store: memstore.New()}
	logSpy := NewLogHandlerSpy(false)
	logger := slog.New(logSpy)
	metricsSpy := NewMetricsCollectorSpy()

	eng, err := engine.NewEngine(store, engine.WithClock(func() time.Time { return FakeClock }))
	require.NoError(t, err, "error in test setup")

	reg, err := registry.NewRegistry(store)
	require.NoError(t, err, "error in test setup")

	hist, err := history.NewHistory(store)
	require.NoError(t, err, "error in test setup")

	server, err := httpapi.NewServer(httpapi.Deps{
		Engine:       eng,
		Registry:     reg,
		History:      hist,
		Logger:       logger,
		Metrics:      metricsSpy,
		RetryOptions: []shell.RetryOption{shell.WithBaseDelay(time.Millisecond)},
	})
	require.NoError(t, err, "error in test setup")

	return fixture{server: server, store: store, logSpy: logSpy, metricsSpy: metricsSpy}
}

func (f fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "response is not valid json: %s", rec.Body.String())

	return out
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

type errorResponse struct {
	Message   string `json:"message"`
	Errors    string `json:"errors"`
	Retryable bool   `json:"retryable"`
}

func Test_Health(t *testing.T) {
	// setup
	f := newServer(t)

	// act
	rec := f.do(t, http.MethodGet, "/health", "")

	// assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.True(t, f.logSpy.HasInfoLog("http").WithAttr("path", "/health").Assert())
}

func Test_Borrow_Then_Return_Then_History(t *testing.T) {
	// setup
	ctx := context.Background()
	f := newServer(t)

	// arrange
	book := GivenBookWasInserted(t, ctx, f.store)
	l1 := GivenLocationWasInserted(t, ctx, f.store)
	l2 := GivenLocationWasInserted(t, ctx, f.store)
	c1 := GivenAvailableCopy(t, ctx, f.store, book.ID, l1.ID)

	// act
	borrowRec := f.do(t, http.MethodPost, "/v1/copies/"+c1.ID+"/borrow", `{"userId":"u1","fromLocationId":"`+l1.ID+`"}`)
	returnableRec := f.do(t, http.MethodGet, "/v1/users/u1/returnable", "")
	returnRec := f.do(t, http.MethodPost, "/v1/copies/"+c1.ID+"/return", `{"userId":"u1","toLocationId":"`+l2.ID+`"}`)
	historyRec := f.do(t, http.MethodGet, "/v1/users/u1/history", "")
	atLocationRec := f.do(t, http.MethodGet, "/v1/locations/"+l2.ID+"/copies", "")

	// assert
	require.Equal(t, http.StatusCreated, borrowRec.Code, borrowRec.Body.String())
	borrowTx := decode[custody.Transaction](t, borrowRec)
	assert.Equal(t, custody.ActionBorrow, borrowTx.Action)
	assert.Equal(t, c1.ID, borrowTx.CopyID)

	require.Equal(t, http.StatusOK, returnableRec.Code)
	returnable := decode[listResponse[custody.BookCopy]](t, returnableRec)
	require.Len(t, returnable.Data, 1)
	assert.Equal(t, c1.ID, returnable.Data[0].ID)

	require.Equal(t, http.StatusCreated, returnRec.Code, returnRec.Body.String())

	require.Equal(t, http.StatusOK, historyRec.Code)
	hist := decode[listResponse[custody.Transaction]](t, historyRec)
	require.Len(t, hist.Data, 2)
	assert.Equal(t, custody.ActionReturn, hist.Data[0].Action)
	assert.Equal(t, custody.ActionBorrow, hist.Data[1].Action)

	atLocation := decode[listResponse[custody.BookCopy]](t, atLocationRec)
	require.Len(t, atLocation.Data, 1)
	assert.Equal(t, l2.ID, atLocation.Data[0].LocationOrEmpty())
}

func Test_Borrow_When_CopyIsAlreadyBorrowed(t *testing.T) {
	// setup
	ctx := context.Background()
	f := newServer(t)

	// arrange
	book := GivenBookWasInserted(t, ctx, f.store)
	l1 := GivenLocationWasInserted(t, ctx, f.store)
	c1 := GivenAvailableCopy(t, ctx, f.store, book.ID, l1.ID)
	GivenCopyWasBorrowed(t, ctx, f.store, c1.ID, "u1", l1.ID, FakeClock)

	// act
	rec := f.do(t, http.MethodPost, "/v1/copies/"+c1.ID+"/borrow", `{"userId":"u2","fromLocationId":"`+l1.ID+`"}`)

	// assert
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Contains(t, body.Message, custody.ReasonNotAvailable)
	assert.False(t, body.Retryable)
}

func Test_Borrow_When_StoreAbortsOnce_Then_RetrySucceeds(t *testing.T) {
	// setup
	ctx := context.Background()
	f := newServer(t)

	// arrange
	book := GivenBookWasInserted(t, ctx, f.store)
	l1 := GivenLocationWasInserted(t, ctx, f.store)
	c1 := GivenAvailableCopy(t, ctx, f.store, book.ID, l1.ID)
	f.store.failures.Store(1)

	// act
	rec := f.do(t, http.MethodPost, "/v1/copies/"+c1.ID+"/borrow", `{"userId":"u1","fromLocationId":"`+l1.ID+`"}`)

	// assert
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, f.metricsSpy.HasCounterRecordForMetric(shell.RetriesMetric).WithOperation("borrow").Assert())
}

func Test_Borrow_When_StoreKeepsAborting(t *testing.T) {
	// setup
	ctx := context.Background()
	f := newServer(t)

	// arrange
	book := GivenBookWasInserted(t, ctx, f.store)
	l1 := GivenLocationWasInserted(t, ctx, f.store)
	c1 := GivenAvailableCopy(t, ctx, f.store, book.ID, l1.ID)
	f.store.failures.Store(100)

	// act
	rec := f.do(t, http.MethodPost, "/v1/copies/"+c1.ID+"/borrow", `{"userId":"u1","fromLocationId":"`+l1.ID+`"}`)

	// assert
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.True(t, body.Retryable)
	assert.True(t, f.metricsSpy.HasCounterRecordForMetric(shell.MaxRetriesReachedMetric).WithOperation("borrow").Assert())
}

func Test_CustodyRoutes_When_RequestIsInvalid(t *testing.T) {
	// setup
	f := newServer(t)

	testCases := []struct {
		description string
		path        string
		body        string
		wantMessage string
	}{
		{description: "borrow without user", path: "/v1/copies/c1/borrow", body: `{"fromLocationId":"l1"}`, wantMessage: "validation error"},
		{description: "return without location", path: "/v1/copies/c1/return", body: `{"userId":"u1"}`, wantMessage: "validation error"},
		{description: "donate with broken json", path: "/v1/books/b1/donate", body: `{"userId":`, wantMessage: "invalid JSON"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			// act
			rec := f.do(t, http.MethodPost, tc.path, tc.body)

			// assert
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.wantMessage, decode[errorResponse](t, rec).Message)
		})
	}
}

func Test_Return_When_CopyDoesNotExist(t *testing.T) {
	// setup
	ctx := context.Background()
	f := newServer(t)

	// arrange
	l1 := GivenLocationWasInserted(t, ctx, f.store)

	// act
	rec := f.do(t, http.MethodPost, "/v1/copies/missing/return", `{"userId":"u1","toLocationId":"`+l1.ID+`"}`)

	// assert
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_Donate_Then_Available(t *testing.T) {
	// setup
	ctx := context.Background()
	f := newServer(t)

	// arrange
	book := GivenBookWasInserted(t, ctx, f.store)
	l1 := GivenLocationWasInserted(t, ctx, f.store)

	// act
	donateRec := f.do(t, http.MethodPost, "/v1/books/"+book.ID+"/donate", `{"userId":"u9","toLocationId":"`+l1.ID+`"}`)
	availableRec := f.do(t, http.MethodGet, "/v1/copies/available?book_id="+book.ID, "")
	bookHistoryRec := f.do(t, http.MethodGet, "/v1/books/"+book.ID+"/history", "")
	allRec := f.do(t, http.MethodGet, "/v1/transactions?limit=10", "")

	// assert
	require.Equal(t, http.StatusCreated, donateRec.Code, donateRec.Body.String())
	donated := decode[custody.BookCopy](t, donateRec)
	assert.Equal(t, custody.StatusAvailable, donated.Status)

	available := decode[listResponse[custody.BookCopy]](t, availableRec)
	require.Len(t, available.Data, 1)
	assert.Equal(t, donated.ID, available.Data[0].ID)

	bookHistory := decode[listResponse[custody.Transaction]](t, bookHistoryRec)
	require.Len(t, bookHistory.Data, 1)
	assert.Equal(t, custody.ActionDonate, bookHistory.Data[0].Action)

	assert.Len(t, decode[listResponse[custody.Transaction]](t, allRec).Data, 1)
}

func Test_Transactions_When_LimitIsInvalid(t *testing.T) {
	// setup
	f := newServer(t)

	// act
	rec := f.do(t, http.MethodGet, "/v1/transactions?limit=zero", "")

	// assert
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_CatalogRoutes(t *testing.T) {
	// setup
	f := newServer(t)

	// act
	bookRec := f.do(t, http.MethodPost, "/v1/books", `{"title":"The Great Gatsby","author":"F. Scott Fitzgerald","genre":["Classic"]}`)
	book := decode[custody.Book](t, bookRec)

	locationRec := f.do(t, http.MethodPost, "/v1/locations", `{"name":"Central Library","address":"123 Main Street"}`)
	location := decode[custody.Location](t, locationRec)

	copiesRec := f.do(t, http.MethodPost, "/v1/books/"+book.ID+"/copies", `{"locationId":"`+location.ID+`","count":2}`)
	deleteBookRec := f.do(t, http.MethodDelete, "/v1/books/"+book.ID, "")
	searchRec := f.do(t, http.MethodGet, "/v1/books?q=gatsby", "")
	genreRec := f.do(t, http.MethodGet, "/v1/books?genre=Classic", "")
	statusRec := f.do(t, http.MethodPut, "/v1/locations/"+location.ID+"/status", `{"isActive":false}`)
	activeRec := f.do(t, http.MethodGet, "/v1/locations", "")
	allLocationsRec := f.do(t, http.MethodGet, "/v1/locations?all=true", "")
	userRec := f.do(t, http.MethodPost, "/v1/users", `{"email":"jane@example.com","name":"Jane"}`)
	user := decode[custody.User](t, userRec)
	roleRec := f.do(t, http.MethodPut, "/v1/users/"+user.ID+"/role", `{"role":"admin"}`)
	getUserRec := f.do(t, http.MethodGet, "/v1/users/"+user.ID, "")

	// assert
	require.Equal(t, http.StatusCreated, bookRec.Code, bookRec.Body.String())
	require.Equal(t, http.StatusCreated, locationRec.Code, locationRec.Body.String())
	require.Equal(t, http.StatusCreated, copiesRec.Code, copiesRec.Body.String())
	assert.Len(t, decode[listResponse[custody.BookCopy]](t, copiesRec).Data, 2)

	assert.Equal(t, http.StatusConflict, deleteBookRec.Code)
	assert.Contains(t, decode[errorResponse](t, deleteBookRec).Message, custody.ReasonHasCopies)

	assert.Len(t, decode[listResponse[custody.Book]](t, searchRec).Data, 1)
	assert.Len(t, decode[listResponse[custody.Book]](t, genreRec).Data, 1)

	assert.Equal(t, http.StatusNoContent, statusRec.Code)
	assert.Empty(t, decode[listResponse[custody.Location]](t, activeRec).Data)
	assert.Len(t, decode[listResponse[custody.Location]](t, allLocationsRec).Data, 1)

	require.Equal(t, http.StatusCreated, userRec.Code, userRec.Body.String())
	assert.Equal(t, custody.RoleReader, user.Role)
	assert.Equal(t, http.StatusNoContent, roleRec.Code)
	assert.Equal(t, custody.RoleAdmin, decode[custody.User](t, getUserRec).Role)
}

func Test_DeleteCopy_When_Borrowed(t *testing.T) {
	// setup
	ctx := context.Background()
	f := newServer(t)

	// arrange
	book := GivenBookWasInserted(t, ctx, f.store)
	l1 := GivenLocationWasInserted(t, ctx, f.store)
	c1 := GivenAvailableCopy(t, ctx, f.store, book.ID, l1.ID)
	c2 := GivenAvailableCopy(t, ctx, f.store, book.ID, l1.ID)
	GivenCopyWasBorrowed(t, ctx, f.store, c1.ID, "u1", l1.ID, FakeClock)

	// act
	borrowedRec := f.do(t, http.MethodDelete, "/v1/copies/"+c1.ID, "")
	shelvedRec := f.do(t, http.MethodDelete, "/v1/copies/"+c2.ID, "")
	getRec := f.do(t, http.MethodGet, "/v1/copies/"+c2.ID, "")

	// assert
	assert.Equal(t, http.StatusConflict, borrowedRec.Code)
	assert.Equal(t, http.StatusNoContent, shelvedRec.Code)
	assert.Equal(t, http.StatusNotFound, getRec.Code)
}

func Test_UnknownRoute(t *testing.T) {
	// setup
	f := newServer(t)

	// act
	rec := f.do(t, http.MethodGet, "/v1/nothing-here", "")

	// assert
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_NewServer_When_DependenciesAreMissing(t *testing.T) {
	// act
	_, err := httpapi.NewServer(httpapi.Deps{})

	// assert
	assert.ErrorIs(t, err, httpapi.ErrNilEngine)
}
