package demodata_test

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/engine"
	"github.com/AntonStoeckl/library-custody-go/custody/history"
	"github.com/AntonStoeckl/library-custody-go/custody/memstore"
	"github.com/AntonStoeckl/library-custody-go/custody/registry"
	"github.com/AntonStoeckl/library-custody-go/shell/demodata"
	. "github.com/AntonStoeckl/library-custody-go/testutil/helper"
)

func newSeeder(t *testing.T, store *memstore.Store, options ...demodata.Option) *demodata.Seeder {
	t.Helper()

	reg, err := registry.NewRegistry(store)
	require.NoError(t, err, "error in test setup")

	seeder, err := demodata.NewSeeder(reg, store, options...)
	require.NoError(t, err, "error in test setup")

	return seeder
}

func Test_Populate(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	logSpy := NewLogHandlerSpy(false)
	seeder := newSeeder(t, store, demodata.WithLogger(slog.New(logSpy)), demodata.WithRand(rand.New(rand.NewPCG(1, 2))))

	// act
	summary, err := seeder.Populate(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Locations)
	assert.Equal(t, 5, summary.Books)
	assert.Equal(t, 3, summary.Users)
	assert.GreaterOrEqual(t, summary.Copies, 15)
	assert.LessOrEqual(t, summary.Copies, 30)

	copies, err := store.QueryCopies(ctx, custody.BuildCopyFilter().Finalize())
	require.NoError(t, err)
	assert.Len(t, copies, summary.Copies)

	for _, c := range copies {
		assert.Equal(t, custody.StatusAvailable, c.Status)
		assert.NoError(t, custody.CheckCopyState(c))
	}

	assert.Zero(t, CountTransactions(t, ctx, store))
	assert.True(t, logSpy.HasInfoLog("demo data populated").WithAttr("books", 5).Assert())
}

func Test_Populate_Then_ScenarioRunsOnDemoData(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	seeder := newSeeder(t, store)
	eng, err := engine.NewEngine(store)
	require.NoError(t, err, "error in test setup")
	hist, err := history.NewHistory(store)
	require.NoError(t, err, "error in test setup")

	// arrange
	_, err = seeder.Populate(ctx)
	require.NoError(t, err)
	available, err := hist.AvailableCopies(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, available)
	first := available[0]

	// act
	_, err = eng.Borrow(ctx, first.ID, "reader-1", first.LocationOrEmpty())

	// assert
	require.NoError(t, err)
	returnable, err := hist.ReturnableCopies(ctx, "reader-1")
	require.NoError(t, err)
	require.Len(t, returnable, 1)
	assert.Equal(t, first.ID, returnable[0].ID)
}

func Test_Reset_ClearsTransactionsAndRepopulates(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	seeder := newSeeder(t, store)

	// arrange
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	c1 := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)
	GivenCopyWasBorrowed(t, ctx, store, c1.ID, "u1", location.ID, FakeClock)

	// act
	summary, err := seeder.Reset(ctx)

	// assert
	require.NoError(t, err)
	assert.Zero(t, CountTransactions(t, ctx, store))

	books, err := store.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, summary.Books)

	_, err = store.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, custody.ErrNotFound)
}

func Test_ClearAll(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	seeder := newSeeder(t, store)

	// arrange
	_, err := seeder.Populate(ctx)
	require.NoError(t, err)

	// act
	err = seeder.ClearAll(ctx)

	// assert
	require.NoError(t, err)
	books, err := store.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
	copies, err := store.QueryCopies(ctx, custody.BuildCopyFilter().Finalize())
	require.NoError(t, err)
	assert.Empty(t, copies)
}

func Test_NewSeeder_When_DependenciesAreMissing(t *testing.T) {
	// setup
	reg, err := registry.NewRegistry(memstore.New())
	require.NoError(t, err, "error in test setup")

	// act
	_, nilRegistryErr := demodata.NewSeeder(nil, memstore.New())
	_, nilPurgerErr := demodata.NewSeeder(reg, nil)

	// assert
	assert.ErrorIs(t, nilRegistryErr, demodata.ErrNilRegistry)
	assert.ErrorIs(t, nilPurgerErr, demodata.ErrNilPurger)
}
