package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/memstore"
	. "github.com/AntonStoeckl/library-custody-go/testutil/helper"
	"github.com/AntonStoeckl/library-custody-go/testutil/storetest"
)

func Test_MemStore_Satisfies_The_Store_Suite(t *testing.T) {
	storetest.Run(t, func(_ *testing.T) custody.Store {
		return memstore.New()
	})
}

func Test_MemStore_Returns_Copies_Not_Shared_State(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	bookCopy := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)

	// act
	loaded, err := store.GetCopy(ctx, bookCopy.ID)
	require.NoError(t, err)
	*loaded.LocationID = "tampered"

	loadedBook, err := store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	loadedBook.Genre[0] = "tampered"

	// assert
	again, err := store.GetCopy(ctx, bookCopy.ID)
	require.NoError(t, err)
	assert.Equal(t, location.ID, again.LocationOrEmpty())

	againBook, err := store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.Genre, againBook.Genre)
}

func Test_MemStore_PurgeAll_Removes_Everything(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memstore.New()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	bookCopy := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)
	GivenUserWasInserted(t, ctx, store)
	GivenCopyWasBorrowed(t, ctx, store, bookCopy.ID, "user-1", location.ID, FakeClock)

	// act
	err := store.PurgeAll(ctx)

	// assert
	require.NoError(t, err)
	books, _ := store.ListBooks(ctx)
	locations, _ := store.ListLocations(ctx, false)
	assert.Empty(t, books)
	assert.Empty(t, locations)
	assert.Zero(t, CountTransactions(t, ctx, store))
}

func Test_MemStore_Respects_Canceled_Context(t *testing.T) {
	// setup
	store := memstore.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	_, _, err := store.ApplyDonation(ctx, custody.Donation{CopyID: "c", BookID: "b", LocationID: "l"})

	// assert
	assert.ErrorIs(t, err, context.Canceled)
}
