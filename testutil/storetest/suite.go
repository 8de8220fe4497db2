// Package storetest contains the behavior suite every custody.Store implementation must pass.
//
// Store packages call Run from their own tests with a factory for a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-custody-go/custody"
	. "github.com/AntonStoeckl/library-custody-go/testutil/helper"
)

// Factory creates a fresh, empty store for one test.
type Factory func(t *testing.T) custody.Store

// Run executes the whole suite against stores created by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("borrow transition", func(t *testing.T) { testBorrowTransition(t, newStore(t)) })
	t.Run("transition of missing copy", func(t *testing.T) { testTransitionOfMissingCopy(t, newStore(t)) })
	t.Run("transition with stale status", func(t *testing.T) { testTransitionWithStaleStatus(t, newStore(t)) })
	t.Run("return to missing location", func(t *testing.T) { testReturnToMissingLocation(t, newStore(t)) })
	t.Run("donation", func(t *testing.T) { testDonation(t, newStore(t)) })
	t.Run("donation with missing references", func(t *testing.T) { testDonationWithMissingReferences(t, newStore(t)) })
	t.Run("transaction ordering", func(t *testing.T) { testTransactionOrdering(t, newStore(t)) })
	t.Run("transaction ordering follows append order", func(t *testing.T) { testTransactionOrderingFollowsAppendOrder(t, newStore(t)) })
	t.Run("transaction filter", func(t *testing.T) { testTransactionFilter(t, newStore(t)) })
	t.Run("copy filter", func(t *testing.T) { testCopyFilter(t, newStore(t)) })
	t.Run("book lifecycle", func(t *testing.T) { testBookLifecycle(t, newStore(t)) })
	t.Run("location lifecycle", func(t *testing.T) { testLocationLifecycle(t, newStore(t)) })
	t.Run("user lifecycle", func(t *testing.T) { testUserLifecycle(t, newStore(t)) })
	t.Run("insert copies is atomic", func(t *testing.T) { testInsertCopiesIsAtomic(t, newStore(t)) })
	t.Run("delete copy guard", func(t *testing.T) { testDeleteCopyGuard(t, newStore(t)) })
	t.Run("racing borrows", func(t *testing.T) { testRacingBorrows(t, newStore(t)) })
	t.Run("racing borrows and returns", func(t *testing.T) { testRacingBorrowsAndReturns(t, newStore(t)) })
	t.Run("transitions of different copies", func(t *testing.T) { testTransitionsOfDifferentCopies(t, newStore(t)) })
}

func testBorrowTransition(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	bookCopy := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)
	txID := GivenUniqueID(t)

	// act
	updated, tx, err := store.ApplyCopyTransition(ctx, custody.CopyTransition{
		CopyID:         bookCopy.ID,
		ExpectedStatus: custody.StatusAvailable,
		NewStatus:      custody.StatusBorrowed,
		TransactionID:  txID,
		UserID:         "user-1",
		Action:         custody.ActionBorrow,
		LogLocationID:  custody.StringPtr(location.ID),
		OccurredAt:     FakeClock,
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, custody.StatusBorrowed, updated.Status)
	assert.Nil(t, updated.LocationID)
	assert.Equal(t, txID, tx.ID)
	assert.Equal(t, book.ID, tx.BookID, "the book id must be taken from the copy record")
	assert.Equal(t, bookCopy.ID, tx.CopyID)
	assert.Equal(t, custody.ActionBorrow, tx.Action)
	assert.Equal(t, location.ID, *tx.LocationID)
	assert.True(t, FakeClock.Equal(tx.CreatedAt))

	stored, err := store.GetCopy(ctx, bookCopy.ID)
	require.NoError(t, err)
	assert.Equal(t, custody.StatusBorrowed, stored.Status)
	assert.Nil(t, stored.LocationID)
	assert.Equal(t, 1, CountTransactions(t, ctx, store))
}

func testTransitionOfMissingCopy(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()

	// act
	_, _, err := store.ApplyCopyTransition(ctx, custody.CopyTransition{
		CopyID:         "no-such-copy",
		ExpectedStatus: custody.StatusAvailable,
		NewStatus:      custody.StatusBorrowed,
		TransactionID:  GivenUniqueID(t),
		UserID:         "user-1",
		Action:         custody.ActionBorrow,
		OccurredAt:     FakeClock,
	})

	// assert
	assert.ErrorIs(t, err, custody.ErrNotFound)
	assert.Zero(t, CountTransactions(t, ctx, store))
}

func testTransitionWithStaleStatus(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	bookCopy := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)

	// act
	_, _, err := store.ApplyCopyTransition(ctx, custody.CopyTransition{
		CopyID:          bookCopy.ID,
		ExpectedStatus:  custody.StatusBorrowed,
		NewStatus:       custody.StatusAvailable,
		NewLocationID:   custody.StringPtr(location.ID),
		RequireLocation: true,
		TransactionID:   GivenUniqueID(t),
		UserID:          "user-1",
		Action:          custody.ActionReturn,
		LogLocationID:   custody.StringPtr(location.ID),
		OccurredAt:      FakeClock,
	})

	// assert
	assert.ErrorIs(t, err, custody.ErrConflict)
	assert.Contains(t, err.Error(), custody.ReasonNotBorrowed)
	assert.Zero(t, CountTransactions(t, ctx, store))

	stored, getErr := store.GetCopy(ctx, bookCopy.ID)
	require.NoError(t, getErr)
	assert.Equal(t, bookCopy, stored)
}

func testReturnToMissingLocation(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	bookCopy := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)
	GivenCopyWasBorrowed(t, ctx, store, bookCopy.ID, "user-1", location.ID, FakeClock)

	// act
	_, _, err := store.ApplyCopyTransition(ctx, custody.CopyTransition{
		CopyID:          bookCopy.ID,
		ExpectedStatus:  custody.StatusBorrowed,
		NewStatus:       custody.StatusAvailable,
		NewLocationID:   custody.StringPtr("no-such-location"),
		RequireLocation: true,
		TransactionID:   GivenUniqueID(t),
		UserID:          "user-1",
		Action:          custody.ActionReturn,
		LogLocationID:   custody.StringPtr("no-such-location"),
		OccurredAt:      FakeClock.Add(time.Hour),
	})

	// assert
	assert.ErrorIs(t, err, custody.ErrNotFound)
	assert.Equal(t, 1, CountTransactions(t, ctx, store), "only the borrow entry must exist")

	stored, getErr := store.GetCopy(ctx, bookCopy.ID)
	require.NoError(t, getErr)
	assert.Equal(t, custody.StatusBorrowed, stored.Status)
	assert.Nil(t, stored.LocationID)
}

func testDonation(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	copyID := GivenUniqueID(t)

	// act
	bookCopy, tx, err := store.ApplyDonation(ctx, custody.Donation{
		CopyID:        copyID,
		BookID:        book.ID,
		LocationID:    location.ID,
		TransactionID: GivenUniqueID(t),
		UserID:        "donor-1",
		OccurredAt:    FakeClock,
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, copyID, bookCopy.ID)
	assert.Equal(t, custody.StatusAvailable, bookCopy.Status)
	assert.Equal(t, location.ID, bookCopy.LocationOrEmpty())
	assert.Equal(t, custody.ActionDonate, tx.Action)
	assert.Equal(t, copyID, tx.CopyID)
	assert.Equal(t, book.ID, tx.BookID)

	stored, getErr := store.GetCopy(ctx, copyID)
	require.NoError(t, getErr)
	assert.Equal(t, bookCopy, stored)
}

func testDonationWithMissingReferences(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)

	testCases := []struct {
		description string
		bookID      string
		locationID  string
	}{
		{description: "missing book", bookID: "no-such-book", locationID: location.ID},
		{description: "missing location", bookID: book.ID, locationID: "no-such-location"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			// act
			_, _, err := store.ApplyDonation(ctx, custody.Donation{
				CopyID:        GivenUniqueID(t),
				BookID:        tc.bookID,
				LocationID:    tc.locationID,
				TransactionID: GivenUniqueID(t),
				UserID:        "donor-1",
				OccurredAt:    FakeClock,
			})

			// assert
			assert.ErrorIs(t, err, custody.ErrNotFound)
		})
	}

	copies, err := store.QueryCopies(ctx, custody.BuildCopyFilter().Finalize())
	require.NoError(t, err)
	assert.Empty(t, copies)
	assert.Zero(t, CountTransactions(t, ctx, store))
}

func testTransactionOrdering(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	first := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)
	second := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)

	// arrange
	borrowFirst := GivenCopyWasBorrowed(t, ctx, store, first.ID, "user-1", location.ID, FakeClock)
	returnFirst := GivenCopyWasReturned(t, ctx, store, first.ID, "user-1", location.ID, FakeClock.Add(time.Minute))
	borrowSecond := GivenCopyWasBorrowed(t, ctx, store, second.ID, "user-1", location.ID, FakeClock.Add(time.Minute))

	// act
	history, err := store.QueryTransactions(ctx, custody.BuildTransactionFilter().ForUser("user-1").Finalize())
	again, againErr := store.QueryTransactions(ctx, custody.BuildTransactionFilter().ForUser("user-1").Finalize())

	// assert
	require.NoError(t, err)
	require.NoError(t, againErr)
	require.Len(t, history, 3)
	assert.Equal(t, borrowSecond.ID, history[0].ID, "equal timestamps are ordered by append order, newest first")
	assert.Equal(t, returnFirst.ID, history[1].ID)
	assert.Equal(t, borrowFirst.ID, history[2].ID)
	assert.Equal(t, history, again, "reads must be deterministic")
}

func testTransactionOrderingFollowsAppendOrder(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	bookCopy := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)

	// arrange: the later writers carry older timestamps, like a writer that waited on the copy
	borrow := GivenCopyWasBorrowed(t, ctx, store, bookCopy.ID, "user-1", location.ID, FakeClock.Add(time.Hour))
	returned := GivenCopyWasReturned(t, ctx, store, bookCopy.ID, "user-1", location.ID, FakeClock.Add(time.Minute))
	borrowAgain := GivenCopyWasBorrowed(t, ctx, store, bookCopy.ID, "user-2", location.ID, FakeClock)

	// act
	copyLog, err := store.QueryTransactions(ctx, custody.BuildTransactionFilter().ForCopies(bookCopy.ID).Finalize())
	newest, newestErr := store.QueryTransactions(ctx, custody.BuildTransactionFilter().Limit(1).Finalize())

	// assert
	require.NoError(t, err)
	require.NoError(t, newestErr)
	require.Len(t, copyLog, 3)
	assert.Equal(t, []string{borrowAgain.ID, returned.ID, borrow.ID}, transactionIDs(copyLog))
	require.Len(t, newest, 1)
	assert.Equal(t, borrowAgain.ID, newest[0].ID)
}

func testTransactionFilter(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	otherBook := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	bookCopy := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)
	otherCopy := GivenAvailableCopy(t, ctx, store, otherBook.ID, location.ID)

	// arrange
	GivenCopyWasBorrowed(t, ctx, store, bookCopy.ID, "user-1", location.ID, FakeClock)
	GivenCopyWasReturned(t, ctx, store, bookCopy.ID, "user-1", location.ID, FakeClock.Add(time.Hour))
	GivenCopyWasBorrowed(t, ctx, store, otherCopy.ID, "user-2", location.ID, FakeClock.Add(2*time.Hour))

	// act
	byBook, err1 := store.QueryTransactions(ctx, custody.BuildTransactionFilter().ForBook(book.ID).Finalize())
	byAction, err2 := store.QueryTransactions(ctx, custody.BuildTransactionFilter().WithActions(custody.ActionBorrow).Finalize())
	byCopy, err3 := store.QueryTransactions(ctx, custody.BuildTransactionFilter().ForCopies(otherCopy.ID).Finalize())
	byWindow, err4 := store.QueryTransactions(ctx, custody.BuildTransactionFilter().
		OccurredFrom(FakeClock.Add(30*time.Minute)).
		OccurredUntil(FakeClock.Add(90*time.Minute)).
		Finalize())
	limited, err5 := store.QueryTransactions(ctx, custody.BuildTransactionFilter().Limit(2).Finalize())

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.NoError(t, err3)
	require.NoError(t, err4)
	require.NoError(t, err5)
	assert.Len(t, byBook, 2)
	assert.Len(t, byAction, 2)
	require.Len(t, byCopy, 1)
	assert.Equal(t, "user-2", byCopy[0].UserID)
	require.Len(t, byWindow, 1)
	assert.Equal(t, custody.ActionReturn, byWindow[0].Action)
	require.Len(t, limited, 2)
	assert.Equal(t, otherCopy.ID, limited[0].CopyID)
}

func testCopyFilter(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	otherBook := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	otherLocation := GivenLocationWasInserted(t, ctx, store)
	shelved := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)
	borrowed := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)
	elsewhere := GivenAvailableCopy(t, ctx, store, otherBook.ID, otherLocation.ID)
	GivenCopyWasBorrowed(t, ctx, store, borrowed.ID, "user-1", location.ID, FakeClock)

	// act
	available, err1 := store.QueryCopies(ctx, custody.BuildCopyFilter().WithStatus(custody.StatusAvailable).Finalize())
	ofBook, err2 := store.QueryCopies(ctx, custody.BuildCopyFilter().OfBook(book.ID).Finalize())
	atOther, err3 := store.QueryCopies(ctx, custody.BuildCopyFilter().AtLocation(otherLocation.ID).Finalize())
	borrowedOnly, err4 := store.QueryCopies(ctx, custody.BuildCopyFilter().WithStatus(custody.StatusBorrowed).Finalize())

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.NoError(t, err3)
	require.NoError(t, err4)
	assert.ElementsMatch(t, []string{shelved.ID, elsewhere.ID}, copyIDs(available))
	assert.ElementsMatch(t, []string{shelved.ID, borrowed.ID}, copyIDs(ofBook))
	assert.Equal(t, []string{elsewhere.ID}, copyIDs(atOther))
	assert.Equal(t, []string{borrowed.ID}, copyIDs(borrowedOnly))
	assert.IsNonDecreasing(t, copyIDs(available), "copies must be ordered by id")
}

func testBookLifecycle(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)

	// duplicate ids are rejected
	assert.ErrorIs(t, store.InsertBook(ctx, book), custody.ErrConflict)

	// update keeps the creation time
	changed := book
	changed.Title = "Learning DDD"
	changed.Genre = []string{"Software"}
	changed.CreatedAt = FakeClock.Add(24 * time.Hour)
	require.NoError(t, store.UpdateBook(ctx, changed))

	stored, err := store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Learning DDD", stored.Title)
	assert.Equal(t, []string{"Software"}, stored.Genre)
	assert.True(t, book.CreatedAt.Equal(stored.CreatedAt))

	// deletion is refused while a copy references the book
	bookCopy := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)
	err = store.DeleteBook(ctx, book.ID)
	assert.ErrorIs(t, err, custody.ErrConflict)
	assert.Contains(t, err.Error(), custody.ReasonHasCopies)

	require.NoError(t, store.DeleteCopy(ctx, bookCopy.ID))
	require.NoError(t, store.DeleteBook(ctx, book.ID))

	_, err = store.GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, custody.ErrNotFound)
	assert.ErrorIs(t, store.DeleteBook(ctx, book.ID), custody.ErrNotFound)
	assert.ErrorIs(t, store.UpdateBook(ctx, book), custody.ErrNotFound)

	books, err := store.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func testLocationLifecycle(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	active := GivenLocationWasInserted(t, ctx, store)
	inactive := FixtureLocation(t)
	inactive.Name = "Riverside Branch"
	inactive.IsActive = false
	require.NoError(t, store.InsertLocation(ctx, inactive))

	// act
	all, err1 := store.ListLocations(ctx, false)
	onlyActive, err2 := store.ListLocations(ctx, true)

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Len(t, all, 2)
	assert.Equal(t, active.ID, all[0].ID, "locations must be ordered by name")
	assert.Equal(t, []custody.Location{active}, onlyActive)

	inactive.IsActive = true
	require.NoError(t, store.UpdateLocation(ctx, inactive))
	stored, err := store.GetLocation(ctx, inactive.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)

	_, err = store.GetLocation(ctx, "no-such-location")
	assert.ErrorIs(t, err, custody.ErrNotFound)
}

func testUserLifecycle(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	user := GivenUserWasInserted(t, ctx, store)

	// act
	user.Role = custody.RoleAdmin
	user.Name = "Admin User"
	updateErr := store.UpdateUser(ctx, user)
	stored, getErr := store.GetUser(ctx, user.ID)

	// assert
	require.NoError(t, updateErr)
	require.NoError(t, getErr)
	assert.Equal(t, custody.RoleAdmin, stored.Role)
	assert.Equal(t, "Admin User", stored.Name)
	assert.ErrorIs(t, store.InsertUser(ctx, user), custody.ErrConflict)

	_, err := store.GetUser(ctx, "no-such-user")
	assert.ErrorIs(t, err, custody.ErrNotFound)
}

func testInsertCopiesIsAtomic(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)

	valid := custody.BookCopy{ID: GivenUniqueID(t), BookID: book.ID, Status: custody.StatusAvailable, LocationID: custody.StringPtr(location.ID)}
	orphan := custody.BookCopy{ID: GivenUniqueID(t), BookID: book.ID, Status: custody.StatusAvailable, LocationID: custody.StringPtr("no-such-location")}
	inconsistent := custody.BookCopy{ID: GivenUniqueID(t), BookID: book.ID, Status: custody.StatusAvailable}

	// act
	orphanErr := store.InsertCopies(ctx, valid, orphan)
	inconsistentErr := store.InsertCopies(ctx, valid, inconsistent)

	// assert
	assert.ErrorIs(t, orphanErr, custody.ErrNotFound)
	assert.ErrorIs(t, inconsistentErr, custody.ErrValidation)

	copies, err := store.QueryCopies(ctx, custody.BuildCopyFilter().Finalize())
	require.NoError(t, err)
	assert.Empty(t, copies, "a rejected batch must not leave partial state")
}

func testDeleteCopyGuard(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	bookCopy := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)
	GivenCopyWasBorrowed(t, ctx, store, bookCopy.ID, "user-1", location.ID, FakeClock)

	// act
	err := store.DeleteCopy(ctx, bookCopy.ID)

	// assert
	assert.ErrorIs(t, err, custody.ErrConflict)
	assert.Contains(t, err.Error(), custody.ReasonCopyIsBorrowed)

	_, getErr := store.GetCopy(ctx, bookCopy.ID)
	assert.NoError(t, getErr)
	assert.ErrorIs(t, store.DeleteCopy(ctx, "no-such-copy"), custody.ErrNotFound)
}

func testRacingBorrows(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	bookCopy := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)

	const numReaders = 8
	var successes, conflicts, others atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	transactionIDs := make([]string, numReaders)
	for i := range transactionIDs {
		transactionIDs[i] = GivenUniqueID(t)
	}

	// act
	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(txID string) {
			defer wg.Done()
			<-start

			_, _, err := store.ApplyCopyTransition(ctx, custody.CopyTransition{
				CopyID:         bookCopy.ID,
				ExpectedStatus: custody.StatusAvailable,
				NewStatus:      custody.StatusBorrowed,
				TransactionID:  txID,
				UserID:         "reader-" + txID,
				Action:         custody.ActionBorrow,
				LogLocationID:  custody.StringPtr(location.ID),
				OccurredAt:     FakeClock,
			})

			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, custody.ErrConflict):
				conflicts.Add(1)
			default:
				others.Add(1)
			}
		}(transactionIDs[i])
	}

	close(start)
	wg.Wait()

	// assert
	assert.Equal(t, int32(1), successes.Load(), "exactly one reader must win the copy")
	assert.Equal(t, int32(numReaders-1), conflicts.Load())
	assert.Zero(t, others.Load())
	assert.Equal(t, 1, CountTransactions(t, ctx, store), "exactly one borrow entry must be logged")
}

func testRacingBorrowsAndReturns(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)
	bookCopy := GivenAvailableCopy(t, ctx, store, book.ID, location.ID)

	const numWriters = 40
	var committed, conflicts, aborts, others atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	transitions := make([]custody.CopyTransition, numWriters)
	for i := range transitions {
		// every writer reads the clock before it waits, so timestamps do not follow commit order
		occurredAt := FakeClock.Add(time.Duration(numWriters-i) * time.Second)

		if i%2 == 0 {
			transitions[i] = borrowTransition(t, bookCopy.ID, "user-1", location.ID, occurredAt)
		} else {
			transitions[i] = returnTransition(t, bookCopy.ID, "user-1", location.ID, occurredAt)
		}
	}

	// act
	for _, transition := range transitions {
		wg.Add(1)
		go func(transition custody.CopyTransition) {
			defer wg.Done()
			<-start

			_, _, err := store.ApplyCopyTransition(ctx, transition)

			switch {
			case err == nil:
				committed.Add(1)
			case errors.Is(err, custody.ErrConflict):
				conflicts.Add(1)
			case errors.Is(err, custody.ErrConcurrencyConflict):
				aborts.Add(1)
			default:
				others.Add(1)
			}
		}(transition)
	}

	close(start)
	wg.Wait()

	// assert
	assert.Zero(t, others.Load())
	assert.Equal(t, int32(numWriters), committed.Load()+conflicts.Load()+aborts.Load())
	require.Positive(t, committed.Load(), "the first borrow can never conflict")

	copyLog, err := store.QueryTransactions(ctx, custody.BuildTransactionFilter().ForCopies(bookCopy.ID).Finalize())
	require.NoError(t, err)
	require.Len(t, copyLog, int(committed.Load()), "every committed transition is logged exactly once")

	// oldest first, the committed log must alternate starting with a borrow
	for i := range copyLog {
		entry := copyLog[len(copyLog)-1-i]
		expected := custody.ActionBorrow
		if i%2 == 1 {
			expected = custody.ActionReturn
		}

		assert.Equal(t, expected, entry.Action, "log position %d", i)
	}

	stored, err := store.GetCopy(ctx, bookCopy.ID)
	require.NoError(t, err)
	assert.NoError(t, custody.CheckCopyState(stored))

	if copyLog[0].Action == custody.ActionBorrow {
		assert.Equal(t, custody.StatusBorrowed, stored.Status, "the newest entry decides the current state")
	} else {
		assert.Equal(t, custody.StatusAvailable, stored.Status, "the newest entry decides the current state")
		assert.Equal(t, location.ID, stored.LocationOrEmpty())
	}
}

func testTransitionsOfDifferentCopies(t *testing.T, store custody.Store) {
	// setup
	ctx := context.Background()
	book := GivenBookWasInserted(t, ctx, store)
	location := GivenLocationWasInserted(t, ctx, store)

	const numCopies = 10
	copies := make([]custody.BookCopy, numCopies)
	for i := range copies {
		copies[i] = GivenAvailableCopy(t, ctx, store, book.ID, location.ID)
	}

	transitions := make(map[string][]custody.CopyTransition, numCopies)
	for _, bookCopy := range copies {
		transitions[bookCopy.ID] = []custody.CopyTransition{
			borrowTransition(t, bookCopy.ID, "user-"+bookCopy.ID, location.ID, FakeClock),
			returnTransition(t, bookCopy.ID, "user-"+bookCopy.ID, location.ID, FakeClock),
		}
	}

	var failures atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	// act
	for _, sequence := range transitions {
		wg.Add(1)
		go func(sequence []custody.CopyTransition) {
			defer wg.Done()
			<-start

			for _, transition := range sequence {
				if _, _, err := store.ApplyCopyTransition(ctx, transition); err != nil {
					if !custody.IsRetryable(err) {
						failures.Add(1)
					}

					return
				}
			}
		}(sequence)
	}

	close(start)
	wg.Wait()

	// assert
	assert.Zero(t, failures.Load(), "transitions of different copies must not conflict")

	for _, bookCopy := range copies {
		stored, err := store.GetCopy(ctx, bookCopy.ID)
		require.NoError(t, err)
		assert.NoError(t, custody.CheckCopyState(stored))
	}
}

func borrowTransition(t *testing.T, copyID, userID, fromLocationID string, at time.Time) custody.CopyTransition {
	t.Helper()

	return custody.CopyTransition{
		CopyID:         copyID,
		ExpectedStatus: custody.StatusAvailable,
		NewStatus:      custody.StatusBorrowed,
		TransactionID:  GivenUniqueID(t),
		UserID:         userID,
		Action:         custody.ActionBorrow,
		LogLocationID:  custody.StringPtr(fromLocationID),
		OccurredAt:     at,
	}
}

func returnTransition(t *testing.T, copyID, userID, toLocationID string, at time.Time) custody.CopyTransition {
	t.Helper()

	return custody.CopyTransition{
		CopyID:          copyID,
		ExpectedStatus:  custody.StatusBorrowed,
		NewStatus:       custody.StatusAvailable,
		NewLocationID:   custody.StringPtr(toLocationID),
		RequireLocation: true,
		TransactionID:   GivenUniqueID(t),
		UserID:          userID,
		Action:          custody.ActionReturn,
		LogLocationID:   custody.StringPtr(toLocationID),
		OccurredAt:      at,
	}
}

func transactionIDs(transactions []custody.Transaction) []string {
	ids := make([]string, 0, len(transactions))
	for _, tx := range transactions {
		ids = append(ids, tx.ID)
	}

	return ids
}

func copyIDs(copies []custody.BookCopy) []string {
	ids := make([]string, 0, len(copies))
	for _, c := range copies {
		ids = append(ids, c.ID)
	}

	return ids
}
