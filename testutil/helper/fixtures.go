package helper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

// FakeClock is a fixed point in time used to arrange deterministic timestamps.
var FakeClock = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func GivenUniqueID(t testing.TB) string {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return id.String()
}

func FixtureBook(t testing.TB) custody.Book {
	t.Helper()

	return custody.Book{
		ID:          GivenUniqueID(t),
		Title:       "Learning Domain-Driven Design",
		Author:      "Vlad Khononov",
		ISBN:        "978-1-098-10013-1",
		Description: "Aligning software architecture and business strategy",
		Genre:       []string{"Software", "Architecture"},
		CreatedAt:   FakeClock,
	}
}

func FixtureLocation(t testing.TB) custody.Location {
	t.Helper()

	return custody.Location{
		ID:       GivenUniqueID(t),
		Name:     "Central Library",
		Address:  "123 Main Street, Cityville",
		IsActive: true,
	}
}

func FixtureUser(t testing.TB) custody.User {
	t.Helper()

	id := GivenUniqueID(t)

	return custody.User{
		ID:        id,
		Email:     "reader-" + id[len(id)-6:] + "@example.com",
		Name:      "Reader One",
		Role:      custody.RoleReader,
		CreatedAt: FakeClock,
	}
}

func GivenBookWasInserted(t testing.TB, ctx context.Context, store custody.CatalogStore) custody.Book {
	t.Helper()

	book := FixtureBook(t)
	require.NoError(t, store.InsertBook(ctx, book), "error in arranging test data")

	return book
}

func GivenLocationWasInserted(t testing.TB, ctx context.Context, store custody.CatalogStore) custody.Location {
	t.Helper()

	location := FixtureLocation(t)
	require.NoError(t, store.InsertLocation(ctx, location), "error in arranging test data")

	return location
}

func GivenUserWasInserted(t testing.TB, ctx context.Context, store custody.CatalogStore) custody.User {
	t.Helper()

	user := FixtureUser(t)
	require.NoError(t, store.InsertUser(ctx, user), "error in arranging test data")

	return user
}

func GivenAvailableCopy(t testing.TB, ctx context.Context, store custody.CatalogStore, bookID, locationID string) custody.BookCopy {
	t.Helper()

	bookCopy := custody.BookCopy{
		ID:         GivenUniqueID(t),
		BookID:     bookID,
		Status:     custody.StatusAvailable,
		LocationID: custody.StringPtr(locationID),
	}
	require.NoError(t, store.InsertCopies(ctx, bookCopy), "error in arranging test data")

	return bookCopy
}

// GivenCopyWasBorrowed borrows copyID for userID through the store primitive and returns the log entry.
func GivenCopyWasBorrowed(t testing.TB, ctx context.Context, store custody.CustodyStore, copyID, userID, fromLocationID string, at time.Time) custody.Transaction {
	t.Helper()

	_, tx, err := store.ApplyCopyTransition(ctx, custody.CopyTransition{
		CopyID:         copyID,
		ExpectedStatus: custody.StatusAvailable,
		NewStatus:      custody.StatusBorrowed,
		TransactionID:  GivenUniqueID(t),
		UserID:         userID,
		Action:         custody.ActionBorrow,
		LogLocationID:  custody.StringPtr(fromLocationID),
		OccurredAt:     at,
	})
	require.NoError(t, err, "error in arranging test data")

	return tx
}

// GivenCopyWasReturned returns copyID for userID to toLocationID through the store primitive.
func GivenCopyWasReturned(t testing.TB, ctx context.Context, store custody.CustodyStore, copyID, userID, toLocationID string, at time.Time) custody.Transaction {
	t.Helper()

	_, tx, err := store.ApplyCopyTransition(ctx, custody.CopyTransition{
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
	})
	require.NoError(t, err, "error in arranging test data")

	return tx
}

// CountTransactions returns the length of the whole transaction log.
func CountTransactions(t testing.TB, ctx context.Context, reader custody.HistoryReader) int {
	t.Helper()

	all, err := reader.QueryTransactions(ctx, custody.BuildTransactionFilter().Finalize())
	require.NoError(t, err, "error in reading test data")

	return len(all)
}
