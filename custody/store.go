package custody

import (
	"context"
)

// CustodyStore is the narrow interface the custody engine needs from a store:
// "conditional read-modify-write on one record" coupled with "append row".
//
// Both methods must be all-or-nothing. A failed precondition returns ErrNotFound or ErrConflict,
// a store-level abort returns ErrConcurrencyConflict, and in every error case nothing is written.
type CustodyStore interface {
	// ApplyCopyTransition performs the guarded status change on one copy and appends the
	// resulting Transaction, whose BookID is taken from the copy record.
	ApplyCopyTransition(ctx context.Context, transition CopyTransition) (BookCopy, Transaction, error)

	// ApplyDonation creates a new available copy of an existing book at an existing location
	// and appends the donate Transaction.
	ApplyDonation(ctx context.Context, donation Donation) (BookCopy, Transaction, error)
}

// CatalogStore holds books, locations, copies and users.
//
// DeleteBook and DeleteCopy must apply their guard (no copies / not borrowed) in the same
// atomic unit as the delete.
type CatalogStore interface {
	InsertBook(ctx context.Context, book Book) error
	GetBook(ctx context.Context, bookID string) (Book, error)
	UpdateBook(ctx context.Context, book Book) error
	DeleteBook(ctx context.Context, bookID string) error
	ListBooks(ctx context.Context) ([]Book, error)

	InsertLocation(ctx context.Context, location Location) error
	GetLocation(ctx context.Context, locationID string) (Location, error)
	UpdateLocation(ctx context.Context, location Location) error
	ListLocations(ctx context.Context, onlyActive bool) ([]Location, error)

	// InsertCopies adds copies in one atomic unit, verifying that their book and location exist.
	InsertCopies(ctx context.Context, copies ...BookCopy) error
	GetCopy(ctx context.Context, copyID string) (BookCopy, error)
	DeleteCopy(ctx context.Context, copyID string) error

	InsertUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, userID string) (User, error)
	UpdateUser(ctx context.Context, user User) error
}

// HistoryReader serves the read-side projections.
type HistoryReader interface {
	// QueryTransactions returns matching log entries, newest first. The order is the commit
	// order of the entries, not their CreatedAt.
	QueryTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)

	// QueryCopies returns matching copies ordered by id.
	QueryCopies(ctx context.Context, filter CopyFilter) ([]BookCopy, error)
}

// Store is the full set of capabilities a backend provides.
type Store interface {
	CustodyStore
	CatalogStore
	HistoryReader
}

// Purger removes all data. It is used by demo data tooling only.
type Purger interface {
	PurgeAll(ctx context.Context) error
}
