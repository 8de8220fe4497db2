package custody

import (
	"errors"
	"fmt"
)

// Domain errors. Stores and services wrap these with details, callers match with errors.Is.
var (
	// ErrNotFound is returned when a referenced book, copy, location or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a precondition on mutable state is violated,
	// e.g. the copy is not available for borrowing or a book still has copies.
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for malformed input, e.g. a missing required field.
	ErrValidation = errors.New("validation failed")

	// ErrConcurrencyConflict is returned when the store aborted the atomic unit because of a
	// concurrent writer (serialization failure, deadlock, busy database). Nothing was written
	// and the operation may be retried by the caller.
	ErrConcurrencyConflict = errors.New("concurrency conflict, the store aborted the operation")
)

// Infrastructure errors of the store implementations.
var (
	ErrNilDatabaseConnection      = errors.New("database connection must not be nil")
	ErrUnsupportedDialect         = errors.New("unsupported sql dialect")
	ErrEmptyTablePrefixSupplied   = errors.New("empty table prefix supplied")
	ErrBuildingQueryFailed        = errors.New("building the sql query failed")
	ErrQueryingFailed             = errors.New("querying the database failed")
	ErrScanningDBRowFailed        = errors.New("scanning the database row failed")
	ErrWritingFailed              = errors.New("writing to the database failed")
	ErrGettingRowsAffectedFailed  = errors.New("getting rows affected failed")
	ErrBeginningTransactionFailed = errors.New("beginning the database transaction failed")
	ErrCommittingFailed           = errors.New("committing the database transaction failed")
	ErrMigrationFailed            = errors.New("applying the schema migration failed")
)

// Reasons used in conflict errors, exported so that callers can render user-facing messages.
const (
	ReasonNotAvailable   = "book copy is not available for borrowing"
	ReasonNotBorrowed    = "book copy is not currently borrowed"
	ReasonHasCopies      = "cannot delete book with existing copies"
	ReasonCopyIsBorrowed = "cannot delete a borrowed book copy"
)

// NotFound builds an ErrNotFound error naming the missing entity.
func NotFound(entity string, id string) error {
	return fmt.Errorf("%w: %s %q does not exist", ErrNotFound, entity, id)
}

// Conflict builds an ErrConflict error with a reason.
func Conflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}

// AlreadyExists builds an ErrConflict error for a duplicate identifier.
func AlreadyExists(entity string, id string) error {
	return fmt.Errorf("%w: %s %q already exists", ErrConflict, entity, id)
}

// StatusConflict builds the ErrConflict error for a copy which is not in the expected state.
func StatusConflict(expected CopyStatus) error {
	switch expected {
	case StatusAvailable:
		return Conflict(ReasonNotAvailable)
	case StatusBorrowed:
		return Conflict(ReasonNotBorrowed)
	default:
		return Conflict(fmt.Sprintf("book copy is not %s", expected))
	}
}

// Validation builds an ErrValidation error with details.
func Validation(details string) error {
	return fmt.Errorf("%w: %s", ErrValidation, details)
}

// IsRetryable reports whether err was a transient store abort which a caller may retry.
// Stale-state conflicts (ErrConflict) are not retryable, the state has changed for good.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
