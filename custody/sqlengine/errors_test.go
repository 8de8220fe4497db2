package sqlengine

import (
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

func Test_classifyDBError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "pgx serialization failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, expected: custody.ErrConcurrencyConflict},
		{name: "pgx deadlock", err: &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, expected: custody.ErrConcurrencyConflict},
		{name: "pgx foreign key", err: &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, expected: custody.ErrNotFound},
		{name: "pgx unique", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, expected: custody.ErrConflict},
		{name: "pgx check", err: &pgconn.PgError{Code: pgerrcode.CheckViolation}, expected: custody.ErrValidation},
		{name: "pgx other", err: &pgconn.PgError{Code: pgerrcode.UndefinedTable}, expected: custody.ErrQueryingFailed},
		{name: "lib/pq serialization failure", err: &pq.Error{Code: pgerrcode.SerializationFailure}, expected: custody.ErrConcurrencyConflict},
		{name: "lib/pq unique", err: &pq.Error{Code: pgerrcode.UniqueViolation}, expected: custody.ErrConflict},
		{name: "sqlite busy", err: sqlite3.Error{Code: sqlite3.ErrBusy}, expected: custody.ErrConcurrencyConflict},
		{name: "sqlite locked", err: sqlite3.Error{Code: sqlite3.ErrLocked}, expected: custody.ErrConcurrencyConflict},
		{name: "sqlite foreign key", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, expected: custody.ErrNotFound},
		{name: "sqlite primary key", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, expected: custody.ErrConflict},
		{name: "unknown", err: errors.New("connection reset"), expected: custody.ErrQueryingFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			classified := classifyDBError(custody.ErrQueryingFailed, tc.err)

			// assert
			assert.ErrorIs(t, classified, tc.expected)
			assert.ErrorIs(t, classified, tc.err, "the driver error must stay in the chain")
		})
	}
}

func Test_IsRetryable_Follows_Classification(t *testing.T) {
	busy := classifyDBError(custody.ErrWritingFailed, sqlite3.Error{Code: sqlite3.ErrBusy})
	unique := classifyDBError(custody.ErrWritingFailed, &pgconn.PgError{Code: pgerrcode.UniqueViolation})

	assert.True(t, custody.IsRetryable(busy))
	assert.False(t, custody.IsRetryable(unique))
}
