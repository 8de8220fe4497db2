package sqlengine

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

const (
	errorTypeConcurrency = "concurrency"
	errorTypeForeignKey  = "foreign_key"
	errorTypeUnique      = "unique"
	errorTypeCheck       = "check"
	errorTypeOther       = "database"
)

// classifyDBError joins a database error with the domain sentinel it stands for,
// falling back to the given infrastructure sentinel.
func classifyDBError(fallback error, err error) error {
	switch dbErrorType(err) {
	case errorTypeConcurrency:
		return errors.Join(custody.ErrConcurrencyConflict, err)
	case errorTypeForeignKey:
		return errors.Join(custody.ErrNotFound, err)
	case errorTypeUnique:
		return errors.Join(custody.ErrConflict, err)
	case errorTypeCheck:
		return errors.Join(custody.ErrValidation, err)
	default:
		return errors.Join(fallback, err)
	}
}

// dbErrorType maps PostgreSQL SQLSTATE codes (pgx and lib/pq) and SQLite result codes to an error type.
func dbErrorType(err error) string {
	if code, ok := postgresCode(err); ok {
		switch code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return errorTypeConcurrency
		case pgerrcode.ForeignKeyViolation:
			return errorTypeForeignKey
		case pgerrcode.UniqueViolation:
			return errorTypeUnique
		case pgerrcode.CheckViolation:
			return errorTypeCheck
		default:
			return errorTypeOther
		}
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return errorTypeConcurrency
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return errorTypeForeignKey
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique, sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return errorTypeUnique
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck:
			return errorTypeCheck
		}
	}

	return errorTypeOther
}

func postgresCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}

	return "", false
}
