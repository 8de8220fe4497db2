package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

// SQLiteDSN builds the go-sqlite3 DSN for the database file at path.
// Write transactions take the database lock on BEGIN, so racing writers wait instead of failing late.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", path)
}

// SQLiteSQLDB opens (or creates) the SQLite database at path in WAL mode.
// The pool holds a single connection, SQLite has one writer anyway.
func SQLiteSQLDB(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Join(ErrConnectingFailed, err)
		}
	}

	db, err := sql.Open("sqlite3", SQLiteDSN(path))
	if err != nil {
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	return db, nil
}

// SQLiteSQLX is SQLiteSQLDB wrapped for sqlx.
func SQLiteSQLX(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := SQLiteSQLDB(ctx, path)
	if err != nil {
		return nil, err
	}

	return sqlx.NewDb(db, "sqlite3"), nil
}
