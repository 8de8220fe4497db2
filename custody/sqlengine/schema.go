package sqlengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/sqlengine/internal/adapters"
)

type migration struct {
	version    int
	statements []string
}

// migrations returns the ordered schema migrations for the Store's dialect and table names.
func (s *Store) migrations() []migration {
	t := s.tables

	timestamp := "TIMESTAMPTZ"
	genre := "JSONB NOT NULL DEFAULT '[]'"
	sequence := "BIGSERIAL PRIMARY KEY"

	if s.dialect == DialectSQLite {
		timestamp = "TIMESTAMP"
		genre = "TEXT NOT NULL DEFAULT '[]'"
		sequence = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	return []migration{
		{
			version: 1,
			statements: []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	isbn TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	cover_image TEXT NOT NULL DEFAULT '',
	genre %s,
	created_at %s NOT NULL
)`, t.books, genre, timestamp),

				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	address TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
)`, t.locations),

				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	book_id TEXT NOT NULL REFERENCES %s (id),
	status TEXT NOT NULL CHECK (status IN ('available', 'borrowed', 'in-transit')),
	location_id TEXT NULL REFERENCES %s (id),
	CHECK (status <> 'borrowed' OR location_id IS NULL),
	CHECK (status <> 'available' OR location_id IS NOT NULL)
)`, t.copies, t.books, t.locations),

				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_book_id_idx ON %s (book_id)`, t.copies, t.copies),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_location_id_idx ON %s (location_id)`, t.copies, t.copies),

				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	name TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('reader', 'admin')),
	created_at %s NOT NULL
)`, t.users, timestamp),

				// The log keeps no foreign keys: entries outlive deleted copies and books.
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	sequence_number %s,
	id TEXT NOT NULL UNIQUE,
	book_id TEXT NOT NULL,
	copy_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	action TEXT NOT NULL CHECK (action IN ('borrow', 'return', 'donate')),
	location_id TEXT NULL,
	created_at %s NOT NULL
)`, t.transactions, sequence, timestamp),

				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_id_idx ON %s (user_id, created_at)`, t.transactions, t.transactions),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_book_id_idx ON %s (book_id, created_at)`, t.transactions, t.transactions),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_copy_id_idx ON %s (copy_id)`, t.transactions, t.transactions),
			},
		},
		{
			// the log is read in sequence order
			version: 2,
			statements: []string{
				fmt.Sprintf(`DROP INDEX IF EXISTS %s_user_id_idx`, t.transactions),
				fmt.Sprintf(`DROP INDEX IF EXISTS %s_book_id_idx`, t.transactions),
				fmt.Sprintf(`DROP INDEX IF EXISTS %s_copy_id_idx`, t.transactions),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_seq_idx ON %s (user_id, sequence_number)`, t.transactions, t.transactions),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_book_seq_idx ON %s (book_id, sequence_number)`, t.transactions, t.transactions),
				fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_copy_seq_idx ON %s (copy_id, sequence_number)`, t.transactions, t.transactions),
			},
		},
	}
}

// Migrate brings the schema to the latest version. It is safe to call on every start.
func (s *Store) Migrate(ctx context.Context) error {
	createVersionTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (version INTEGER NOT NULL)`, s.tables.schemaVersion)
	if _, err := s.execRaw(ctx, s.db, actionMigrate, createVersionTable); err != nil {
		return errors.Join(custody.ErrMigrationFailed, err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return errors.Join(custody.ErrMigrationFailed, err)
	}

	applied := 0

	for _, m := range s.migrations() {
		if m.version <= current {
			continue
		}

		err = s.inTransaction(ctx, func(tx adapters.DBTx) error {
			for _, statement := range m.statements {
				if _, execErr := s.execRaw(ctx, tx, actionMigrate, statement); execErr != nil {
					return execErr
				}
			}

			_, execErr := s.exec(ctx, tx, actionMigrate, s.builder.Insert(s.tables.schemaVersion).Prepared(true).
				Rows(goqu.Record{colVersion: m.version}))

			return execErr
		})
		if err != nil {
			return errors.Join(custody.ErrMigrationFailed, err)
		}

		applied++
		s.logOperation(ctx, logMsgMigrationApplied, logAttrSchemaVersion, m.version, logAttrDialect, s.dialect)
	}

	if applied == 0 {
		s.logOperation(ctx, logMsgSchemaUpToDate, logAttrSchemaVersion, current, logAttrDialect, s.dialect)
	}

	return nil
}

// SchemaVersion returns the latest applied migration, 0 for an empty database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	rows, err := s.query(ctx, s.db, actionMigrate, s.builder.From(s.tables.schemaVersion).Prepared(true).
		Select(goqu.COALESCE(goqu.MAX(colVersion), 0)))
	if err != nil {
		return 0, err
	}
	defer s.closeRows(ctx, rows)

	version := 0
	if rows.Next() {
		if err = rows.Scan(&version); err != nil {
			return 0, s.scanFailed(ctx, err)
		}
	}

	if err = rows.Err(); err != nil {
		return 0, s.scanFailed(ctx, err)
	}

	return version, nil
}

// PurgeAll deletes all rows of all custody tables in one transaction. The schema stays.
func (s *Store) PurgeAll(ctx context.Context) error {
	tables := []string{s.tables.transactions, s.tables.copies, s.tables.books, s.tables.locations, s.tables.users}

	err := s.inTransaction(ctx, func(tx adapters.DBTx) error {
		for _, table := range tables {
			if _, err := s.exec(ctx, tx, actionPurge, s.builder.Delete(table).Prepared(true)); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logOperation(ctx, actionPurge)

	return nil
}
