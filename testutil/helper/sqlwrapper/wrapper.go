// Package sqlwrapper opens sqlengine stores for tests, on SQLite files or on the PostgreSQL
// database named by CUSTODY_TEST_POSTGRES_DSN.
package sqlwrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-custody-go/custody/sqlengine"
	"github.com/AntonStoeckl/library-custody-go/shell/config"
)

// Adapter type constants, selected with ADAPTER_TYPE.
const (
	typePGXPool = "pgxpool"
	typeSQLDB   = "sqldb"
	typeSQLX    = "sqlx"

	EnvPostgresDSN = "CUSTODY_TEST_POSTGRES_DSN"
	envAdapterType = "ADAPTER_TYPE"
)

// Wrapper abstracts over the different connection types.
type Wrapper interface {
	GetStore() *sqlengine.Store
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	pool  *pgxpool.Pool
	store *sqlengine.Store
}

func (w *PGXPoolWrapper) GetStore() *sqlengine.Store {
	return w.store
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	db    *sql.DB
	store *sqlengine.Store
}

func (w *SQLDBWrapper) GetStore() *sqlengine.Store {
	return w.store
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing.
type SQLXWrapper struct {
	db    *sqlx.DB
	store *sqlengine.Store
}

func (w *SQLXWrapper) GetStore() *sqlengine.Store {
	return w.store
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateSQLiteWrapper opens a migrated store on a fresh SQLite file in t.TempDir().
// The connection is closed when the test ends.
func CreateSQLiteWrapper(t testing.TB, options ...sqlengine.Option) Wrapper {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "custody.db")
	options = append([]sqlengine.Option{sqlengine.WithDialect(sqlengine.DialectSQLite)}, options...)

	var wrapper Wrapper

	switch adapterTypeFromEnv() {
	case typeSQLX:
		db, err := config.SQLiteSQLX(ctx, path)
		require.NoError(t, err, "error opening the sqlite database in test setup")
		store, err := sqlengine.NewStoreFromSQLX(db, options...)
		require.NoError(t, err, "error creating the store in test setup")
		wrapper = &SQLXWrapper{db: db, store: store}

	default:
		db, err := config.SQLiteSQLDB(ctx, path)
		require.NoError(t, err, "error opening the sqlite database in test setup")
		store, err := sqlengine.NewStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating the store in test setup")
		wrapper = &SQLDBWrapper{db: db, store: store}
	}

	t.Cleanup(wrapper.Close)
	require.NoError(t, wrapper.GetStore().Migrate(ctx), "error migrating the schema in test setup")

	return wrapper
}

// CreatePostgresWrapper opens a migrated and purged store on the test database.
// The test is skipped when CUSTODY_TEST_POSTGRES_DSN is not set.
func CreatePostgresWrapper(t testing.TB, options ...sqlengine.Option) Wrapper {
	t.Helper()

	dsn := os.Getenv(EnvPostgresDSN)
	if dsn == "" {
		t.Skipf("%s is not set", EnvPostgresDSN)
	}

	ctx := context.Background()

	var wrapper Wrapper

	switch adapterType := adapterTypeFromEnv(); adapterType {
	case typePGXPool, "":
		pool, err := config.PostgresPGXPool(ctx, dsn)
		require.NoError(t, err, "error connecting to DB pool in test setup")
		store, err := sqlengine.NewStoreFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating the store in test setup")
		wrapper = &PGXPoolWrapper{pool: pool, store: store}

	case typeSQLDB:
		db, err := config.PostgresSQLDB(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		store, err := sqlengine.NewStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating the store in test setup")
		wrapper = &SQLDBWrapper{db: db, store: store}

	case typeSQLX:
		db, err := config.PostgresSQLX(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		store, err := sqlengine.NewStoreFromSQLX(db, options...)
		require.NoError(t, err, "error creating the store in test setup")
		wrapper = &SQLXWrapper{db: db, store: store}

	default:
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}

	t.Cleanup(wrapper.Close)
	require.NoError(t, wrapper.GetStore().Migrate(ctx), "error migrating the schema in test setup")
	CleanUp(t, wrapper)

	return wrapper
}

// CleanUp removes all rows from the custody tables.
func CleanUp(t testing.TB, wrapper Wrapper) {
	t.Helper()

	require.NoError(t, wrapper.GetStore().PurgeAll(context.Background()), "error cleaning up the custody tables")
}

func adapterTypeFromEnv() string {
	return strings.ToLower(os.Getenv(envAdapterType))
}
