// Package sqlengine provides a custody.Store on top of a SQL database.
//
// PostgreSQL is supported through pgxpool.Pool, sql.DB and sqlx.DB, SQLite through sql.DB or sqlx.DB
// with the mattn/go-sqlite3 driver. All queries are built with goqu as prepared statements.
//
// Every custody primitive runs in one database transaction: a guarded UPDATE (or INSERT for donations)
// plus the INSERT into the transactions table. The guard lives in the WHERE clause of the UPDATE,
// so two writers racing for the same copy cannot both succeed. The loser sees zero affected rows
// and gets custody.ErrConflict. Database aborts (serialization failure, deadlock, busy database)
// surface as custody.ErrConcurrencyConflict and leave nothing behind.
//
// Call Migrate once before use to create the tables.
//
// Example:
//
//	pool, err := pgxpool.NewWithConfig(ctx, config.PostgresPGXPoolConfig(dsn))
//	store, err := sqlengine.NewStoreFromPGXPool(pool, sqlengine.WithLogger(logger))
//	err = store.Migrate(ctx)
package sqlengine
