// Package adapters provide the database adapters of the SQL custody store.
//
// The adapters hide the differences between pgxpool.Pool, sql.DB and sqlx.DB behind one small
// interface for queries, statements and transactions, so the store works with any of them.
package adapters
