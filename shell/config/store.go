package config

import (
	"context"
	"log/slog"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/memstore"
	"github.com/AntonStoeckl/library-custody-go/custody/sqlengine"
)

// Backend is an opened store together with its connection.
type Backend struct {
	Store  custody.Store
	Purger custody.Purger
	sql    *sqlengine.Store
	close  func() error
}

// Migrate applies the schema migrations, it does nothing for the memory store.
func (b *Backend) Migrate(ctx context.Context) error {
	if b.sql == nil {
		return nil
	}

	return b.sql.Migrate(ctx)
}

// SchemaVersion returns the applied schema version, 0 for the memory store.
func (b *Backend) SchemaVersion(ctx context.Context) (int, error) {
	if b.sql == nil {
		return 0, nil
	}

	return b.sql.SchemaVersion(ctx)
}

// Close releases the database connection.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}

	return b.close()
}

// OpenStore opens the store selected by cfg. SQL stores log through logger.
func OpenStore(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	options := []sqlengine.Option{sqlengine.WithContextualLogger(logger)}

	switch cfg.Store {
	case StoreMemory:
		store := memstore.New()
		return &Backend{Store: store, Purger: store}, nil

	case StoreSQLite:
		options = append(options, sqlengine.WithDialect(sqlengine.DialectSQLite))

		if cfg.DBDriver == DriverSQLX {
			db, err := SQLiteSQLX(ctx, cfg.DSN)
			if err != nil {
				return nil, err
			}

			store, err := sqlengine.NewStoreFromSQLX(db, options...)
			if err != nil {
				_ = db.Close()
				return nil, err
			}

			return sqlBackend(store, db.Close), nil
		}

		db, err := SQLiteSQLDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}

		store, err := sqlengine.NewStoreFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		return sqlBackend(store, db.Close), nil

	case StorePostgres:
		return openPostgres(ctx, cfg, options)

	default:
		return nil, cfg.Validate()
	}
}

func openPostgres(ctx context.Context, cfg Config, options []sqlengine.Option) (*Backend, error) {
	switch cfg.DBDriver {
	case DriverSQLDB:
		db, err := PostgresSQLDB(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}

		store, err := sqlengine.NewStoreFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		return sqlBackend(store, db.Close), nil

	case DriverSQLX:
		db, err := PostgresSQLX(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}

		store, err := sqlengine.NewStoreFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		return sqlBackend(store, db.Close), nil

	default:
		pool, err := PostgresPGXPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}

		store, err := sqlengine.NewStoreFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, err
		}

		return sqlBackend(store, func() error { pool.Close(); return nil }), nil
	}
}

func sqlBackend(store *sqlengine.Store, closeFn func() error) *Backend {
	return &Backend{Store: store, Purger: store, sql: store, close: closeFn}
}
