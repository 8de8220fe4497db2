package sqlengine

import (
	"github.com/AntonStoeckl/library-custody-go/custody"
)

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithDialect selects the SQL dialect, DialectPostgres (default) or DialectSQLite.
// Stores built from a pgxpool.Pool are always PostgreSQL.
func WithDialect(dialect string) Option {
	return func(s *Store) error {
		switch dialect {
		case DialectPostgres, DialectSQLite:
			s.dialect = dialect
			return nil
		default:
			return custody.ErrUnsupportedDialect
		}
	}
}

// WithTablePrefix prefixes all table names, e.g. to run several stores in one database.
func WithTablePrefix(prefix string) Option {
	return func(s *Store) error {
		if prefix == "" {
			return custody.ErrEmptyTablePrefixSupplied
		}

		s.tables = newTableNames(prefix)

		return nil
	}
}

// WithLogger sets the logger for the Store.
//
// Debug level: SQL statements with execution timing
// Info level: completed custody primitives and migrations
// Error level: database failures.
func WithLogger(logger custody.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, it takes precedence over WithLogger.
func WithContextualLogger(logger custody.ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
// It receives operation durations, returned row counts and database errors.
func WithMetrics(collector custody.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}
