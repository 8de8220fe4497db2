package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/sqlengine/internal/adapters"
)

const (
	// DialectPostgres selects PostgreSQL syntax and $n placeholders.
	DialectPostgres = "postgres"

	// DialectSQLite selects SQLite syntax and ? placeholders.
	DialectSQLite = "sqlite3"

	entityBook     = "book"
	entityLocation = "location"
	entityCopy     = "book copy"
	entityUser     = "user"

	colID             = "id"
	colTitle          = "title"
	colAuthor         = "author"
	colISBN           = "isbn"
	colDescription    = "description"
	colCoverImage     = "cover_image"
	colGenre          = "genre"
	colCreatedAt      = "created_at"
	colName           = "name"
	colAddress        = "address"
	colIsActive       = "is_active"
	colBookID         = "book_id"
	colStatus         = "status"
	colLocationID     = "location_id"
	colEmail          = "email"
	colRole           = "role"
	colCopyID         = "copy_id"
	colUserID         = "user_id"
	colAction         = "action"
	colSequenceNumber = "sequence_number"
	colVersion        = "version"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type tableNames struct {
	books         string
	locations     string
	copies        string
	users         string
	transactions  string
	schemaVersion string
}

func newTableNames(prefix string) tableNames {
	return tableNames{
		books:         prefix + "books",
		locations:     prefix + "locations",
		copies:        prefix + "book_copies",
		users:         prefix + "users",
		transactions:  prefix + "transactions",
		schemaVersion: prefix + "schema_version",
	}
}

// Store is the SQL custody.Store. It is safe for concurrent use as far as the underlying
// connection pool is.
type Store struct {
	db               adapters.DBAdapter
	dialect          string
	builder          goqu.DialectWrapper
	tables           tableNames
	logger           custody.Logger
	contextualLogger custody.ContextualLogger
	metricsCollector custody.MetricsCollector
}

var (
	_ custody.Store  = (*Store)(nil)
	_ custody.Purger = (*Store)(nil)
)

// NewStoreFromPGXPool creates a PostgreSQL Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, custody.ErrNilDatabaseConnection
	}

	s, err := newStore(adapters.NewPGXAdapter(db), options...)
	if err != nil {
		return nil, err
	}

	if s.dialect != DialectPostgres {
		return nil, custody.ErrUnsupportedDialect
	}

	return s, nil
}

// NewStoreFromSQLDB creates a Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, custody.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, custody.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: DialectPostgres,
		tables:  newTableNames(""),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	s.builder = goqu.Dialect(s.dialect)

	return s, nil
}

// Dialect returns the SQL dialect of the Store.
func (s *Store) Dialect() string {
	return s.dialect
}

/***** statement execution *****/

type sqlStatement interface {
	ToSQL() (string, []any, error)
}

func (s *Store) toSQL(ctx context.Context, statement sqlStatement) (string, []any, error) {
	query, args, err := statement.ToSQL()
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err)
		return "", nil, errors.Join(custody.ErrBuildingQueryFailed, err)
	}

	return query, args, nil
}

// query runs a SELECT. The caller must close the returned rows.
func (s *Store) query(ctx context.Context, db adapters.DBQuerier, action string, statement sqlStatement) (adapters.DBRows, error) {
	query, args, err := s.toSQL(ctx, statement)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := db.Query(ctx, query, args...)
	s.logQueryWithDuration(ctx, query, action, time.Since(start))

	if err != nil {
		s.logError(ctx, logMsgDBQueryFailed, err, logAttrQuery, query)
		s.recordErrorMetrics(ctx, action, err)

		return nil, classifyDBError(custody.ErrQueryingFailed, err)
	}

	return rows, nil
}

// exec runs an INSERT, UPDATE or DELETE and returns the number of affected rows.
func (s *Store) exec(ctx context.Context, db adapters.DBQuerier, action string, statement sqlStatement) (int64, error) {
	query, args, err := s.toSQL(ctx, statement)
	if err != nil {
		return 0, err
	}

	return s.execRaw(ctx, db, action, query, args...)
}

func (s *Store) execRaw(ctx context.Context, db adapters.DBQuerier, action string, query string, args ...any) (int64, error) {
	start := time.Now()
	result, err := db.Exec(ctx, query, args...)
	s.logQueryWithDuration(ctx, query, action, time.Since(start))

	if err != nil {
		s.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, query)
		s.recordErrorMetrics(ctx, action, err)

		return 0, classifyDBError(custody.ErrWritingFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, err)
		return 0, errors.Join(custody.ErrGettingRowsAffectedFailed, err)
	}

	return rowsAffected, nil
}

// inTransaction runs fn in one database transaction. It commits when fn returns nil
// and rolls back otherwise, returning fn's error unchanged.
func (s *Store) inTransaction(ctx context.Context, fn func(tx adapters.DBTx) error) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		s.logError(ctx, logMsgBeginTxFailed, err)
		return classifyDBError(custody.ErrBeginningTransactionFailed, err)
	}

	if err = fn(tx); err != nil {
		if rollbackErr := tx.Rollback(context.WithoutCancel(ctx)); rollbackErr != nil {
			s.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}

		return err
	}

	if err = tx.Commit(ctx); err != nil {
		s.logError(ctx, logMsgCommitFailed, err)
		return classifyDBError(custody.ErrCommittingFailed, err)
	}

	return nil
}

// closeRows closes database rows and logs a failure.
func (s *Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

func (s *Store) scanFailed(ctx context.Context, err error) error {
	s.logError(ctx, logMsgScanRowFailed, err)
	return errors.Join(custody.ErrScanningDBRowFailed, err)
}

// exists reports whether a row with the given id exists in table.
func (s *Store) exists(ctx context.Context, db adapters.DBQuerier, table string, id string) (bool, error) {
	rows, err := s.query(ctx, db, actionExists, s.builder.From(table).Prepared(true).
		Select(goqu.C(colID)).
		Where(goqu.C(colID).Eq(id)).
		Limit(1))
	if err != nil {
		return false, err
	}
	defer s.closeRows(ctx, rows)

	found := rows.Next()
	if err = rows.Err(); err != nil {
		return false, s.scanFailed(ctx, err)
	}

	return found, nil
}

// orderedText orders by a text column using byte order in both dialects.
func (s *Store) orderedText(column string) exp.OrderedExpression {
	if s.dialect == DialectPostgres {
		return goqu.L(`? COLLATE "C"`, goqu.I(column)).Asc()
	}

	return goqu.I(column).Asc()
}

/***** value conversion *****/

// nullable turns an optional id into a SQL value.
func nullable(id *string) any {
	if id == nil {
		return nil
	}

	return *id
}

// toDBTime normalizes timestamps to UTC with the microsecond precision both databases store.
func toDBTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func encodeGenre(genre []string) (string, error) {
	if genre == nil {
		genre = []string{}
	}

	encoded, err := json.Marshal(genre)
	if err != nil {
		return "", errors.Join(custody.ErrWritingFailed, err)
	}

	return string(encoded), nil
}

func decodeGenre(raw []byte) ([]string, error) {
	var genre []string
	if len(raw) == 0 {
		return []string{}, nil
	}

	if err := json.Unmarshal(raw, &genre); err != nil {
		return nil, errors.Join(custody.ErrScanningDBRowFailed, err)
	}

	return genre, nil
}
