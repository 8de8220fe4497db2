package sqlengine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

const (
	// OperationDurationMetric tracks the duration of store operations.
	OperationDurationMetric = "custody_store_operation_duration_seconds"

	// RowsReturnedMetric tracks the number of rows returned by read operations.
	RowsReturnedMetric = "custody_store_rows_returned"

	// DatabaseErrorsMetric counts failed database calls by error type.
	DatabaseErrorsMetric = "custody_store_database_errors_total"

	statusSuccess  = "success"
	statusRejected = "rejected"
	statusError    = "error"

	labelOperation = "operation"
	labelStatus    = "status"
	labelErrorType = "error_type"

	actionTransition   = "apply_copy_transition"
	actionDonation     = "apply_donation"
	actionQueryTx      = "query_transactions"
	actionQueryCopies  = "query_copies"
	actionExists       = "exists"
	actionInsert       = "insert"
	actionSelect       = "select"
	actionUpdate       = "update"
	actionDelete       = "delete"
	actionMigrate      = "migrate"
	actionPurge        = "purge"
	actionAppendLog    = "append_transaction"
	actionInsertCopies = "insert_copies"

	logMsgBuildQueryFailed   = "failed to build sql query"
	logMsgDBQueryFailed      = "database query execution failed"
	logMsgDBExecFailed       = "database statement execution failed"
	logMsgRowsAffectedFailed = "failed to get rows affected count"
	logMsgScanRowFailed      = "failed to scan database row"
	logMsgCloseRowsFailed    = "failed to close database rows"
	logMsgBeginTxFailed      = "failed to begin database transaction"
	logMsgCommitFailed       = "failed to commit database transaction"
	logMsgRollbackFailed     = "failed to roll back database transaction"
	logMsgSQLExecuted        = "executed sql for: "
	logMsgOperation          = "custody store operation: "
	logMsgMigrationApplied   = "schema migration applied"
	logMsgSchemaUpToDate     = "schema is up to date"

	logAttrError          = "error"
	logAttrQuery          = "query"
	logAttrDurationMS     = "duration_ms"
	logAttrCopyID         = "copy_id"
	logAttrBookID         = "book_id"
	logAttrTransactionID  = "transaction_id"
	logAttrRowCount       = "row_count"
	logAttrSchemaVersion  = "schema_version"
	logAttrDialect        = "dialect"
	logAttrRejectedReason = "reason"
)

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s *Store) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	msg := logMsgSQLExecuted + action

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
		return
	}

	if s.logger != nil {
		s.logger.Debug(msg, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (s *Store) logOperation(ctx context.Context, action string, args ...any) {
	msg := logMsgOperation + action

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Store) logWarn(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
		return
	}

	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// logError logs error information at the error level.
func (s *Store) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if s.logger != nil {
		s.logger.Error(msg, allArgs...)
	}
}

// finishOperation records the duration of a custody primitive or read and returns err unchanged.
// Precondition failures count as rejected, not as errors.
func (s *Store) finishOperation(ctx context.Context, operation string, start time.Time, err error) error {
	status := statusSuccess

	switch {
	case err == nil:
	case errors.Is(err, custody.ErrNotFound), errors.Is(err, custody.ErrConflict), errors.Is(err, custody.ErrValidation):
		status = statusRejected
	default:
		status = statusError
	}

	s.recordDuration(ctx, operation, status, time.Since(start))

	return err
}

func (s *Store) recordDuration(ctx context.Context, operation, status string, duration time.Duration) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: operation, labelStatus: status}

	if contextualCollector, ok := s.metricsCollector.(custody.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, OperationDurationMetric, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(OperationDurationMetric, duration, labels)
}

func (s *Store) recordRowsReturned(ctx context.Context, operation string, count int) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: operation, labelStatus: statusSuccess}

	if contextualCollector, ok := s.metricsCollector.(custody.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, RowsReturnedMetric, float64(count), labels)
		return
	}

	s.metricsCollector.RecordValue(RowsReturnedMetric, float64(count), labels)
}

func (s *Store) recordErrorMetrics(ctx context.Context, operation string, err error) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: operation,
		labelStatus:    statusError,
		labelErrorType: dbErrorType(err),
	}

	if contextualCollector, ok := s.metricsCollector.(custody.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, DatabaseErrorsMetric, labels)
		return
	}

	s.metricsCollector.IncrementCounter(DatabaseErrorsMetric, labels)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
