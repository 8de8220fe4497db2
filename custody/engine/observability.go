package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

const (
	// OperationDurationMetric tracks the duration of custody operations.
	OperationDurationMetric = "custody_operation_duration_seconds"

	// OperationCallsMetric counts custody operations by outcome.
	OperationCallsMetric = "custody_operation_calls_total"

	// ConflictsMetric counts operations rejected because of stale state or a transient store abort.
	ConflictsMetric = "custody_conflicts_total"

	StatusSuccess             = "success"
	StatusConflict            = "conflict"
	StatusConcurrencyConflict = "concurrency_conflict"
	StatusNotFound            = "not_found"
	StatusValidation          = "validation"
	StatusCanceled            = "canceled"
	StatusTimeout             = "timeout"
	StatusError               = "error"

	spanNamePrefix = "custody."

	operationBorrow = "borrow"
	operationReturn = "return"
	operationDonate = "donate"

	labelOperation = "operation"
	labelStatus    = "status"

	logMsgOperation = "custody operation: "
	logMsgStarted   = " started"
	logMsgCompleted = " completed"
	logMsgRejected  = " rejected"
	logMsgFailed    = " failed"

	logAttrCopyID        = "copy_id"
	logAttrBookID        = "book_id"
	logAttrUserID        = "user_id"
	logAttrLocationID    = "location_id"
	logAttrTransactionID = "transaction_id"
	logAttrStatus        = "status"
	logAttrDurationMS    = "duration_ms"
	logAttrError         = "error"
)

// ClassifyError maps an operation error to the status label used in logs and metrics.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, custody.ErrConcurrencyConflict):
		return StatusConcurrencyConflict
	case errors.Is(err, custody.ErrConflict):
		return StatusConflict
	case errors.Is(err, custody.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, custody.ErrValidation):
		return StatusValidation
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusError
	}
}

// begin logs the start of an operation and opens its span.
func (e *Engine) begin(ctx context.Context, operation string, attrs ...any) (context.Context, custody.SpanContext) {
	msg := logMsgOperation + operation + logMsgStarted

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, msg, attrs...)
	} else if e.logger != nil {
		e.logger.Debug(msg, attrs...)
	}

	if e.tracingCollector == nil {
		return ctx, nil
	}

	return e.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, toSpanAttrs(attrs))
}

func (e *Engine) finishSpan(span custody.SpanContext, status string, attrs []any) {
	if e.tracingCollector == nil || span == nil {
		return
	}

	e.tracingCollector.FinishSpan(span, status, toSpanAttrs(attrs))
}

// toSpanAttrs converts slog style key/value pairs to span attributes.
func toSpanAttrs(attrs []any) map[string]string {
	result := make(map[string]string, len(attrs)/2)

	for i := 0; i+1 < len(attrs); i += 2 {
		if key, ok := attrs[i].(string); ok {
			result[key] = fmt.Sprint(attrs[i+1])
		}
	}

	return result
}

func (e *Engine) succeed(ctx context.Context, span custody.SpanContext, operation string, start time.Time, attrs ...any) {
	duration := time.Since(start)
	msg := logMsgOperation + operation + logMsgCompleted
	allAttrs := append(attrs, logAttrStatus, StatusSuccess, logAttrDurationMS, toMilliseconds(duration))

	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, msg, allAttrs...)
	} else if e.logger != nil {
		e.logger.Info(msg, allAttrs...)
	}

	e.recordMetrics(ctx, operation, StatusSuccess, duration)
	e.finishSpan(span, StatusSuccess, allAttrs)
}

// fail logs and records a failed operation and returns err unchanged.
// Rejections caused by the caller or by stale state are warnings, everything else is an error.
func (e *Engine) fail(ctx context.Context, span custody.SpanContext, operation string, start time.Time, err error, attrs ...any) error {
	duration := time.Since(start)
	status := ClassifyError(err)
	allAttrs := append(attrs, logAttrStatus, status, logAttrDurationMS, toMilliseconds(duration), logAttrError, err.Error())

	switch status {
	case StatusConflict, StatusConcurrencyConflict, StatusNotFound, StatusValidation:
		msg := logMsgOperation + operation + logMsgRejected
		if e.contextualLogger != nil {
			e.contextualLogger.WarnContext(ctx, msg, allAttrs...)
		} else if e.logger != nil {
			e.logger.Warn(msg, allAttrs...)
		}

	default:
		msg := logMsgOperation + operation + logMsgFailed
		if e.contextualLogger != nil {
			e.contextualLogger.ErrorContext(ctx, msg, allAttrs...)
		} else if e.logger != nil {
			e.logger.Error(msg, allAttrs...)
		}
	}

	e.recordMetrics(ctx, operation, status, duration)
	e.finishSpan(span, status, allAttrs)

	return err
}

func (e *Engine) recordMetrics(ctx context.Context, operation, status string, duration time.Duration) {
	if e.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation: operation,
		labelStatus:    status,
	}

	isConflict := status == StatusConflict || status == StatusConcurrencyConflict

	if contextualCollector, ok := e.metricsCollector.(custody.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, OperationDurationMetric, duration, labels)
		contextualCollector.IncrementCounterContext(ctx, OperationCallsMetric, labels)

		if isConflict {
			contextualCollector.IncrementCounterContext(ctx, ConflictsMetric, labels)
		}

		return
	}

	e.metricsCollector.RecordDuration(OperationDurationMetric, duration, labels)
	e.metricsCollector.IncrementCounter(OperationCallsMetric, labels)

	if isConflict {
		e.metricsCollector.IncrementCounter(ConflictsMetric, labels)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
