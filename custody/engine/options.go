package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

var (
	// ErrNilStore is returned when NewEngine receives no store.
	ErrNilStore = errors.New("custody store must not be nil")

	// ErrNilClock is returned when WithClock receives nil.
	ErrNilClock = errors.New("clock must not be nil")

	// ErrNilIDGenerator is returned when WithIDGenerator receives nil.
	ErrNilIDGenerator = errors.New("id generator must not be nil")
)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine) error

// WithLogger sets the logger for the Engine.
//
// Debug level: operation start with its input
// Info level: completed operations with duration
// Warn level: rejected operations (conflict, not found, validation)
// Error level: store failures.
func WithLogger(logger custody.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, it takes precedence over WithLogger.
func WithContextualLogger(logger custody.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
// If the collector also implements custody.ContextualMetricsCollector, the context-aware methods are used.
func WithMetrics(collector custody.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector, every operation gets one span named "custody.<operation>".
func WithTracing(collector custody.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}

// WithClock replaces time.Now as the source of transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		if now == nil {
			return ErrNilClock
		}

		e.now = now

		return nil
	}
}

// WithIDGenerator replaces the UUIDv7 generator for copy and transaction ids.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(e *Engine) error {
		if newID == nil {
			return ErrNilIDGenerator
		}

		e.newID = newID

		return nil
	}
}

func newUUIDv7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}
