package oteladapters_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"

	"github.com/AntonStoeckl/library-custody-go/custody/oteladapters"
)

func Test_SlogBridgeLogger_Writes_AllLevels(t *testing.T) {
	// setup
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(handler)
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "debug message", "copy_id", "c1")
	logger.InfoContext(ctx, "info message", "copy_id", "c1")
	logger.WarnContext(ctx, "warn message", "copy_id", "c1")
	logger.ErrorContext(ctx, "error message", "copy_id", "c1")

	// assert
	output := buf.String()
	assert.Contains(t, output, `"msg":"debug message"`)
	assert.Contains(t, output, `"msg":"info message"`)
	assert.Contains(t, output, `"msg":"warn message"`)
	assert.Contains(t, output, `"msg":"error message"`)
	assert.Contains(t, output, `"level":"DEBUG"`)
	assert.Contains(t, output, `"level":"ERROR"`)
	assert.Contains(t, output, `"copy_id":"c1"`)
}

func Test_SlogBridgeLogger_Keeps_AttributeTypes(t *testing.T) {
	// setup
	var buf bytes.Buffer
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(slog.NewJSONHandler(&buf, nil))

	// act
	logger.InfoContext(context.Background(), "custody operation: borrow completed",
		"user_id", "u1",
		"duration_ms", 1.5,
		"copies", 3,
	)

	// assert
	output := buf.String()
	assert.Contains(t, output, `"user_id":"u1"`)
	assert.Contains(t, output, `"duration_ms":1.5`)
	assert.Contains(t, output, `"copies":3`)
}

func Test_NewSlogBridgeLogger_Uses_GlobalProvider(t *testing.T) {
	logger := oteladapters.NewSlogBridgeLogger("custody")

	assert.NotPanics(t, func() {
		logger.InfoContext(context.Background(), "info message", "key", "value")
	})
}

func Test_OTelLogger_Maps_Severities(t *testing.T) {
	// setup
	recorder := &recordingLogger{}
	logger := oteladapters.NewOTelLogger(recorder)
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "debug message")
	logger.InfoContext(ctx, "info message")
	logger.WarnContext(ctx, "warn message")
	logger.ErrorContext(ctx, "error message")

	// assert
	records := recorder.Records()
	require.Len(t, records, 4)
	assert.Equal(t, log.SeverityDebug, records[0].Severity())
	assert.Equal(t, "DEBUG", records[0].SeverityText())
	assert.Equal(t, log.SeverityInfo, records[1].Severity())
	assert.Equal(t, log.SeverityWarn, records[2].Severity())
	assert.Equal(t, log.SeverityError, records[3].Severity())
	assert.Equal(t, "error message", records[3].Body().AsString())
}

func Test_OTelLogger_Converts_Arguments_To_StringAttributes(t *testing.T) {
	// setup
	recorder := &recordingLogger{}
	logger := oteladapters.NewOTelLogger(recorder)

	// act
	logger.InfoContext(context.Background(), "info message",
		"copy_id", "c1",
		"attempt", 2,
		"retryable", true,
		42, "key is not a string",
		"dangling",
	)

	// assert
	records := recorder.Records()
	require.Len(t, records, 1)

	attrs := map[string]string{}
	records[0].WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})

	assert.Equal(t, map[string]string{"copy_id": "c1", "attempt": "2", "retryable": "true"}, attrs)
}

type recordingLogger struct {
	embedded.Logger

	mu      sync.Mutex
	records []log.Record
}

func (l *recordingLogger) Emit(_ context.Context, record log.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, record)
}

func (l *recordingLogger) Enabled(context.Context, log.EnabledParameters) bool {
	return true
}

func (l *recordingLogger) Records() []log.Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]log.Record(nil), l.records...)
}
