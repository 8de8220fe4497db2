package config_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-custody-go/custody/memstore"
	"github.com/AntonStoeckl/library-custody-go/custody/sqlengine"
	"github.com/AntonStoeckl/library-custody-go/shell/config"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{config.EnvStore, config.EnvDBDriver, config.EnvDSN, config.EnvHTTPAddr, config.EnvLogLevel, config.EnvLogFormat} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func Test_Load_Defaults(t *testing.T) {
	// setup
	clearEnv(t)

	// act
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.StoreSQLite, cfg.Store)
	assert.Equal(t, config.DriverPGX, cfg.DBDriver)
	assert.Equal(t, "library-custody.db", cfg.DSN)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, config.LogFormatText, cfg.LogFormat)
}

func Test_Load_From_EnvFile_Without_Overriding_Environment(t *testing.T) {
	// setup
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "CUSTODY_STORE=postgres\nCUSTODY_DB_DRIVER=sqlx\nCUSTODY_LOG_LEVEL=debug\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Setenv(config.EnvLogLevel, "warn")

	// act
	cfg, err := config.Load(envFile)

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.StorePostgres, cfg.Store)
	assert.Equal(t, config.DriverSQLX, cfg.DBDriver)
	assert.Contains(t, cfg.DSN, "postgres://")
	assert.Equal(t, "warn", cfg.LogLevel)
}

func Test_Validate_When_ValuesAreUnknown(t *testing.T) {
	valid := config.Config{Store: config.StoreMemory, DBDriver: config.DriverPGX, LogLevel: "info", LogFormat: config.LogFormatJSON}

	testCases := []struct {
		name     string
		mutate   func(c *config.Config)
		expected error
	}{
		{name: "store", mutate: func(c *config.Config) { c.Store = "mongo" }, expected: config.ErrUnknownStore},
		{name: "driver", mutate: func(c *config.Config) { c.DBDriver = "odbc" }, expected: config.ErrUnknownDBDriver},
		{name: "log level", mutate: func(c *config.Config) { c.LogLevel = "verbose" }, expected: config.ErrUnknownLogLevel},
		{name: "log format", mutate: func(c *config.Config) { c.LogFormat = "xml" }, expected: config.ErrUnknownLogFormat},
	}

	require.NoError(t, valid.Validate())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tc.expected)
		})
	}
}

func Test_SlogLevel(t *testing.T) {
	levels := map[string]slog.Level{"debug": slog.LevelDebug, "info": slog.LevelInfo, "warn": slog.LevelWarn, "error": slog.LevelError}

	for name, expected := range levels {
		level, err := config.Config{LogLevel: name}.SlogLevel()
		require.NoError(t, err)
		assert.Equal(t, expected, level)
	}
}

func Test_OpenStore_Memory(t *testing.T) {
	// act
	backend, err := config.OpenStore(context.Background(), config.Config{Store: config.StoreMemory}, slog.Default())

	// assert
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, backend.Store)
	assert.NoError(t, backend.Migrate(context.Background()))
	assert.NoError(t, backend.Close())
}

func Test_OpenStore_SQLite(t *testing.T) {
	// setup
	ctx := context.Background()
	cfg := config.Config{Store: config.StoreSQLite, DBDriver: config.DriverSQLX, DSN: filepath.Join(t.TempDir(), "data", "custody.db")}

	// act
	backend, err := config.OpenStore(ctx, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	migrateErr := backend.Migrate(ctx)

	// assert
	require.NoError(t, migrateErr)
	store, ok := backend.Store.(*sqlengine.Store)
	require.True(t, ok)
	assert.Equal(t, sqlengine.DialectSQLite, store.Dialect())

	books, err := backend.Store.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}
