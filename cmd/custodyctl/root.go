package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-custody-go/custody/engine"
	"github.com/AntonStoeckl/library-custody-go/custody/history"
	"github.com/AntonStoeckl/library-custody-go/custody/registry"
	"github.com/AntonStoeckl/library-custody-go/shell/config"
	"github.com/AntonStoeckl/library-custody-go/shell/demodata"
)

const (
	flagEnvFile   = "env-file"
	flagStore     = "store"
	flagDBDriver  = "db-driver"
	flagDSN       = "dsn"
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagOutput    = "output"
)

var ErrNotMigrated = errors.New("the postgres schema is not migrated, run custodyctl migrate")

// app holds the services built for one command invocation.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg      config.Config
	logger   *slog.Logger
	backend  *config.Backend
	engine   *engine.Engine
	registry *registry.Registry
	history  *history.History
	seeder   *demodata.Seeder
	printer  printer
}

type rootFlags struct {
	envFile   string
	store     string
	dbDriver  string
	dsn       string
	logLevel  string
	logFormat string
	output    string
}

// execute runs custodyctl with args and releases the store afterwards.
func execute(ctx context.Context, in io.Reader, out, errOut io.Writer, args []string) error {
	root, a := newRootCmd(in, out, errOut)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)

	return errors.Join(err, a.teardown())
}

func newRootCmd(in io.Reader, out, errOut io.Writer) (*cobra.Command, *app) {
	a := &app{in: in, out: out, errOut: errOut}
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:          "custodyctl",
		Short:        "Operate the library custody engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, flags)
		},
	}

	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.envFile, flagEnvFile, ".env", "env file with CUSTODY_* settings")
	pf.StringVar(&flags.store, flagStore, "", "store backend: memory, sqlite or postgres")
	pf.StringVar(&flags.dbDriver, flagDBDriver, "", "postgres driver: pgx, sqldb or sqlx")
	pf.StringVar(&flags.dsn, flagDSN, "", "database file or connection string")
	pf.StringVar(&flags.logLevel, flagLogLevel, "", "log level: debug, info, warn or error")
	pf.StringVar(&flags.logFormat, flagLogFormat, "", "log format: text or json")
	pf.StringVar(&flags.output, flagOutput, outputAuto, "output format: auto, table or json")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newBorrowCmd(a),
		newReturnCmd(a),
		newDonateCmd(a),
		newHistoryCmd(a),
		newAvailableCmd(a),
		newInventoryCmd(a),
		newSeedCmd(a),
		newResetCmd(a),
	)

	return root, a
}

// setup loads the configuration, applies flag overrides and opens the store.
func (a *app) setup(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return err
	}

	pf := cmd.Flags()

	if pf.Changed(flagStore) {
		cfg.Store = flags.store

		if !pf.Changed(flagDSN) && config.GetEnv(config.EnvDSN) == "" {
			cfg.DSN = ""
			cfg.ApplyDefaults()
		}
	}

	if pf.Changed(flagDBDriver) {
		cfg.DBDriver = flags.dbDriver
	}

	if pf.Changed(flagDSN) {
		cfg.DSN = flags.dsn
	}

	if pf.Changed(flagLogLevel) {
		cfg.LogLevel = flags.logLevel
	}

	if pf.Changed(flagLogFormat) {
		cfg.LogFormat = flags.logFormat
	}

	if err = cfg.Validate(); err != nil {
		return err
	}

	a.printer, err = newPrinter(a.out, flags.output)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = cfg.NewLogger(a.errOut)

	a.backend, err = config.OpenStore(cmd.Context(), cfg, a.logger)
	if err != nil {
		return err
	}

	if err = a.prepareSchema(cmd); err != nil {
		return err
	}

	if a.engine, err = engine.NewEngine(a.backend.Store, engine.WithContextualLogger(a.logger)); err != nil {
		return err
	}

	if a.registry, err = registry.NewRegistry(a.backend.Store, registry.WithLogger(a.logger)); err != nil {
		return err
	}

	if a.history, err = history.NewHistory(a.backend.Store); err != nil {
		return err
	}

	a.seeder, err = demodata.NewSeeder(a.registry, a.backend.Purger, demodata.WithLogger(a.logger))

	return err
}

// prepareSchema migrates embedded stores on the fly. A postgres schema is only migrated by the
// migrate command, the others refuse to run on an unmigrated database.
func (a *app) prepareSchema(cmd *cobra.Command) error {
	ctx := cmd.Context()

	if a.cfg.Store != config.StorePostgres || cmd.Name() == cmdMigrate {
		return a.backend.Migrate(ctx)
	}

	version, err := a.backend.SchemaVersion(ctx)
	if err != nil {
		return errors.Join(ErrNotMigrated, err)
	}

	if version == 0 {
		return ErrNotMigrated
	}

	return nil
}

func (a *app) teardown() error {
	if a.backend == nil {
		return nil
	}

	return a.backend.Close()
}
