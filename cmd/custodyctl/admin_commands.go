package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-custody-go/shell/httpapi"
)

const (
	cmdMigrate = "migrate"

	flagAddr = "addr"
	flagYes  = "yes"

	shutdownTimeout = 10 * time.Second

	logMsgServing  = "http api listening"
	logMsgStopping = "http api shutting down"
	logAttrAddr    = "addr"
)

var (
	ErrConfirmationRequired = errors.New("refusing to reset without confirmation, pass --yes when stdin is not a terminal")
	ErrResetAborted         = errors.New("reset aborted")
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.HTTPAddr
			}

			server, err := httpapi.NewServer(httpapi.Deps{
				Engine:   a.engine,
				Registry: a.registry,
				History:  a.history,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}

			errChan := make(chan error, 1)
			go func() {
				a.logger.Info(logMsgServing, logAttrAddr, addr)

				if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errChan <- err
				}

				close(errChan)
			}()

			select {
			case err = <-errChan:
				return err
			case <-cmd.Context().Done():
			}

			a.logger.Info(logMsgStopping)

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, flagAddr, "", "listen address, defaults to CUSTODY_HTTP_ADDR")

	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   cmdMigrate,
		Short: "Apply the database schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// the schema was migrated while the store was opened
			version, err := a.backend.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}

			return a.printer.message("schema_version", strconv.Itoa(version))
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate the library with demo locations, books, users and copies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := a.seeder.Populate(cmd.Context())
			if err != nil {
				return err
			}

			return a.printer.summary(summary)
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	var yes, populate bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all data including the transaction log",
		Long: "Delete all books, copies, locations, users and transactions. " +
			"With --seed the demo data is populated afterwards.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				if err := a.confirm(fmt.Sprintf("This deletes ALL data in the %s store. Continue? [y/N] ", a.cfg.Store)); err != nil {
					return err
				}
			}

			if !populate {
				if err := a.seeder.ClearAll(cmd.Context()); err != nil {
					return err
				}

				return a.printer.message("reset", "all data deleted")
			}

			summary, err := a.seeder.Reset(cmd.Context())
			if err != nil {
				return err
			}

			return a.printer.summary(summary)
		},
	}

	cmd.Flags().BoolVarP(&yes, flagYes, "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&populate, "seed", false, "populate demo data after the reset")

	return cmd
}

// confirm asks on the terminal and fails unless the answer is yes.
func (a *app) confirm(prompt string) error {
	if !isTerminal(a.in) {
		return ErrConfirmationRequired
	}

	if _, err := fmt.Fprint(a.errOut, prompt); err != nil {
		return err
	}

	sc := bufio.NewScanner(a.in)
	if !sc.Scan() {
		return ErrResetAborted
	}

	switch strings.ToLower(strings.TrimSpace(sc.Text())) {
	case "y", "yes":
		return nil
	default:
		return ErrResetAborted
	}
}
