package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

const (
	flagBook     = "book"
	flagLimit    = "limit"
	flagLocation = "location"
	flagStatus   = "status"
)

var ErrAmbiguousFilter = errors.New("use only one of the filter flags")

func newHistoryCmd(a *app) *cobra.Command {
	var userID, bookID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the transaction log, newest first",
		Long: "Show the transactions of one user (--user), of one book (--book) " +
			"or the latest transactions of the whole library.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var (
				txs []custody.Transaction
				err error
			)

			switch {
			case userID != "" && bookID != "":
				return ErrAmbiguousFilter
			case userID != "":
				txs, err = a.history.UserHistory(ctx, userID)
			case bookID != "":
				txs, err = a.history.BookHistory(ctx, bookID)
			default:
				txs, err = a.history.AllTransactions(ctx, limit)
			}

			if err != nil {
				return err
			}

			return a.printer.transactions(txs)
		},
	}

	cmd.Flags().StringVar(&userID, flagUser, "", "only transactions of this user")
	cmd.Flags().StringVar(&bookID, flagBook, "", "only transactions of this book")
	cmd.Flags().IntVar(&limit, flagLimit, 50, "maximum number of entries for the library-wide log")

	return cmd
}

func newAvailableCmd(a *app) *cobra.Command {
	var bookID string

	cmd := &cobra.Command{
		Use:   "available",
		Short: "List available copies, optionally of one book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			copies, err := a.history.AvailableCopies(cmd.Context(), bookID)
			if err != nil {
				return err
			}

			return a.printer.copies(copies)
		},
	}

	cmd.Flags().StringVar(&bookID, flagBook, "", "only copies of this book")

	return cmd
}

func newInventoryCmd(a *app) *cobra.Command {
	var locationID, status, userID string

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "List copies at a location, in a status or returnable by a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var (
				copies []custody.BookCopy
				err    error
			)

			switch {
			case locationID != "":
				copies, err = a.history.CopiesAtLocation(ctx, locationID)
			case status != "":
				copies, err = a.history.CopiesByStatus(ctx, custody.CopyStatus(status))
			default:
				copies, err = a.history.ReturnableCopies(ctx, userID)
			}

			if err != nil {
				return err
			}

			return a.printer.copies(copies)
		},
	}

	cmd.Flags().StringVar(&locationID, flagLocation, "", "copies shelved at this location")
	cmd.Flags().StringVar(&status, flagStatus, "", "copies in this status: available, borrowed or in-transit")
	cmd.Flags().StringVar(&userID, flagUser, "", "copies this user can return")
	cmd.MarkFlagsOneRequired(flagLocation, flagStatus, flagUser)
	cmd.MarkFlagsMutuallyExclusive(flagLocation, flagStatus, flagUser)

	return cmd
}
