package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/shell"
)

const (
	flagUser = "user"
	flagFrom = "from"
	flagTo   = "to"
)

func newBorrowCmd(a *app) *cobra.Command {
	var userID, fromLocationID string

	cmd := &cobra.Command{
		Use:   "borrow <copy-id>",
		Short: "Borrow an available copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tx custody.Transaction

			err := a.retry(cmd.Context(), func(ctx context.Context) error {
				var err error
				tx, err = a.engine.Borrow(ctx, args[0], userID, fromLocationID)
				return err
			})
			if err != nil {
				return err
			}

			return a.printer.transaction(tx)
		},
	}

	cmd.Flags().StringVar(&userID, flagUser, "", "id of the borrowing user")
	cmd.Flags().StringVar(&fromLocationID, flagFrom, "", "location the copy is taken from")
	_ = cmd.MarkFlagRequired(flagUser)
	_ = cmd.MarkFlagRequired(flagFrom)

	return cmd
}

func newReturnCmd(a *app) *cobra.Command {
	var userID, toLocationID string

	cmd := &cobra.Command{
		Use:   "return <copy-id>",
		Short: "Return a borrowed copy to a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tx custody.Transaction

			err := a.retry(cmd.Context(), func(ctx context.Context) error {
				var err error
				tx, err = a.engine.Return(ctx, args[0], userID, toLocationID)
				return err
			})
			if err != nil {
				return err
			}

			return a.printer.transaction(tx)
		},
	}

	cmd.Flags().StringVar(&userID, flagUser, "", "id of the returning user")
	cmd.Flags().StringVar(&toLocationID, flagTo, "", "location the copy is shelved at")
	_ = cmd.MarkFlagRequired(flagUser)
	_ = cmd.MarkFlagRequired(flagTo)

	return cmd
}

func newDonateCmd(a *app) *cobra.Command {
	var userID, toLocationID string

	cmd := &cobra.Command{
		Use:   "donate <book-id>",
		Short: "Donate a new copy of a book to a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var bookCopy custody.BookCopy

			err := a.retry(cmd.Context(), func(ctx context.Context) error {
				var err error
				bookCopy, err = a.engine.Donate(ctx, args[0], userID, toLocationID)
				return err
			})
			if err != nil {
				return err
			}

			return a.printer.bookCopy(bookCopy)
		},
	}

	cmd.Flags().StringVar(&userID, flagUser, "", "id of the donating user")
	cmd.Flags().StringVar(&toLocationID, flagTo, "", "location the copy is shelved at")
	_ = cmd.MarkFlagRequired(flagUser)
	_ = cmd.MarkFlagRequired(flagTo)

	return cmd
}

func (a *app) retry(ctx context.Context, fn shell.RetryableFunc) error {
	_, err := shell.RetryWithExponentialBackoff(ctx, fn)
	return err
}
