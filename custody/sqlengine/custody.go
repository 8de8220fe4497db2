package sqlengine

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/sqlengine/internal/adapters"
)

// ApplyCopyTransition performs the guarded status change of one copy and appends the log entry
// in one database transaction.
//
// The UPDATE only matches while the copy is in the expected status. Zero affected rows mean
// the copy is missing (custody.ErrNotFound) or in another status (custody.ErrConflict).
func (s *Store) ApplyCopyTransition(ctx context.Context, transition custody.CopyTransition) (custody.BookCopy, custody.Transaction, error) {
	start := time.Now()

	var bookCopy custody.BookCopy
	var tx custody.Transaction

	err := s.inTransaction(ctx, func(dbTx adapters.DBTx) error {
		update := s.builder.Update(s.tables.copies).Prepared(true).
			Set(goqu.Record{
				colStatus:     string(transition.NewStatus),
				colLocationID: nullable(transition.NewLocationID),
			}).
			Where(
				goqu.C(colID).Eq(transition.CopyID),
				goqu.C(colStatus).Eq(string(transition.ExpectedStatus)),
			)

		rowsAffected, err := s.exec(ctx, dbTx, actionTransition, update)
		if err != nil {
			return err
		}

		if rowsAffected == 0 {
			copyExists, existsErr := s.exists(ctx, dbTx, s.tables.copies, transition.CopyID)
			if existsErr != nil {
				return existsErr
			}

			if !copyExists {
				return custody.NotFound(entityCopy, transition.CopyID)
			}

			return custody.StatusConflict(transition.ExpectedStatus)
		}

		if transition.RequireLocation && transition.NewLocationID != nil {
			locationExists, existsErr := s.exists(ctx, dbTx, s.tables.locations, *transition.NewLocationID)
			if existsErr != nil {
				return existsErr
			}

			if !locationExists {
				return custody.NotFound(entityLocation, *transition.NewLocationID)
			}
		}

		var found bool
		bookCopy, found, err = s.findCopy(ctx, dbTx, transition.CopyID)
		if err != nil {
			return err
		}

		if !found {
			return custody.NotFound(entityCopy, transition.CopyID)
		}

		tx = custody.Transaction{
			ID:         transition.TransactionID,
			BookID:     bookCopy.BookID,
			CopyID:     bookCopy.ID,
			UserID:     transition.UserID,
			Action:     transition.Action,
			LocationID: transition.LogLocationID,
			CreatedAt:  toDBTime(transition.OccurredAt),
		}

		return s.appendTransaction(ctx, dbTx, tx)
	})
	if err != nil {
		return custody.BookCopy{}, custody.Transaction{}, s.finishOperation(ctx, actionTransition, start, err)
	}

	_ = s.finishOperation(ctx, actionTransition, start, nil)
	s.logOperation(ctx, actionTransition,
		logAttrCopyID, tx.CopyID,
		logAttrTransactionID, tx.ID,
		logAttrDurationMS, toMilliseconds(time.Since(start)))

	return bookCopy, tx, nil
}

// ApplyDonation inserts a new available copy and its donate entry in one database transaction.
func (s *Store) ApplyDonation(ctx context.Context, donation custody.Donation) (custody.BookCopy, custody.Transaction, error) {
	start := time.Now()

	bookCopy := custody.BookCopy{
		ID:         donation.CopyID,
		BookID:     donation.BookID,
		Status:     custody.StatusAvailable,
		LocationID: custody.StringPtr(donation.LocationID),
	}

	tx := custody.Transaction{
		ID:         donation.TransactionID,
		BookID:     donation.BookID,
		CopyID:     donation.CopyID,
		UserID:     donation.UserID,
		Action:     custody.ActionDonate,
		LocationID: custody.StringPtr(donation.LocationID),
		CreatedAt:  toDBTime(donation.OccurredAt),
	}

	err := s.inTransaction(ctx, func(dbTx adapters.DBTx) error {
		if err := s.requireExisting(ctx, dbTx, s.tables.books, entityBook, donation.BookID); err != nil {
			return err
		}

		if err := s.requireExisting(ctx, dbTx, s.tables.locations, entityLocation, donation.LocationID); err != nil {
			return err
		}

		if err := s.insertCopyRows(ctx, dbTx, actionDonation, bookCopy); err != nil {
			return err
		}

		return s.appendTransaction(ctx, dbTx, tx)
	})
	if err != nil {
		return custody.BookCopy{}, custody.Transaction{}, s.finishOperation(ctx, actionDonation, start, err)
	}

	_ = s.finishOperation(ctx, actionDonation, start, nil)
	s.logOperation(ctx, actionDonation,
		logAttrCopyID, bookCopy.ID,
		logAttrBookID, bookCopy.BookID,
		logAttrTransactionID, tx.ID,
		logAttrDurationMS, toMilliseconds(time.Since(start)))

	return bookCopy, tx, nil
}

func (s *Store) appendTransaction(ctx context.Context, db adapters.DBQuerier, tx custody.Transaction) error {
	insert := s.builder.Insert(s.tables.transactions).Prepared(true).
		Rows(goqu.Record{
			colID:         tx.ID,
			colBookID:     tx.BookID,
			colCopyID:     tx.CopyID,
			colUserID:     tx.UserID,
			colAction:     string(tx.Action),
			colLocationID: nullable(tx.LocationID),
			colCreatedAt:  tx.CreatedAt,
		})

	_, err := s.exec(ctx, db, actionAppendLog, insert)

	return err
}

func (s *Store) requireExisting(ctx context.Context, db adapters.DBQuerier, table, entity, id string) error {
	found, err := s.exists(ctx, db, table, id)
	if err != nil {
		return err
	}

	if !found {
		return custody.NotFound(entity, id)
	}

	return nil
}
