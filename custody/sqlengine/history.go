package sqlengine

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

// QueryTransactions returns the matching log entries, newest first.
//
// The order is the sequence number, which follows commit order for entries of the same copy
// because the guarded UPDATE holds the copy's row lock until commit. created_at is the caller's
// clock and may lag behind for a writer that waited on that lock.
func (s *Store) QueryTransactions(ctx context.Context, filter custody.TransactionFilter) ([]custody.Transaction, error) {
	start := time.Now()

	selectStmt := s.builder.From(s.tables.transactions).Prepared(true).
		Select(colID, colBookID, colCopyID, colUserID, colAction, colLocationID, colCreatedAt).
		Where(transactionWhereClause(filter)...).
		Order(goqu.C(colSequenceNumber).Desc())

	if filter.Limit() > 0 {
		selectStmt = selectStmt.Limit(uint(filter.Limit()))
	}

	rows, err := s.query(ctx, s.db, actionQueryTx, selectStmt)
	if err != nil {
		return nil, s.finishOperation(ctx, actionQueryTx, start, err)
	}
	defer s.closeRows(ctx, rows)

	transactions := make([]custody.Transaction, 0)

	for rows.Next() {
		var tx custody.Transaction
		var action string

		if err = rows.Scan(&tx.ID, &tx.BookID, &tx.CopyID, &tx.UserID, &action, &tx.LocationID, &tx.CreatedAt); err != nil {
			return nil, s.finishOperation(ctx, actionQueryTx, start, s.scanFailed(ctx, err))
		}

		tx.Action = custody.Action(action)
		tx.CreatedAt = tx.CreatedAt.UTC()
		transactions = append(transactions, tx)
	}

	if err = rows.Err(); err != nil {
		return nil, s.finishOperation(ctx, actionQueryTx, start, s.scanFailed(ctx, err))
	}

	_ = s.finishOperation(ctx, actionQueryTx, start, nil)
	s.recordRowsReturned(ctx, actionQueryTx, len(transactions))

	return transactions, nil
}

// QueryCopies returns the matching copies ordered by id.
func (s *Store) QueryCopies(ctx context.Context, filter custody.CopyFilter) ([]custody.BookCopy, error) {
	start := time.Now()

	copies, err := s.selectCopies(ctx, s.db, copyWhereClause(filter)...)
	if err != nil {
		return nil, s.finishOperation(ctx, actionQueryCopies, start, err)
	}

	_ = s.finishOperation(ctx, actionQueryCopies, start, nil)
	s.recordRowsReturned(ctx, actionQueryCopies, len(copies))

	return copies, nil
}

func transactionWhereClause(filter custody.TransactionFilter) []goqu.Expression {
	where := make([]goqu.Expression, 0)

	if filter.UserID() != "" {
		where = append(where, goqu.C(colUserID).Eq(filter.UserID()))
	}

	if filter.BookID() != "" {
		where = append(where, goqu.C(colBookID).Eq(filter.BookID()))
	}

	if len(filter.CopyIDs()) > 0 {
		where = append(where, goqu.C(colCopyID).In(filter.CopyIDs()))
	}

	if len(filter.Actions()) > 0 {
		actions := make([]string, 0, len(filter.Actions()))
		for _, a := range filter.Actions() {
			actions = append(actions, string(a))
		}

		where = append(where, goqu.C(colAction).In(actions))
	}

	if !filter.OccurredFrom().IsZero() {
		where = append(where, goqu.C(colCreatedAt).Gte(toDBTime(filter.OccurredFrom())))
	}

	if !filter.OccurredUntil().IsZero() {
		where = append(where, goqu.C(colCreatedAt).Lte(toDBTime(filter.OccurredUntil())))
	}

	return where
}

func copyWhereClause(filter custody.CopyFilter) []goqu.Expression {
	where := make([]goqu.Expression, 0)

	if filter.BookID() != "" {
		where = append(where, goqu.C(colBookID).Eq(filter.BookID()))
	}

	if filter.LocationID() != "" {
		where = append(where, goqu.C(colLocationID).Eq(filter.LocationID()))
	}

	if len(filter.Statuses()) > 0 {
		statuses := make([]string, 0, len(filter.Statuses()))
		for _, st := range filter.Statuses() {
			statuses = append(statuses, string(st))
		}

		where = append(where, goqu.C(colStatus).In(statuses))
	}

	return where
}
