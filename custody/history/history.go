// Package history serves the read side of the custody log: per-user and per-book histories,
// copy inventories and the open borrows of a user.
//
// All results are deterministic for a given store state. Transactions are returned newest first,
// copies ordered by id.
package history

import (
	"context"
	"errors"
	"slices"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

// ErrNilHistoryReader is returned when NewHistory receives no reader.
var ErrNilHistoryReader = errors.New("history reader must not be nil")

// CopyIDsPerQuery caps the copy ids of one log query, it stays below SQLite's bound variable limit.
const CopyIDsPerQuery = 500

// History answers read queries against a custody.HistoryReader.
type History struct {
	reader custody.HistoryReader
}

// NewHistory creates a History on top of reader.
func NewHistory(reader custody.HistoryReader) (*History, error) {
	if reader == nil {
		return nil, ErrNilHistoryReader
	}

	return &History{reader: reader}, nil
}

// UserHistory returns all log entries of userID, newest first.
func (h *History) UserHistory(ctx context.Context, userID string) ([]custody.Transaction, error) {
	if userID == "" {
		return nil, custody.Validation("user id must not be empty")
	}

	return h.reader.QueryTransactions(ctx, custody.BuildTransactionFilter().ForUser(userID).Finalize())
}

// BookHistory returns all log entries concerning any copy of bookID, newest first.
func (h *History) BookHistory(ctx context.Context, bookID string) ([]custody.Transaction, error) {
	if bookID == "" {
		return nil, custody.Validation("book id must not be empty")
	}

	return h.reader.QueryTransactions(ctx, custody.BuildTransactionFilter().ForBook(bookID).Finalize())
}

// AllTransactions returns the whole log, newest first. A limit below one means no limit.
func (h *History) AllTransactions(ctx context.Context, limit int) ([]custody.Transaction, error) {
	return h.reader.QueryTransactions(ctx, custody.BuildTransactionFilter().Limit(limit).Finalize())
}

// AvailableCopies returns the copies that can be borrowed right now.
// An empty bookID returns the available copies of all books.
func (h *History) AvailableCopies(ctx context.Context, bookID string) ([]custody.BookCopy, error) {
	return h.reader.QueryCopies(ctx, custody.BuildCopyFilter().OfBook(bookID).WithStatus(custody.StatusAvailable).Finalize())
}

// CopiesAtLocation returns the copies shelved at locationID.
func (h *History) CopiesAtLocation(ctx context.Context, locationID string) ([]custody.BookCopy, error) {
	if locationID == "" {
		return nil, custody.Validation("location id must not be empty")
	}

	return h.reader.QueryCopies(ctx, custody.BuildCopyFilter().AtLocation(locationID).Finalize())
}

// CopiesByStatus returns all copies in the given status.
func (h *History) CopiesByStatus(ctx context.Context, status custody.CopyStatus) ([]custody.BookCopy, error) {
	if !status.IsValid() {
		return nil, custody.Validation("unknown copy status " + string(status))
	}

	return h.reader.QueryCopies(ctx, custody.BuildCopyFilter().WithStatus(status).Finalize())
}

// ReturnableCopies returns the copies userID currently holds.
//
// A copy is held when its newest borrow or return entry is a borrow by userID
// and the copy is still borrowed. Only copies which are borrowed right now and were borrowed by
// userID at some point are looked up in the log, in batches of CopyIDsPerQuery.
func (h *History) ReturnableCopies(ctx context.Context, userID string) ([]custody.BookCopy, error) {
	if userID == "" {
		return nil, custody.Validation("user id must not be empty")
	}

	borrowed, err := h.reader.QueryCopies(ctx, custody.BuildCopyFilter().WithStatus(custody.StatusBorrowed).Finalize())
	if err != nil {
		return nil, err
	}

	if len(borrowed) == 0 {
		return []custody.BookCopy{}, nil
	}

	borrows, err := h.reader.QueryTransactions(
		ctx,
		custody.BuildTransactionFilter().ForUser(userID).WithActions(custody.ActionBorrow).Finalize(),
	)
	if err != nil {
		return nil, err
	}

	everBorrowed := make(map[string]bool, len(borrows))
	for _, tx := range borrows {
		everBorrowed[tx.CopyID] = true
	}

	candidates := make([]custody.BookCopy, 0)
	for _, c := range borrowed {
		if everBorrowed[c.ID] {
			candidates = append(candidates, c)
		}
	}

	result := make([]custody.BookCopy, 0, len(candidates))

	for batch := range slices.Chunk(candidates, CopyIDsPerQuery) {
		held, batchErr := h.heldCopies(ctx, userID, batch)
		if batchErr != nil {
			return nil, batchErr
		}

		for _, c := range batch {
			if held[c.ID] {
				result = append(result, c)
			}
		}
	}

	return result, nil
}

// heldCopies reports for each copy in batch whether its newest borrow or return entry is a borrow by userID.
func (h *History) heldCopies(ctx context.Context, userID string, batch []custody.BookCopy) (map[string]bool, error) {
	ids := make([]string, 0, len(batch))
	for _, c := range batch {
		ids = append(ids, c.ID)
	}

	movements, err := h.reader.QueryTransactions(
		ctx,
		custody.BuildTransactionFilter().
			ForCopies(ids[0], ids[1:]...).
			WithActions(custody.ActionBorrow, custody.ActionReturn).
			Finalize(),
	)
	if err != nil {
		return nil, err
	}

	held := make(map[string]bool, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, tx := range movements {
		if seen[tx.CopyID] {
			continue
		}

		seen[tx.CopyID] = true
		held[tx.CopyID] = tx.Action == custody.ActionBorrow && tx.UserID == userID
	}

	return held, nil
}
