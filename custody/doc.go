// Package custody provides the core types and abstractions for tracking the custody of
// physical book copies in a small multi-location library.
//
// A copy is either shelved at a Location (available), held by a reader (borrowed) or moving
// between locations (in-transit). Every custody change is recorded as an immutable Transaction
// and the copy mutation plus the log append always happen as one atomic unit in the store.
//
// This package defines:
//   - the data model: Book, Location, BookCopy, Transaction, User
//   - the error taxonomy: ErrNotFound, ErrConflict, ErrValidation, ErrConcurrencyConflict
//   - the narrow store interfaces: CustodyStore, CatalogStore, HistoryReader
//   - filters for read-side queries: TransactionFilter, CopyFilter
//   - dependency-free observability interfaces: Logger, ContextualLogger, MetricsCollector
//
// Common usage pattern:
//
//	store := memstore.New()
//	eng, err := engine.NewEngine(store, engine.WithLogger(slog.Default()))
//	if err != nil {
//		// handle error
//	}
//
//	tx, err := eng.Borrow(ctx, copyID, userID, locationID)
//	if errors.Is(err, custody.ErrConflict) {
//		// somebody else was faster
//	}
//
//	filter := custody.BuildTransactionFilter().ForUser(userID).Finalize()
//	history, err := store.QueryTransactions(ctx, filter)
package custody
