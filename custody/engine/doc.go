// Package engine implements the custody transaction engine: Borrow, Return and Donate.
//
// Each operation validates its input, then issues exactly one call to the store's atomic primitive
// (custody.CustodyStore). The store performs the guarded copy update and the log append as one
// indivisible unit, so the engine holds no locks and keeps no state between calls.
//
// The engine never retries. A stale-state failure (custody.ErrConflict, e.g. the copy was borrowed
// by someone else) is final. A transient store abort (custody.ErrConcurrencyConflict) is passed
// through unchanged, callers may retry it, e.g. with shell.RetryWithExponentialBackoff.
//
// Example:
//
//	eng, err := engine.NewEngine(store, engine.WithLogger(slog.Default()))
//	if err != nil {
//		return err
//	}
//
//	tx, err := eng.Borrow(ctx, copyID, userID, locationID)
//	switch {
//	case errors.Is(err, custody.ErrConflict):
//		// somebody else was faster
//	case err != nil:
//		return err
//	}
package engine
