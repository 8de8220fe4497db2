package engine

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

// ErrGeneratingIDFailed is returned when no id could be generated for a new record.
var ErrGeneratingIDFailed = errors.New("generating an id failed")

// Engine performs the custody transitions. It is safe for concurrent use.
type Engine struct {
	store            custody.CustodyStore
	validate         *validator.Validate
	logger           custody.Logger
	contextualLogger custody.ContextualLogger
	metricsCollector custody.MetricsCollector
	tracingCollector custody.TracingCollector
	now              func() time.Time
	newID            func() (string, error)
}

// NewEngine creates an Engine on top of the given store.
func NewEngine(store custody.CustodyStore, options ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	e := &Engine{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
		newID:    newUUIDv7,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Borrow moves an available copy to userID.
//
// The copy must exist (custody.ErrNotFound) and be available (custody.ErrConflict).
// On success the copy is borrowed without a location and one borrow entry is logged,
// which records fromLocationID as given.
func (e *Engine) Borrow(ctx context.Context, copyID, userID, fromLocationID string) (custody.Transaction, error) {
	start := time.Now()
	command := BorrowCommand{CopyID: copyID, UserID: userID, FromLocationID: fromLocationID}
	attrs := []any{logAttrCopyID, copyID, logAttrUserID, userID, logAttrLocationID, fromLocationID}

	ctx, span := e.begin(ctx, operationBorrow, attrs...)

	if err := validateCommand(e.validate, command); err != nil {
		return custody.Transaction{}, e.fail(ctx, span, operationBorrow, start, err, attrs...)
	}

	txID, err := e.generateID()
	if err != nil {
		return custody.Transaction{}, e.fail(ctx, span, operationBorrow, start, err, attrs...)
	}

	_, tx, err := e.store.ApplyCopyTransition(ctx, custody.CopyTransition{
		CopyID:         command.CopyID,
		ExpectedStatus: custody.StatusAvailable,
		NewStatus:      custody.StatusBorrowed,
		NewLocationID:  nil,
		TransactionID:  txID,
		UserID:         command.UserID,
		Action:         custody.ActionBorrow,
		LogLocationID:  custody.StringPtr(command.FromLocationID),
		OccurredAt:     e.now().UTC(),
	})
	if err != nil {
		return custody.Transaction{}, e.fail(ctx, span, operationBorrow, start, err, attrs...)
	}

	e.succeed(ctx, span, operationBorrow, start, append(attrs, logAttrTransactionID, tx.ID, logAttrBookID, tx.BookID)...)

	return tx, nil
}

// Return shelves a borrowed copy at toLocationID.
//
// The copy must exist (custody.ErrNotFound), be borrowed (custody.ErrConflict) and the target location
// must exist (custody.ErrNotFound). On success the copy is available at toLocationID and one return
// entry is logged.
func (e *Engine) Return(ctx context.Context, copyID, userID, toLocationID string) (custody.Transaction, error) {
	start := time.Now()
	command := ReturnCommand{CopyID: copyID, UserID: userID, ToLocationID: toLocationID}
	attrs := []any{logAttrCopyID, copyID, logAttrUserID, userID, logAttrLocationID, toLocationID}

	ctx, span := e.begin(ctx, operationReturn, attrs...)

	if err := validateCommand(e.validate, command); err != nil {
		return custody.Transaction{}, e.fail(ctx, span, operationReturn, start, err, attrs...)
	}

	txID, err := e.generateID()
	if err != nil {
		return custody.Transaction{}, e.fail(ctx, span, operationReturn, start, err, attrs...)
	}

	_, tx, err := e.store.ApplyCopyTransition(ctx, custody.CopyTransition{
		CopyID:          command.CopyID,
		ExpectedStatus:  custody.StatusBorrowed,
		NewStatus:       custody.StatusAvailable,
		NewLocationID:   custody.StringPtr(command.ToLocationID),
		RequireLocation: true,
		TransactionID:   txID,
		UserID:          command.UserID,
		Action:          custody.ActionReturn,
		LogLocationID:   custody.StringPtr(command.ToLocationID),
		OccurredAt:      e.now().UTC(),
	})
	if err != nil {
		return custody.Transaction{}, e.fail(ctx, span, operationReturn, start, err, attrs...)
	}

	e.succeed(ctx, span, operationReturn, start, append(attrs, logAttrTransactionID, tx.ID, logAttrBookID, tx.BookID)...)

	return tx, nil
}

// Donate creates a new available copy of bookID at toLocationID and logs one donate entry.
// Book and location must exist (custody.ErrNotFound).
func (e *Engine) Donate(ctx context.Context, bookID, userID, toLocationID string) (custody.BookCopy, error) {
	start := time.Now()
	command := DonateCommand{BookID: bookID, UserID: userID, ToLocationID: toLocationID}
	attrs := []any{logAttrBookID, bookID, logAttrUserID, userID, logAttrLocationID, toLocationID}

	ctx, span := e.begin(ctx, operationDonate, attrs...)

	if err := validateCommand(e.validate, command); err != nil {
		return custody.BookCopy{}, e.fail(ctx, span, operationDonate, start, err, attrs...)
	}

	copyID, err := e.generateID()
	if err != nil {
		return custody.BookCopy{}, e.fail(ctx, span, operationDonate, start, err, attrs...)
	}

	txID, err := e.generateID()
	if err != nil {
		return custody.BookCopy{}, e.fail(ctx, span, operationDonate, start, err, attrs...)
	}

	bookCopy, tx, err := e.store.ApplyDonation(ctx, custody.Donation{
		CopyID:        copyID,
		BookID:        command.BookID,
		LocationID:    command.ToLocationID,
		TransactionID: txID,
		UserID:        command.UserID,
		OccurredAt:    e.now().UTC(),
	})
	if err != nil {
		return custody.BookCopy{}, e.fail(ctx, span, operationDonate, start, err, attrs...)
	}

	e.succeed(ctx, span, operationDonate, start, append(attrs, logAttrTransactionID, tx.ID, logAttrCopyID, bookCopy.ID)...)

	return bookCopy, nil
}

func (e *Engine) generateID() (string, error) {
	id, err := e.newID()
	if err != nil {
		return "", errors.Join(ErrGeneratingIDFailed, err)
	}

	return id, nil
}
