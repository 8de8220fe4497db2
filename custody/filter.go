package custody

import (
	"slices"
	"time"
)

/***** TransactionFilter *****/

// TransactionFilter selects entries of the transaction log.
// All set criteria must match (AND), multiple values of one criterion match with OR.
// Results are always ordered newest first, by position in the log.
type TransactionFilter struct {
	userID        string
	bookID        string
	copyIDs       []string
	actions       []Action
	occurredFrom  time.Time
	occurredUntil time.Time
	limit         int
}

func (f TransactionFilter) UserID() string {
	return f.userID
}

func (f TransactionFilter) BookID() string {
	return f.bookID
}

func (f TransactionFilter) CopyIDs() []string {
	return f.copyIDs
}

func (f TransactionFilter) Actions() []Action {
	return f.actions
}

func (f TransactionFilter) OccurredFrom() time.Time {
	return f.occurredFrom
}

func (f TransactionFilter) OccurredUntil() time.Time {
	return f.occurredUntil
}

// Limit is the maximum number of entries to return, 0 means unlimited.
func (f TransactionFilter) Limit() int {
	return f.limit
}

// Matches reports whether tx satisfies the filter. Stores without a query language use it.
func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.userID != "" && tx.UserID != f.userID {
		return false
	}

	if f.bookID != "" && tx.BookID != f.bookID {
		return false
	}

	if len(f.copyIDs) > 0 && !slices.Contains(f.copyIDs, tx.CopyID) {
		return false
	}

	if len(f.actions) > 0 && !slices.Contains(f.actions, tx.Action) {
		return false
	}

	if !f.occurredFrom.IsZero() && tx.CreatedAt.Before(f.occurredFrom) {
		return false
	}

	if !f.occurredUntil.IsZero() && tx.CreatedAt.After(f.occurredUntil) {
		return false
	}

	return true
}

// TransactionFilterBuilder builds a TransactionFilter.
//
// It sanitizes the input:
//   - ignoring empty ids
//   - sorting and de-duplicating id and action lists
//   - ignoring negative limits
type TransactionFilterBuilder interface {
	ForUser(userID string) TransactionFilterBuilder
	ForBook(bookID string) TransactionFilterBuilder
	ForCopies(copyID string, copyIDs ...string) TransactionFilterBuilder
	WithActions(action Action, actions ...Action) TransactionFilterBuilder
	OccurredFrom(from time.Time) TransactionFilterBuilder
	OccurredUntil(until time.Time) TransactionFilterBuilder
	Limit(limit int) TransactionFilterBuilder
	Finalize() TransactionFilter
}

type transactionFilterBuilder struct {
	filter TransactionFilter
}

// BuildTransactionFilter creates a TransactionFilterBuilder, finalize it with Finalize().
// A filter without criteria matches the whole log.
func BuildTransactionFilter() TransactionFilterBuilder {
	return transactionFilterBuilder{}
}

func (b transactionFilterBuilder) ForUser(userID string) TransactionFilterBuilder {
	b.filter.userID = userID
	return b
}

func (b transactionFilterBuilder) ForBook(bookID string) TransactionFilterBuilder {
	b.filter.bookID = bookID
	return b
}

func (b transactionFilterBuilder) ForCopies(copyID string, copyIDs ...string) TransactionFilterBuilder {
	all := append([]string{copyID}, copyIDs...)
	b.filter.copyIDs = sanitizeStrings(append(slices.Clone(b.filter.copyIDs), all...))

	return b
}

func (b transactionFilterBuilder) WithActions(action Action, actions ...Action) TransactionFilterBuilder {
	all := append(slices.Clone(b.filter.actions), action)
	all = append(all, actions...)

	sanitized := make([]Action, 0, len(all))
	for _, a := range all {
		if a.IsValid() {
			sanitized = append(sanitized, a)
		}
	}

	slices.Sort(sanitized)
	b.filter.actions = slices.Compact(sanitized)

	return b
}

func (b transactionFilterBuilder) OccurredFrom(from time.Time) TransactionFilterBuilder {
	b.filter.occurredFrom = from
	return b
}

func (b transactionFilterBuilder) OccurredUntil(until time.Time) TransactionFilterBuilder {
	b.filter.occurredUntil = until
	return b
}

func (b transactionFilterBuilder) Limit(limit int) TransactionFilterBuilder {
	if limit > 0 {
		b.filter.limit = limit
	}

	return b
}

func (b transactionFilterBuilder) Finalize() TransactionFilter {
	return b.filter
}

/***** CopyFilter *****/

// CopyFilter selects book copies. All set criteria must match, results are ordered by copy id.
type CopyFilter struct {
	bookID     string
	locationID string
	statuses   []CopyStatus
}

func (f CopyFilter) BookID() string {
	return f.bookID
}

func (f CopyFilter) LocationID() string {
	return f.locationID
}

func (f CopyFilter) Statuses() []CopyStatus {
	return f.statuses
}

// Matches reports whether c satisfies the filter.
func (f CopyFilter) Matches(c BookCopy) bool {
	if f.bookID != "" && c.BookID != f.bookID {
		return false
	}

	if f.locationID != "" && c.LocationOrEmpty() != f.locationID {
		return false
	}

	if len(f.statuses) > 0 && !slices.Contains(f.statuses, c.Status) {
		return false
	}

	return true
}

// CopyFilterBuilder builds a CopyFilter.
type CopyFilterBuilder interface {
	OfBook(bookID string) CopyFilterBuilder
	AtLocation(locationID string) CopyFilterBuilder
	WithStatus(status CopyStatus, statuses ...CopyStatus) CopyFilterBuilder
	Finalize() CopyFilter
}

type copyFilterBuilder struct {
	filter CopyFilter
}

// BuildCopyFilter creates a CopyFilterBuilder. A filter without criteria matches all copies.
func BuildCopyFilter() CopyFilterBuilder {
	return copyFilterBuilder{}
}

func (b copyFilterBuilder) OfBook(bookID string) CopyFilterBuilder {
	b.filter.bookID = bookID
	return b
}

func (b copyFilterBuilder) AtLocation(locationID string) CopyFilterBuilder {
	b.filter.locationID = locationID
	return b
}

func (b copyFilterBuilder) WithStatus(status CopyStatus, statuses ...CopyStatus) CopyFilterBuilder {
	all := append(slices.Clone(b.filter.statuses), status)
	all = append(all, statuses...)

	sanitized := make([]CopyStatus, 0, len(all))
	for _, s := range all {
		if s.IsValid() {
			sanitized = append(sanitized, s)
		}
	}

	slices.Sort(sanitized)
	b.filter.statuses = slices.Compact(sanitized)

	return b
}

func (b copyFilterBuilder) Finalize() CopyFilter {
	return b.filter
}

func sanitizeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}

	slices.Sort(out)

	return slices.Compact(out)
}
