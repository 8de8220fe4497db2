// Package memstore provides an in-process implementation of custody.Store.
//
// All records live in maps guarded by one mutex. Copy transitions additionally hold a per-copy
// lock for their whole check-and-write, so transitions of one copy queue up in commit order while
// transitions of different copies only share the short map write. This gives the same
// all-or-nothing behavior as the row lock of a database transaction.
// It is meant for tests, demos and the CLI's memory mode, data is lost on exit.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

const (
	entityBook     = "book"
	entityLocation = "location"
	entityCopy     = "book copy"
	entityUser     = "user"
)

type logEntry struct {
	tx             custody.Transaction
	sequenceNumber int64
}

// Store is the in-memory custody.Store. The zero value is not usable, use New.
type Store struct {
	mu           sync.RWMutex
	books        map[string]custody.Book
	locations    map[string]custody.Location
	copies       map[string]custody.BookCopy
	users        map[string]custody.User
	transactions []logEntry
	lastSequence int64

	// copyLocks only holds ids of copies that existed. It is never shrunk, a lock must stay unique
	// for its copy id while anyone may hold it.
	copyLocksMu sync.Mutex
	copyLocks   map[string]*sync.Mutex
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		books:     make(map[string]custody.Book),
		locations: make(map[string]custody.Location),
		copies:    make(map[string]custody.BookCopy),
		users:     make(map[string]custody.User),
		copyLocks: make(map[string]*sync.Mutex),
	}
}

var (
	_ custody.Store  = (*Store)(nil)
	_ custody.Purger = (*Store)(nil)
)

/***** CustodyStore *****/

func (s *Store) ApplyCopyTransition(ctx context.Context, transition custody.CopyTransition) (custody.BookCopy, custody.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return custody.BookCopy{}, custody.Transaction{}, err
	}

	if !s.copyExists(transition.CopyID) {
		return custody.BookCopy{}, custody.Transaction{}, custody.NotFound(entityCopy, transition.CopyID)
	}

	unlock := s.lockCopy(transition.CopyID)
	defer unlock()

	s.mu.RLock()
	bookCopy, err := s.checkTransition(transition)
	s.mu.RUnlock()

	if err != nil {
		return custody.BookCopy{}, custody.Transaction{}, err
	}

	bookCopy.Status = transition.NewStatus
	bookCopy.LocationID = cloneStringPtr(transition.NewLocationID)

	tx := custody.Transaction{
		ID:         transition.TransactionID,
		BookID:     bookCopy.BookID,
		CopyID:     bookCopy.ID,
		UserID:     transition.UserID,
		Action:     transition.Action,
		LocationID: cloneStringPtr(transition.LogLocationID),
		CreatedAt:  transition.OccurredAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// PurgeAll does not take copy locks, so check again before writing
	if _, err = s.checkTransition(transition); err != nil {
		return custody.BookCopy{}, custody.Transaction{}, err
	}

	s.copies[bookCopy.ID] = bookCopy
	s.appendTransaction(tx)

	return cloneCopy(bookCopy), cloneTransaction(tx), nil
}

// checkTransition must be called with at least the read lock held.
func (s *Store) checkTransition(transition custody.CopyTransition) (custody.BookCopy, error) {
	bookCopy, ok := s.copies[transition.CopyID]
	if !ok {
		return custody.BookCopy{}, custody.NotFound(entityCopy, transition.CopyID)
	}

	if bookCopy.Status != transition.ExpectedStatus {
		return custody.BookCopy{}, custody.StatusConflict(transition.ExpectedStatus)
	}

	if transition.RequireLocation && transition.NewLocationID != nil {
		if _, found := s.locations[*transition.NewLocationID]; !found {
			return custody.BookCopy{}, custody.NotFound(entityLocation, *transition.NewLocationID)
		}
	}

	return bookCopy, nil
}

func (s *Store) copyExists(copyID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.copies[copyID]

	return ok
}

// lockCopy locks copyID and returns the matching unlock.
func (s *Store) lockCopy(copyID string) func() {
	s.copyLocksMu.Lock()
	lock, ok := s.copyLocks[copyID]
	if !ok {
		lock = &sync.Mutex{}
		s.copyLocks[copyID] = lock
	}
	s.copyLocksMu.Unlock()

	lock.Lock()

	return lock.Unlock
}

func (s *Store) ApplyDonation(ctx context.Context, donation custody.Donation) (custody.BookCopy, custody.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return custody.BookCopy{}, custody.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[donation.BookID]; !ok {
		return custody.BookCopy{}, custody.Transaction{}, custody.NotFound(entityBook, donation.BookID)
	}

	if _, ok := s.locations[donation.LocationID]; !ok {
		return custody.BookCopy{}, custody.Transaction{}, custody.NotFound(entityLocation, donation.LocationID)
	}

	if _, exists := s.copies[donation.CopyID]; exists {
		return custody.BookCopy{}, custody.Transaction{}, custody.AlreadyExists(entityCopy, donation.CopyID)
	}

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
		CreatedAt:  donation.OccurredAt,
	}

	s.copies[bookCopy.ID] = bookCopy
	s.appendTransaction(tx)

	return cloneCopy(bookCopy), cloneTransaction(tx), nil
}

// appendTransaction must be called with the write lock held.
func (s *Store) appendTransaction(tx custody.Transaction) {
	s.lastSequence++
	s.transactions = append(s.transactions, logEntry{tx: tx, sequenceNumber: s.lastSequence})
}

/***** HistoryReader *****/

func (s *Store) QueryTransactions(ctx context.Context, filter custody.TransactionFilter) ([]custody.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matching := make([]logEntry, 0)
	for _, entry := range s.transactions {
		if filter.Matches(entry.tx) {
			matching = append(matching, entry)
		}
	}
	s.mu.RUnlock()

	// newest first by append order, CreatedAt is the caller's clock and may lag behind
	slices.SortFunc(matching, func(a, b logEntry) int {
		return cmp.Compare(b.sequenceNumber, a.sequenceNumber)
	})

	if filter.Limit() > 0 && len(matching) > filter.Limit() {
		matching = matching[:filter.Limit()]
	}

	result := make([]custody.Transaction, 0, len(matching))
	for _, entry := range matching {
		result = append(result, cloneTransaction(entry.tx))
	}

	return result, nil
}

func (s *Store) QueryCopies(ctx context.Context, filter custody.CopyFilter) ([]custody.BookCopy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]custody.BookCopy, 0)
	for _, c := range s.copies {
		if filter.Matches(c) {
			result = append(result, cloneCopy(c))
		}
	}

	slices.SortFunc(result, func(a, b custody.BookCopy) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return result, nil
}

/***** Purger *****/

// PurgeAll removes every record including the transaction log.
func (s *Store) PurgeAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.books)
	clear(s.locations)
	clear(s.copies)
	clear(s.users)
	s.transactions = nil

	return nil
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}

	v := *s

	return &v
}

func cloneCopy(c custody.BookCopy) custody.BookCopy {
	c.LocationID = cloneStringPtr(c.LocationID)
	return c
}

func cloneTransaction(tx custody.Transaction) custody.Transaction {
	tx.LocationID = cloneStringPtr(tx.LocationID)
	return tx
}

func cloneBook(b custody.Book) custody.Book {
	b.Genre = slices.Clone(b.Genre)
	return b
}
