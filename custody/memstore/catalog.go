package memstore

import (
	"cmp"
	"context"
	"slices"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

/***** Books *****/

func (s *Store) InsertBook(ctx context.Context, book custody.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.books[book.ID]; exists {
		return custody.AlreadyExists(entityBook, book.ID)
	}

	s.books[book.ID] = cloneBook(book)

	return nil
}

func (s *Store) GetBook(ctx context.Context, bookID string) (custody.Book, error) {
	if err := ctx.Err(); err != nil {
		return custody.Book{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[bookID]
	if !ok {
		return custody.Book{}, custody.NotFound(entityBook, bookID)
	}

	return cloneBook(book), nil
}

// UpdateBook replaces the display fields, the creation time is kept.
func (s *Store) UpdateBook(ctx context.Context, book custody.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.books[book.ID]
	if !ok {
		return custody.NotFound(entityBook, book.ID)
	}

	book.CreatedAt = existing.CreatedAt
	s.books[book.ID] = cloneBook(book)

	return nil
}

func (s *Store) DeleteBook(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[bookID]; !ok {
		return custody.NotFound(entityBook, bookID)
	}

	for _, c := range s.copies {
		if c.BookID == bookID {
			return custody.Conflict(custody.ReasonHasCopies)
		}
	}

	delete(s.books, bookID)

	return nil
}

// ListBooks returns all books ordered by title.
func (s *Store) ListBooks(ctx context.Context) ([]custody.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]custody.Book, 0, len(s.books))
	for _, b := range s.books {
		result = append(result, cloneBook(b))
	}

	slices.SortFunc(result, func(a, b custody.Book) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})

	return result, nil
}

/***** Locations *****/

func (s *Store) InsertLocation(ctx context.Context, location custody.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.locations[location.ID]; exists {
		return custody.AlreadyExists(entityLocation, location.ID)
	}

	s.locations[location.ID] = location

	return nil
}

func (s *Store) GetLocation(ctx context.Context, locationID string) (custody.Location, error) {
	if err := ctx.Err(); err != nil {
		return custody.Location{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	location, ok := s.locations[locationID]
	if !ok {
		return custody.Location{}, custody.NotFound(entityLocation, locationID)
	}

	return location, nil
}

func (s *Store) UpdateLocation(ctx context.Context, location custody.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[location.ID]; !ok {
		return custody.NotFound(entityLocation, location.ID)
	}

	s.locations[location.ID] = location

	return nil
}

// ListLocations returns the locations ordered by name.
func (s *Store) ListLocations(ctx context.Context, onlyActive bool) ([]custody.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]custody.Location, 0, len(s.locations))
	for _, l := range s.locations {
		if onlyActive && !l.IsActive {
			continue
		}

		result = append(result, l)
	}

	slices.SortFunc(result, func(a, b custody.Location) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})

	return result, nil
}

/***** Copies *****/

func (s *Store) InsertCopies(ctx context.Context, copies ...custody.BookCopy) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(copies))

	// validate everything first, nothing is written when one copy is rejected
	for _, c := range copies {
		if err := custody.CheckCopyState(c); err != nil {
			return err
		}

		if _, ok := s.books[c.BookID]; !ok {
			return custody.NotFound(entityBook, c.BookID)
		}

		if c.LocationID != nil {
			if _, ok := s.locations[*c.LocationID]; !ok {
				return custody.NotFound(entityLocation, *c.LocationID)
			}
		}

		_, stored := s.copies[c.ID]
		_, duplicate := seen[c.ID]
		if stored || duplicate {
			return custody.AlreadyExists(entityCopy, c.ID)
		}

		seen[c.ID] = struct{}{}
	}

	for _, c := range copies {
		s.copies[c.ID] = cloneCopy(c)
	}

	return nil
}

func (s *Store) GetCopy(ctx context.Context, copyID string) (custody.BookCopy, error) {
	if err := ctx.Err(); err != nil {
		return custody.BookCopy{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.copies[copyID]
	if !ok {
		return custody.BookCopy{}, custody.NotFound(entityCopy, copyID)
	}

	return cloneCopy(c), nil
}

func (s *Store) DeleteCopy(ctx context.Context, copyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !s.copyExists(copyID) {
		return custody.NotFound(entityCopy, copyID)
	}

	unlock := s.lockCopy(copyID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.copies[copyID]
	if !ok {
		return custody.NotFound(entityCopy, copyID)
	}

	if c.Status == custody.StatusBorrowed {
		return custody.Conflict(custody.ReasonCopyIsBorrowed)
	}

	delete(s.copies, copyID)

	return nil
}

/***** Users *****/

func (s *Store) InsertUser(ctx context.Context, user custody.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return custody.AlreadyExists(entityUser, user.ID)
	}

	s.users[user.ID] = user

	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (custody.User, error) {
	if err := ctx.Err(); err != nil {
		return custody.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return custody.User{}, custody.NotFound(entityUser, userID)
	}

	return user, nil
}

// UpdateUser replaces email, name and role, the creation time is kept.
func (s *Store) UpdateUser(ctx context.Context, user custody.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return custody.NotFound(entityUser, user.ID)
	}

	user.CreatedAt = existing.CreatedAt
	s.users[user.ID] = user

	return nil
}
