package sqlengine

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/sqlengine/internal/adapters"
)

/***** Books *****/

var bookColumns = []any{colID, colTitle, colAuthor, colISBN, colDescription, colCoverImage, colGenre, colCreatedAt}

func (s *Store) InsertBook(ctx context.Context, book custody.Book) error {
	genre, err := encodeGenre(book.Genre)
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, s.db, actionInsert, s.builder.Insert(s.tables.books).Prepared(true).
		Rows(goqu.Record{
			colID:          book.ID,
			colTitle:       book.Title,
			colAuthor:      book.Author,
			colISBN:        book.ISBN,
			colDescription: book.Description,
			colCoverImage:  book.CoverImage,
			colGenre:       genre,
			colCreatedAt:   toDBTime(book.CreatedAt),
		}))

	return err
}

func (s *Store) GetBook(ctx context.Context, bookID string) (custody.Book, error) {
	books, err := s.selectBooks(ctx, goqu.C(colID).Eq(bookID))
	if err != nil {
		return custody.Book{}, err
	}

	if len(books) == 0 {
		return custody.Book{}, custody.NotFound(entityBook, bookID)
	}

	return books[0], nil
}

// UpdateBook replaces the display fields, the creation time is kept.
func (s *Store) UpdateBook(ctx context.Context, book custody.Book) error {
	genre, err := encodeGenre(book.Genre)
	if err != nil {
		return err
	}

	rowsAffected, err := s.exec(ctx, s.db, actionUpdate, s.builder.Update(s.tables.books).Prepared(true).
		Set(goqu.Record{
			colTitle:       book.Title,
			colAuthor:      book.Author,
			colISBN:        book.ISBN,
			colDescription: book.Description,
			colCoverImage:  book.CoverImage,
			colGenre:       genre,
		}).
		Where(goqu.C(colID).Eq(book.ID)))
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return custody.NotFound(entityBook, book.ID)
	}

	return nil
}

// DeleteBook deletes a book unless a copy references it. The guard is part of the DELETE.
func (s *Store) DeleteBook(ctx context.Context, bookID string) error {
	return s.inTransaction(ctx, func(tx adapters.DBTx) error {
		hasNoCopies := goqu.L("NOT EXISTS ?", s.builder.From(s.tables.copies).
			Select(goqu.L("1")).
			Where(goqu.C(colBookID).Eq(bookID)))

		rowsAffected, err := s.exec(ctx, tx, actionDelete, s.builder.Delete(s.tables.books).Prepared(true).
			Where(goqu.C(colID).Eq(bookID), hasNoCopies))
		if err != nil {
			return err
		}

		if rowsAffected > 0 {
			return nil
		}

		if err = s.requireExisting(ctx, tx, s.tables.books, entityBook, bookID); err != nil {
			return err
		}

		return custody.Conflict(custody.ReasonHasCopies)
	})
}

// ListBooks returns all books ordered by title.
func (s *Store) ListBooks(ctx context.Context) ([]custody.Book, error) {
	return s.selectBooks(ctx)
}

func (s *Store) selectBooks(ctx context.Context, where ...goqu.Expression) ([]custody.Book, error) {
	rows, err := s.query(ctx, s.db, actionSelect, s.builder.From(s.tables.books).Prepared(true).
		Select(bookColumns...).
		Where(where...).
		Order(s.orderedText(colTitle), s.orderedText(colID)))
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	books := make([]custody.Book, 0)

	for rows.Next() {
		var book custody.Book
		var genre []byte

		if err = rows.Scan(&book.ID, &book.Title, &book.Author, &book.ISBN, &book.Description, &book.CoverImage, &genre, &book.CreatedAt); err != nil {
			return nil, s.scanFailed(ctx, err)
		}

		if book.Genre, err = decodeGenre(genre); err != nil {
			return nil, s.scanFailed(ctx, err)
		}

		book.CreatedAt = book.CreatedAt.UTC()
		books = append(books, book)
	}

	if err = rows.Err(); err != nil {
		return nil, s.scanFailed(ctx, err)
	}

	return books, nil
}

/***** Locations *****/

func (s *Store) InsertLocation(ctx context.Context, location custody.Location) error {
	_, err := s.exec(ctx, s.db, actionInsert, s.builder.Insert(s.tables.locations).Prepared(true).
		Rows(goqu.Record{
			colID:       location.ID,
			colName:     location.Name,
			colAddress:  location.Address,
			colIsActive: location.IsActive,
		}))

	return err
}

func (s *Store) GetLocation(ctx context.Context, locationID string) (custody.Location, error) {
	locations, err := s.selectLocations(ctx, goqu.C(colID).Eq(locationID))
	if err != nil {
		return custody.Location{}, err
	}

	if len(locations) == 0 {
		return custody.Location{}, custody.NotFound(entityLocation, locationID)
	}

	return locations[0], nil
}

func (s *Store) UpdateLocation(ctx context.Context, location custody.Location) error {
	rowsAffected, err := s.exec(ctx, s.db, actionUpdate, s.builder.Update(s.tables.locations).Prepared(true).
		Set(goqu.Record{
			colName:     location.Name,
			colAddress:  location.Address,
			colIsActive: location.IsActive,
		}).
		Where(goqu.C(colID).Eq(location.ID)))
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return custody.NotFound(entityLocation, location.ID)
	}

	return nil
}

// ListLocations returns the locations ordered by name.
func (s *Store) ListLocations(ctx context.Context, onlyActive bool) ([]custody.Location, error) {
	if onlyActive {
		return s.selectLocations(ctx, goqu.C(colIsActive).IsTrue())
	}

	return s.selectLocations(ctx)
}

func (s *Store) selectLocations(ctx context.Context, where ...goqu.Expression) ([]custody.Location, error) {
	rows, err := s.query(ctx, s.db, actionSelect, s.builder.From(s.tables.locations).Prepared(true).
		Select(colID, colName, colAddress, colIsActive).
		Where(where...).
		Order(s.orderedText(colName), s.orderedText(colID)))
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	locations := make([]custody.Location, 0)

	for rows.Next() {
		var location custody.Location
		if err = rows.Scan(&location.ID, &location.Name, &location.Address, &location.IsActive); err != nil {
			return nil, s.scanFailed(ctx, err)
		}

		locations = append(locations, location)
	}

	if err = rows.Err(); err != nil {
		return nil, s.scanFailed(ctx, err)
	}

	return locations, nil
}

/***** Copies *****/

// InsertCopies adds all copies in one transaction. Missing books or locations roll everything back.
func (s *Store) InsertCopies(ctx context.Context, copies ...custody.BookCopy) error {
	for _, c := range copies {
		if err := custody.CheckCopyState(c); err != nil {
			return err
		}
	}

	if len(copies) == 0 {
		return nil
	}

	return s.inTransaction(ctx, func(tx adapters.DBTx) error {
		checkedBooks := make(map[string]bool)
		checkedLocations := make(map[string]bool)

		for _, c := range copies {
			if !checkedBooks[c.BookID] {
				if err := s.requireExisting(ctx, tx, s.tables.books, entityBook, c.BookID); err != nil {
					return err
				}

				checkedBooks[c.BookID] = true
			}

			if c.LocationID != nil && !checkedLocations[*c.LocationID] {
				if err := s.requireExisting(ctx, tx, s.tables.locations, entityLocation, *c.LocationID); err != nil {
					return err
				}

				checkedLocations[*c.LocationID] = true
			}
		}

		return s.insertCopyRows(ctx, tx, actionInsertCopies, copies...)
	})
}

func (s *Store) insertCopyRows(ctx context.Context, db adapters.DBQuerier, action string, copies ...custody.BookCopy) error {
	records := make([]any, 0, len(copies))
	for _, c := range copies {
		records = append(records, goqu.Record{
			colID:         c.ID,
			colBookID:     c.BookID,
			colStatus:     string(c.Status),
			colLocationID: nullable(c.LocationID),
		})
	}

	_, err := s.exec(ctx, db, action, s.builder.Insert(s.tables.copies).Prepared(true).Rows(records...))

	return err
}

func (s *Store) GetCopy(ctx context.Context, copyID string) (custody.BookCopy, error) {
	bookCopy, found, err := s.findCopy(ctx, s.db, copyID)
	if err != nil {
		return custody.BookCopy{}, err
	}

	if !found {
		return custody.BookCopy{}, custody.NotFound(entityCopy, copyID)
	}

	return bookCopy, nil
}

func (s *Store) findCopy(ctx context.Context, db adapters.DBQuerier, copyID string) (custody.BookCopy, bool, error) {
	copies, err := s.selectCopies(ctx, db, goqu.C(colID).Eq(copyID))
	if err != nil {
		return custody.BookCopy{}, false, err
	}

	if len(copies) == 0 {
		return custody.BookCopy{}, false, nil
	}

	return copies[0], true, nil
}

// DeleteCopy deletes a copy unless it is borrowed. The guard is part of the DELETE.
func (s *Store) DeleteCopy(ctx context.Context, copyID string) error {
	return s.inTransaction(ctx, func(tx adapters.DBTx) error {
		rowsAffected, err := s.exec(ctx, tx, actionDelete, s.builder.Delete(s.tables.copies).Prepared(true).
			Where(goqu.C(colID).Eq(copyID), goqu.C(colStatus).Neq(string(custody.StatusBorrowed))))
		if err != nil {
			return err
		}

		if rowsAffected > 0 {
			return nil
		}

		if err = s.requireExisting(ctx, tx, s.tables.copies, entityCopy, copyID); err != nil {
			return err
		}

		return custody.Conflict(custody.ReasonCopyIsBorrowed)
	})
}

func (s *Store) selectCopies(ctx context.Context, db adapters.DBQuerier, where ...goqu.Expression) ([]custody.BookCopy, error) {
	rows, err := s.query(ctx, db, actionSelect, s.builder.From(s.tables.copies).Prepared(true).
		Select(colID, colBookID, colStatus, colLocationID).
		Where(where...).
		Order(s.orderedText(colID)))
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	copies := make([]custody.BookCopy, 0)

	for rows.Next() {
		var c custody.BookCopy
		var status string

		if err = rows.Scan(&c.ID, &c.BookID, &status, &c.LocationID); err != nil {
			return nil, s.scanFailed(ctx, err)
		}

		c.Status = custody.CopyStatus(status)
		copies = append(copies, c)
	}

	if err = rows.Err(); err != nil {
		return nil, s.scanFailed(ctx, err)
	}

	return copies, nil
}

/***** Users *****/

func (s *Store) InsertUser(ctx context.Context, user custody.User) error {
	_, err := s.exec(ctx, s.db, actionInsert, s.builder.Insert(s.tables.users).Prepared(true).
		Rows(goqu.Record{
			colID:        user.ID,
			colEmail:     user.Email,
			colName:      user.Name,
			colRole:      string(user.Role),
			colCreatedAt: toDBTime(user.CreatedAt),
		}))

	return err
}

func (s *Store) GetUser(ctx context.Context, userID string) (custody.User, error) {
	rows, err := s.query(ctx, s.db, actionSelect, s.builder.From(s.tables.users).Prepared(true).
		Select(colID, colEmail, colName, colRole, colCreatedAt).
		Where(goqu.C(colID).Eq(userID)))
	if err != nil {
		return custody.User{}, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return custody.User{}, s.scanFailed(ctx, err)
		}

		return custody.User{}, custody.NotFound(entityUser, userID)
	}

	var user custody.User
	var role string
	var createdAt time.Time

	if err = rows.Scan(&user.ID, &user.Email, &user.Name, &role, &createdAt); err != nil {
		return custody.User{}, s.scanFailed(ctx, err)
	}

	user.Role = custody.Role(role)
	user.CreatedAt = createdAt.UTC()

	return user, nil
}

// UpdateUser replaces email, name and role, the creation time is kept.
func (s *Store) UpdateUser(ctx context.Context, user custody.User) error {
	rowsAffected, err := s.exec(ctx, s.db, actionUpdate, s.builder.Update(s.tables.users).Prepared(true).
		Set(goqu.Record{
			colEmail: user.Email,
			colName:  user.Name,
			colRole:  string(user.Role),
		}).
		Where(goqu.C(colID).Eq(user.ID)))
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return custody.NotFound(entityUser, user.ID)
	}

	return nil
}
