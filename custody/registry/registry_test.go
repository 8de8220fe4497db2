package registry_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/memstore"
	"github.com/AntonStoeckl/library-custody-go/custody/registry"
	. "github.com/AntonStoeckl/library-custody-go/testutil/helper"
)

func newRegistry(t *testing.T, options ...registry.Option) (*registry.Registry, *memstore.Store) {
	t.Helper()

	store := memstore.New()
	options = append([]registry.Option{registry.WithClock(func() time.Time { return FakeClock })}, options...)
	reg, err := registry.NewRegistry(store, options...)
	require.NoError(t, err, "error in test setup")

	return reg, store
}

func givenBooks(t *testing.T, ctx context.Context, reg *registry.Registry) (gatsby, mockingbird, orwell custody.Book) {
	t.Helper()

	var err error

	gatsby, err = reg.CreateBook(ctx, registry.BookInput{
		Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "9780743273565", Genre: []string{"Classic", "Fiction"},
	})
	require.NoError(t, err, "error in arranging test data")

	mockingbird, err = reg.CreateBook(ctx, registry.BookInput{
		Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "9780061120084", Genre: []string{"Classic", "Fiction"},
	})
	require.NoError(t, err, "error in arranging test data")

	orwell, err = reg.CreateBook(ctx, registry.BookInput{
		Title: "1984", Author: "George Orwell", ISBN: "9780451524935", Genre: []string{"Dystopian", "Science Fiction"},
	})
	require.NoError(t, err, "error in arranging test data")

	return gatsby, mockingbird, orwell
}

func Test_CreateBook(t *testing.T) {
	// setup
	ctx := context.Background()
	reg, _ := newRegistry(t)

	// act
	book, err := reg.CreateBook(ctx, registry.BookInput{
		Title:  "  Pride and Prejudice ",
		Author: "Jane Austen",
		Genre:  []string{"Romance", " ", "Classic", "Romance"},
	})

	// assert
	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "Pride and Prejudice", book.Title)
	assert.Equal(t, []string{"Romance", "Classic"}, book.Genre)
	assert.True(t, FakeClock.Equal(book.CreatedAt))

	stored, getErr := reg.GetBook(ctx, book.ID)
	require.NoError(t, getErr)
	assert.Equal(t, book, stored)
}

func Test_CreateBook_When_RequiredFieldsAreMissing(t *testing.T) {
	// setup
	ctx := context.Background()
	reg, _ := newRegistry(t)

	// act
	_, missingTitle := reg.CreateBook(ctx, registry.BookInput{Author: "Jane Austen"})
	_, missingAuthor := reg.CreateBook(ctx, registry.BookInput{Title: "Emma"})
	_, badCover := reg.CreateBook(ctx, registry.BookInput{Title: "Emma", Author: "Jane Austen", CoverImage: "not a url"})

	// assert
	assert.ErrorIs(t, missingTitle, custody.ErrValidation)
	assert.Contains(t, missingTitle.Error(), "Title")
	assert.ErrorIs(t, missingAuthor, custody.ErrValidation)
	assert.ErrorIs(t, badCover, custody.ErrValidation)
}

func Test_UpdateBook(t *testing.T) {
	// setup
	ctx := context.Background()
	reg, _ := newRegistry(t)
	gatsby, _, _ := givenBooks(t, ctx, reg)

	// act
	updated, err := reg.UpdateBook(ctx, gatsby.ID, registry.BookInput{
		Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Description: "Jazz age", Genre: []string{"Classic"},
	})
	_, missingErr := reg.UpdateBook(ctx, "no-such-book", registry.BookInput{Title: "x", Author: "y"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, gatsby.ID, updated.ID)
	assert.Equal(t, "Jazz age", updated.Description)
	assert.Equal(t, []string{"Classic"}, updated.Genre)
	assert.True(t, gatsby.CreatedAt.Equal(updated.CreatedAt))
	assert.ErrorIs(t, missingErr, custody.ErrNotFound)
}

func Test_SearchBooks(t *testing.T) {
	// setup
	ctx := context.Background()
	reg, _ := newRegistry(t)
	gatsby, mockingbird, orwell := givenBooks(t, ctx, reg)

	testCases := []struct {
		term     string
		expected []string
	}{
		{term: "gatsby", expected: []string{gatsby.ID}},
		{term: "HARPER", expected: []string{mockingbird.ID}},
		{term: "9780451", expected: []string{orwell.ID}},
		{term: "fiction", expected: []string{orwell.ID, gatsby.ID, mockingbird.ID}},
		{term: "dystopian", expected: []string{orwell.ID}},
		{term: "", expected: []string{orwell.ID, gatsby.ID, mockingbird.ID}},
		{term: "tolkien", expected: []string{}},
	}

	for _, tc := range testCases {
		t.Run("term "+tc.term, func(t *testing.T) {
			// act
			books, err := reg.SearchBooks(ctx, tc.term)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tc.expected, bookIDs(books))
		})
	}
}

func Test_BooksByGenre_Matches_Exactly(t *testing.T) {
	// setup
	ctx := context.Background()
	reg, _ := newRegistry(t)
	gatsby, mockingbird, _ := givenBooks(t, ctx, reg)

	// act
	fiction, err := reg.BooksByGenre(ctx, "Fiction")
	lowercase, lowerErr := reg.BooksByGenre(ctx, "fiction")

	// assert
	require.NoError(t, err)
	require.NoError(t, lowerErr)
	assert.Equal(t, []string{gatsby.ID, mockingbird.ID}, bookIDs(fiction))
	assert.Empty(t, lowercase)
}

func Test_DeleteBook_When_CopiesExist(t *testing.T) {
	// setup
	ctx := context.Background()
	reg, _ := newRegistry(t)
	gatsby, _, _ := givenBooks(t, ctx, reg)
	location, err := reg.CreateLocation(ctx, registry.LocationInput{Name: "Central Library", Address: "123 Main Street, Cityville"})
	require.NoError(t, err, "error in arranging test data")
	copies, err := reg.AddCopies(ctx, gatsby.ID, location.ID, 1)
	require.NoError(t, err, "error in arranging test data")

	// act
	deleteErr := reg.DeleteBook(ctx, gatsby.ID)

	// assert
	assert.ErrorIs(t, deleteErr, custody.ErrConflict)
	assert.Contains(t, deleteErr.Error(), custody.ReasonHasCopies)

	require.NoError(t, reg.DeleteCopy(ctx, copies[0].ID))
	assert.NoError(t, reg.DeleteBook(ctx, gatsby.ID))
	_, getErr := reg.GetBook(ctx, gatsby.ID)
	assert.ErrorIs(t, getErr, custody.ErrNotFound)
}

func Test_AddCopies(t *testing.T) {
	// setup
	ctx := context.Background()
	logSpy := NewLogHandlerSpy(false)
	reg, store := newRegistry(t, registry.WithLogger(slog.New(logSpy)))
	gatsby, _, _ := givenBooks(t, ctx, reg)
	location, err := reg.CreateLocation(ctx, registry.LocationInput{Name: "Riverside Branch", Address: "456 River Road, Cityville"})
	require.NoError(t, err, "error in arranging test data")

	// act
	copies, err := reg.AddCopies(ctx, gatsby.ID, location.ID, 3)

	// assert
	require.NoError(t, err)
	require.Len(t, copies, 3)
	for _, c := range copies {
		assert.Equal(t, custody.StatusAvailable, c.Status)
		assert.Equal(t, location.ID, c.LocationOrEmpty())
		assert.Equal(t, gatsby.ID, c.BookID)
	}

	assert.Zero(t, CountTransactions(t, ctx, store), "admin additions are not custody transactions")
	assert.True(t, logSpy.HasInfoLog("registry: copies added").WithAttr("count", 3).Assert())
}

func Test_AddCopies_When_InputIsInvalid(t *testing.T) {
	// setup
	ctx := context.Background()
	reg, store := newRegistry(t)
	gatsby, _, _ := givenBooks(t, ctx, reg)
	location, err := reg.CreateLocation(ctx, registry.LocationInput{Name: "Central Library", Address: "123 Main Street"})
	require.NoError(t, err, "error in arranging test data")

	// act
	_, zeroErr := reg.AddCopies(ctx, gatsby.ID, location.ID, 0)
	_, tooManyErr := reg.AddCopies(ctx, gatsby.ID, location.ID, registry.MaxCopiesPerBatch+1)
	_, missingBookErr := reg.AddCopies(ctx, "no-such-book", location.ID, 2)
	_, missingLocationErr := reg.AddCopies(ctx, gatsby.ID, "no-such-location", 2)

	// assert
	assert.ErrorIs(t, zeroErr, custody.ErrValidation)
	assert.ErrorIs(t, tooManyErr, custody.ErrValidation)
	assert.ErrorIs(t, missingBookErr, custody.ErrNotFound)
	assert.ErrorIs(t, missingLocationErr, custody.ErrNotFound)

	copies, queryErr := store.QueryCopies(ctx, custody.BuildCopyFilter().Finalize())
	require.NoError(t, queryErr)
	assert.Empty(t, copies)
}

func Test_DeleteCopy_When_Borrowed(t *testing.T) {
	// setup
	ctx := context.Background()
	reg, store := newRegistry(t)
	gatsby, _, _ := givenBooks(t, ctx, reg)
	location, err := reg.CreateLocation(ctx, registry.LocationInput{Name: "Central Library", Address: "123 Main Street"})
	require.NoError(t, err, "error in arranging test data")
	copies, err := reg.AddCopies(ctx, gatsby.ID, location.ID, 1)
	require.NoError(t, err, "error in arranging test data")
	GivenCopyWasBorrowed(t, ctx, store, copies[0].ID, "u1", location.ID, FakeClock)

	// act
	deleteErr := reg.DeleteCopy(ctx, copies[0].ID)

	// assert
	assert.ErrorIs(t, deleteErr, custody.ErrConflict)
	assert.Contains(t, deleteErr.Error(), custody.ReasonCopyIsBorrowed)
	_, getErr := reg.GetCopy(ctx, copies[0].ID)
	assert.NoError(t, getErr)
}

func Test_Locations(t *testing.T) {
	// setup
	ctx := context.Background()
	reg, store := newRegistry(t)
	gatsby, _, _ := givenBooks(t, ctx, reg)

	central, err := reg.CreateLocation(ctx, registry.LocationInput{Name: "Central Library", Address: "123 Main Street, Cityville"})
	require.NoError(t, err)
	mountain, err := reg.CreateLocation(ctx, registry.LocationInput{Name: "Mountain Community Library", Address: "789 Summit Avenue, Mountain View"})
	require.NoError(t, err)
	copies, err := reg.AddCopies(ctx, gatsby.ID, mountain.ID, 2)
	require.NoError(t, err)

	// act
	statusErr := reg.SetLocationStatus(ctx, mountain.ID, false)
	active, activeErr := reg.ActiveLocations(ctx)
	all, allErr := reg.ListLocations(ctx)
	renamed, renameErr := reg.UpdateLocation(ctx, mountain.ID, registry.LocationInput{Name: "Summit Library", Address: "789 Summit Avenue"})

	// assert
	require.NoError(t, statusErr)
	require.NoError(t, activeErr)
	require.NoError(t, allErr)
	require.NoError(t, renameErr)
	assert.True(t, central.IsActive)
	assert.Equal(t, []custody.Location{central}, active)
	assert.Len(t, all, 2)
	assert.False(t, renamed.IsActive, "renaming must keep the active flag")
	assert.Equal(t, "Summit Library", renamed.Name)

	stillThere, queryErr := store.QueryCopies(ctx, custody.BuildCopyFilter().AtLocation(mountain.ID).Finalize())
	require.NoError(t, queryErr)
	assert.Len(t, stillThere, len(copies), "deactivation must not touch shelved copies")

	assert.ErrorIs(t, reg.SetLocationStatus(ctx, "no-such-location", true), custody.ErrNotFound)
	_, invalidErr := reg.CreateLocation(ctx, registry.LocationInput{Name: "No Address"})
	assert.ErrorIs(t, invalidErr, custody.ErrValidation)
}

func Test_Users(t *testing.T) {
	// setup
	ctx := context.Background()
	reg, _ := newRegistry(t)

	// act
	user, err := reg.CreateUser(ctx, registry.UserInput{Email: "Reader1@Example.com", Name: "Reader One"})
	roleErr := reg.SetUserRole(ctx, user.ID, custody.RoleAdmin)
	invalidRoleErr := reg.SetUserRole(ctx, user.ID, custody.Role("librarian"))
	_, invalidEmailErr := reg.CreateUser(ctx, registry.UserInput{Email: "not-an-email", Name: "Broken"})
	updated, updateErr := reg.UpdateUser(ctx, user.ID, registry.UserInput{Email: "reader1@example.com", Name: "Reader Uno"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "reader1@example.com", user.Email)
	assert.Equal(t, custody.RoleReader, user.Role)
	assert.True(t, FakeClock.Equal(user.CreatedAt))
	require.NoError(t, roleErr)
	assert.ErrorIs(t, invalidRoleErr, custody.ErrValidation)
	assert.ErrorIs(t, invalidEmailErr, custody.ErrValidation)
	require.NoError(t, updateErr)
	assert.Equal(t, "Reader Uno", updated.Name)
	assert.Equal(t, custody.RoleAdmin, updated.Role, "an empty role must keep the current one")
}

func Test_NewRegistry_When_StoreIsNil(t *testing.T) {
	_, err := registry.NewRegistry(nil)
	assert.ErrorIs(t, err, registry.ErrNilCatalogStore)
}

func bookIDs(books []custody.Book) []string {
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}

	return ids
}
