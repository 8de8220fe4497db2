// Package registry manages the catalog: books, locations, copies and users.
//
// It is plain CRUD with input validation on top of custody.CatalogStore. The two boundary rules
// (no deletion of a book with copies, no deletion of a borrowed copy) are enforced by the store
// inside the same atomic unit as the delete. Copy status is never changed here, that is the job
// of the custody engine.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

const (
	// MaxCopiesPerBatch limits AddCopies.
	MaxCopiesPerBatch = 100

	logMsgBookCreated     = "registry: book created"
	logMsgBookDeleted     = "registry: book deleted"
	logMsgLocationCreated = "registry: location created"
	logMsgLocationStatus  = "registry: location status changed"
	logMsgCopiesAdded     = "registry: copies added"
	logMsgCopyDeleted     = "registry: copy deleted"
	logMsgUserCreated     = "registry: user created"
	logMsgUserRoleChanged = "registry: user role changed"
	logAttrBookID         = "book_id"
	logAttrLocationID     = "location_id"
	logAttrCopyID         = "copy_id"
	logAttrUserID         = "user_id"
	logAttrCount          = "count"
	logAttrIsActive       = "is_active"
	logAttrRole           = "role"
)

var (
	// ErrNilCatalogStore is returned when NewRegistry receives no store.
	ErrNilCatalogStore = errors.New("catalog store must not be nil")
)

// BookInput holds the editable fields of a Book.
type BookInput struct {
	Title       string   `json:"title" validate:"required"`
	Author      string   `json:"author" validate:"required"`
	ISBN        string   `json:"isbn"`
	Description string   `json:"description"`
	CoverImage  string   `json:"coverImage" validate:"omitempty,url"`
	Genre       []string `json:"genre"`
}

// LocationInput holds the editable fields of a Location.
type LocationInput struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address" validate:"required"`
}

// UserInput holds the editable fields of a User.
type UserInput struct {
	Email string       `json:"email" validate:"required,email"`
	Name  string       `json:"name" validate:"required"`
	Role  custody.Role `json:"role" validate:"omitempty,oneof=reader admin"`
}

// Option defines a functional option for configuring the Registry.
type Option func(*Registry) error

// WithLogger sets the logger, it receives one info record per successful write.
func WithLogger(logger custody.Logger) Option {
	return func(r *Registry) error {
		r.logger = logger
		return nil
	}
}

// WithClock replaces time.Now for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) error {
		if now != nil {
			r.now = now
		}

		return nil
	}
}

// Registry is the catalog service. It is safe for concurrent use.
type Registry struct {
	store    custody.CatalogStore
	validate *validator.Validate
	logger   custody.Logger
	now      func() time.Time
}

// NewRegistry creates a Registry on top of store.
func NewRegistry(store custody.CatalogStore, options ...Option) (*Registry, error) {
	if store == nil {
		return nil, ErrNilCatalogStore
	}

	r := &Registry{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

/***** Books *****/

// CreateBook adds a book to the catalog. Title and author are required.
func (r *Registry) CreateBook(ctx context.Context, input BookInput) (custody.Book, error) {
	if err := r.check(input); err != nil {
		return custody.Book{}, err
	}

	book := custody.Book{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Author:      strings.TrimSpace(input.Author),
		ISBN:        input.ISBN,
		Description: input.Description,
		CoverImage:  input.CoverImage,
		Genre:       normalizeGenres(input.Genre),
		CreatedAt:   r.now().UTC(),
	}

	if err := r.store.InsertBook(ctx, book); err != nil {
		return custody.Book{}, err
	}

	r.logInfo(logMsgBookCreated, logAttrBookID, book.ID)

	return book, nil
}

func (r *Registry) GetBook(ctx context.Context, bookID string) (custody.Book, error) {
	return r.store.GetBook(ctx, bookID)
}

// UpdateBook replaces the display fields of a book.
func (r *Registry) UpdateBook(ctx context.Context, bookID string, input BookInput) (custody.Book, error) {
	if err := r.check(input); err != nil {
		return custody.Book{}, err
	}

	existing, err := r.store.GetBook(ctx, bookID)
	if err != nil {
		return custody.Book{}, err
	}

	existing.Title = strings.TrimSpace(input.Title)
	existing.Author = strings.TrimSpace(input.Author)
	existing.ISBN = input.ISBN
	existing.Description = input.Description
	existing.CoverImage = input.CoverImage
	existing.Genre = normalizeGenres(input.Genre)

	if err = r.store.UpdateBook(ctx, existing); err != nil {
		return custody.Book{}, err
	}

	return existing, nil
}

// DeleteBook removes a book. It fails with custody.ErrConflict while any copy references it.
func (r *Registry) DeleteBook(ctx context.Context, bookID string) error {
	if err := r.store.DeleteBook(ctx, bookID); err != nil {
		return err
	}

	r.logInfo(logMsgBookDeleted, logAttrBookID, bookID)

	return nil
}

func (r *Registry) ListBooks(ctx context.Context) ([]custody.Book, error) {
	return r.store.ListBooks(ctx)
}

// SearchBooks returns the books whose title, author, ISBN or one of the genres contains term,
// ignoring case. An empty term returns all books.
func (r *Registry) SearchBooks(ctx context.Context, term string) ([]custody.Book, error) {
	books, err := r.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return books, nil
	}

	contains := func(s string) bool {
		return strings.Contains(strings.ToLower(s), needle)
	}

	result := make([]custody.Book, 0)
	for _, b := range books {
		if contains(b.Title) || contains(b.Author) || contains(b.ISBN) || slices.ContainsFunc(b.Genre, contains) {
			result = append(result, b)
		}
	}

	return result, nil
}

// BooksByGenre returns the books tagged with exactly genre.
func (r *Registry) BooksByGenre(ctx context.Context, genre string) ([]custody.Book, error) {
	books, err := r.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]custody.Book, 0)
	for _, b := range books {
		if slices.Contains(b.Genre, genre) {
			result = append(result, b)
		}
	}

	return result, nil
}

/***** Locations *****/

// CreateLocation adds a location, new locations are active.
func (r *Registry) CreateLocation(ctx context.Context, input LocationInput) (custody.Location, error) {
	if err := r.check(input); err != nil {
		return custody.Location{}, err
	}

	location := custody.Location{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(input.Name),
		Address:  strings.TrimSpace(input.Address),
		IsActive: true,
	}

	if err := r.store.InsertLocation(ctx, location); err != nil {
		return custody.Location{}, err
	}

	r.logInfo(logMsgLocationCreated, logAttrLocationID, location.ID)

	return location, nil
}

func (r *Registry) GetLocation(ctx context.Context, locationID string) (custody.Location, error) {
	return r.store.GetLocation(ctx, locationID)
}

// UpdateLocation replaces name and address, the active flag is kept.
func (r *Registry) UpdateLocation(ctx context.Context, locationID string, input LocationInput) (custody.Location, error) {
	if err := r.check(input); err != nil {
		return custody.Location{}, err
	}

	existing, err := r.store.GetLocation(ctx, locationID)
	if err != nil {
		return custody.Location{}, err
	}

	existing.Name = strings.TrimSpace(input.Name)
	existing.Address = strings.TrimSpace(input.Address)

	if err = r.store.UpdateLocation(ctx, existing); err != nil {
		return custody.Location{}, err
	}

	return existing, nil
}

// SetLocationStatus activates or deactivates a location.
// Inactive locations are hidden from ActiveLocations, copies shelved there are not affected.
func (r *Registry) SetLocationStatus(ctx context.Context, locationID string, isActive bool) error {
	existing, err := r.store.GetLocation(ctx, locationID)
	if err != nil {
		return err
	}

	existing.IsActive = isActive

	if err = r.store.UpdateLocation(ctx, existing); err != nil {
		return err
	}

	r.logInfo(logMsgLocationStatus, logAttrLocationID, locationID, logAttrIsActive, isActive)

	return nil
}

// ActiveLocations returns the locations readers can choose from.
func (r *Registry) ActiveLocations(ctx context.Context) ([]custody.Location, error) {
	return r.store.ListLocations(ctx, true)
}

// ListLocations returns all locations including inactive ones.
func (r *Registry) ListLocations(ctx context.Context) ([]custody.Location, error) {
	return r.store.ListLocations(ctx, false)
}

/***** Copies *****/

// AddCopies shelves n new available copies of bookID at locationID in one atomic unit.
// This is the admin path, it does not write to the transaction log.
func (r *Registry) AddCopies(ctx context.Context, bookID, locationID string, n int) ([]custody.BookCopy, error) {
	switch {
	case bookID == "":
		return nil, custody.Validation("book id must not be empty")
	case locationID == "":
		return nil, custody.Validation("location id must not be empty")
	case n < 1 || n > MaxCopiesPerBatch:
		return nil, custody.Validation(fmt.Sprintf("number of copies must be between 1 and %d", MaxCopiesPerBatch))
	}

	copies := make([]custody.BookCopy, 0, n)
	for i := 0; i < n; i++ {
		copies = append(copies, custody.BookCopy{
			ID:         uuid.NewString(),
			BookID:     bookID,
			Status:     custody.StatusAvailable,
			LocationID: custody.StringPtr(locationID),
		})
	}

	if err := r.store.InsertCopies(ctx, copies...); err != nil {
		return nil, err
	}

	r.logInfo(logMsgCopiesAdded, logAttrBookID, bookID, logAttrLocationID, locationID, logAttrCount, n)

	return copies, nil
}

func (r *Registry) GetCopy(ctx context.Context, copyID string) (custody.BookCopy, error) {
	return r.store.GetCopy(ctx, copyID)
}

// DeleteCopy removes a copy. It fails with custody.ErrConflict while the copy is borrowed.
func (r *Registry) DeleteCopy(ctx context.Context, copyID string) error {
	if err := r.store.DeleteCopy(ctx, copyID); err != nil {
		return err
	}

	r.logInfo(logMsgCopyDeleted, logAttrCopyID, copyID)

	return nil
}

/***** Users *****/

// CreateUser registers a user, the role defaults to reader.
func (r *Registry) CreateUser(ctx context.Context, input UserInput) (custody.User, error) {
	if err := r.check(input); err != nil {
		return custody.User{}, err
	}

	user := custody.User{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Name:      strings.TrimSpace(input.Name),
		Role:      input.Role,
		CreatedAt: r.now().UTC(),
	}

	if user.Role == "" {
		user.Role = custody.RoleReader
	}

	if err := r.store.InsertUser(ctx, user); err != nil {
		return custody.User{}, err
	}

	r.logInfo(logMsgUserCreated, logAttrUserID, user.ID, logAttrRole, string(user.Role))

	return user, nil
}

func (r *Registry) GetUser(ctx context.Context, userID string) (custody.User, error) {
	return r.store.GetUser(ctx, userID)
}

// UpdateUser replaces email and name, and the role if one is given.
func (r *Registry) UpdateUser(ctx context.Context, userID string, input UserInput) (custody.User, error) {
	if err := r.check(input); err != nil {
		return custody.User{}, err
	}

	existing, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return custody.User{}, err
	}

	existing.Email = strings.ToLower(strings.TrimSpace(input.Email))
	existing.Name = strings.TrimSpace(input.Name)
	if input.Role != "" {
		existing.Role = input.Role
	}

	if err = r.store.UpdateUser(ctx, existing); err != nil {
		return custody.User{}, err
	}

	return existing, nil
}

// SetUserRole changes the role of a user.
func (r *Registry) SetUserRole(ctx context.Context, userID string, role custody.Role) error {
	if !role.IsValid() {
		return custody.Validation(fmt.Sprintf("unknown role %q", role))
	}

	existing, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	existing.Role = role

	if err = r.store.UpdateUser(ctx, existing); err != nil {
		return err
	}

	r.logInfo(logMsgUserRoleChanged, logAttrUserID, userID, logAttrRole, string(role))

	return nil
}

func (r *Registry) check(input any) error {
	err := r.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return errors.Join(custody.ErrValidation, err)
	}

	details := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		details = append(details, fmt.Sprintf("%s fails %q", fe.Field(), fe.Tag()))
	}

	return custody.Validation(strings.Join(details, ", "))
}

func (r *Registry) logInfo(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

// normalizeGenres trims, drops empties and keeps the first occurrence of each genre.
func normalizeGenres(genres []string) []string {
	result := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g != "" && !slices.Contains(result, g) {
			result = append(result, g)
		}
	}

	return result
}
