// Package demodata fills an empty library with a small, realistic data set and wipes it again.
package demodata

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/AntonStoeckl/library-custody-go/custody"
	"github.com/AntonStoeckl/library-custody-go/custody/registry"
)

const (
	logMsgPopulated = "demo data populated"
	logMsgCleared   = "all data cleared"
	logAttrLocs     = "locations"
	logAttrBooks    = "books"
	logAttrCopies   = "copies"
	logAttrUsers    = "users"

	maxCopiesPerLocation = 2
)

var (
	ErrNilRegistry = errors.New("registry must not be nil")
	ErrNilPurger   = errors.New("purger must not be nil")
)

// Summary counts what Populate created.
type Summary struct {
	Locations int `json:"locations"`
	Books     int `json:"books"`
	Copies    int `json:"copies"`
	Users     int `json:"users"`
}

var demoLocations = []registry.LocationInput{
	{Name: "Central Library", Address: "123 Main Street, Cityville"},
	{Name: "Riverside Branch", Address: "456 River Road, Cityville"},
	{Name: "Mountain Community Library", Address: "789 Summit Avenue, Mountain View"},
}

var demoBooks = []registry.BookInput{
	{
		Title:       "The Great Gatsby",
		Author:      "F. Scott Fitzgerald",
		ISBN:        "9780743273565",
		Description: "A story of wealth, love, and the American Dream in the Jazz Age",
		CoverImage:  "https://source.unsplash.com/random/800x1200/?book,gatsby",
		Genre:       []string{"Classic", "Fiction"},
	},
	{
		Title:       "To Kill a Mockingbird",
		Author:      "Harper Lee",
		ISBN:        "9780061120084",
		Description: "A powerful story of racism and childhood innocence in the American South",
		CoverImage:  "https://source.unsplash.com/random/800x1200/?book,mockingbird",
		Genre:       []string{"Classic", "Fiction", "Coming of Age"},
	},
	{
		Title:       "1984",
		Author:      "George Orwell",
		ISBN:        "9780451524935",
		Description: "A dystopian novel about totalitarianism, surveillance, and thought control",
		CoverImage:  "https://source.unsplash.com/random/800x1200/?book,dystopia",
		Genre:       []string{"Dystopian", "Science Fiction", "Classic"},
	},
	{
		Title:       "The Lord of the Rings",
		Author:      "J.R.R. Tolkien",
		ISBN:        "9780618640157",
		Description: "An epic fantasy adventure about the quest to destroy a powerful ring",
		CoverImage:  "https://source.unsplash.com/random/800x1200/?book,fantasy",
		Genre:       []string{"Fantasy", "Adventure", "Epic"},
	},
	{
		Title:       "Pride and Prejudice",
		Author:      "Jane Austen",
		ISBN:        "9780141439518",
		Description: "A romantic novel about manners, upbringing, morality, and marriage",
		CoverImage:  "https://source.unsplash.com/random/800x1200/?book,romance",
		Genre:       []string{"Classic", "Romance", "Fiction"},
	},
}

var demoUsers = []registry.UserInput{
	{Email: "admin@readify.com", Name: "Admin User", Role: custody.RoleAdmin},
	{Email: "reader1@example.com", Name: "Reader One", Role: custody.RoleReader},
	{Email: "reader2@example.com", Name: "Reader Two", Role: custody.RoleReader},
}

// Option defines a functional option for the Seeder.
type Option func(*Seeder)

// WithLogger sets the logger for the summary records.
func WithLogger(logger custody.Logger) Option {
	return func(s *Seeder) {
		s.logger = logger
	}
}

// WithRand replaces the random source that picks the number of copies per location.
func WithRand(rng *rand.Rand) Option {
	return func(s *Seeder) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// Seeder populates and clears a library.
type Seeder struct {
	registry *registry.Registry
	purger   custody.Purger
	logger   custody.Logger
	rng      *rand.Rand
}

// NewSeeder creates a Seeder writing through reg and clearing through purger.
func NewSeeder(reg *registry.Registry, purger custody.Purger, options ...Option) (*Seeder, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}

	if purger == nil {
		return nil, ErrNilPurger
	}

	s := &Seeder{
		registry: reg,
		purger:   purger,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec
	}

	for _, option := range options {
		option(s)
	}

	return s, nil
}

// Populate creates the demo locations, books and users, then shelves one or two available copies
// of every book at every location. It does not write to the transaction log.
func (s *Seeder) Populate(ctx context.Context) (Summary, error) {
	var summary Summary

	locationIDs := make([]string, 0, len(demoLocations))
	for _, input := range demoLocations {
		location, err := s.registry.CreateLocation(ctx, input)
		if err != nil {
			return summary, err
		}

		locationIDs = append(locationIDs, location.ID)
		summary.Locations++
	}

	bookIDs := make([]string, 0, len(demoBooks))
	for _, input := range demoBooks {
		book, err := s.registry.CreateBook(ctx, input)
		if err != nil {
			return summary, err
		}

		bookIDs = append(bookIDs, book.ID)
		summary.Books++
	}

	for _, input := range demoUsers {
		if _, err := s.registry.CreateUser(ctx, input); err != nil {
			return summary, err
		}

		summary.Users++
	}

	for _, bookID := range bookIDs {
		for _, locationID := range locationIDs {
			copies, err := s.registry.AddCopies(ctx, bookID, locationID, s.rng.IntN(maxCopiesPerLocation)+1)
			if err != nil {
				return summary, err
			}

			summary.Copies += len(copies)
		}
	}

	if s.logger != nil {
		s.logger.Info(logMsgPopulated,
			logAttrLocs, summary.Locations,
			logAttrBooks, summary.Books,
			logAttrCopies, summary.Copies,
			logAttrUsers, summary.Users,
		)
	}

	return summary, nil
}

// ClearAll deletes every record including the transaction log.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if err := s.purger.PurgeAll(ctx); err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info(logMsgCleared)
	}

	return nil
}

// Reset clears all data and populates the demo set again.
func (s *Seeder) Reset(ctx context.Context) (Summary, error) {
	if err := s.ClearAll(ctx); err != nil {
		return Summary{}, err
	}

	return s.Populate(ctx)
}
