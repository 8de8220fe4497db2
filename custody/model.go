package custody

import (
	"fmt"
	"time"
)

// CopyStatus is the custody state of a single BookCopy.
type CopyStatus string

const (
	// StatusAvailable means the copy is shelved at a Location and can be borrowed.
	StatusAvailable CopyStatus = "available"

	// StatusBorrowed means the copy is held by a reader and has no Location.
	StatusBorrowed CopyStatus = "borrowed"

	// StatusInTransit means the copy is moving between locations.
	StatusInTransit CopyStatus = "in-transit"
)

// IsValid reports whether s is one of the known copy states.
func (s CopyStatus) IsValid() bool {
	switch s {
	case StatusAvailable, StatusBorrowed, StatusInTransit:
		return true
	default:
		return false
	}
}

// Action is the kind of custody change recorded by a Transaction.
type Action string

const (
	ActionBorrow Action = "borrow"
	ActionReturn Action = "return"
	ActionDonate Action = "donate"
)

// IsValid reports whether a is one of the known actions.
func (a Action) IsValid() bool {
	switch a {
	case ActionBorrow, ActionReturn, ActionDonate:
		return true
	default:
		return false
	}
}

// Role of a library user.
type Role string

const (
	RoleReader Role = "reader"
	RoleAdmin  Role = "admin"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleReader || r == RoleAdmin
}

// Book is a catalog entry. Its display fields are editable, the identity is not.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	ISBN        string    `json:"isbn,omitempty"`
	Description string    `json:"description,omitempty"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Genre       []string  `json:"genre"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Location is a physical place where copies are shelved.
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	IsActive bool   `json:"isActive"`
}

// BookCopy is one physical instance of a Book.
//
// Invariant: Status == StatusBorrowed <=> LocationID == nil,
// and Status == StatusAvailable => LocationID references an existing Location.
type BookCopy struct {
	ID         string     `json:"id"`
	BookID     string     `json:"bookId"`
	Status     CopyStatus `json:"status"`
	LocationID *string    `json:"locationId"`
}

// IsShelved reports whether the copy currently has a location.
func (c BookCopy) IsShelved() bool {
	return c.LocationID != nil
}

// LocationOrEmpty returns the location id or "" when the copy is with a borrower.
func (c BookCopy) LocationOrEmpty() string {
	if c.LocationID == nil {
		return ""
	}

	return *c.LocationID
}

// CheckCopyState verifies the status/location invariant of c and returns an ErrValidation error
// if it is violated. An in-transit copy may or may not carry a location.
func CheckCopyState(c BookCopy) error {
	switch {
	case !c.Status.IsValid():
		return Validation(fmt.Sprintf("unknown copy status %q", c.Status))
	case c.Status == StatusBorrowed && c.LocationID != nil:
		return Validation("a borrowed copy must not have a location")
	case c.Status == StatusAvailable && c.LocationOrEmpty() == "":
		return Validation("an available copy must have a location")
	default:
		return nil
	}
}

// Transaction is an immutable custody log entry. It records a fact, the current custody state
// lives in BookCopy.
type Transaction struct {
	ID         string    `json:"id"`
	BookID     string    `json:"bookId"`
	CopyID     string    `json:"copyId"`
	UserID     string    `json:"userId"`
	Action     Action    `json:"action"`
	LocationID *string   `json:"locationId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// User of the library. The custody engine treats the id as opaque.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdDate"`
}

// StringPtr returns a pointer to s, or nil if s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

// CopyTransition is the input of the atomic compare-and-swap on one copy.
//
// The store must apply it as one indivisible unit: check that the copy is in ExpectedStatus,
// switch it to NewStatus/NewLocationID and append a Transaction built from the copy's BookID and
// the remaining fields. When the check fails nothing is written.
type CopyTransition struct {
	CopyID         string
	ExpectedStatus CopyStatus
	NewStatus      CopyStatus
	NewLocationID  *string

	// RequireLocation makes the store verify that NewLocationID references an existing Location
	// inside the same atomic unit.
	RequireLocation bool

	TransactionID string
	UserID        string
	Action        Action
	LogLocationID *string
	OccurredAt    time.Time
}

// Donation is the input of the atomic "create copy + append donate entry" operation.
type Donation struct {
	CopyID        string
	BookID        string
	LocationID    string
	TransactionID string
	UserID        string
	OccurredAt    time.Time
}
