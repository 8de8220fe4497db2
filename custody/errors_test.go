package custody_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

func Test_ErrorBuilders_Wrap_Their_Sentinels(t *testing.T) {
	// act
	notFound := custody.NotFound("book copy", "copy-1")
	conflict := custody.Conflict(custody.ReasonNotAvailable)
	validation := custody.Validation("copy id must not be empty")

	// assert
	assert.ErrorIs(t, notFound, custody.ErrNotFound)
	assert.Contains(t, notFound.Error(), `book copy "copy-1" does not exist`)
	assert.ErrorIs(t, conflict, custody.ErrConflict)
	assert.Contains(t, conflict.Error(), custody.ReasonNotAvailable)
	assert.ErrorIs(t, validation, custody.ErrValidation)
}

func Test_IsRetryable(t *testing.T) {
	assert.True(t, custody.IsRetryable(custody.ErrConcurrencyConflict))
	assert.True(t, custody.IsRetryable(errors.Join(custody.ErrConcurrencyConflict, errors.New("database is locked"))))
	assert.False(t, custody.IsRetryable(custody.Conflict(custody.ReasonNotAvailable)))
	assert.False(t, custody.IsRetryable(context.DeadlineExceeded))
	assert.False(t, custody.IsRetryable(nil))
}

func Test_BookCopy_LocationHelpers(t *testing.T) {
	shelved := custody.BookCopy{Status: custody.StatusAvailable, LocationID: custody.StringPtr("loc-1")}
	borrowed := custody.BookCopy{Status: custody.StatusBorrowed, LocationID: custody.StringPtr("")}

	assert.True(t, shelved.IsShelved())
	assert.Equal(t, "loc-1", shelved.LocationOrEmpty())
	assert.False(t, borrowed.IsShelved())
	assert.Empty(t, borrowed.LocationOrEmpty())
}
