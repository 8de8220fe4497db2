package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AntonStoeckl/library-custody-go/custody"
)

// BorrowCommand moves an available copy to a reader.
type BorrowCommand struct {
	CopyID         string `validate:"required"`
	UserID         string `validate:"required"`
	FromLocationID string `validate:"required"`
}

// ReturnCommand shelves a borrowed copy at a location.
type ReturnCommand struct {
	CopyID       string `validate:"required"`
	UserID       string `validate:"required"`
	ToLocationID string `validate:"required"`
}

// DonateCommand adds a new copy of an existing book at a location.
type DonateCommand struct {
	BookID       string `validate:"required"`
	UserID       string `validate:"required"`
	ToLocationID string `validate:"required"`
}

// validateCommand runs the struct tags and converts failures into a custody.ErrValidation error.
func validateCommand(v *validator.Validate, command any) error {
	err := v.Struct(command)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return errors.Join(custody.ErrValidation, err)
	}

	details := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		details = append(details, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}

	return custody.Validation(strings.Join(details, ", "))
}
