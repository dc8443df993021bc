// Package apperror holds the error kinds shared by the cart and order core.
// Packages wrap these with their own sentinels; callers match with errors.Is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// -- Input --
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")

	// -- Resource State --
	ErrNotFound  = errors.New("not found")
	ErrEmptyCart = errors.New("cart is empty")

	// -- Catalog Conflicts --
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")

	// -- Status Machine --
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoOpTransition    = errors.New("order already has this status")

	// -- Storage --
	ErrPersistence = errors.New("persistence error")
)

// PgUniqueViolation is the postgres SQLSTATE for unique_violation.
const PgUniqueViolation = "23505"

// Persistence wraps a storage failure so that both the kind and the cause match errors.Is.
// Errors that already carry a kind are returned unchanged.
func Persistence(err error) error {
	if err == nil || IsKnown(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// Validationf builds a validation error with detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsKnown reports whether err already belongs to one of the kinds above.
func IsKnown(err error) bool {
	for _, kind := range []error{
		ErrValidation, ErrUnauthorized, ErrNotFound, ErrEmptyCart,
		ErrProductUnavailable, ErrInsufficientStock,
		ErrInvalidTransition, ErrNoOpTransition, ErrPersistence,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
