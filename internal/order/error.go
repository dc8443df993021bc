package order

import (
	"errors"
	"fmt"

	"storefront/internal/apperror"
)

var (
	// -- Validation & Input --
	ErrUnknownRegion   = fmt.Errorf("%w: unknown shipping region", apperror.ErrValidation)
	ErrPricingMismatch = fmt.Errorf("%w: submitted pricing does not match the cart", apperror.ErrValidation)
	ErrInvalidPricing  = fmt.Errorf("%w: invalid pricing", apperror.ErrValidation)
	ErrInvalidLine     = fmt.Errorf("%w: checkout line does not match the cart", apperror.ErrValidation)

	// -- Resource State --
	ErrOrderNotFound = fmt.Errorf("order %w", apperror.ErrNotFound)
	ErrNoCart        = fmt.Errorf("%w: no active cart", apperror.ErrEmptyCart)
	ErrNoLines       = fmt.Errorf("%w: nothing to check out", apperror.ErrEmptyCart)

	// -- Status Machine --
	ErrInvalidTransition = fmt.Errorf("%w", apperror.ErrInvalidTransition)
	ErrNoOpTransition    = fmt.Errorf("%w", apperror.ErrNoOpTransition)

	// -- Database & Operation Failures --
	errCodeCollision = errors.New("generated order code already in use")
)

func unknownStatus(s string) error {
	return fmt.Errorf("%w: unknown order status %q", apperror.ErrValidation, s)
}
