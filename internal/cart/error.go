package cart

import (
	"errors"
	"fmt"

	"storefront/internal/apperror"
)

var (
	// -- Validation & Input --
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be greater than zero", apperror.ErrValidation)
	ErrInvalidProduct  = fmt.Errorf("%w: product id is required", apperror.ErrValidation)
	ErrInvalidOwner    = fmt.Errorf("%w: cart owner is required", apperror.ErrValidation)

	// -- Resource State --
	ErrCartNotFound = fmt.Errorf("cart %w", apperror.ErrNotFound)
	ErrLineNotFound = fmt.Errorf("cart line %w", apperror.ErrNotFound)

	// -- Database & Operation Failures --
	errCartOwnerTaken = errors.New("owner already has a cart")
)

func insufficientStock(productID string, requested, available int) error {
	return fmt.Errorf("%w: product %s requested %d, available %d",
		apperror.ErrInsufficientStock, productID, requested, available)
}

func productUnavailable(productID, reason string) error {
	return fmt.Errorf("%w: product %s %s", apperror.ErrProductUnavailable, productID, reason)
}
