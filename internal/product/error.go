package product

import (
	"fmt"

	"storefront/internal/apperror"
)

var ErrProductNotFound = fmt.Errorf("product %w", apperror.ErrNotFound)
