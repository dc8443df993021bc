package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/apperror"
	"storefront/internal/db"
	"storefront/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// StockKeeper moves units between the catalog and placed orders. Both calls
// are meant to run inside the caller's transaction.
type StockKeeper interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
}

// Reserve takes quantity units out of stock, failing without change when the
// product is gone, not purchasable or short.
func (r *repository) Reserve(ctx context.Context, productID string, quantity int) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Reserve"),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
	)

	conn := db.Conn(ctx, r.db)
	res, err := conn.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1
		WHERE id = $2 AND stock >= $1 AND status = ANY($3)
	`, quantity, productID, pq.Array(PurchasableStatuses()))
	if err != nil {
		log.Error("failed to reserve stock", zap.Error(err))
		return apperror.Persistence(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	// Nothing updated: find out why.
	var (
		stock  int
		status Status
	)
	err = conn.QueryRowContext(ctx,
		`SELECT stock, status FROM products WHERE id = $1`, productID,
	).Scan(&stock, &status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: product %s does not exist", apperror.ErrProductUnavailable, productID)
	case err != nil:
		log.Error("failed to inspect product after reservation miss", zap.Error(err))
		return apperror.Persistence(err)
	case !status.IsPurchasable():
		return fmt.Errorf("%w: product %s is %s", apperror.ErrProductUnavailable, productID, status)
	default:
		log.Info("reservation rejected", zap.Int("available", stock))
		return fmt.Errorf("%w: product %s requested %d, available %d",
			apperror.ErrInsufficientStock, productID, quantity, stock)
	}
}

// Release returns units to stock whatever the product's current status.
func (r *repository) Release(ctx context.Context, productID string, quantity int) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE products SET stock = stock + $1 WHERE id = $2`, quantity, productID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to release stock",
			zap.String("layer", "repository"),
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return apperror.Persistence(err)
	}
	return nil
}
