package product

import (
	"context"
	"database/sql"
	"errors"

	"storefront/internal/apperror"
	"storefront/internal/db"
	"storefront/internal/logger"

	"go.uber.org/zap"
)

// Lookup is the read-only catalog contract consumed by the cart and checkout.
type Lookup interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
}

type Repository interface {
	Lookup
	StockKeeper
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetProduct(ctx context.Context, productID string) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetProduct"),
		zap.String("product_id", productID),
	)

	var p Product
	err := db.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, name, price, stock, status
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Status)

	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("product not found")
		return nil, ErrProductNotFound
	}
	if err != nil {
		log.Error("failed to query product", zap.Error(err))
		return nil, apperror.Persistence(err)
	}

	return &p, nil
}
