package address

import (
	"context"
	"database/sql"

	"storefront/internal/apperror"
	"storefront/internal/db"
	"storefront/internal/logger"

	"go.uber.org/zap"
)

// RegionReference answers whether a region is a known shipping destination.
type RegionReference interface {
	RegionExists(ctx context.Context, country, region string) (bool, error)
}

type repository struct {
	db *sql.DB
}

func NewRegionRepository(db *sql.DB) RegionReference {
	return &repository{db: db}
}

func (r *repository) RegionExists(ctx context.Context, country, region string) (bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Region"),
		zap.String("method", "RegionExists"),
		zap.String("country", country),
		zap.String("region", region),
	)

	const q = `
		SELECT EXISTS (
			SELECT 1 FROM regions
			WHERE LOWER(country) = LOWER($1)
			  AND LOWER(name) = LOWER($2)
		)
	`

	var exists bool
	if err := db.Conn(ctx, r.db).QueryRowContext(ctx, q, country, region).Scan(&exists); err != nil {
		log.Error("query failed", zap.Error(err))
		return false, apperror.Persistence(err)
	}

	return exists, nil
}
