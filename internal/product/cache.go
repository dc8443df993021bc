package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Evicter drops cached catalog entries after the core changes stock.
type Evicter interface {
	Evict(ctx context.Context, productIDs ...string)
}

// CachedLookup is a read-through Redis cache in front of a Lookup. Cache
// failures never fail a lookup; the next Lookup is consulted instead.
type CachedLookup struct {
	next   Lookup
	client *redis.Client
	ttl    time.Duration
}

func NewCachedLookup(next Lookup, client *redis.Client, ttl time.Duration) *CachedLookup {
	return &CachedLookup{next: next, client: client, ttl: ttl}
}

func (c *CachedLookup) GetProduct(ctx context.Context, productID string) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "cache"),
		zap.String("method", "GetProduct"),
		zap.String("product_id", productID),
	)

	data, err := c.client.Get(ctx, cacheKey(productID)).Bytes()
	switch {
	case err == nil:
		var p Product
		if uErr := json.Unmarshal(data, &p); uErr == nil {
			return &p, nil
		}
		log.Warn("discarding unreadable cache entry")
	case !errors.Is(err, redis.Nil):
		log.Warn("redis get failed", zap.Error(err))
	}

	p, err := c.next.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(p)
	if err != nil {
		log.Warn("failed to encode product for cache", zap.Error(err))
		return p, nil
	}
	if err := c.client.Set(ctx, cacheKey(productID), encoded, c.ttl).Err(); err != nil {
		log.Warn("redis set failed", zap.Error(err))
	}

	return p, nil
}

func (c *CachedLookup) Evict(ctx context.Context, productIDs ...string) {
	if len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, cacheKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.FromCtx(ctx).Warn("redis delete failed",
			zap.Strings("product_ids", productIDs),
			zap.Error(err),
		)
	}
}

func cacheKey(productID string) string {
	return fmt.Sprintf("product:%s", productID)
}
