package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "visaflow/internal/platform/redis"
	"visaflow/pkg/domain"
)

// catalogCacheTTL bounds staleness for read-through catalog lookups. Writes
// invalidate eagerly, so the TTL only matters for multi-instance deployments.
const catalogCacheTTL = 5 * time.Minute

// Cache is a redis read-through cache of presented field lists. A nil Cache
// (or one built over a nil client) is a no-op, so callers never branch.
type Cache struct {
	client *platformredis.Client
	logger *slog.Logger
}

func NewCache(client *platformredis.Client, logger *slog.Logger) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, logger: logger}
}

func cacheKey(productID domain.ProductID) string {
	return "catalog:fields:" + productID.String()
}

// Get returns the cached field list, or (nil, false) on miss or error.
// Cache failures degrade to store reads, never to request failures.
func (c *Cache) Get(ctx context.Context, productID domain.ProductID) ([]FieldDefinition, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(productID)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.WarnContext(ctx, "catalog cache read failed", "error", err)
		}
		return nil, false
	}
	var fields []FieldDefinition
	if err := json.Unmarshal(raw, &fields); err != nil {
		c.logger.WarnContext(ctx, "catalog cache payload corrupt", "error", err)
		return nil, false
	}
	return fields, true
}

// Put stores the presented field list.
func (c *Cache) Put(ctx context.Context, productID domain.ProductID, fields []FieldDefinition) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(productID), raw, catalogCacheTTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "catalog cache write failed", "error", err)
	}
}

// Invalidate drops the cached list after a catalog mutation.
func (c *Cache) Invalidate(ctx context.Context, productID domain.ProductID) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey(productID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "catalog cache invalidation failed", "error", err)
	}
}
