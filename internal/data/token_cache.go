package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sellersync/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

const tokenCacheKeyPrefix = "sellersync:token:"

// cachedTokenEntry is the Redis value for one tenant's token.
type cachedTokenEntry struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// tokenCache implements biz.TokenCache on Redis. With a nil client every
// lookup is a miss and writes are no-ops, so the token manager simply
// refreshes more often.
type tokenCache struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewTokenCache creates the shared token cache. rdb may be nil.
func NewTokenCache(rdb *redis.Client, logger log.Logger) biz.TokenCache {
	return &tokenCache{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// GetToken returns the cached token for a tenant, or biz.ErrTokenCacheMiss.
func (c *tokenCache) GetToken(ctx context.Context, tenantID string) (string, time.Time, error) {
	if c.rdb == nil {
		return "", time.Time{}, biz.ErrTokenCacheMiss
	}

	raw, err := c.rdb.Get(ctx, tokenCacheKeyPrefix+tenantID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", time.Time{}, biz.ErrTokenCacheMiss
		}
		return "", time.Time{}, fmt.Errorf("token cache get failed: %w", err)
	}

	var entry cachedTokenEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		// Treat a corrupt entry as a miss; it will be overwritten on the
		// next refresh.
		c.logger.Warnw("corrupt token cache entry", "tenant_id", tenantID, "error", err)
		return "", time.Time{}, biz.ErrTokenCacheMiss
	}
	return entry.Token, entry.Expiry, nil
}

// SetToken mirrors a refreshed token. The key TTL matches the token expiry so
// stale entries evict themselves.
func (c *tokenCache) SetToken(ctx context.Context, tenantID, token string, expiry time.Time) error {
	if c.rdb == nil {
		return nil
	}

	ttl := time.Until(expiry)
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(cachedTokenEntry{Token: token, Expiry: expiry})
	if err != nil {
		return fmt.Errorf("token cache marshal failed: %w", err)
	}
	if err := c.rdb.Set(ctx, tokenCacheKeyPrefix+tenantID, raw, ttl).Err(); err != nil {
		return fmt.Errorf("token cache set failed: %w", err)
	}
	return nil
}

// DeleteToken drops a tenant's cached token.
func (c *tokenCache) DeleteToken(ctx context.Context, tenantID string) error {
	if c.rdb == nil {
		return nil
	}
	if err := c.rdb.Del(ctx, tokenCacheKeyPrefix+tenantID).Err(); err != nil {
		return fmt.Errorf("token cache delete failed: %w", err)
	}
	return nil
}
