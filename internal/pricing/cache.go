/**
 * @description
 * Redis read-through cache in front of a Provider.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 * - golang.org/x/sync/singleflight: one backend lookup per key at a time
 *
 * @notes
 * - Closes of past days never change and are kept for 24h. A close carried
 *   forward from an earlier day is not cached, since that day's own close may
 *   still arrive.
 * - Current-day quotes are kept for the configured TTL only.
 * - Redis failures are logged and bypassed; they never fail a lookup.
 */

package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/logger"
	"golang.org/x/sync/singleflight"
)

const closeTTL = 24 * time.Hour

// Cache wraps a Provider with a Redis cache.
type Cache struct {
	next       Provider
	redis      *redis.Client
	cal        *calendar.Calendar
	currentTTL time.Duration

	group singleflight.Group
}

// NewCache creates a new Cache
func NewCache(next Provider, rdb *redis.Client, cal *calendar.Calendar, currentTTL time.Duration) *Cache {
	return &Cache{
		next:       next,
		redis:      rdb,
		cal:        cal,
		currentTTL: currentTTL,
	}
}

// PriceAt implements Provider.
func (c *Cache) PriceAt(ctx context.Context, symbol string, asOf time.Time) (Quote, error) {
	key, ttl := c.key(symbol, asOf)

	if q, ok := c.get(ctx, key); ok {
		return q, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		q, err := c.next.PriceAt(ctx, symbol, asOf)
		if err != nil {
			return Quote{}, err
		}
		if ttl != closeTTL || !c.cal.DateOf(q.AsOf).Before(c.cal.DateOf(asOf)) {
			c.set(ctx, key, q, ttl)
		}
		return q, nil
	})
	if err != nil {
		return Quote{}, err
	}
	return v.(Quote), nil
}

// Invalidate drops the cached current quote of symbol.
func (c *Cache) Invalidate(ctx context.Context, symbol string) error {
	return c.redis.Del(ctx, currentKey(symbol)).Err()
}

func (c *Cache) key(symbol string, asOf time.Time) (string, time.Duration) {
	day := c.cal.DateOf(asOf)
	if day.Before(c.cal.Today()) {
		return fmt.Sprintf("price:%s:%s", symbol, day), closeTTL
	}
	return currentKey(symbol), c.currentTTL
}

func currentKey(symbol string) string {
	return fmt.Sprintf("price:%s:current", symbol)
}

func (c *Cache) get(ctx context.Context, key string) (Quote, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("price cache read failed for %s: %v", key, err)
		}
		return Quote{}, false
	}

	var q Quote
	if err := json.Unmarshal(data, &q); err != nil {
		logger.Warn("price cache entry %s is corrupt: %v", key, err)
		return Quote{}, false
	}
	return q, true
}

func (c *Cache) set(ctx context.Context, key string, q Quote, ttl time.Duration) {
	data, err := json.Marshal(q)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		logger.Warn("price cache write failed for %s: %v", key, err)
	}
}
