package ratecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

var _ port.ExchangeRateProvider = (*RedisRateCache)(nil)

// DefaultTTL is how long a fetched rate is reused.
const DefaultTTL = time.Hour

const keyPrefix = "fx:rate:"

// Store is the subset of redis.Cmdable the cache uses. *redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// HitRecorder counts cache lookups.
type HitRecorder interface {
	RateCacheLookup(ctx context.Context, hit bool)
}

// RedisRateCache decorates an ExchangeRateProvider with a shared Redis cache.
// Redis failures degrade to calling the provider directly.
type RedisRateCache struct {
	store  Store
	next   port.ExchangeRateProvider
	ttl    time.Duration
	hits   HitRecorder
	logger *slog.Logger
}

// NewRedisRateCache creates a new RedisRateCache. hits may be nil.
func NewRedisRateCache(store Store, next port.ExchangeRateProvider, ttl time.Duration, hits HitRecorder, logger *slog.Logger) *RedisRateCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRateCache{store: store, next: next, ttl: ttl, hits: hits, logger: logger}
}

// Key returns the cache key of a pair, e.g. "fx:rate:USD:EUR".
func Key(from, to money.Currency) string {
	return keyPrefix + from.Code() + ":" + to.Code()
}

// Rate returns the cached rate or fetches and caches it. Failed lookups are not cached.
func (c *RedisRateCache) Rate(ctx context.Context, from, to money.Currency) (valueobject.ExchangeRate, error) {
	key := Key(from, to)

	if rate, ok := c.lookup(ctx, key, from, to); ok {
		c.record(ctx, true)
		return rate, nil
	}
	c.record(ctx, false)

	rate, err := c.next.Rate(ctx, from, to)
	if err != nil {
		return valueobject.ExchangeRate{}, err
	}
	if err := c.store.Set(ctx, key, rate.Rate().String(), c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache exchange rate", "key", key, "error", err)
	}
	return rate, nil
}

func (c *RedisRateCache) lookup(ctx context.Context, key string, from, to money.Currency) (valueobject.ExchangeRate, bool) {
	val, err := c.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return valueobject.ExchangeRate{}, false
	}
	if err != nil {
		c.logger.Warn("exchange rate cache unavailable", "key", key, "error", err)
		return valueobject.ExchangeRate{}, false
	}

	rate, err := parseCached(val, from, to)
	if err != nil {
		c.logger.Warn("ignoring invalid cached exchange rate", "key", key, "value", val, "error", err)
		return valueobject.ExchangeRate{}, false
	}
	return rate, true
}

func parseCached(val string, from, to money.Currency) (valueobject.ExchangeRate, error) {
	d, err := decimal.NewFromString(val)
	if err != nil {
		return valueobject.ExchangeRate{}, fmt.Errorf("parse cached rate: %w", err)
	}
	return valueobject.NewExchangeRate(from, to, d)
}

func (c *RedisRateCache) record(ctx context.Context, hit bool) {
	if c.hits != nil {
		c.hits.RateCacheLookup(ctx, hit)
	}
}
