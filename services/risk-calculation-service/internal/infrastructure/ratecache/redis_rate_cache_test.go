package ratecache_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/pkg/testutil"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/ratecache"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeStore is an in-memory Store. err, when set, fails every command.
type fakeStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = fmt.Sprint(value)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Rate(_ context.Context, from, to money.Currency) (valueobject.ExchangeRate, error) {
	p.calls++
	if p.err != nil {
		return valueobject.ExchangeRate{}, p.err
	}
	return valueobject.NewExchangeRate(from, to, testutil.Dec("0.92"))
}

type hitCounter struct{ hits, misses int }

func (h *hitCounter) RateCacheLookup(_ context.Context, hit bool) {
	if hit {
		h.hits++
	} else {
		h.misses++
	}
}

func TestRedisRateCache_Rate(t *testing.T) {
	t.Run("caches under the pair key", func(t *testing.T) {
		store := newFakeStore()
		next := &countingProvider{}
		hits := &hitCounter{}
		cache := ratecache.NewRedisRateCache(store, next, 0, hits, testLogger())

		for range 3 {
			rate, err := cache.Rate(context.Background(), money.USD, money.EUR)
			require.NoError(t, err)
			testutil.AssertDecimalEqual(t, "0.92", rate.Rate())
		}

		assert.Equal(t, 1, next.calls)
		assert.Equal(t, "0.92", store.values["fx:rate:USD:EUR"])
		assert.Equal(t, time.Hour, store.ttls["fx:rate:USD:EUR"])
		assert.Equal(t, 2, hits.hits)
		assert.Equal(t, 1, hits.misses)
	})

	t.Run("provider failures are not cached", func(t *testing.T) {
		store := newFakeStore()
		next := &countingProvider{err: errors.New("upstream down")}
		cache := ratecache.NewRedisRateCache(store, next, time.Minute, nil, testLogger())

		_, err := cache.Rate(context.Background(), money.GBP, money.EUR)
		require.Error(t, err)
		assert.Empty(t, store.values)
	})

	t.Run("redis outage falls through to the provider", func(t *testing.T) {
		store := newFakeStore()
		store.err = errors.New("connection refused")
		next := &countingProvider{}
		cache := ratecache.NewRedisRateCache(store, next, time.Minute, nil, testLogger())

		_, err := cache.Rate(context.Background(), money.USD, money.EUR)
		require.NoError(t, err)
		assert.Equal(t, 1, next.calls)
	})

	t.Run("corrupt cached value is refetched", func(t *testing.T) {
		store := newFakeStore()
		store.values[ratecache.Key(money.USD, money.EUR)] = "not-a-number"
		next := &countingProvider{}
		cache := ratecache.NewRedisRateCache(store, next, time.Minute, nil, testLogger())

		_, err := cache.Rate(context.Background(), money.USD, money.EUR)
		require.NoError(t, err)
		assert.Equal(t, 1, next.calls)
		assert.Equal(t, "0.92", store.values["fx:rate:USD:EUR"])
	})
}
