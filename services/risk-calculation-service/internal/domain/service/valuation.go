package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// ErrRateUnavailable is returned when no exchange rate can be obtained for a
// non-EUR amount. Callers must not substitute a default rate.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// ValuationService converts original-currency amounts to EUR.
type ValuationService struct {
	rates port.ExchangeRateProvider
}

// NewValuationService creates a new ValuationService.
func NewValuationService(rates port.ExchangeRateProvider) *ValuationService {
	return &ValuationService{rates: rates}
}

// Convert returns amount in EUR. EUR amounts pass through unchanged; anything
// else is multiplied by the provider's rate and rounded to cents.
func (s *ValuationService) Convert(ctx context.Context, amount money.MonetaryAmount) (valueobject.EurAmount, error) {
	if amount.IsIn(money.EUR) {
		return valueobject.NewEurAmount(amount.Amount())
	}

	rate, err := s.rates.Rate(ctx, amount.Currency(), money.EUR)
	if err != nil {
		return valueobject.EurAmount{}, fmt.Errorf("%w for %s/EUR: %w", ErrRateUnavailable, amount.Currency(), err)
	}
	if rate.From() != amount.Currency() || rate.To() != money.EUR {
		return valueobject.EurAmount{}, fmt.Errorf("%w: provider returned %s for %s/EUR",
			ErrRateUnavailable, rate.Pair(), amount.Currency())
	}
	return valueobject.NewEurAmount(amount.ConvertAt(rate.Rate()))
}

type ratePair struct {
	from, to money.Currency
}

// ChunkRateCache memoizes successful rate lookups for the lifetime of one chunk,
// so each currency pair hits the underlying provider at most once per chunk.
// Failures are not cached.
type ChunkRateCache struct {
	next  port.ExchangeRateProvider
	mu    sync.Mutex
	rates map[ratePair]valueobject.ExchangeRate
}

// NewChunkRateCache wraps next.
func NewChunkRateCache(next port.ExchangeRateProvider) *ChunkRateCache {
	return &ChunkRateCache{next: next, rates: make(map[ratePair]valueobject.ExchangeRate)}
}

// Rate implements port.ExchangeRateProvider.
func (c *ChunkRateCache) Rate(ctx context.Context, from, to money.Currency) (valueobject.ExchangeRate, error) {
	key := ratePair{from: from, to: to}

	c.mu.Lock()
	rate, ok := c.rates[key]
	c.mu.Unlock()
	if ok {
		return rate, nil
	}

	rate, err := c.next.Rate(ctx, from, to)
	if err != nil {
		return valueobject.ExchangeRate{}, err
	}

	c.mu.Lock()
	c.rates[key] = rate
	c.mu.Unlock()
	return rate, nil
}
