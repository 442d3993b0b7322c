package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

var _ port.ExchangeRateProvider = (*CurrencyAPIProvider)(nil)

// DefaultCurrencyAPIURL is the public currencyapi.com endpoint.
const DefaultCurrencyAPIURL = "https://api.currencyapi.com/v3"

// CurrencyAPIConfig configures CurrencyAPIProvider.
type CurrencyAPIConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Attempts int
	// InitialBackoff is the first retry delay; later delays grow exponentially.
	InitialBackoff time.Duration
}

// CurrencyAPIProvider fetches latest rates from currencyapi.com.
type CurrencyAPIProvider struct {
	apiKey         string
	baseURL        string
	attempts       int
	initialBackoff time.Duration
	client         *http.Client
	logger         *slog.Logger
}

// NewCurrencyAPIProvider creates a new CurrencyAPIProvider.
func NewCurrencyAPIProvider(cfg CurrencyAPIConfig, logger *slog.Logger) (*CurrencyAPIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("currencyapi: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCurrencyAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	return &CurrencyAPIProvider{
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		attempts:       cfg.Attempts,
		initialBackoff: cfg.InitialBackoff,
		client:         &http.Client{Timeout: cfg.Timeout},
		logger:         logger,
	}, nil
}

// currencyAPIResponse represents the latest-rates response.
type currencyAPIResponse struct {
	Data map[string]struct {
		Code  string          `json:"code"`
		Value decimal.Decimal `json:"value"`
	} `json:"data"`
}

// Rate fetches the latest from→to rate. Network errors and 5xx/429 responses
// are retried with exponential backoff; other client errors are not.
func (p *CurrencyAPIProvider) Rate(ctx context.Context, from, to money.Currency) (valueobject.ExchangeRate, error) {
	q := url.Values{}
	q.Set("base_currency", from.Code())
	q.Set("currencies", to.Code())
	endpoint := p.baseURL + "/latest?" + q.Encode()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.initialBackoff

	attempt := 0
	var body []byte
	err := backoff.Retry(func() error {
		attempt++
		b, err := p.fetch(ctx, endpoint)
		if err != nil {
			p.logger.Warn("currencyapi request failed",
				"pair", from.Code()+"/"+to.Code(),
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		body = b
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.attempts-1)), ctx))
	if err != nil {
		return valueobject.ExchangeRate{}, fmt.Errorf("currencyapi %s/%s: %w", from, to, err)
	}

	var result currencyAPIResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return valueobject.ExchangeRate{}, fmt.Errorf("failed to parse currencyapi response: %w", err)
	}
	quote, ok := result.Data[to.Code()]
	if !ok {
		return valueobject.ExchangeRate{}, fmt.Errorf("currencyapi returned no rate for %s/%s", from, to)
	}
	return valueobject.NewExchangeRate(from, to, quote.Value)
}

func (p *CurrencyAPIProvider) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	// Sent as a header so it never appears in URLs carried by transport errors.
	req.Header.Set("apikey", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("currencyapi request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("currencyapi error (status %d): %s", resp.StatusCode, string(body))
	default:
		return nil, backoff.Permanent(fmt.Errorf("currencyapi error (status %d): %s", resp.StatusCode, string(body)))
	}
}
