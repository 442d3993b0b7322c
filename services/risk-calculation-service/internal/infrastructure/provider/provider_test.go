package provider_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/pkg/money"
	"github.com/bcbs239/regtech/pkg/testutil"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStaticRateProvider_Rate(t *testing.T) {
	p, err := provider.NewStaticRateProvider(map[string]string{"AUD/EUR": "0.6"})
	require.NoError(t, err)

	t.Run("direct pair", func(t *testing.T) {
		rate, err := p.Rate(context.Background(), money.USD, money.EUR)
		require.NoError(t, err)
		testutil.AssertDecimalEqual(t, "0.9217", rate.Rate())
		assert.Equal(t, "USD/EUR", rate.Pair())
	})

	t.Run("extra pair", func(t *testing.T) {
		rate, err := p.Rate(context.Background(), money.MustCurrency("AUD"), money.EUR)
		require.NoError(t, err)
		testutil.AssertDecimalEqual(t, "0.6", rate.Rate())
	})

	t.Run("inverse pair", func(t *testing.T) {
		rate, err := p.Rate(context.Background(), money.EUR, money.MustCurrency("AUD"))
		require.NoError(t, err)
		assert.Equal(t, "EUR/AUD", rate.Pair())
		testutil.AssertDecimalWithin(t, "1.6667", rate.Rate(), "0.0001")
	})

	t.Run("unknown pair", func(t *testing.T) {
		_, err := p.Rate(context.Background(), money.MustCurrency("BRL"), money.EUR)
		testutil.AssertErrorContains(t, err, "no static rate available for BRL/EUR")
	})

	t.Run("rejects non-positive rates", func(t *testing.T) {
		_, err := provider.NewStaticRateProvider(map[string]string{"XXX/EUR": "0"})
		require.Error(t, err)
	})
}

func newCurrencyAPI(t *testing.T, url string) *provider.CurrencyAPIProvider {
	t.Helper()
	p, err := provider.NewCurrencyAPIProvider(provider.CurrencyAPIConfig{
		APIKey:         "test-key",
		BaseURL:        url,
		Timeout:        time.Second,
		Attempts:       3,
		InitialBackoff: time.Millisecond,
	}, testLogger())
	require.NoError(t, err)
	return p
}

func TestCurrencyAPIProvider_Rate(t *testing.T) {
	t.Run("parses the latest rate", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/latest", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("apikey"))
			assert.False(t, r.URL.Query().Has("apikey"), "key must not travel in the URL")
			assert.Equal(t, "USD", r.URL.Query().Get("base_currency"))
			assert.Equal(t, "EUR", r.URL.Query().Get("currencies"))
			_, _ = w.Write([]byte(`{"meta":{"last_updated_at":"2026-03-31T23:59:59Z"},"data":{"EUR":{"code":"EUR","value":0.9217}}}`))
		}))
		defer srv.Close()

		rate, err := newCurrencyAPI(t, srv.URL).Rate(context.Background(), money.USD, money.EUR)
		require.NoError(t, err)
		testutil.AssertDecimalEqual(t, "0.9217", rate.Rate())
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{"data":{"EUR":{"code":"EUR","value":1.1655}}}`))
		}))
		defer srv.Close()

		rate, err := newCurrencyAPI(t, srv.URL).Rate(context.Background(), money.GBP, money.EUR)
		require.NoError(t, err)
		testutil.AssertDecimalEqual(t, "1.1655", rate.Rate())
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := newCurrencyAPI(t, srv.URL).Rate(context.Background(), money.GBP, money.EUR)
		testutil.AssertErrorContains(t, err, "status 503")
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := newCurrencyAPI(t, srv.URL).Rate(context.Background(), money.GBP, money.EUR)
		testutil.AssertErrorContains(t, err, "status 401")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("missing quote", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":{}}`))
		}))
		defer srv.Close()

		_, err := newCurrencyAPI(t, srv.URL).Rate(context.Background(), money.GBP, money.EUR)
		testutil.AssertErrorContains(t, err, "no rate for GBP/EUR")
	})

	t.Run("transport errors do not expose the API key", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		base := srv.URL
		srv.Close()

		var logs bytes.Buffer
		p, err := provider.NewCurrencyAPIProvider(provider.CurrencyAPIConfig{
			APIKey:         "test-key",
			BaseURL:        base,
			Timeout:        time.Second,
			Attempts:       2,
			InitialBackoff: time.Millisecond,
		}, slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
		require.NoError(t, err)

		_, err = p.Rate(context.Background(), money.GBP, money.EUR)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_currency=GBP", "error still names the request")
		assert.NotContains(t, err.Error(), "test-key")
		assert.Contains(t, logs.String(), "currencyapi request failed")
		assert.NotContains(t, logs.String(), "test-key")
	})

	t.Run("requires an API key", func(t *testing.T) {
		_, err := provider.NewCurrencyAPIProvider(provider.CurrencyAPIConfig{}, testLogger())
		require.Error(t, err)
	})
}
