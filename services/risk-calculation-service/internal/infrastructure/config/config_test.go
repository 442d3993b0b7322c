package config_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/pkg/testutil"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/service"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/config"
)

// setRequired sets the variables Load cannot default, and clears ones that
// would change the outcome if present in the environment.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("RATE_PROVIDER", "")
	t.Setenv("CURRENCY_API_KEY", "test-key")
	t.Setenv("ELIGIBLE_CAPITAL_EUR", "2500000000")
	t.Setenv("HHI_MODERATE_THRESHOLD", "")
	t.Setenv("HHI_HIGH_THRESHOLD", "")
	t.Setenv("STALE_SCHEDULE", "")
	t.Setenv("STALE_WINDOW", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("STATIC_RATES", "")
	t.Setenv("MIGRATIONS_PATH", "")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.HTTPPort)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "risk-calculation-service", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, config.RateProviderCurrencyAPI, cfg.Rates.Provider)
	assert.Equal(t, 30*time.Second, cfg.Rates.Timeout)
	assert.Equal(t, 3, cfg.Rates.Attempts)
	assert.Equal(t, time.Hour, cfg.Redis.RateTTL)
	assert.Equal(t, 1000, cfg.Processing.ChunkSize)
	assert.Equal(t, 5000, cfg.Processing.AnalyzeThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Processing.MaxEventAge)
	assert.Equal(t, 30*time.Minute, cfg.Stale.Window)
	assert.False(t, cfg.Stale.AutoFail)
	assert.Equal(t, "risk-calculation-service", cfg.Telemetry.ServiceName)

	thresholds, err := cfg.Processing.Thresholds()
	require.NoError(t, err)
	testutil.AssertDecimalEqual(t, "1500", thresholds.Moderate())
	testutil.AssertDecimalEqual(t, "2500", thresholds.High())

	params, err := cfg.Processing.LargeExposures()
	require.NoError(t, err)
	testutil.AssertDecimalEqual(t, "625000000", params.AbsoluteLimit().Value())
}

func TestLoad_DefaultMigrationsPathExists(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(cfg.MigrationsPath, "file://"), cfg.MigrationsPath)

	// The default is relative to the repository root.
	root := filepath.Join("..", "..", "..", "..", "..")
	dir := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(cfg.MigrationsPath, "file://")))
	ups, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	require.NoError(t, err)
	assert.NotEmpty(t, ups, "no migrations under %s", dir)
	assert.Contains(t, ups, filepath.Join(dir, "000003_unscaled_amounts.up.sql"))
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("RATE_PROVIDER", "STATIC")
	t.Setenv("CURRENCY_API_KEY", "")
	t.Setenv("STATIC_RATES", "usd/eur=0.90,not-a-pair, GBP/EUR = 1.17")
	t.Setenv("STALE_WINDOW", "45m")
	t.Setenv("STALE_AUTO_FAIL", "true")
	t.Setenv("CHUNK_SIZE", "250")
	t.Setenv("CHUNK_WORKERS", "not-a-number")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, config.RateProviderStatic, cfg.Rates.Provider)
	assert.Equal(t, map[string]string{"USD/EUR": "0.90", "GBP/EUR": "1.17"}, cfg.Rates.StaticOverrides)
	assert.Equal(t, 45*time.Minute, cfg.Stale.Window)
	assert.True(t, cfg.Stale.AutoFail)
	assert.Equal(t, 250, cfg.Processing.ChunkSize)
	assert.Equal(t, 4, cfg.Processing.Workers, "unparseable values fall back to the default")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing db password", map[string]string{"DB_PASSWORD": ""}, "DB_PASSWORD or DATABASE_URL is required"},
		{"missing api key", map[string]string{"CURRENCY_API_KEY": ""}, "CURRENCY_API_KEY is required"},
		{"unknown provider", map[string]string{"RATE_PROVIDER": "ecb"}, "RATE_PROVIDER must be"},
		{"no eligible capital", map[string]string{"ELIGIBLE_CAPITAL_EUR": ""}, "eligible capital must be positive"},
		{"inverted thresholds", map[string]string{"HHI_MODERATE_THRESHOLD": "3000"}, "is below moderate"},
		{"bad schedule", map[string]string{"STALE_SCHEDULE": "every now and then"}, "STALE_SCHEDULE"},
		{"bad home country", map[string]string{"HOME_COUNTRY": "ITA"}, "HOME_COUNTRY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("HOME_COUNTRY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			require.Error(t, err)
			testutil.AssertErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_DatabaseURLReplacesPassword(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DATABASE_URL", "postgres://regtech:pw@db:5432/regtech_risk")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://regtech:pw@db:5432/regtech_risk", cfg.DB.URL)
}

func TestLoadSectorRules(t *testing.T) {
	t.Run("empty path uses built-in rules", func(t *testing.T) {
		rules, err := config.LoadSectorRules("")
		require.NoError(t, err)
		assert.Equal(t, service.DefaultSectorRules(), rules)
	})

	t.Run("shipped file matches built-in rules", func(t *testing.T) {
		rules, err := config.LoadSectorRules("../../../configs/sector_rules.yaml")
		require.NoError(t, err)
		assert.Equal(t, service.DefaultSectorRules(), rules)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadSectorRules("does-not-exist.yaml")
		testutil.AssertErrorContains(t, err, "failed to read sector rules")
	})
}

func TestParseSectorRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no rules", "rules: []\n", "has no rules"},
		{"unknown key", "rules:\n  - pattern: BANK\n    sektor: BANKING\n", "failed to parse sector rules"},
		{"missing sector", "rules:\n  - pattern: BANK\n", "pattern and sector are required"},
		{"bad regex", "rules:\n  - pattern: \"BANK(\"\n    sector: BANKING\n", "invalid pattern"},
		{"unknown sector", "rules:\n  - pattern: BANK\n    sector: INSURANCE\n", "sector rule 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseSectorRules([]byte(tt.yaml))
			require.Error(t, err)
			testutil.AssertErrorContains(t, err, tt.want)
		})
	}
}
