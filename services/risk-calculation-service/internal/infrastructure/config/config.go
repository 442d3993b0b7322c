package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// Rate provider kinds.
const (
	RateProviderCurrencyAPI = "currencyapi"
	RateProviderStatic      = "static"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	HTTPPort       int
	MigrationsPath string
	DB             DBConfig
	Kafka          KafkaConfig
	Redis          RedisConfig
	Rates          RatesConfig
	Storage        StorageConfig
	Processing     ProcessingConfig
	Stale          StaleConfig
	Outbox         OutboxConfig
	Telemetry      TelemetryConfig
	LogLevel       string
	LogFormat      string
}

// DBConfig holds database connection parameters.
type DBConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// KafkaConfig holds Kafka broker configuration.
type KafkaConfig struct {
	Brokers        []string
	ConsumerGroup  string
	ClientID       string
	HandlerRetries uint64
	TLS            bool
	SASLEnabled    bool
	SASLMechanism  string
	SASLUsername   string
	SASLPassword   string
}

// RedisConfig configures the exchange rate cache. An empty URL disables it.
type RedisConfig struct {
	URL     string
	RateTTL time.Duration
}

// RatesConfig selects and tunes the exchange rate provider.
type RatesConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Timeout        time.Duration
	Attempts       int
	InitialBackoff time.Duration
	// StaticOverrides are "FROM/TO=rate" pairs layered over the built-in table.
	StaticOverrides map[string]string
}

// StorageConfig locates results files. An empty bucket writes to LocalDir instead.
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	LocalDir        string
}

// ProcessingConfig holds the calculation parameters.
type ProcessingConfig struct {
	ChunkSize        int
	Workers          int
	AnalyzeThreshold int
	MaxEventAge      time.Duration
	HomeCountry      string
	EUMembers        []string
	SectorRulesPath  string

	ModerateHHI decimal.Decimal
	HighHHI     decimal.Decimal

	EligibleCapital                decimal.Decimal
	LimitPercent                   decimal.Decimal
	ClassificationThresholdPercent decimal.Decimal
	RegulatoryReference            string
}

// StaleConfig drives the stale-batch monitor.
type StaleConfig struct {
	Schedule string
	Window   time.Duration
	AutoFail bool
	Limit    int
}

// OutboxConfig tunes the outbox relay.
type OutboxConfig struct {
	BatchSize int
	Interval  time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
	SampleRatio  float64
	ServiceName  string
}

// Load reads a .env file if present, then configuration from environment
// variables with defaults, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:       getEnvInt("HTTP_PORT", 8090),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://services/risk-calculation-service/internal/infrastructure/postgres/migrations"),
		DB: DBConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "regtech"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "regtech_risk"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 20)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		Kafka: KafkaConfig{
			Brokers:        getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			ConsumerGroup:  getEnv("KAFKA_CONSUMER_GROUP", "risk-calculation-service"),
			ClientID:       getEnv("KAFKA_CLIENT_ID", "risk-calculation-service"),
			HandlerRetries: uint64(getEnvInt("KAFKA_HANDLER_RETRIES", 3)),
			TLS:            getEnvBool("KAFKA_TLS", false),
			SASLEnabled:    getEnvBool("KAFKA_SASL_ENABLED", false),
			SASLMechanism:  getEnv("KAFKA_SASL_MECHANISM", "PLAIN"),
			SASLUsername:   getEnv("KAFKA_SASL_USERNAME", ""),
			SASLPassword:   getEnv("KAFKA_SASL_PASSWORD", ""),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			RateTTL: getEnvDuration("RATE_CACHE_TTL", time.Hour),
		},
		Rates: RatesConfig{
			Provider:        strings.ToLower(getEnv("RATE_PROVIDER", RateProviderCurrencyAPI)),
			APIKey:          getEnv("CURRENCY_API_KEY", ""),
			BaseURL:         getEnv("CURRENCY_API_URL", ""),
			Timeout:         getEnvDuration("CURRENCY_API_TIMEOUT", 30*time.Second),
			Attempts:        getEnvInt("CURRENCY_API_ATTEMPTS", 3),
			InitialBackoff:  getEnvDuration("CURRENCY_API_BACKOFF", time.Second),
			StaticOverrides: getEnvPairs("STATIC_RATES"),
		},
		Storage: StorageConfig{
			Bucket:          getEnv("RESULTS_BUCKET", ""),
			Region:          getEnv("AWS_REGION", "eu-south-1"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", false),
			LocalDir:        getEnv("RESULTS_DIR", "./data"),
		},
		Processing: ProcessingConfig{
			ChunkSize:        getEnvInt("CHUNK_SIZE", 1000),
			Workers:          getEnvInt("CHUNK_WORKERS", 4),
			AnalyzeThreshold: getEnvInt("ANALYZE_THRESHOLD", 5000),
			MaxEventAge:      getEnvDuration("MAX_EVENT_AGE", 24*time.Hour),
			HomeCountry:      getEnv("HOME_COUNTRY", "IT"),
			EUMembers:        getEnvList("EU_MEMBERS", nil),
			SectorRulesPath:  getEnv("SECTOR_RULES_PATH", ""),

			ModerateHHI: getEnvDecimal("HHI_MODERATE_THRESHOLD", decimal.NewFromInt(1500)),
			HighHHI:     getEnvDecimal("HHI_HIGH_THRESHOLD", decimal.NewFromInt(2500)),

			EligibleCapital:                getEnvDecimal("ELIGIBLE_CAPITAL_EUR", decimal.Zero),
			LimitPercent:                   getEnvDecimal("LARGE_EXPOSURE_LIMIT_PERCENT", decimal.NewFromInt(25)),
			ClassificationThresholdPercent: getEnvDecimal("LARGE_EXPOSURE_THRESHOLD_PERCENT", decimal.NewFromInt(10)),
			RegulatoryReference:            getEnv("REGULATORY_REFERENCE", valueobject.DefaultRegulatoryReference),
		},
		Stale: StaleConfig{
			Schedule: getEnv("STALE_SCHEDULE", "@every 5m"),
			Window:   getEnvDuration("STALE_WINDOW", 30*time.Minute),
			AutoFail: getEnvBool("STALE_AUTO_FAIL", false),
			Limit:    getEnvInt("STALE_LIMIT", 100),
		},
		Outbox: OutboxConfig{
			BatchSize: getEnvInt("OUTBOX_BATCH_SIZE", 100),
			Interval:  getEnvDuration("OUTBOX_INTERVAL", time.Second),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:     getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0),
			ServiceName:  "risk-calculation-service",
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required and cross-field configuration values.
func (c Config) Validate() error {
	var errs []error
	if c.DB.URL == "" && c.DB.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD or DATABASE_URL is required"))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	switch c.Rates.Provider {
	case RateProviderCurrencyAPI:
		if c.Rates.APIKey == "" {
			errs = append(errs, errors.New("CURRENCY_API_KEY is required for the currencyapi rate provider"))
		}
	case RateProviderStatic:
	default:
		errs = append(errs, fmt.Errorf("RATE_PROVIDER must be %q or %q, got %q",
			RateProviderCurrencyAPI, RateProviderStatic, c.Rates.Provider))
	}
	if c.Storage.Bucket == "" && c.Storage.LocalDir == "" {
		errs = append(errs, errors.New("RESULTS_BUCKET or RESULTS_DIR is required"))
	}
	if _, err := c.Processing.Thresholds(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Processing.LargeExposures(); err != nil {
		errs = append(errs, fmt.Errorf("ELIGIBLE_CAPITAL_EUR and limit percentages: %w", err))
	}
	if _, err := valueobject.NewCountryCode(c.Processing.HomeCountry); err != nil {
		errs = append(errs, fmt.Errorf("HOME_COUNTRY: %w", err))
	}
	if c.Stale.Window <= 0 {
		errs = append(errs, fmt.Errorf("STALE_WINDOW must be positive, got %s", c.Stale.Window))
	}
	if _, err := cron.ParseStandard(c.Stale.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("STALE_SCHEDULE %q: %w", c.Stale.Schedule, err))
	}
	return errors.Join(errs...)
}

// Thresholds returns the configured HHI boundaries.
func (p ProcessingConfig) Thresholds() (valueobject.ConcentrationThresholds, error) {
	return valueobject.NewConcentrationThresholds(p.ModerateHHI, p.HighHHI)
}

// LargeExposures returns the configured large-exposure regime parameters.
func (p ProcessingConfig) LargeExposures() (valueobject.LargeExposuresParameters, error) {
	return valueobject.NewLargeExposuresParameters(
		p.LimitPercent, p.ClassificationThresholdPercent, p.EligibleCapital, p.RegulatoryReference)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(val)); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvPairs parses "USD/EUR=0.92,GBP/EUR=1.17" into a map. Malformed pairs are ignored.
func getEnvPairs(key string) map[string]string {
	out := map[string]string{}
	for _, pair := range getEnvList(key, nil) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}
