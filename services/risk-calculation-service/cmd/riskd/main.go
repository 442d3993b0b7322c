package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/bcbs239/regtech/pkg/kafka"
	"github.com/bcbs239/regtech/pkg/observability"
	"github.com/bcbs239/regtech/pkg/postgres"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/usecase"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/service"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/config"
	infraKafka "github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/kafka"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/metrics"
	infraPostgres "github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/postgres"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/provider"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/ratecache"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/scheduler"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/storage"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/presentation/rest"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "risk-calculation-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(observability.LogConfig{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.Telemetry.ServiceName,
	})
	logger.Info("starting risk-calculation-service",
		"http_port", cfg.HTTPPort,
		"rate_provider", cfg.Rates.Provider,
		"chunk_size", cfg.Processing.ChunkSize,
		"workers", cfg.Processing.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry.
	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	meterProvider, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Port:        cfg.HTTPPort,
	})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()

	recorder, err := metrics.NewRecorder(meterProvider.Meter(metrics.MeterName))
	if err != nil {
		return fmt.Errorf("create metric instruments: %w", err)
	}

	// Database pool and migrations.
	dbCfg := postgres.Config{
		URL:             cfg.DB.URL,
		Host:            cfg.DB.Host,
		Port:            cfg.DB.Port,
		User:            cfg.DB.User,
		Password:        cfg.DB.Password,
		Database:        cfg.DB.Name,
		SSLMode:         cfg.DB.SSLMode,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		ApplicationName: cfg.Telemetry.ServiceName,
	}
	if err := postgres.RunMigrations(dbCfg.DSN(), cfg.MigrationsPath, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()
	logger.Info("database pool created")

	checks := map[string]rest.Check{
		"postgres": func(ctx context.Context) error { return postgres.HealthCheck(ctx, pool) },
	}

	// Exchange rates, optionally behind the shared Redis cache.
	rates, err := newRateProvider(cfg.Rates, logger)
	if err != nil {
		return err
	}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable at startup, rate cache will fall through", "error", err)
		}
		rates = ratecache.NewRedisRateCache(rdb, rates, cfg.Redis.RateTTL, recorder, logger)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("exchange rate cache enabled", "ttl", cfg.Redis.RateTTL)
	}

	// Object storage.
	s3Client, err := storage.NewS3Client(ctx, storage.S3Config{
		Region:          cfg.Storage.Region,
		Bucket:          cfg.Storage.Bucket,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UsePathStyle:    cfg.Storage.UsePathStyle,
	})
	if err != nil {
		return fmt.Errorf("create s3 client: %w", err)
	}
	results := newResultStore(cfg.Storage, s3Client, logger)
	source := storage.NewBatchSource(s3Client, logger)

	// Domain services.
	pipeline, err := newPipeline(cfg.Processing, rates)
	if err != nil {
		return err
	}
	thresholds, err := cfg.Processing.Thresholds()
	if err != nil {
		return err
	}

	// Repositories and use cases.
	analysisRepo := infraPostgres.NewPortfolioAnalysisRepo(pool)
	outboxRepo := infraPostgres.NewOutboxRepo(pool)

	analyze := usecase.NewAnalyzePortfolioUseCase(pipeline, analysisRepo, results, recorder, thresholds, logger)
	process := usecase.NewProcessBatchUseCase(pipeline, analysisRepo, results, recorder, usecase.ProcessBatchConfig{
		ChunkSize:  cfg.Processing.ChunkSize,
		Workers:    cfg.Processing.Workers,
		Thresholds: thresholds,
	}, logger)
	handleIngested := usecase.NewHandleBatchIngestedUseCase(
		source, analysisRepo, analyze, process,
		cfg.Processing.AnalyzeThreshold, cfg.Processing.MaxEventAge, logger,
	)
	getStatus := usecase.NewGetAnalysisStatusUseCase(analysisRepo, logger)
	detectStale := usecase.NewDetectStaleBatchesUseCase(analysisRepo, recorder, logger)

	// Kafka: outbox relay out, batch-ingested consumer in.
	kafkaCfg := kafka.Config{
		ClientID:       cfg.Kafka.ClientID,
		ConsumerGroup:  cfg.Kafka.ConsumerGroup,
		Brokers:        cfg.Kafka.Brokers,
		HandlerRetries: cfg.Kafka.HandlerRetries,
		TLS:            cfg.Kafka.TLS,
		SASLEnabled:    cfg.Kafka.SASLEnabled,
		SASLMechanism:  cfg.Kafka.SASLMechanism,
		SASLUsername:   cfg.Kafka.SASLUsername,
		SASLPassword:   cfg.Kafka.SASLPassword,
	}
	producer, err := kafka.NewProducer(kafkaCfg)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	defer producer.Close()

	relay := infraKafka.NewOutboxRelay(outboxRepo, infraKafka.NewPublisher(producer, logger),
		cfg.Outbox.BatchSize, cfg.Outbox.Interval, logger)

	ingestedHandler := infraKafka.NewBatchIngestedHandler(handleIngested, logger)
	consumer, err := kafka.NewConsumer(kafkaCfg, dto.BatchIngestedTopic, ingestedHandler.Handle, logger)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}
	defer consumer.Close()

	// Stale-batch monitor.
	sched := scheduler.New(time.Minute, logger)
	staleJob := scheduler.NewStaleBatchJob(detectStale, dto.DetectStaleBatchesRequest{
		Window:   cfg.Stale.Window,
		AutoFail: cfg.Stale.AutoFail,
		Limit:    cfg.Stale.Limit,
	}, logger)
	if err := sched.AddJob(cfg.Stale.Schedule, staleJob); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// HTTP: health, status and metrics.
	mux := http.NewServeMux()
	rest.NewHealthHandler(checks, logger).RegisterRoutes(mux)
	rest.NewAnalysisHandler(getStatus, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", metricsHandler)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return consumer.Start(gctx) })

	err = g.Wait()
	logger.Info("risk-calculation-service stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newRateProvider(cfg config.RatesConfig, logger *slog.Logger) (port.ExchangeRateProvider, error) {
	if cfg.Provider == config.RateProviderStatic {
		logger.Info("using static rate provider")
		static, err := provider.NewStaticRateProvider(cfg.StaticOverrides)
		if err != nil {
			return nil, fmt.Errorf("create static rate provider: %w", err)
		}
		return static, nil
	}
	remote, err := provider.NewCurrencyAPIProvider(provider.CurrencyAPIConfig{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		Attempts:       cfg.Attempts,
		InitialBackoff: cfg.InitialBackoff,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create currency api provider: %w", err)
	}
	return remote, nil
}

func newResultStore(cfg config.StorageConfig, client *s3.Client, logger *slog.Logger) port.ResultStore {
	if cfg.Bucket == "" {
		logger.Info("writing results to local directory", "dir", cfg.LocalDir)
		return storage.NewLocalStore(cfg.LocalDir, logger)
	}
	return storage.NewS3Store(client, cfg.Bucket, logger)
}

func newPipeline(cfg config.ProcessingConfig, rates port.ExchangeRateProvider) (*service.ExposurePipeline, error) {
	home, err := valueobject.NewCountryCode(cfg.HomeCountry)
	if err != nil {
		return nil, fmt.Errorf("home country: %w", err)
	}
	geographic, err := service.NewGeographicClassifier(home, cfg.EUMembers)
	if err != nil {
		return nil, fmt.Errorf("create geographic classifier: %w", err)
	}
	rules, err := config.LoadSectorRules(cfg.SectorRulesPath)
	if err != nil {
		return nil, err
	}
	sectors, err := service.NewSectorClassifier(rules)
	if err != nil {
		return nil, fmt.Errorf("create sector classifier: %w", err)
	}
	params, err := cfg.LargeExposures()
	if err != nil {
		return nil, fmt.Errorf("large exposure parameters: %w", err)
	}
	return service.NewExposurePipeline(rates, geographic, sectors, service.NewLargeExposureLimitChecker(params)), nil
}
