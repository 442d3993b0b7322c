package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/infrastructure/ratecache"
)

// MeterName scopes the service's instruments.
const MeterName = "github.com/bcbs239/regtech/services/risk-calculation-service"

var (
	_ port.Metrics          = (*Recorder)(nil)
	_ ratecache.HitRecorder = (*Recorder)(nil)
)

// Recorder implements the pipeline and cache instruments on an OpenTelemetry meter.
type Recorder struct {
	chunks        metric.Int64Counter
	exposures     metric.Int64Counter
	chunkDuration metric.Float64Histogram
	analyses      metric.Int64Counter
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
}

// NewRecorder creates every instrument up front.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	var (
		r   Recorder
		err error
	)
	if r.chunks, err = meter.Int64Counter("risk_chunks_processed_total",
		metric.WithDescription("Exposure chunks processed and checkpointed.")); err != nil {
		return nil, fmt.Errorf("failed to create chunk counter: %w", err)
	}
	if r.exposures, err = meter.Int64Counter("risk_exposures_processed_total",
		metric.WithDescription("Exposures valued, netted and classified.")); err != nil {
		return nil, fmt.Errorf("failed to create exposure counter: %w", err)
	}
	if r.chunkDuration, err = meter.Float64Histogram("risk_chunk_duration_seconds",
		metric.WithDescription("Time to process one chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30)); err != nil {
		return nil, fmt.Errorf("failed to create chunk duration histogram: %w", err)
	}
	if r.analyses, err = meter.Int64Counter("risk_analyses_total",
		metric.WithDescription("Analyses reaching a terminal state, by state.")); err != nil {
		return nil, fmt.Errorf("failed to create analysis counter: %w", err)
	}
	if r.cacheHits, err = meter.Int64Counter("risk_rate_cache_hits_total",
		metric.WithDescription("Exchange rate lookups served from the cache.")); err != nil {
		return nil, fmt.Errorf("failed to create cache hit counter: %w", err)
	}
	if r.cacheMisses, err = meter.Int64Counter("risk_rate_cache_misses_total",
		metric.WithDescription("Exchange rate lookups that went to the provider.")); err != nil {
		return nil, fmt.Errorf("failed to create cache miss counter: %w", err)
	}
	return &r, nil
}

func (r *Recorder) ChunkProcessed(ctx context.Context, size int, took time.Duration) {
	r.chunks.Add(ctx, 1)
	r.exposures.Add(ctx, int64(size))
	r.chunkDuration.Record(ctx, took.Seconds())
}

func (r *Recorder) AnalysisFinished(ctx context.Context, state valueobject.ProcessingState) {
	r.analyses.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state.String())))
}

func (r *Recorder) RateCacheLookup(ctx context.Context, hit bool) {
	if hit {
		r.cacheHits.Add(ctx, 1)
		return
	}
	r.cacheMisses.Add(ctx, 1)
}
