package event

import (
	"time"

	"github.com/bcbs239/regtech/pkg/events"
)

// AggregateType is the aggregate name stamped on every analysis event.
const AggregateType = "PortfolioAnalysis"

// Event types emitted by the PortfolioAnalysis aggregate.
const (
	TypeAnalysisStarted   = "risk.analysis.started"
	TypeChunkCompleted    = "risk.analysis.chunk_completed"
	TypeAnalysisCompleted = "risk.analysis.completed"
	TypeAnalysisFailed    = "risk.analysis.failed"
)

// AnalysisStartedData is the payload of TypeAnalysisStarted.
type AnalysisStartedData struct {
	BatchID        string    `json:"batch_id"`
	TotalExposures int       `json:"total_exposures"`
	StartedAt      time.Time `json:"started_at"`
}

// AnalysisStarted is emitted when chunked processing begins.
type AnalysisStarted struct {
	events.BaseEvent
	Data AnalysisStartedData
}

// NewAnalysisStarted creates a new AnalysisStarted event.
func NewAnalysisStarted(batchID string, totalExposures int, startedAt time.Time) AnalysisStarted {
	data := AnalysisStartedData{BatchID: batchID, TotalExposures: totalExposures, StartedAt: startedAt.UTC()}
	return AnalysisStarted{
		BaseEvent: events.NewBaseEvent(TypeAnalysisStarted, batchID, AggregateType, startedAt, data),
		Data:      data,
	}
}

// ChunkCompletedData is the payload of TypeChunkCompleted.
type ChunkCompletedData struct {
	BatchID            string  `json:"batch_id"`
	ChunkIndex         int     `json:"chunk_index"`
	ChunkSize          int     `json:"chunk_size"`
	ProcessedExposures int     `json:"processed_exposures"`
	TotalExposures     int     `json:"total_exposures"`
	ProcessingMillis   int64   `json:"processing_ms"`
	ExposuresPerSecond float64 `json:"exposures_per_second"`
}

// ChunkCompleted is emitted after each checkpointed chunk.
type ChunkCompleted struct {
	events.BaseEvent
	Data ChunkCompletedData
}

// NewChunkCompleted creates a new ChunkCompleted event.
func NewChunkCompleted(data ChunkCompletedData, occurredAt time.Time) ChunkCompleted {
	return ChunkCompleted{
		BaseEvent: events.NewBaseEvent(TypeChunkCompleted, data.BatchID, AggregateType, occurredAt, data),
		Data:      data,
	}
}

// AnalysisCompletedData is the payload of TypeAnalysisCompleted.
type AnalysisCompletedData struct {
	BatchID         string    `json:"batch_id"`
	TotalExposures  int       `json:"total_exposures"`
	TotalAmountEUR  string    `json:"total_amount_eur"`
	GeographicHHI   string    `json:"herfindahl_geographic"`
	GeographicLevel string    `json:"geographic_concentration"`
	SectorHHI       string    `json:"herfindahl_sector"`
	SectorLevel     string    `json:"sector_concentration"`
	ProcessedChunks int       `json:"processed_chunks"`
	CompletedAt     time.Time `json:"completed_at"`
}

// AnalysisCompleted is emitted when an analysis reaches COMPLETED.
type AnalysisCompleted struct {
	events.BaseEvent
	Data AnalysisCompletedData
}

// NewAnalysisCompleted creates a new AnalysisCompleted event.
func NewAnalysisCompleted(data AnalysisCompletedData) AnalysisCompleted {
	return AnalysisCompleted{
		BaseEvent: events.NewBaseEvent(TypeAnalysisCompleted, data.BatchID, AggregateType, data.CompletedAt, data),
		Data:      data,
	}
}

// AnalysisFailedData is the payload of TypeAnalysisFailed.
type AnalysisFailedData struct {
	BatchID            string    `json:"batch_id"`
	Reason             string    `json:"reason"`
	ProcessedExposures int       `json:"processed_exposures"`
	TotalExposures     int       `json:"total_exposures"`
	FailedAt           time.Time `json:"failed_at"`
}

// AnalysisFailed is emitted when an analysis is marked FAILED.
type AnalysisFailed struct {
	events.BaseEvent
	Data AnalysisFailedData
}

// NewAnalysisFailed creates a new AnalysisFailed event.
func NewAnalysisFailed(data AnalysisFailedData) AnalysisFailed {
	return AnalysisFailed{
		BaseEvent: events.NewBaseEvent(TypeAnalysisFailed, data.BatchID, AggregateType, data.FailedAt, data),
		Data:      data,
	}
}
