package dto

import (
	"time"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
)

// AnalyzePortfolioRequest is the DTO for the single-pass analysis of a small batch.
type AnalyzePortfolioRequest struct {
	Batch port.BatchData
}

// ProcessBatchRequest is the DTO for resumable chunked processing.
type ProcessBatchRequest struct {
	Batch port.BatchData
}

// GetAnalysisStatusRequest is the DTO for looking up a batch's analysis.
type GetAnalysisStatusRequest struct {
	BatchID string `json:"batch_id"`
}

// DetectStaleBatchesRequest is the DTO for one stale-batch sweep.
type DetectStaleBatchesRequest struct {
	Window   time.Duration
	AutoFail bool
	Limit    int
}

// ShareResponse is one category of a breakdown.
type ShareResponse struct {
	AmountEUR  string `json:"amount_eur"`
	Percentage string `json:"percentage"`
}

// HHIResponse is a concentration index with its level.
type HHIResponse struct {
	Value string `json:"value"`
	Level string `json:"level"`
}

// AnalysisResponse is the DTO representing a portfolio analysis in responses.
type AnalysisResponse struct {
	BatchID             string                   `json:"batch_id"`
	State               string                   `json:"state"`
	TotalExposures      int                      `json:"total_exposures"`
	ProcessedExposures  int                      `json:"processed_exposures"`
	PercentComplete     string                   `json:"percent_complete"`
	ProcessedChunks     int                      `json:"processed_chunks"`
	LastChunkIndex      *int                     `json:"last_chunk_index,omitempty"`
	CanResume           bool                     `json:"can_resume"`
	ExposuresPerSecond  *float64                 `json:"exposures_per_second,omitempty"`
	EstimatedCompletion *time.Time               `json:"estimated_completion,omitempty"`
	TotalAmountEUR      string                   `json:"total_amount_eur"`
	GeographicBreakdown map[string]ShareResponse `json:"geographic_breakdown"`
	SectorBreakdown     map[string]ShareResponse `json:"sector_breakdown"`
	GeographicHHI       HHIResponse              `json:"herfindahl_geographic"`
	SectorHHI           HHIResponse              `json:"herfindahl_sector"`
	FailureReason       string                   `json:"failure_reason,omitempty"`
	StartedAt           time.Time                `json:"started_at"`
	LastUpdatedAt       time.Time                `json:"last_updated_at"`
	AnalyzedAt          *time.Time               `json:"analyzed_at,omitempty"`
	Version             int                      `json:"version"`
	ResultURI           string                   `json:"result_uri,omitempty"`
	SkippedExposures    int                      `json:"skipped_exposures,omitempty"`
}

// StaleBatch describes one IN_PROGRESS analysis that stopped moving.
type StaleBatch struct {
	BatchID            string    `json:"batch_id"`
	LastUpdatedAt      time.Time `json:"last_updated_at"`
	ProcessedExposures int       `json:"processed_exposures"`
	TotalExposures     int       `json:"total_exposures"`
	Failed             bool      `json:"failed"`
}

// DetectStaleBatchesResponse is the DTO returned by a stale-batch sweep.
type DetectStaleBatchesResponse struct {
	Stale  []StaleBatch `json:"stale"`
	Failed int          `json:"failed"`
}
