package dto

import "time"

// BatchIngestedTopic is the topic the ingestion service publishes completed batches to.
const BatchIngestedTopic = "ingestion.batch.ingested"

// BatchIngestedEvent is the inbound notification that a batch has been parsed
// and stored. Field names follow the ingestion service's contract.
type BatchIngestedEvent struct {
	BatchID        string    `json:"batchId"`
	BankID         string    `json:"bankId"`
	S3URI          string    `json:"s3Uri"`
	TotalExposures int       `json:"totalExposures"`
	CompletedAt    time.Time `json:"completedAt"`
}

// HandleBatchIngestedResponse reports what the handler did with an event.
type HandleBatchIngestedResponse struct {
	BatchID    string           `json:"batch_id"`
	Skipped    bool             `json:"skipped"`
	SkipReason string           `json:"skip_reason,omitempty"`
	Resumable  bool             `json:"resumable"`
	Analysis   AnalysisResponse `json:"analysis"`
}
