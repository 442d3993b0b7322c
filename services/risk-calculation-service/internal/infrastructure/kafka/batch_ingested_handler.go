package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	pkgkafka "github.com/bcbs239/regtech/pkg/kafka"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/usecase"
)

// BatchIngestedExecutor is satisfied by *usecase.HandleBatchIngestedUseCase.
type BatchIngestedExecutor interface {
	Execute(ctx context.Context, evt dto.BatchIngestedEvent) (dto.HandleBatchIngestedResponse, error)
}

// BatchIngestedHandler adapts batch-ingested messages to the use case.
type BatchIngestedHandler struct {
	uc     BatchIngestedExecutor
	logger *slog.Logger
}

// NewBatchIngestedHandler creates a new BatchIngestedHandler.
func NewBatchIngestedHandler(uc BatchIngestedExecutor, logger *slog.Logger) *BatchIngestedHandler {
	return &BatchIngestedHandler{uc: uc, logger: logger}
}

// Handle processes one message. Payloads that can never succeed are reported
// with pkgkafka.ErrSkipMessage so the consumer commits them without retrying.
func (h *BatchIngestedHandler) Handle(ctx context.Context, msg pkgkafka.Message) error {
	var evt dto.BatchIngestedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("%w: malformed batch ingested payload: %v", pkgkafka.ErrSkipMessage, err)
	}

	resp, err := h.uc.Execute(ctx, evt)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidBatchEvent) {
			h.logger.Warn("rejecting batch ingested event", "batch_id", evt.BatchID, "error", err)
			return fmt.Errorf("%w: %w", pkgkafka.ErrSkipMessage, err)
		}
		return fmt.Errorf("failed to handle batch %s: %w", evt.BatchID, err)
	}

	if resp.Skipped {
		h.logger.Info("batch ingested event skipped", "batch_id", resp.BatchID, "reason", resp.SkipReason)
		return nil
	}
	h.logger.Info("batch analyzed",
		"batch_id", resp.BatchID,
		"state", resp.Analysis.State,
		"resumable", resp.Resumable,
		"result_uri", resp.Analysis.ResultURI,
	)
	return nil
}
