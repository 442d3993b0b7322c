package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/usecase"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
)

// AnalysisStatusGetter is satisfied by *usecase.GetAnalysisStatusUseCase.
type AnalysisStatusGetter interface {
	Execute(ctx context.Context, req dto.GetAnalysisStatusRequest) (dto.AnalysisResponse, error)
}

// AnalysisHandler serves batch analysis status.
type AnalysisHandler struct {
	status AnalysisStatusGetter
	logger *slog.Logger
}

func NewAnalysisHandler(status AnalysisStatusGetter, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{status: status, logger: logger}
}

// GetAnalysis handles GET /api/v1/batches/{batchId}/analysis.
func (h *AnalysisHandler) GetAnalysis() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := r.PathValue("batchId")

		resp, err := h.status.Execute(r.Context(), dto.GetAnalysisStatusRequest{BatchID: batchID})
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, resp)
		case errors.Is(err, port.ErrAnalysisNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no analysis for batch " + batchID})
		case errors.Is(err, usecase.ErrInvalidBatchID):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		default:
			h.logger.Error("failed to get analysis status", "batch_id", batchID, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
	}
}

// RegisterRoutes registers the analysis routes on the provided mux.
func (h *AnalysisHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/batches/{batchId}/analysis", h.GetAnalysis())
}
