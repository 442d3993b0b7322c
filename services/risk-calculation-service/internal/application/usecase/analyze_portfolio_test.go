package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/pkg/testutil"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/usecase"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/event"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/service"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

func TestAnalyzePortfolioUseCase_Execute(t *testing.T) {
	t.Run("analyzes the three-exposure scenario", func(t *testing.T) {
		repo := newInMemoryRepo()
		results := &mockResultStore{}
		uc := usecase.NewAnalyzePortfolioUseCase(newPipeline(t), repo, results, nil,
			valueobject.DefaultConcentrationThresholds(), testLogger())

		resp, err := uc.Execute(context.Background(), dto.AnalyzePortfolioRequest{Batch: scenarioBatch(t)})
		require.NoError(t, err)

		assert.Equal(t, "COMPLETED", resp.State)
		assert.Equal(t, "1000.00", resp.TotalAmountEUR)
		assert.Equal(t, "4600.00", resp.GeographicHHI.Value)
		assert.Equal(t, "HIGH", resp.GeographicHHI.Level)
		assert.Equal(t, "60.0000", resp.GeographicBreakdown["ITALY"].Percentage)
		assert.Equal(t, "30.0000", resp.GeographicBreakdown["EU_OTHER"].Percentage)
		assert.Equal(t, "10.0000", resp.GeographicBreakdown["NON_EUROPEAN"].Percentage)
		assert.Equal(t, 3, resp.ProcessedExposures)
		assert.Equal(t, 0, resp.ProcessedChunks)
		assert.False(t, resp.CanResume)
		assert.Contains(t, resp.ResultURI, testutil.TestBatchID)

		require.Len(t, results.stored, 1)
		assert.Len(t, results.stored[0].Exposures, 3)
		assert.Equal(t, testutil.TestBankID, results.stored[0].BankID)

		exposures, err := repo.ListExposures(context.Background(), scenarioBatch(t).BatchID)
		require.NoError(t, err)
		assert.Len(t, exposures, 3)
		assert.Equal(t, []string{event.TypeAnalysisCompleted}, repo.eventTypes())
	})

	t.Run("missing rate persists a failed analysis", func(t *testing.T) {
		repo := newInMemoryRepo()
		uc := usecase.NewAnalyzePortfolioUseCase(newPipeline(t), repo, &mockResultStore{}, nil,
			valueobject.DefaultConcentrationThresholds(), testLogger())

		batch := batchOf(t, testutil.TestBatchID, row{"EXP001", "CP", "10", "JPY", "JP", "LOAN"})
		resp, err := uc.Execute(context.Background(), dto.AnalyzePortfolioRequest{Batch: batch})
		require.ErrorIs(t, err, service.ErrRateUnavailable)
		assert.Equal(t, "FAILED", resp.State)
		assert.Contains(t, resp.FailureReason, "JPY")

		stored, err := repo.FindByBatchID(context.Background(), batch.BatchID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.StateFailed, stored.State())
	})

	t.Run("result store failure is not saved as completed", func(t *testing.T) {
		repo := newInMemoryRepo()
		results := &mockResultStore{storeFn: func(port.AnalysisResult) (string, error) {
			return "", errors.New("bucket unavailable")
		}}
		uc := usecase.NewAnalyzePortfolioUseCase(newPipeline(t), repo, results, nil,
			valueobject.DefaultConcentrationThresholds(), testLogger())

		_, err := uc.Execute(context.Background(), dto.AnalyzePortfolioRequest{Batch: scenarioBatch(t)})
		require.Error(t, err)
		_, err = repo.FindByBatchID(context.Background(), scenarioBatch(t).BatchID)
		assert.ErrorIs(t, err, port.ErrAnalysisNotFound)
	})
}
