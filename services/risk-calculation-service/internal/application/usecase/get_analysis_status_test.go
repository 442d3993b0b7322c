package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/pkg/testutil"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/dto"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/application/usecase"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/port"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

func TestGetAnalysisStatusUseCase_Execute(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		uc := usecase.NewGetAnalysisStatusUseCase(newInMemoryRepo(), testLogger())
		_, err := uc.Execute(context.Background(), dto.GetAnalysisStatusRequest{BatchID: "batch_missing"})
		require.ErrorIs(t, err, port.ErrAnalysisNotFound)
	})

	t.Run("empty batch id", func(t *testing.T) {
		uc := usecase.NewGetAnalysisStatusUseCase(newInMemoryRepo(), testLogger())
		_, err := uc.Execute(context.Background(), dto.GetAnalysisStatusRequest{BatchID: "  "})
		testutil.AssertErrorContains(t, err, "invalid batch ID")
	})

	t.Run("returns the completed analysis", func(t *testing.T) {
		repo := newInMemoryRepo()
		analyze := usecase.NewAnalyzePortfolioUseCase(newPipeline(t), repo, &mockResultStore{}, nil,
			valueobject.DefaultConcentrationThresholds(), testLogger())
		_, err := analyze.Execute(context.Background(), dto.AnalyzePortfolioRequest{Batch: scenarioBatch(t)})
		require.NoError(t, err)

		uc := usecase.NewGetAnalysisStatusUseCase(repo, testLogger())
		resp, err := uc.Execute(context.Background(), dto.GetAnalysisStatusRequest{BatchID: testutil.TestBatchID})
		require.NoError(t, err)

		assert.Equal(t, testutil.TestBatchID, resp.BatchID)
		assert.Equal(t, "COMPLETED", resp.State)
		assert.Equal(t, "100.00", resp.PercentComplete)
		assert.Equal(t, "4600.00", resp.GeographicHHI.Value)
		assert.NotNil(t, resp.AnalyzedAt)
		assert.Nil(t, resp.EstimatedCompletion)
		assert.Equal(t, 1, resp.Version)
	})
}
