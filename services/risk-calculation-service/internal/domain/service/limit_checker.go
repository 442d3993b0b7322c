package service

import (
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/model"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// LargeExposureLimitChecker applies the large-exposure limit and reporting threshold.
type LargeExposureLimitChecker struct {
	params         valueobject.LargeExposuresParameters
	limit          valueobject.EurAmount
	classification valueobject.EurAmount
}

// NewLargeExposureLimitChecker creates a checker for params.
func NewLargeExposureLimitChecker(params valueobject.LargeExposuresParameters) LargeExposureLimitChecker {
	return LargeExposureLimitChecker{
		params:         params,
		limit:          params.AbsoluteLimit(),
		classification: params.AbsoluteClassificationThreshold(),
	}
}

// Check runs both tests on a net exposure.
func (c LargeExposureLimitChecker) Check(net valueobject.EurAmount) model.LimitAssessment {
	breach := net.GreaterThan(c.limit)
	return model.LimitAssessment{
		Breach:            breach,
		RequiresReporting: breach || net.GreaterThan(c.classification),
	}
}

func (c LargeExposureLimitChecker) Parameters() valueobject.LargeExposuresParameters { return c.params }
