package model

import (
	"fmt"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

// LimitAssessment is the large-exposure outcome for one exposure.
// A breach always implies RequiresReporting.
type LimitAssessment struct {
	Breach            bool
	RequiresReporting bool
}

// ClassifiedExposure is an exposure after valuation, netting and classification.
type ClassifiedExposure struct {
	exposure   ExposureRecording
	grossEur   valueobject.EurAmount
	mitigation valueobject.EurAmount
	net        valueobject.EurAmount
	region     valueobject.GeographicRegion
	sector     valueobject.EconomicSector
	assessment LimitAssessment
}

// NewClassifiedExposure derives the net amount as gross minus mitigation, floored at zero.
func NewClassifiedExposure(
	exposure ExposureRecording,
	grossEur valueobject.EurAmount,
	mitigation valueobject.EurAmount,
	region valueobject.GeographicRegion,
	sector valueobject.EconomicSector,
	assessment LimitAssessment,
) (ClassifiedExposure, error) {
	if region.IsZero() {
		return ClassifiedExposure{}, fmt.Errorf("exposure %s has no geographic region", exposure.ID())
	}
	if sector.IsZero() {
		return ClassifiedExposure{}, fmt.Errorf("exposure %s has no economic sector", exposure.ID())
	}
	return ClassifiedExposure{
		exposure:   exposure,
		grossEur:   grossEur,
		mitigation: mitigation,
		net:        grossEur.SubtractFloored(mitigation),
		region:     region,
		sector:     sector,
		assessment: assessment,
	}, nil
}

func (c ClassifiedExposure) Exposure() ExposureRecording          { return c.exposure }
func (c ClassifiedExposure) GrossEur() valueobject.EurAmount      { return c.grossEur }
func (c ClassifiedExposure) MitigationEur() valueobject.EurAmount { return c.mitigation }
func (c ClassifiedExposure) NetExposure() valueobject.EurAmount   { return c.net }
func (c ClassifiedExposure) Region() valueobject.GeographicRegion { return c.region }
func (c ClassifiedExposure) Sector() valueobject.EconomicSector   { return c.sector }
func (c ClassifiedExposure) Assessment() LimitAssessment          { return c.assessment }
