package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxHHI is the index of a single-category breakdown.
var MaxHHI = decimal.NewFromInt(10000)

// ConcentrationThresholds are the HHI boundaries between LOW, MODERATE and HIGH.
type ConcentrationThresholds struct {
	moderate decimal.Decimal
	high     decimal.Decimal
}

// NewConcentrationThresholds requires 0 < moderate <= high <= 10000.
func NewConcentrationThresholds(moderate, high decimal.Decimal) (ConcentrationThresholds, error) {
	if !moderate.IsPositive() {
		return ConcentrationThresholds{}, fmt.Errorf("moderate concentration threshold must be positive, got %s", moderate)
	}
	if high.LessThan(moderate) {
		return ConcentrationThresholds{}, fmt.Errorf("high concentration threshold %s is below moderate %s", high, moderate)
	}
	if high.GreaterThan(MaxHHI) {
		return ConcentrationThresholds{}, fmt.Errorf("high concentration threshold %s exceeds %s", high, MaxHHI)
	}
	return ConcentrationThresholds{moderate: moderate, high: high}, nil
}

// DefaultConcentrationThresholds returns the 1500/2500 boundaries.
func DefaultConcentrationThresholds() ConcentrationThresholds {
	return ConcentrationThresholds{moderate: decimal.NewFromInt(1500), high: decimal.NewFromInt(2500)}
}

func (t ConcentrationThresholds) Moderate() decimal.Decimal { return t.moderate }
func (t ConcentrationThresholds) High() decimal.Decimal     { return t.high }

// Classify maps an index value onto a level: below moderate is LOW, up to and
// including high is MODERATE, above high is HIGH.
func (t ConcentrationThresholds) Classify(value decimal.Decimal) ConcentrationLevel {
	switch {
	case value.LessThan(t.moderate):
		return ConcentrationLow
	case value.LessThanOrEqual(t.high):
		return ConcentrationModerate
	default:
		return ConcentrationHigh
	}
}

// HHI is a Herfindahl-Hirschman index on the 0-10000 scale.
type HHI struct {
	value decimal.Decimal
	level ConcentrationLevel
}

// CalculateHHI sums the squared share percentages of b.
func CalculateHHI(b Breakdown, thresholds ConcentrationThresholds) HHI {
	value := decimal.Zero
	for _, k := range b.Keys() {
		p := b.shares[k].percentage
		value = value.Add(p.Mul(p))
	}
	return HHI{value: value, level: thresholds.Classify(value)}
}

func (h HHI) Value() decimal.Decimal    { return h.value }
func (h HHI) Level() ConcentrationLevel { return h.level }
