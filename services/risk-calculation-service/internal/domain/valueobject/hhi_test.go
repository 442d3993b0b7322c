package valueobject_test

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/pkg/testutil"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

func breakdownOf(t *testing.T, amounts map[string]string) valueobject.Breakdown {
	t.Helper()
	m := map[string]valueobject.EurAmount{}
	total := valueobject.ZeroEur()
	for k, v := range amounts {
		a := eur(t, v)
		m[k] = a
		total = total.Add(a)
	}
	b, err := valueobject.NewBreakdown(m, total)
	require.NoError(t, err)
	return b
}

func TestCalculateHHI(t *testing.T) {
	thresholds := valueobject.DefaultConcentrationThresholds()

	t.Run("three regions 60/30/10", func(t *testing.T) {
		h := valueobject.CalculateHHI(breakdownOf(t, map[string]string{
			"ITALY": "600", "EU_OTHER": "300", "NON_EUROPEAN": "100",
		}), thresholds)
		testutil.AssertDecimalEqual(t, "4600", h.Value())
		assert.Equal(t, valueobject.ConcentrationHigh, h.Level())
	})

	t.Run("single category is 10000", func(t *testing.T) {
		h := valueobject.CalculateHHI(breakdownOf(t, map[string]string{"CORPORATE": "42"}), thresholds)
		testutil.AssertDecimalEqual(t, "10000", h.Value())
	})

	t.Run("empty breakdown is zero", func(t *testing.T) {
		h := valueobject.CalculateHHI(valueobject.EmptyBreakdown(), thresholds)
		assert.True(t, h.Value().IsZero())
		assert.Equal(t, valueobject.ConcentrationLow, h.Level())
	})

	for _, n := range []int{2, 3, 4, 5, 7, 10} {
		t.Run(fmt.Sprintf("%d equal categories", n), func(t *testing.T) {
			m := map[string]string{}
			for i := 0; i < n; i++ {
				m[fmt.Sprintf("C%d", i)] = "100"
			}
			h := valueobject.CalculateHHI(breakdownOf(t, m), thresholds)
			want := decimal.NewFromInt(10000).Div(decimal.NewFromInt(int64(n)))
			testutil.AssertDecimalWithin(t, want.String(), h.Value(), "0.05")
		})
	}

	t.Run("permutation invariant", func(t *testing.T) {
		a := valueobject.CalculateHHI(breakdownOf(t, map[string]string{"X": "1", "Y": "2", "Z": "3"}), thresholds)
		b := valueobject.CalculateHHI(breakdownOf(t, map[string]string{"Z": "1", "X": "3", "Y": "2"}), thresholds)
		assert.True(t, a.Value().Equal(b.Value()))
	})
}

func TestConcentrationThresholds_Classify(t *testing.T) {
	th := valueobject.DefaultConcentrationThresholds()
	tests := []struct {
		value string
		want  valueobject.ConcentrationLevel
	}{
		{"0", valueobject.ConcentrationLow},
		{"1499.9999", valueobject.ConcentrationLow},
		{"1500", valueobject.ConcentrationModerate},
		{"2500", valueobject.ConcentrationModerate},
		{"2500.0001", valueobject.ConcentrationHigh},
		{"10000", valueobject.ConcentrationHigh},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, th.Classify(testutil.Dec(tt.value)))
		})
	}
}

func TestNewConcentrationThresholds(t *testing.T) {
	custom, err := valueobject.NewConcentrationThresholds(testutil.Dec("1000"), testutil.Dec("1800"))
	require.NoError(t, err)
	assert.Equal(t, valueobject.ConcentrationHigh, custom.Classify(testutil.Dec("2000")))

	_, err = valueobject.NewConcentrationThresholds(decimal.Zero, testutil.Dec("1800"))
	assert.Error(t, err)
	_, err = valueobject.NewConcentrationThresholds(testutil.Dec("2000"), testutil.Dec("1800"))
	assert.Error(t, err)
	_, err = valueobject.NewConcentrationThresholds(testutil.Dec("2000"), testutil.Dec("10001"))
	assert.Error(t, err)
}
