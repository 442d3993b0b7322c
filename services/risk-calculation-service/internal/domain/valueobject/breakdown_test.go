package valueobject_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/pkg/testutil"
	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

func TestNewBreakdown(t *testing.T) {
	t.Run("percentages of a three-region portfolio", func(t *testing.T) {
		b, err := valueobject.NewBreakdown(map[string]valueobject.EurAmount{
			"ITALY":        eur(t, "600"),
			"EU_OTHER":     eur(t, "300"),
			"NON_EUROPEAN": eur(t, "100"),
		}, eur(t, "1000"))
		require.NoError(t, err)

		italy, ok := b.Share("ITALY")
		require.True(t, ok)
		testutil.AssertDecimalEqual(t, "60", italy.Percentage())
		testutil.AssertDecimalEqual(t, "100", b.PercentageSum())
		assert.Equal(t, []string{"EU_OTHER", "ITALY", "NON_EUROPEAN"}, b.Keys())
	})

	t.Run("zero total yields zero percentages", func(t *testing.T) {
		b, err := valueobject.NewBreakdown(map[string]valueobject.EurAmount{
			"ITALY": valueobject.ZeroEur(),
		}, valueobject.ZeroEur())
		require.NoError(t, err)

		s, _ := b.Share("ITALY")
		assert.True(t, s.Percentage().IsZero())
	})

	t.Run("empty breakdown", func(t *testing.T) {
		b, err := valueobject.NewBreakdown(nil, valueobject.ZeroEur())
		require.NoError(t, err)
		assert.True(t, b.IsEmpty())
		assert.True(t, b.PercentageSum().IsZero())
	})

	t.Run("rejects total mismatch", func(t *testing.T) {
		_, err := valueobject.NewBreakdown(map[string]valueobject.EurAmount{
			"ITALY": eur(t, "10"),
		}, eur(t, "11"))
		assert.ErrorIs(t, err, valueobject.ErrBreakdownTotalMismatch)
	})
}

func TestBreakdown_SumsHold(t *testing.T) {
	amounts := []string{"1", "2", "3", "7", "11", "13.37", "1000000.01"}
	for n := 1; n <= len(amounts); n++ {
		m := map[string]valueobject.EurAmount{}
		total := valueobject.ZeroEur()
		for i := 0; i < n; i++ {
			a := eur(t, amounts[i])
			m[string(rune('A'+i))] = a
			total = total.Add(a)
		}

		b, err := valueobject.NewBreakdown(m, total)
		require.NoError(t, err)

		amountSum := valueobject.ZeroEur()
		for _, a := range b.Amounts() {
			amountSum = amountSum.Add(a)
		}
		assert.True(t, amountSum.Equal(total), "amounts sum to total for n=%d", n)

		// Each share is rounded to 4 dp, so the sum can drift by at most n * 0.00005.
		tolerance := decimal.New(5, -5).Mul(decimal.NewFromInt(int64(n)))
		diff := b.PercentageSum().Sub(decimal.NewFromInt(100)).Abs()
		assert.True(t, diff.LessThanOrEqual(tolerance), "percentage sum %s for n=%d", b.PercentageSum(), n)
	}
}
