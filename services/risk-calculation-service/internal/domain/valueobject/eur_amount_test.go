package valueobject_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcbs239/regtech/services/risk-calculation-service/internal/domain/valueobject"
)

func eur(t *testing.T, s string) valueobject.EurAmount {
	t.Helper()
	a, err := valueobject.ParseEurAmount(s)
	require.NoError(t, err)
	return a
}

func TestNewEurAmount(t *testing.T) {
	t.Run("accepts zero and positive", func(t *testing.T) {
		for _, v := range []string{"0", "0.01", "1000000"} {
			_, err := valueobject.ParseEurAmount(v)
			assert.NoError(t, err, v)
		}
	})

	t.Run("rejects negative", func(t *testing.T) {
		_, err := valueobject.NewEurAmount(decimal.NewFromInt(-5))
		assert.ErrorIs(t, err, valueobject.ErrNegativeEurAmount)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := valueobject.ParseEurAmount("ten")
		assert.Error(t, err)
	})

	t.Run("zero value is zero", func(t *testing.T) {
		var a valueobject.EurAmount
		assert.True(t, a.IsZero())
		assert.True(t, a.Equal(valueobject.ZeroEur()))
	})
}

func TestEurAmount_Arithmetic(t *testing.T) {
	a := eur(t, "600")
	b := eur(t, "250.50")

	assert.True(t, a.Add(b).Equal(eur(t, "850.50")))
	assert.True(t, a.SubtractFloored(b).Equal(eur(t, "349.50")))
	assert.True(t, b.SubtractFloored(a).IsZero(), "subtraction floors at zero")
	assert.True(t, a.GreaterThan(b))
	assert.Equal(t, "600.00 EUR", a.String())
}
