package testutil

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// AssertErrorContains checks that err contains the expected substring.
func AssertErrorContains(t *testing.T, err error, expected string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), expected)
	}
}

// AssertDecimalEqual compares decimals by value, so 10 equals 10.00.
func AssertDecimalEqual(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) bool {
	t.Helper()
	want := decimal.RequireFromString(expected)
	if !want.Equal(actual) {
		return assert.Fail(t, "decimals differ", "expected %s, got %s %v", want, actual, msgAndArgs)
	}
	return true
}

// AssertDecimalWithin checks |expected-actual| <= tolerance.
func AssertDecimalWithin(t *testing.T, expected string, actual decimal.Decimal, tolerance string) bool {
	t.Helper()
	diff := decimal.RequireFromString(expected).Sub(actual).Abs()
	if diff.GreaterThan(decimal.RequireFromString(tolerance)) {
		return assert.Fail(t, "decimal outside tolerance", "expected %s ± %s, got %s", expected, tolerance, actual)
	}
	return true
}
