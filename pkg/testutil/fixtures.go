package testutil

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deterministic identifiers and clocks for tests.
const (
	TestBatchID  = "batch_20260331_000001"
	TestBankID   = "bank_it_00001"
	TestBatchID2 = "batch_20260331_000002"
)

// TestNow is a fixed reference instant used instead of time.Now in tests.
var TestNow = time.Date(2026, time.March, 31, 9, 30, 0, 0, time.UTC)

// Dec parses a decimal literal and panics on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
