package valueobject

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// PercentageScale is the number of decimals kept on share percentages.
const PercentageScale = 4

var hundred = decimal.NewFromInt(100)

// ErrBreakdownTotalMismatch is returned when category amounts do not add up to the total.
var ErrBreakdownTotalMismatch = errors.New("breakdown amounts do not sum to the portfolio total")

// Share is one category's contribution to a Breakdown.
type Share struct {
	amount     EurAmount
	percentage decimal.Decimal
}

func (s Share) Amount() EurAmount           { return s.amount }
func (s Share) Percentage() decimal.Decimal { return s.percentage }

// Breakdown maps category names (region or sector) to their Share of a total.
type Breakdown struct {
	shares map[string]Share
	total  EurAmount
}

// NewBreakdown computes percentage = 100 * amount / total for each category.
// A zero total yields all-zero percentages.
func NewBreakdown(amounts map[string]EurAmount, total EurAmount) (Breakdown, error) {
	sum := ZeroEur()
	shares := make(map[string]Share, len(amounts))
	for key, amount := range amounts {
		if key == "" {
			return Breakdown{}, fmt.Errorf("breakdown category cannot be empty")
		}
		sum = sum.Add(amount)
		shares[key] = Share{amount: amount, percentage: percentageOf(amount, total)}
	}
	if !sum.Equal(total) {
		return Breakdown{}, fmt.Errorf("%w: categories sum to %s, total is %s", ErrBreakdownTotalMismatch, sum, total)
	}
	return Breakdown{shares: shares, total: total}, nil
}

// EmptyBreakdown is the breakdown of an empty portfolio.
func EmptyBreakdown() Breakdown {
	return Breakdown{shares: map[string]Share{}}
}

func percentageOf(amount, total EurAmount) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return amount.Value().Mul(hundred).DivRound(total.Value(), PercentageScale)
}

// Share returns the share for a category.
func (b Breakdown) Share(key string) (Share, bool) {
	s, ok := b.shares[key]
	return s, ok
}

// Keys returns the category names in lexical order.
func (b Breakdown) Keys() []string {
	keys := make([]string, 0, len(b.shares))
	for k := range b.shares {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Amounts returns a copy of the per-category amounts.
func (b Breakdown) Amounts() map[string]EurAmount {
	out := make(map[string]EurAmount, len(b.shares))
	for k, s := range b.shares {
		out[k] = s.amount
	}
	return out
}

// PercentageSum is the sum of all share percentages. It is ~100 for a non-empty, non-zero breakdown.
func (b Breakdown) PercentageSum() decimal.Decimal {
	sum := decimal.Zero
	for _, k := range b.Keys() {
		sum = sum.Add(b.shares[k].percentage)
	}
	return sum
}

func (b Breakdown) Total() EurAmount { return b.total }
func (b Breakdown) Len() int         { return len(b.shares) }
func (b Breakdown) IsEmpty() bool    { return len(b.shares) == 0 }
