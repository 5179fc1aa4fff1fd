package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RecomputeStrategy selects how running totals are repaired after a delete.
type RecomputeStrategy string

const (
	// Rescan re-sums every remaining expense of the user from scratch.
	Rescan RecomputeStrategy = "rescan"
	// Incremental subtracts the deleted amount from the expenses after it.
	Incremental RecomputeStrategy = "incremental"
)

func (s RecomputeStrategy) IsValid() bool {
	return s == Rescan || s == Incremental
}

func (s RecomputeStrategy) String() string {
	return string(s)
}

// ParseRecomputeStrategy maps a config value to a strategy.
func ParseRecomputeStrategy(v string) (RecomputeStrategy, error) {
	s := RecomputeStrategy(v)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown recompute strategy %q", v)
	}
	return s, nil
}

// SumAmounts returns the sum of amounts, zero for an empty slice.
func SumAmounts(amounts []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum
}

// RunningTotals returns the prefix sums of amounts.
func RunningTotals(amounts []decimal.Decimal) []decimal.Decimal {
	totals := make([]decimal.Decimal, len(amounts))
	acc := decimal.Zero
	for i, a := range amounts {
		acc = acc.Add(a)
		totals[i] = acc
	}
	return totals
}

// ShiftTotals returns totals with delta added to every element. Applied to the
// expenses that follow a deleted one with delta = -deleted.Amount it gives the
// same totals RunningTotals would produce over the remaining amounts.
func ShiftTotals(totals []decimal.Decimal, delta decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(totals))
	for i, t := range totals {
		out[i] = t.Add(delta)
	}
	return out
}

// CheckRunningTotals reports the first expense whose running total breaks the
// prefix sum invariant. Expenses must belong to one user and be in ID order.
func CheckRunningTotals(expenses []Expense) error {
	acc := decimal.Zero
	for _, e := range expenses {
		acc = acc.Add(e.Amount)
		if !acc.Equal(e.RunningTotal) {
			return fmt.Errorf("expense %d: running total %s, want %s", e.ID, e.RunningTotal, acc)
		}
	}
	return nil
}
