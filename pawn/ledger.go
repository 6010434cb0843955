/*
ledger.go - Payoff allocation across a contract's product ledger

PURPOSE:
  When a client renews with a contribution, the payment is allocated
  against the contract's line items: highest-value items are paid down
  first, each item is reduced toward zero and never below it.

INVARIANTS:
  1. Conservation: sum(amounts before) - sum(amounts after) == contribution
  2. No item goes negative; fully paid items stay at zero
  3. Deterministic order: amount descending, ties by ID ascending

EXAMPLE:
  Amounts [30, 50, 20], contribution 60:
  sorted [50, 30, 20] -> 50 zeroed (10 left), 30 reduced to 20 (0 left),
  20 untouched. Post-state by original position: [20, 0, 20].

SEE ALSO:
  - renewal.go: Runs the allocation inside the renewal transaction
*/
package pawn

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AllocatePayoff distributes contribution across products, highest current
// amount first. It returns the mutated line items (only those whose amount
// changed), leaving the input slice untouched.
//
// The caller must validate contribution against the outstanding balance
// first; AllocatePayoff itself only guarantees no item goes negative.
func AllocatePayoff(products []Product, contribution decimal.Decimal) []Product {
	if !contribution.IsPositive() || len(products) == 0 {
		return nil
	}

	sorted := make([]Product, len(products))
	copy(sorted, products)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Amount.Equal(sorted[j].Amount) {
			return sorted[i].Amount.GreaterThan(sorted[j].Amount)
		}
		return sorted[i].ID < sorted[j].ID
	})

	remaining := contribution
	var touched []Product
	for _, p := range sorted {
		if !remaining.IsPositive() {
			break
		}
		if !p.Amount.IsPositive() {
			continue // already fully paid in an earlier cycle
		}

		if p.Amount.LessThanOrEqual(remaining) {
			remaining = remaining.Sub(p.Amount)
			p.Amount = decimal.Zero
		} else {
			p.Amount = RoundCents(p.Amount.Sub(remaining))
			remaining = decimal.Zero
		}
		touched = append(touched, p)
	}
	return touched
}
