// Package calculator contains the pure money math: share splitting and
// group balance aggregation. It works on plain values so it stays
// independent of storage and transport.
package calculator

import (
	"fmt"
	"math"
)

// EqualShares splits amount evenly across n participants, rounding each
// share to cents and assigning the leftover cent(s) to the first shares so
// the sum always equals the amount exactly.
func EqualShares(amount float64, n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cannot split among %d participants", n)
	}
	if amount < 0 {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	totalCents := int64(math.Round(amount * 100))
	base := totalCents / int64(n)
	remainder := totalCents % int64(n)

	shares := make([]float64, n)
	for i := range shares {
		cents := base
		if int64(i) < remainder {
			cents++
		}
		shares[i] = float64(cents) / 100
	}
	return shares, nil
}
