package calculator

import (
	"math"
	"testing"
)

func TestEqualShares(t *testing.T) {
	t.Run("splits evenly when divisible", func(t *testing.T) {
		shares, err := EqualShares(30.0, 3)
		if err != nil {
			t.Fatalf("EqualShares failed: %v", err)
		}
		for i, s := range shares {
			if s != 10.0 {
				t.Errorf("share %d = %f, want 10.0", i, s)
			}
		}
	})

	t.Run("distributes leftover cents to the first shares", func(t *testing.T) {
		shares, err := EqualShares(100.0, 3)
		if err != nil {
			t.Fatalf("EqualShares failed: %v", err)
		}
		want := []float64{33.34, 33.33, 33.33}
		for i := range want {
			if shares[i] != want[i] {
				t.Errorf("share %d = %f, want %f", i, shares[i], want[i])
			}
		}
	})

	t.Run("shares always sum to the amount", func(t *testing.T) {
		amounts := []float64{0.01, 0.1, 1.0, 9.99, 100.0, 123.45}
		for _, amount := range amounts {
			for n := 1; n <= 7; n++ {
				shares, err := EqualShares(amount, n)
				if err != nil {
					t.Fatalf("EqualShares(%f, %d) failed: %v", amount, n, err)
				}
				sum := 0.0
				for _, s := range shares {
					sum += s
				}
				if math.Abs(sum-amount) > 0.001 {
					t.Errorf("EqualShares(%f, %d) sums to %f", amount, n, sum)
				}
			}
		}
	})

	t.Run("rejects zero participants", func(t *testing.T) {
		if _, err := EqualShares(10.0, 0); err == nil {
			t.Error("expected error for zero participants")
		}
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		if _, err := EqualShares(-1.0, 2); err == nil {
			t.Error("expected error for negative amount")
		}
	})
}
