package payments

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	cases := []struct {
		name    string
		total   float64
		paid    float64
		wantDue float64
		want    Status
	}{
		{"nothing paid", 100, 0, 100, StatusDue},
		{"partial", 100, 40, 60, StatusPartial},
		{"exact", 100, 100, 0, StatusPaid},
		{"overpaid clamps due", 100, 120, 0, StatusPaid},
		{"zero total", 0, 0, 0, StatusPaid},
		{"tiny partial", 100, 0.01, 99.99, StatusPartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			due, status := Derive(tc.total, tc.paid)
			require.InDelta(t, tc.wantDue, due, 1e-9)
			require.Equal(t, tc.want, status)
		})
	}
}

func TestDeriveOrderIndependent(t *testing.T) {
	// Re-summing a ledger must not depend on payment order.
	perms := [][]float64{
		{25, 40, 35},
		{35, 25, 40},
		{40, 35, 25},
	}
	for _, p := range perms {
		var paid float64
		for _, amt := range p {
			paid += amt
		}
		due, status := Derive(100, paid)
		require.Equal(t, 0.0, due)
		require.Equal(t, StatusPaid, status)
	}
}
