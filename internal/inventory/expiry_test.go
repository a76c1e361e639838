package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseExpiry(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2027-03-15", time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"15/03/2027", time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"15-03-2027", time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"2027-03", time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC)},
		{"03/27", time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC)},
		{"02/28", time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)}, // leap year
		{"12/26", time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)},
		{" 03/27 ", time.Date(2027, 3, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseExpiry(tc.in)
		require.NoError(t, err, tc.in)
		require.True(t, got.Equal(tc.want), "%s: got %s want %s", tc.in, got, tc.want)
	}
}

func TestParseExpiryRejects(t *testing.T) {
	for _, in := range []string{"", "soon", "13/27", "00/27", "2027/03/15", "27/3", "03-27", "03/15/2027"} {
		_, err := ParseExpiry(in)
		require.ErrorIs(t, err, ErrInvalidExpiry, in)
	}
}
