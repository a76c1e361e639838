package inventory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidExpiry indicates an expiry string in none of the accepted shapes.
var ErrInvalidExpiry = errors.New("inventory: invalid expiry date")

// ParseExpiry normalizes the expiry formats that appear on supplier
// invoices:
//
//	2026-03-15            ISO date
//	03/27                 MM/YY pharmaceutical short form -> 2027-03-31
//	15/03/2026            DD/MM/YYYY
//	15-03-2026            DD-MM-YYYY
//	2026-03               YYYY-MM -> last day of that month
//
// Month-precision forms resolve to the last calendar day of the month,
// matching how pharmacies read a printed "exp 03/27".
func ParseExpiry(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrInvalidExpiry
	}

	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("02/01/2006", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("02-01-2006", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return endOfMonth(t.Year(), t.Month()), nil
	}
	if parts := strings.Split(s, "/"); len(parts) == 2 {
		month, errM := strconv.Atoi(parts[0])
		year, errY := strconv.Atoi(parts[1])
		if errM == nil && errY == nil && month >= 1 && month <= 12 && year >= 0 && year <= 99 {
			return endOfMonth(2000+year, time.Month(month)), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExpiry, raw)
}

func endOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}
