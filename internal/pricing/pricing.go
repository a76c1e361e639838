// Package pricing converts purchase rates into selling rates via a margin
// percentage and owns the margin resolution policy applied during purchase
// intake.
package pricing

import (
	"errors"
	"math"
)

// DefaultMargin is applied when an existing medicine carries no stored
// default and the purchase line does not supply one.
const DefaultMargin = 20.0

var (
	// ErrMarginRequired is returned when the first purchase of a medicine
	// arrives without an explicit margin.
	ErrMarginRequired = errors.New("pricing: margin required for new medicine")
	// ErrInvalidMargin is returned for a non-positive margin on a new medicine.
	ErrInvalidMargin = errors.New("pricing: margin must be a positive number")
)

// Round2 rounds a monetary value to two decimal places. Rounding happens
// only where a rate or total is persisted, not on intermediate arithmetic.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SellingRate derives the selling rate from a purchase rate and margin
// percentage, rounded to two decimals.
func SellingRate(purchaseRate, marginPct float64) float64 {
	return Round2(purchaseRate * (1 + marginPct/100))
}

// Resolution describes the outcome of resolving a line's margin.
type Resolution struct {
	Margin        float64
	UpdateDefault bool
}

// ResolveMargin decides which margin a purchase line uses.
//
// A previously unseen medicine must supply a positive margin; this forces
// an explicit pricing decision the first time a product enters the catalog.
// For an existing medicine a non-zero supplied margin wins and becomes the
// medicine's new default, otherwise the stored default is inherited, with
// DefaultMargin as the last resort.
func ResolveMargin(supplied *float64, isNew bool, storedDefault *float64) (Resolution, error) {
	if isNew {
		if supplied == nil {
			return Resolution{}, ErrMarginRequired
		}
		if *supplied <= 0 {
			return Resolution{}, ErrInvalidMargin
		}
		return Resolution{Margin: *supplied, UpdateDefault: true}, nil
	}
	if supplied != nil && *supplied != 0 {
		if *supplied < 0 {
			return Resolution{}, ErrInvalidMargin
		}
		return Resolution{Margin: *supplied, UpdateDefault: true}, nil
	}
	if storedDefault != nil && *storedDefault > 0 {
		return Resolution{Margin: *storedDefault}, nil
	}
	return Resolution{Margin: DefaultMargin}, nil
}
