// Package payments holds the reconciliation rule shared by purchase and
// sale invoices: the due amount and payment status are always derived from
// the pair (total, paid), never stored independently.
package payments

// Status enumerates derived payment states.
type Status string

const (
	// StatusDue means nothing has been paid yet.
	StatusDue Status = "DUE"
	// StatusPartial means a payment exists but does not cover the total.
	StatusPartial Status = "PARTIAL"
	// StatusPaid means the cumulative payments cover the total.
	StatusPaid Status = "PAID"
)

// Derive computes the outstanding amount and status for an invoice.
// The due amount is clamped at zero so overpayments never surface as a
// negative balance.
func Derive(total, paid float64) (due float64, status Status) {
	due = total - paid
	if due < 0 {
		due = 0
	}
	switch {
	case due <= 0:
		return due, StatusPaid
	case paid > 0:
		return due, StatusPartial
	default:
		return due, StatusDue
	}
}
