// Package sales implements point-of-sale fulfillment: a cart of batch
// references is checked against on-hand stock, decremented under row
// locks, and persisted as an invoice with a derived payment status.
package sales

import (
	"errors"
	"time"

	"github.com/rxstock/rxstock/internal/payments"
)

// SaleInvoice is the header of a point-of-sale transaction. CustomerID is
// nil for walk-in sales.
type SaleInvoice struct {
	ID            int64           `json:"id"`
	InvoiceNo     string          `json:"invoice_no"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	SaleDate      time.Time       `json:"sale_date"`
	Subtotal      float64         `json:"subtotal"`
	TaxAmount     float64         `json:"tax_amount"`
	TotalAmount   float64         `json:"total_amount"`
	AmountPaid    float64         `json:"amount_paid"`
	AmountDue     float64         `json:"amount_due"`
	PaymentStatus payments.Status `json:"payment_status"`
	PaymentMode   string          `json:"payment_mode,omitempty"`
	CreatedBy     int64           `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SaleLine is one sold line. BatchID is the live reference used by
// reversal; MedicineName and BatchNo are denormalized for display and
// survive catalog renames.
type SaleLine struct {
	ID           int64   `json:"id"`
	InvoiceID    int64   `json:"invoice_id"`
	MedicineID   int64   `json:"medicine_id"`
	BatchID      int64   `json:"batch_id"`
	MedicineName string  `json:"medicine_name"`
	BatchNo      string  `json:"batch_no"`
	Quantity     int64   `json:"quantity"`
	Rate         float64 `json:"rate"`
	GSTRate      float64 `json:"gst_rate"`
	Amount       float64 `json:"amount"`
}

var (
	// ErrNotFound indicates a missing sale invoice.
	ErrNotFound = errors.New("sales: invoice not found")
	// ErrNoItems indicates a fulfillment request without lines.
	ErrNoItems = errors.New("sales: at least one line item is required")
	// ErrInvalidQuantity indicates a non-positive line quantity.
	ErrInvalidQuantity = errors.New("sales: quantity must be a positive integer")
	// ErrInvalidAmount indicates a non-positive invoice total.
	ErrInvalidAmount = errors.New("sales: invoice total must be positive")
	// ErrInvalidPayment indicates a paid amount outside [0, total].
	ErrInvalidPayment = errors.New("sales: paid amount must be between zero and the invoice total")
)
