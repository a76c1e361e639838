// Package purchase implements the purchase intake pipeline: validating and
// normalizing supplier invoice lines, resolving medicines and batches,
// mutating the batch store and persisting the order atomically. Manual
// entry, CSV file import and pasted-text import all share the same pipeline.
package purchase

import (
	"errors"
	"fmt"
	"time"

	"github.com/rxstock/rxstock/internal/payments"
)

// OrderStatus is the lifecycle state of a purchase order.
type OrderStatus string

const (
	// OrderStatusPending marks a freshly received order.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusCompleted marks an order whose supplier invoice is fully
	// paid. Reversal deletes the order outright rather than marking it.
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

// PurchaseOrder is the header of a supplier invoice.
type PurchaseOrder struct {
	ID            int64           `json:"id"`
	SupplierID    int64           `json:"supplier_id"`
	InvoiceNo     string          `json:"invoice_no"`
	PurchaseDate  time.Time       `json:"purchase_date"`
	TotalAmount   float64         `json:"total_amount"`
	AmountPaid    float64         `json:"amount_paid"`
	AmountDue     float64         `json:"amount_due"`
	PaymentStatus payments.Status `json:"payment_status"`
	Status        OrderStatus     `json:"status"`
	CreatedBy     int64           `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PurchaseLine is one received line of a purchase order. Lines are
// immutable once created; they disappear only with their parent order.
//
// The Prev* fields snapshot the batch pricing that this line overwrote,
// so reversing the order can put the batch back exactly as it was.
// BatchCreated records that the batch row itself was created by this line.
type PurchaseLine struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"order_id"`
	MedicineID   int64     `json:"medicine_id"`
	BatchID      int64     `json:"batch_id"`
	Quantity     int64     `json:"quantity"`
	FreeQuantity int64     `json:"free_quantity"`
	Rate         float64   `json:"rate"`
	MRP          float64   `json:"mrp"`
	GSTRate      float64   `json:"gst_rate"`
	Margin       float64   `json:"margin"`
	Amount       float64   `json:"amount"`
	HSNCode      string    `json:"hsn_code,omitempty"`
	BatchCreated bool      `json:"-"`
	PrevPricing  *Snapshot `json:"-"`
}

// Snapshot preserves a batch's pricing before a merge-restock.
type Snapshot struct {
	PurchaseRate float64
	MRP          float64
	SellingRate  float64
	Margin       float64
	GSTRate      float64
	Expiry       time.Time
}

// SupplierPayment is an append-only ledger entry against a purchase order.
// Entries are never updated or deleted; the order's paid/due amounts are
// re-summed over the ledger on every append.
type SupplierPayment struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id"`
	Amount     float64   `json:"amount"`
	PaidOn     time.Time `json:"paid_on"`
	Mode       string    `json:"mode"`
	Reference  string    `json:"reference,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	RecordedBy int64     `json:"recorded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	// ErrNotFound indicates a missing purchase order.
	ErrNotFound = errors.New("purchase: order not found")
	// ErrNoItems indicates an intake request without lines.
	ErrNoItems = errors.New("purchase: at least one line item is required")
	// ErrInvalidExpiry indicates an unparseable or past expiry date.
	ErrInvalidExpiry = errors.New("purchase: expiry must be a parseable future date")
	// ErrStockAlreadySold refuses a reversal whose stock has since been sold.
	ErrStockAlreadySold = errors.New("purchase: stock already sold, order cannot be reversed")
	// ErrImportRejected indicates a bulk import with at least one bad row;
	// no rows are committed.
	ErrImportRejected = errors.New("purchase: import rejected, no rows committed")
	// ErrInvalidPayment indicates a non-positive payment amount.
	ErrInvalidPayment = errors.New("purchase: payment amount must be positive")
)

// FieldError is a validation failure tied to a named input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("purchase: invalid %s: %s", e.Field, e.Reason)
}

// RowError is a bulk-import validation failure tied to a file row.
type RowError struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Reason)
}
