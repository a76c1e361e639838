// Package inventory is the authoritative record of on-hand stock per
// medicine batch. Purchase and sale flows compose its transactional store
// so every stock mutation happens under the caller's transaction with the
// batch row locked.
package inventory

import (
	"errors"
	"fmt"
	"time"
)

// Batch is the inventory unit: one receipt lot of a medicine. Identity is
// (medicine_id, batch_no); expiry is informational and not part of the key,
// so re-purchasing an existing label merges into the same row.
type Batch struct {
	ID           int64     `json:"id"`
	MedicineID   int64     `json:"medicine_id"`
	BatchNo      string    `json:"batch_no"`
	Expiry       time.Time `json:"expiry"`
	Stock        int64     `json:"stock"`
	PurchaseRate float64   `json:"purchase_rate"`
	MRP          float64   `json:"mrp"`
	SellingRate  float64   `json:"selling_rate"`
	Margin       float64   `json:"margin"`
	GSTRate      float64   `json:"gst_rate"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Pricing carries the price fields overwritten when a batch is restocked:
// the newest purchase's pricing wins for the whole batch going forward.
type Pricing struct {
	PurchaseRate float64
	MRP          float64
	SellingRate  float64
	Margin       float64
	GSTRate      float64
	Expiry       time.Time
}

// ErrBatchNotFound indicates the referenced batch row is missing.
var ErrBatchNotFound = errors.New("inventory: batch not found")

// InsufficientStockError reports a requested quantity exceeding the
// batch's current stock. The available amount travels with the error so
// callers can surface it.
type InsufficientStockError struct {
	BatchNo   string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for batch %s: requested %d, available %d",
		e.BatchNo, e.Requested, e.Available)
}

// ExpiringBatch is a read model row for the expiry alert query.
type ExpiringBatch struct {
	Batch
	MedicineName string `json:"medicine_name"`
	DaysLeft     int    `json:"days_left"`
}

// LowStockRow is a read model row for reorder alerts.
type LowStockRow struct {
	MedicineID   int64  `json:"medicine_id"`
	MedicineName string `json:"medicine_name"`
	TotalStock   int64  `json:"total_stock"`
	ReorderLevel int64  `json:"reorder_level"`
}
