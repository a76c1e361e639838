// Package suppliers manages the supplier registry purchase orders
// reference.
package suppliers

import (
	"errors"
	"time"
)

// Supplier is a registered distributor or wholesaler.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	GSTIN     string    `json:"gstin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates a missing supplier.
	ErrNotFound = errors.New("suppliers: supplier not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("suppliers: invalid input")
)
