// Package customers manages the customer registry and its running
// outstanding balance. The balance is mutated only by the sales engine,
// inside the same transaction as the invoice it reconciles.
package customers

import (
	"errors"
	"time"
)

// Customer is a registered buyer. Walk-in sales carry no customer at all.
type Customer struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	Address     string    `json:"address,omitempty"`
	Outstanding float64   `json:"outstanding"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates a missing customer.
	ErrNotFound = errors.New("customers: customer not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("customers: invalid input")
)
