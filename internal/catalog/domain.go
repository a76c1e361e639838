// Package catalog manages the medicine master data.
package catalog

import (
	"errors"
	"time"
)

// Lifecycle is the tagged state of a catalog entry. Archiving replaces
// hard deletion; archived medicines keep their history and can be restored.
type Lifecycle string

const (
	// LifecycleActive marks a purchasable, sellable medicine.
	LifecycleActive Lifecycle = "ACTIVE"
	// LifecycleArchived marks a soft-deleted medicine.
	LifecycleArchived Lifecycle = "ARCHIVED"
)

// Medicine is a catalog entry. A medicine is identified commercially by
// the triple (name, salt, manufacturer); the first purchase of an unseen
// triple creates the row.
type Medicine struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Salt          string     `json:"salt"`
	Manufacturer  string     `json:"manufacturer"`
	Category      string     `json:"category"`
	MinStock      int64      `json:"min_stock"`
	MaxStock      int64      `json:"max_stock"`
	ReorderLevel  int64      `json:"reorder_level"`
	DefaultMargin *float64   `json:"default_margin,omitempty"`
	State         Lifecycle  `json:"state"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

var (
	// ErrNotFound indicates a missing medicine.
	ErrNotFound = errors.New("catalog: medicine not found")
	// ErrArchived indicates an operation against an archived medicine.
	ErrArchived = errors.New("catalog: medicine is archived")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("catalog: invalid input")
)
