// Package settings stores the single pharmacy profile row: identity
// printed on invoices plus operational defaults for alerts.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rxstock/rxstock/internal/platform/db"
)

// Settings is the pharmacy profile. Exactly one row exists; Save upserts it.
type Settings struct {
	PharmacyName    string  `json:"pharmacy_name"`
	Address         string  `json:"address,omitempty"`
	Phone           string  `json:"phone,omitempty"`
	GSTIN           string  `json:"gstin,omitempty"`
	DefaultMargin   float64 `json:"default_margin"`
	ExpiryAlertDays int     `json:"expiry_alert_days"`
}

// ErrValidation indicates invalid input.
var ErrValidation = errors.New("settings: invalid input")

// Repository persists the profile row.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a Repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Get returns the profile, or defaults when none has been saved yet.
func (r *Repository) Get(ctx context.Context) (Settings, error) {
	var s Settings
	err := r.q.QueryRow(ctx,
		`SELECT pharmacy_name, address, phone, gstin, default_margin, expiry_alert_days
FROM settings WHERE id=1`).
		Scan(&s.PharmacyName, &s.Address, &s.Phone, &s.GSTIN, &s.DefaultMargin, &s.ExpiryAlertDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{DefaultMargin: 20, ExpiryAlertDays: 30}, nil
	}
	return s, err
}

// Save upserts the profile row.
func (r *Repository) Save(ctx context.Context, s Settings) error {
	if s.PharmacyName == "" {
		return fmt.Errorf("%w: pharmacy_name is required", ErrValidation)
	}
	if s.DefaultMargin <= 0 {
		return fmt.Errorf("%w: default_margin must be positive", ErrValidation)
	}
	if s.ExpiryAlertDays <= 0 {
		s.ExpiryAlertDays = 30
	}
	_, err := r.q.Exec(ctx,
		`INSERT INTO settings (id, pharmacy_name, address, phone, gstin, default_margin, expiry_alert_days, updated_at)
VALUES (1,$1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (id) DO UPDATE SET pharmacy_name=$1, address=$2, phone=$3, gstin=$4, default_margin=$5, expiry_alert_days=$6, updated_at=NOW()`,
		s.PharmacyName, s.Address, s.Phone, s.GSTIN, s.DefaultMargin, s.ExpiryAlertDays)
	return err
}
