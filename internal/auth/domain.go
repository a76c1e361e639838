// Package auth implements credential checks and Redis backed sessions for
// the back-office API.
package auth

import (
	"errors"
	"time"
)

// User is an authenticated staff account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	// ErrInvalidCredentials covers unknown email, wrong password and
	// deactivated accounts alike, so responses never leak which one failed.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrNoSession indicates a missing or expired session token.
	ErrNoSession = errors.New("auth: no active session")
)
