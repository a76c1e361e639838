package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/rxstock/rxstock/internal/platform/db"
)

// Repository provides user persistence.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a Repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.q.QueryRow(ctx,
		`SELECT id, email, name, password_hash, is_active, created_at, updated_at
FROM users WHERE LOWER(email)=LOWER($1)`, strings.TrimSpace(email)).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	return u, err
}
