package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/rxstock/rxstock/internal/platform/db"
)

// Store exposes the balance mutations the sales engine runs inside its
// transaction.
type Store struct {
	q db.Querier
}

// NewStore wraps a pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// GetForUpdate locks and returns a customer row.
func (s *Store) GetForUpdate(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := s.q.QueryRow(ctx,
		`SELECT id, name, phone, email, address, outstanding, created_at, updated_at
FROM customers WHERE id=$1 FOR UPDATE`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Outstanding, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

// AdjustOutstanding moves the running balance by delta. Callers hold the
// row lock from GetForUpdate.
func (s *Store) AdjustOutstanding(ctx context.Context, id int64, delta float64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE customers SET outstanding = ROUND((outstanding + $2)::numeric, 2), updated_at=NOW() WHERE id=$1`,
		id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
