package customers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/rxstock/rxstock/internal/platform/db"
)

// Repository provides pool-scoped customer persistence.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a Repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

const customerColumns = `id, name, phone, email, address, outstanding, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address,
		&c.Outstanding, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

// Get returns one customer.
func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(r.q.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
}

// List returns customers matching an optional name/phone search.
func (r *Repository) List(ctx context.Context, search string, limit, offset int) ([]Customer, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.q.Query(ctx,
		`SELECT `+customerColumns+` FROM customers
WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR phone ILIKE '%'||$1||'%')
ORDER BY name ASC LIMIT $2 OFFSET $3`, search, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a customer and returns its id.
func (r *Repository) Create(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx,
		`INSERT INTO customers (name, phone, email, address, outstanding, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,NOW(),NOW()) RETURNING id`,
		c.Name, c.Phone, c.Email, c.Address).Scan(&id)
	return id, err
}

// Update rewrites contact fields. The outstanding balance is owned by the
// sales engine and cannot be edited here.
func (r *Repository) Update(ctx context.Context, c Customer) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE customers SET name=$2, phone=$3, email=$4, address=$5, updated_at=NOW() WHERE id=$1`,
		c.ID, c.Name, c.Phone, c.Email, c.Address)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
