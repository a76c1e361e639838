package suppliers

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/rxstock/rxstock/internal/platform/db"
)

// Repository provides supplier persistence.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a Repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

const supplierColumns = `id, name, phone, email, address, gstin, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.Phone, &s.Email, &s.Address,
		&s.GSTIN, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

// Get returns one supplier.
func (r *Repository) Get(ctx context.Context, id int64) (Supplier, error) {
	return scanSupplier(r.q.QueryRow(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE id=$1`, id))
}

// List returns suppliers matching an optional name search.
func (r *Repository) List(ctx context.Context, search string, limit, offset int) ([]Supplier, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.q.Query(ctx,
		`SELECT `+supplierColumns+` FROM suppliers
WHERE ($1 = '' OR name ILIKE '%'||$1||'%')
ORDER BY name ASC LIMIT $2 OFFSET $3`, search, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a supplier and returns its id.
func (r *Repository) Create(ctx context.Context, s Supplier) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx,
		`INSERT INTO suppliers (name, phone, email, address, gstin, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id`,
		s.Name, s.Phone, s.Email, s.Address, s.GSTIN).Scan(&id)
	return id, err
}

// Update rewrites supplier fields.
func (r *Repository) Update(ctx context.Context, s Supplier) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE suppliers SET name=$2, phone=$3, email=$4, address=$5, gstin=$6, updated_at=NOW() WHERE id=$1`,
		s.ID, s.Name, s.Phone, s.Email, s.Address, s.GSTIN)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
