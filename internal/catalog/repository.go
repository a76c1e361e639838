package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns a medicine by id.
func (r *Repository) Get(ctx context.Context, id int64) (Medicine, error) {
	return scanMedicine(r.pool.QueryRow(ctx,
		`SELECT `+medicineColumns+` FROM medicines WHERE id=$1`, id))
}

// List returns medicines filtered by lifecycle state and an optional
// case-insensitive name search.
func (r *Repository) List(ctx context.Context, state Lifecycle, search string, limit, offset int) ([]Medicine, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+medicineColumns+` FROM medicines
WHERE state=$1 AND ($2 = '' OR name ILIKE '%' || $2 || '%')
ORDER BY name ASC LIMIT $3 OFFSET $4`, state, search, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Medicine
	for rows.Next() {
		var m Medicine
		if err := rows.Scan(&m.ID, &m.Name, &m.Salt, &m.Manufacturer, &m.Category,
			&m.MinStock, &m.MaxStock, &m.ReorderLevel, &m.DefaultMargin,
			&m.State, &m.ArchivedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Create inserts a medicine via the shared store.
func (r *Repository) Create(ctx context.Context, m Medicine) (Medicine, error) {
	id, err := NewStore(r.pool).Insert(ctx, m)
	if err != nil {
		return Medicine{}, err
	}
	return r.Get(ctx, id)
}

// Update rewrites the editable catalog fields.
func (r *Repository) Update(ctx context.Context, id int64, m Medicine) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE medicines SET name=$2, salt=$3, manufacturer=$4, category=$5,
min_stock=$6, max_stock=$7, reorder_level=$8, default_margin=$9, updated_at=NOW()
WHERE id=$1`,
		id, m.Name, m.Salt, m.Manufacturer, m.Category,
		m.MinStock, m.MaxStock, m.ReorderLevel, m.DefaultMargin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Archive moves a medicine to the archived state.
func (r *Repository) Archive(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE medicines SET state=$2, archived_at=NOW(), updated_at=NOW() WHERE id=$1 AND state=$3`,
		id, LifecycleArchived, LifecycleActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Restore re-activates an archived medicine.
func (r *Repository) Restore(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE medicines SET state=$2, archived_at=NULL, updated_at=NOW() WHERE id=$1 AND state=$3`,
		id, LifecycleActive, LifecycleArchived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
