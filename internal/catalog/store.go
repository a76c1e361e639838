package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/rxstock/rxstock/internal/platform/db"
)

// Store exposes the catalog operations the purchase intake pipeline runs
// inside its own transaction: resolving a medicine by identity, creating
// one on first purchase, and updating the stored default margin.
type Store struct {
	q db.Querier
}

// NewStore wraps a pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

const medicineColumns = `id, name, salt, manufacturer, category, min_stock, max_stock, reorder_level, default_margin, state, archived_at, created_at, updated_at`

func scanMedicine(row pgx.Row) (Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.Salt, &m.Manufacturer, &m.Category,
		&m.MinStock, &m.MaxStock, &m.ReorderLevel, &m.DefaultMargin,
		&m.State, &m.ArchivedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Medicine{}, ErrNotFound
		}
		return Medicine{}, err
	}
	return m, nil
}

// FindByIdentity resolves a medicine by exact (name, salt, manufacturer)
// match, case-insensitively on each component.
func (s *Store) FindByIdentity(ctx context.Context, name, salt, manufacturer string) (Medicine, error) {
	return scanMedicine(s.q.QueryRow(ctx,
		`SELECT `+medicineColumns+` FROM medicines
WHERE LOWER(name)=LOWER($1) AND LOWER(salt)=LOWER($2) AND LOWER(manufacturer)=LOWER($3)`,
		strings.TrimSpace(name), strings.TrimSpace(salt), strings.TrimSpace(manufacturer)))
}

// Insert creates a medicine row and returns its id.
func (s *Store) Insert(ctx context.Context, m Medicine) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx,
		`INSERT INTO medicines (name, salt, manufacturer, category, min_stock, max_stock, reorder_level, default_margin, state, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW()) RETURNING id`,
		m.Name, m.Salt, m.Manufacturer, m.Category, m.MinStock, m.MaxStock,
		m.ReorderLevel, m.DefaultMargin, LifecycleActive).Scan(&id)
	return id, err
}

// SetDefaultMargin overwrites the stored default margin.
func (s *Store) SetDefaultMargin(ctx context.Context, id int64, margin float64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE medicines SET default_margin=$2, updated_at=NOW() WHERE id=$1`, id, margin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
