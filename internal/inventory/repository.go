package inventory

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read access to batch data outside any transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetBatch returns a batch by id.
func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	return scanBatch(r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id=$1`, id))
}

// ListByMedicine returns all batches of a medicine ordered by expiry, the
// earliest first, so the UI can suggest first-expiry-first-out picking.
func (r *Repository) ListByMedicine(ctx context.Context, medicineID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE medicine_id=$1 ORDER BY expiry ASC, id ASC`,
		medicineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

// ExpiringWithin lists stocked batches expiring inside the window.
func (r *Repository) ExpiringWithin(ctx context.Context, days int) ([]ExpiringBatch, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := r.pool.Query(ctx,
		`SELECT b.id, b.medicine_id, b.batch_no, b.expiry, b.stock, b.purchase_rate, b.mrp, b.selling_rate, b.margin, b.gst_rate, b.created_at, b.updated_at,
       m.name, GREATEST(0, (b.expiry - CURRENT_DATE))::int
FROM batches b JOIN medicines m ON m.id = b.medicine_id
WHERE b.stock > 0 AND b.expiry <= CURRENT_DATE + ($1 * INTERVAL '1 day')
ORDER BY b.expiry ASC`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExpiringBatch
	for rows.Next() {
		var e ExpiringBatch
		if err := rows.Scan(&e.ID, &e.MedicineID, &e.BatchNo, &e.Expiry, &e.Stock,
			&e.PurchaseRate, &e.MRP, &e.SellingRate, &e.Margin, &e.GSTRate,
			&e.CreatedAt, &e.UpdatedAt, &e.MedicineName, &e.DaysLeft); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LowStock lists active medicines whose summed batch stock has fallen to
// or below their reorder level.
func (r *Repository) LowStock(ctx context.Context) ([]LowStockRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.name, COALESCE(SUM(b.stock), 0), m.reorder_level
FROM medicines m LEFT JOIN batches b ON b.medicine_id = m.id
WHERE m.state = 'ACTIVE'
GROUP BY m.id, m.name, m.reorder_level
HAVING COALESCE(SUM(b.stock), 0) <= m.reorder_level
ORDER BY m.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LowStockRow
	for rows.Next() {
		var row LowStockRow
		if err := rows.Scan(&row.MedicineID, &row.MedicineName, &row.TotalStock, &row.ReorderLevel); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func collectBatches(rows pgx.Rows) ([]Batch, error) {
	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.MedicineID, &b.BatchNo, &b.Expiry, &b.Stock,
			&b.PurchaseRate, &b.MRP, &b.SellingRate, &b.Margin, &b.GSTRate,
			&b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
