package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/rxstock/rxstock/internal/platform/db"
)

// Store exposes batch mutations scoped to a Querier, so purchase and sale
// flows can run them under their own transaction. Every read that precedes
// a stock mutation takes a row lock: concurrent mutations of the same batch
// are linearized by the database.
type Store struct {
	q db.Querier
}

// NewStore wraps a pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

const batchColumns = `id, medicine_id, batch_no, expiry, stock, purchase_rate, mrp, selling_rate, margin, gst_rate, created_at, updated_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.MedicineID, &b.BatchNo, &b.Expiry, &b.Stock,
		&b.PurchaseRate, &b.MRP, &b.SellingRate, &b.Margin, &b.GSTRate,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrBatchNotFound
		}
		return Batch{}, err
	}
	return b, nil
}

// GetForUpdate locks and returns the batch identified by (medicine, label).
func (s *Store) GetForUpdate(ctx context.Context, medicineID int64, batchNo string) (Batch, error) {
	return scanBatch(s.q.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE medicine_id=$1 AND batch_no=$2 FOR UPDATE`,
		medicineID, batchNo))
}

// GetByIDForUpdate locks and returns the batch row by primary key.
func (s *Store) GetByIDForUpdate(ctx context.Context, id int64) (Batch, error) {
	return scanBatch(s.q.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id=$1 FOR UPDATE`, id))
}

// GetByLabelForUpdate locks a batch matched by medicine name and label.
// Fallback for sale rows created before batch ids were stored on lines.
func (s *Store) GetByLabelForUpdate(ctx context.Context, medicineName, batchNo string) (Batch, error) {
	return scanBatch(s.q.QueryRow(ctx,
		`SELECT b.id, b.medicine_id, b.batch_no, b.expiry, b.stock, b.purchase_rate, b.mrp, b.selling_rate, b.margin, b.gst_rate, b.created_at, b.updated_at
FROM batches b JOIN medicines m ON m.id = b.medicine_id
WHERE m.name=$1 AND b.batch_no=$2 FOR UPDATE OF b`, medicineName, batchNo))
}

// Insert creates a batch and returns its id.
func (s *Store) Insert(ctx context.Context, b Batch) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx,
		`INSERT INTO batches (medicine_id, batch_no, expiry, stock, purchase_rate, mrp, selling_rate, margin, gst_rate, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW()) RETURNING id`,
		b.MedicineID, b.BatchNo, b.Expiry, b.Stock, b.PurchaseRate, b.MRP,
		b.SellingRate, b.Margin, b.GSTRate).Scan(&id)
	return id, err
}

// MergeRestock adds quantity to a locked batch and overwrites its pricing
// and expiry with the newest purchase's values.
func (s *Store) MergeRestock(ctx context.Context, id int64, qty int64, p Pricing) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE batches SET stock = stock + $2, purchase_rate=$3, mrp=$4, selling_rate=$5, margin=$6, gst_rate=$7, expiry=$8, updated_at=NOW()
WHERE id=$1`,
		id, qty, p.PurchaseRate, p.MRP, p.SellingRate, p.Margin, p.GSTRate, p.Expiry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

// SetPricing rewrites pricing and expiry without touching stock. Purchase
// reversal uses it to restore the snapshot a merge-restock overwrote.
func (s *Store) SetPricing(ctx context.Context, id int64, p Pricing) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE batches SET purchase_rate=$2, mrp=$3, selling_rate=$4, margin=$5, gst_rate=$6, expiry=$7, updated_at=NOW()
WHERE id=$1`,
		id, p.PurchaseRate, p.MRP, p.SellingRate, p.Margin, p.GSTRate, p.Expiry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

// SetStock rewrites the stock counter of a locked batch. Callers must have
// verified the new value is non-negative; the CHECK constraint backstops.
func (s *Store) SetStock(ctx context.Context, id int64, stock int64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE batches SET stock=$2, updated_at=NOW() WHERE id=$1`, id, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}

// Delete removes a batch row. Used only by purchase reversal when the
// reversal brings stock to exactly zero.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM batches WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotFound
	}
	return nil
}
