package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxstock/rxstock/internal/catalog"
	"github.com/rxstock/rxstock/internal/inventory"
	"github.com/rxstock/rxstock/internal/payments"
	"github.com/rxstock/rxstock/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for purchases.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx        pgx.Tx
	batches   *inventory.Store
	medicines *catalog.Store
}

// WithTx wraps the callback in a repeatable-read transaction. The batch
// and catalog stores are rebound to the same transaction so medicine
// resolution, batch mutation and order persistence commit or roll back
// together. A unit aborted by a serialization failure is re-run once.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.Retry(ctx, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
		if err != nil {
			return err
		}
		wrapper := &txRepo{
			tx:        tx,
			batches:   inventory.NewStore(tx),
			medicines: catalog.NewStore(tx),
		}
		if err := fn(ctx, wrapper); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		return tx.Commit(ctx)
	})
}

const orderColumns = `id, supplier_id, invoice_no, purchase_date, total_amount, amount_paid, amount_due, payment_status, status, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.SupplierID, &po.InvoiceNo, &po.PurchaseDate,
		&po.TotalAmount, &po.AmountPaid, &po.AmountDue, &po.PaymentStatus,
		&po.Status, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

// GetOrder returns an order header with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, []PurchaseLine, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	lines, err := queryLines(ctx, r.pool, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return po, lines, nil
}

// ListOrders returns recent orders, newest first.
func (r *Repository) ListOrders(ctx context.Context, limit, offset int) ([]PurchaseOrder, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders ORDER BY purchase_date DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := rows.Scan(&po.ID, &po.SupplierID, &po.InvoiceNo, &po.PurchaseDate,
			&po.TotalAmount, &po.AmountPaid, &po.AmountDue, &po.PaymentStatus,
			&po.Status, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

// ListPayments returns the payment ledger of an order, oldest first.
func (r *Repository) ListPayments(ctx context.Context, orderID int64) ([]SupplierPayment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, amount, paid_on, mode, reference, notes, recorded_by, created_at
FROM supplier_payments WHERE order_id=$1 ORDER BY paid_on ASC, id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SupplierPayment
	for rows.Next() {
		var p SupplierPayment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.PaidOn, &p.Mode,
			&p.Reference, &p.Notes, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- catalog and batch operations delegate to the tx-bound stores ---

func (t *txRepo) FindMedicine(ctx context.Context, name, salt, manufacturer string) (catalog.Medicine, error) {
	return t.medicines.FindByIdentity(ctx, name, salt, manufacturer)
}

func (t *txRepo) CreateMedicine(ctx context.Context, m catalog.Medicine) (int64, error) {
	return t.medicines.Insert(ctx, m)
}

func (t *txRepo) SetDefaultMargin(ctx context.Context, medicineID int64, margin float64) error {
	return t.medicines.SetDefaultMargin(ctx, medicineID, margin)
}

func (t *txRepo) GetBatchForUpdate(ctx context.Context, medicineID int64, batchNo string) (inventory.Batch, error) {
	return t.batches.GetForUpdate(ctx, medicineID, batchNo)
}

func (t *txRepo) GetBatchByIDForUpdate(ctx context.Context, id int64) (inventory.Batch, error) {
	return t.batches.GetByIDForUpdate(ctx, id)
}

func (t *txRepo) InsertBatch(ctx context.Context, b inventory.Batch) (int64, error) {
	return t.batches.Insert(ctx, b)
}

func (t *txRepo) MergeRestock(ctx context.Context, batchID int64, qty int64, p inventory.Pricing) error {
	return t.batches.MergeRestock(ctx, batchID, qty, p)
}

func (t *txRepo) SetBatchStock(ctx context.Context, batchID int64, stock int64) error {
	return t.batches.SetStock(ctx, batchID, stock)
}

func (t *txRepo) SetBatchPricing(ctx context.Context, batchID int64, p inventory.Pricing) error {
	return t.batches.SetPricing(ctx, batchID, p)
}

func (t *txRepo) DeleteBatch(ctx context.Context, batchID int64) error {
	return t.batches.Delete(ctx, batchID)
}

// --- order persistence ---

func (t *txRepo) InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO purchase_orders (supplier_id, invoice_no, purchase_date, total_amount, amount_paid, amount_due, payment_status, status, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW()) RETURNING id`,
		po.SupplierID, po.InvoiceNo, po.PurchaseDate, po.TotalAmount,
		po.AmountPaid, po.AmountDue, po.PaymentStatus, po.Status, po.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertLine(ctx context.Context, line PurchaseLine) (int64, error) {
	var prevRate, prevMRP, prevSelling, prevMargin, prevGST *float64
	var prevExpiry any
	if line.PrevPricing != nil {
		prevRate = &line.PrevPricing.PurchaseRate
		prevMRP = &line.PrevPricing.MRP
		prevSelling = &line.PrevPricing.SellingRate
		prevMargin = &line.PrevPricing.Margin
		prevGST = &line.PrevPricing.GSTRate
		prevExpiry = line.PrevPricing.Expiry
	}
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO purchase_lines (order_id, medicine_id, batch_id, quantity, free_quantity, rate, mrp, gst_rate, margin, amount, hsn_code, batch_created,
prev_purchase_rate, prev_mrp, prev_selling_rate, prev_margin, prev_gst_rate, prev_expiry)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18) RETURNING id`,
		line.OrderID, line.MedicineID, line.BatchID, line.Quantity, line.FreeQuantity,
		line.Rate, line.MRP, line.GSTRate, line.Margin, line.Amount, line.HSNCode,
		line.BatchCreated, prevRate, prevMRP, prevSelling, prevMargin, prevGST, prevExpiry).Scan(&id)
	return id, err
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return scanOrder(t.tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) GetLines(ctx context.Context, orderID int64) ([]PurchaseLine, error) {
	return queryLines(ctx, t.tx, orderID)
}

func (t *txRepo) DeleteOrder(ctx context.Context, id int64) error {
	// Lines and payments cascade via foreign keys; delete them explicitly
	// anyway so the intent is visible in the statement log.
	if _, err := t.tx.Exec(ctx, `DELETE FROM supplier_payments WHERE order_id=$1`, id); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM purchase_lines WHERE order_id=$1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertPayment(ctx context.Context, p SupplierPayment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO supplier_payments (order_id, amount, paid_on, mode, reference, notes, recorded_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		p.OrderID, p.Amount, p.PaidOn, p.Mode, p.Reference, p.Notes, p.RecordedBy).Scan(&id)
	return id, err
}

func (t *txRepo) SumPayments(ctx context.Context, orderID int64) (float64, error) {
	var sum float64
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM supplier_payments WHERE order_id=$1`, orderID).Scan(&sum)
	return sum, err
}

func (t *txRepo) UpdateOrderPayment(ctx context.Context, id int64, paid, due float64, status payments.Status) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE purchase_orders SET amount_paid=$2, amount_due=$3, payment_status=$4, updated_at=NOW() WHERE id=$1`,
		id, paid, due, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE purchase_orders SET status=$2, updated_at=NOW() WHERE id=$1`,
		id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func queryLines(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, orderID int64) ([]PurchaseLine, error) {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, medicine_id, batch_id, quantity, free_quantity, rate, mrp, gst_rate, margin, amount, hsn_code, batch_created,
prev_purchase_rate, prev_mrp, prev_selling_rate, prev_margin, prev_gst_rate, prev_expiry
FROM purchase_lines WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PurchaseLine
	for rows.Next() {
		var line PurchaseLine
		var prevRate, prevMRP, prevSelling, prevMargin, prevGST *float64
		var prevExpiry *time.Time
		if err := rows.Scan(&line.ID, &line.OrderID, &line.MedicineID, &line.BatchID,
			&line.Quantity, &line.FreeQuantity, &line.Rate, &line.MRP, &line.GSTRate,
			&line.Margin, &line.Amount, &line.HSNCode, &line.BatchCreated,
			&prevRate, &prevMRP, &prevSelling, &prevMargin, &prevGST, &prevExpiry); err != nil {
			return nil, err
		}
		if prevRate != nil {
			line.PrevPricing = &Snapshot{
				PurchaseRate: *prevRate,
				MRP:          deref(prevMRP),
				SellingRate:  deref(prevSelling),
				Margin:       deref(prevMargin),
				GSTRate:      deref(prevGST),
			}
			if prevExpiry != nil {
				line.PrevPricing.Expiry = *prevExpiry
			}
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
