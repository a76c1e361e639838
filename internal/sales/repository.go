package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxstock/rxstock/internal/customers"
	"github.com/rxstock/rxstock/internal/inventory"
	"github.com/rxstock/rxstock/internal/payments"
	"github.com/rxstock/rxstock/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for sales.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx      pgx.Tx
	batches *inventory.Store
	buyers  *customers.Store
}

// WithTx wraps the callback in a repeatable-read transaction with the
// batch and customer stores rebound to it. A unit aborted by a
// serialization failure is re-run once.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.Retry(ctx, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
		if err != nil {
			return err
		}
		wrapper := &txRepo{
			tx:      tx,
			batches: inventory.NewStore(tx),
			buyers:  customers.NewStore(tx),
		}
		if err := fn(ctx, wrapper); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		return tx.Commit(ctx)
	})
}

const invoiceColumns = `id, invoice_no, customer_id, sale_date, subtotal, tax_amount, total_amount, amount_paid, amount_due, payment_status, payment_mode, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (SaleInvoice, error) {
	var inv SaleInvoice
	err := row.Scan(&inv.ID, &inv.InvoiceNo, &inv.CustomerID, &inv.SaleDate,
		&inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount, &inv.AmountPaid,
		&inv.AmountDue, &inv.PaymentStatus, &inv.PaymentMode, &inv.CreatedBy,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SaleInvoice{}, ErrNotFound
		}
		return SaleInvoice{}, err
	}
	return inv, nil
}

// GetInvoice returns an invoice header with its lines.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (SaleInvoice, []SaleLine, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM sale_invoices WHERE id=$1`, id))
	if err != nil {
		return SaleInvoice{}, nil, err
	}
	lines, err := queryLines(ctx, r.pool, id)
	if err != nil {
		return SaleInvoice{}, nil, err
	}
	return inv, lines, nil
}

// ListInvoices returns recent invoices, newest first.
func (r *Repository) ListInvoices(ctx context.Context, limit, offset int) ([]SaleInvoice, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM sale_invoices ORDER BY sale_date DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaleInvoice
	for rows.Next() {
		var inv SaleInvoice
		if err := rows.Scan(&inv.ID, &inv.InvoiceNo, &inv.CustomerID, &inv.SaleDate,
			&inv.Subtotal, &inv.TaxAmount, &inv.TotalAmount, &inv.AmountPaid,
			&inv.AmountDue, &inv.PaymentStatus, &inv.PaymentMode, &inv.CreatedBy,
			&inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// NextInvoiceNumber increments the dedicated counter row atomically.
// UPDATE takes the row lock, so two concurrent sales serialize here and
// can never observe the same value. The unique index on invoice_no stays
// as a backstop.
func (t *txRepo) NextInvoiceNumber(ctx context.Context) (string, error) {
	var n int64
	err := t.tx.QueryRow(ctx,
		`UPDATE counters SET value = value + 1 WHERE name='sale_invoice' RETURNING value`).Scan(&n)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errors.New("sales: invoice counter row missing")
		}
		return "", err
	}
	return fmt.Sprintf("INV-%04d", n), nil
}

// --- batch and customer operations delegate to the tx-bound stores ---

func (t *txRepo) GetBatchByIDForUpdate(ctx context.Context, id int64) (inventory.Batch, error) {
	return t.batches.GetByIDForUpdate(ctx, id)
}

func (t *txRepo) GetBatchByLabelForUpdate(ctx context.Context, medicineName, batchNo string) (inventory.Batch, error) {
	return t.batches.GetByLabelForUpdate(ctx, medicineName, batchNo)
}

func (t *txRepo) SetBatchStock(ctx context.Context, batchID int64, stock int64) error {
	return t.batches.SetStock(ctx, batchID, stock)
}

func (t *txRepo) MedicineName(ctx context.Context, medicineID int64) (string, error) {
	var name string
	err := t.tx.QueryRow(ctx, `SELECT name FROM medicines WHERE id=$1`, medicineID).Scan(&name)
	return name, err
}

func (t *txRepo) GetCustomerForUpdate(ctx context.Context, id int64) (customers.Customer, error) {
	return t.buyers.GetForUpdate(ctx, id)
}

func (t *txRepo) AdjustOutstanding(ctx context.Context, customerID int64, delta float64) error {
	return t.buyers.AdjustOutstanding(ctx, customerID, delta)
}

// --- invoice persistence ---

func (t *txRepo) InsertInvoice(ctx context.Context, inv SaleInvoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO sale_invoices (invoice_no, customer_id, sale_date, subtotal, tax_amount, total_amount, amount_paid, amount_due, payment_status, payment_mode, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW(),NOW()) RETURNING id`,
		inv.InvoiceNo, inv.CustomerID, inv.SaleDate, inv.Subtotal, inv.TaxAmount,
		inv.TotalAmount, inv.AmountPaid, inv.AmountDue, inv.PaymentStatus,
		inv.PaymentMode, inv.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertLine(ctx context.Context, line SaleLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO sale_lines (invoice_id, medicine_id, batch_id, medicine_name, batch_no, quantity, rate, gst_rate, amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		line.InvoiceID, line.MedicineID, line.BatchID, line.MedicineName,
		line.BatchNo, line.Quantity, line.Rate, line.GSTRate, line.Amount).Scan(&id)
	return id, err
}

func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (SaleInvoice, error) {
	return scanInvoice(t.tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM sale_invoices WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) GetLines(ctx context.Context, invoiceID int64) ([]SaleLine, error) {
	return queryLines(ctx, t.tx, invoiceID)
}

func (t *txRepo) UpdateInvoicePayment(ctx context.Context, id int64, paid, due float64, status payments.Status) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE sale_invoices SET amount_paid=$2, amount_due=$3, payment_status=$4, updated_at=NOW() WHERE id=$1`,
		id, paid, due, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteInvoice(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM sale_lines WHERE invoice_id=$1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM sale_invoices WHERE id=$1`, id)
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
}, invoiceID int64) ([]SaleLine, error) {
	rows, err := q.Query(ctx,
		`SELECT id, invoice_id, medicine_id, batch_id, medicine_name, batch_no, quantity, rate, gst_rate, amount
FROM sale_lines WHERE invoice_id=$1 ORDER BY id ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SaleLine
	for rows.Next() {
		var line SaleLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.MedicineID, &line.BatchID,
			&line.MedicineName, &line.BatchNo, &line.Quantity, &line.Rate,
			&line.GSTRate, &line.Amount); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}
