// Package migrations creates the database schema on startup. Statements
// are idempotent; running them against an existing schema is a no-op.
package migrations

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Run applies the schema.
func Run(ctx context.Context, pool *pgxpool.Pool) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL DEFAULT '',
            password_hash TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS settings (
            id SMALLINT PRIMARY KEY CHECK (id = 1),
            pharmacy_name TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            gstin TEXT NOT NULL DEFAULT '',
            default_margin DOUBLE PRECISION NOT NULL DEFAULT 20,
            expiry_alert_days INTEGER NOT NULL DEFAULT 30,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS suppliers (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            phone TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            gstin TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS customers (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            phone TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            outstanding DOUBLE PRECISION NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS medicines (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            salt TEXT NOT NULL DEFAULT '',
            manufacturer TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            min_stock BIGINT NOT NULL DEFAULT 0,
            max_stock BIGINT NOT NULL DEFAULT 0,
            reorder_level BIGINT NOT NULL DEFAULT 0,
            default_margin DOUBLE PRECISION,
            state TEXT NOT NULL DEFAULT 'ACTIVE',
            archived_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS medicines_identity_idx
            ON medicines (LOWER(name), LOWER(salt), LOWER(manufacturer))`,
		`CREATE TABLE IF NOT EXISTS batches (
            id BIGSERIAL PRIMARY KEY,
            medicine_id BIGINT NOT NULL REFERENCES medicines(id),
            batch_no TEXT NOT NULL,
            expiry DATE NOT NULL,
            stock BIGINT NOT NULL CHECK (stock >= 0),
            purchase_rate DOUBLE PRECISION NOT NULL,
            mrp DOUBLE PRECISION NOT NULL,
            selling_rate DOUBLE PRECISION NOT NULL,
            margin DOUBLE PRECISION NOT NULL,
            gst_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (medicine_id, batch_no)
        )`,
		`CREATE TABLE IF NOT EXISTS purchase_orders (
            id BIGSERIAL PRIMARY KEY,
            supplier_id BIGINT NOT NULL REFERENCES suppliers(id),
            invoice_no TEXT NOT NULL,
            purchase_date TIMESTAMPTZ NOT NULL,
            total_amount DOUBLE PRECISION NOT NULL,
            amount_paid DOUBLE PRECISION NOT NULL DEFAULT 0,
            amount_due DOUBLE PRECISION NOT NULL DEFAULT 0,
            payment_status TEXT NOT NULL,
            status TEXT NOT NULL,
            created_by BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS purchase_lines (
            id BIGSERIAL PRIMARY KEY,
            order_id BIGINT NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
            medicine_id BIGINT NOT NULL REFERENCES medicines(id),
            batch_id BIGINT NOT NULL,
            quantity BIGINT NOT NULL,
            free_quantity BIGINT NOT NULL DEFAULT 0,
            rate DOUBLE PRECISION NOT NULL,
            mrp DOUBLE PRECISION NOT NULL,
            gst_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
            margin DOUBLE PRECISION NOT NULL,
            amount DOUBLE PRECISION NOT NULL,
            hsn_code TEXT NOT NULL DEFAULT '',
            batch_created BOOLEAN NOT NULL DEFAULT FALSE,
            prev_purchase_rate DOUBLE PRECISION,
            prev_mrp DOUBLE PRECISION,
            prev_selling_rate DOUBLE PRECISION,
            prev_margin DOUBLE PRECISION,
            prev_gst_rate DOUBLE PRECISION,
            prev_expiry DATE
        )`,
		`CREATE TABLE IF NOT EXISTS supplier_payments (
            id BIGSERIAL PRIMARY KEY,
            order_id BIGINT NOT NULL REFERENCES purchase_orders(id) ON DELETE CASCADE,
            amount DOUBLE PRECISION NOT NULL CHECK (amount > 0),
            paid_on TIMESTAMPTZ NOT NULL,
            mode TEXT NOT NULL DEFAULT '',
            reference TEXT NOT NULL DEFAULT '',
            notes TEXT NOT NULL DEFAULT '',
            recorded_by BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS sale_invoices (
            id BIGSERIAL PRIMARY KEY,
            invoice_no TEXT NOT NULL UNIQUE,
            customer_id BIGINT REFERENCES customers(id),
            sale_date TIMESTAMPTZ NOT NULL,
            subtotal DOUBLE PRECISION NOT NULL,
            tax_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
            total_amount DOUBLE PRECISION NOT NULL,
            amount_paid DOUBLE PRECISION NOT NULL DEFAULT 0,
            amount_due DOUBLE PRECISION NOT NULL DEFAULT 0,
            payment_status TEXT NOT NULL,
            payment_mode TEXT NOT NULL DEFAULT '',
            created_by BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS sale_lines (
            id BIGSERIAL PRIMARY KEY,
            invoice_id BIGINT NOT NULL REFERENCES sale_invoices(id) ON DELETE CASCADE,
            medicine_id BIGINT NOT NULL,
            batch_id BIGINT NOT NULL DEFAULT 0,
            medicine_name TEXT NOT NULL,
            batch_no TEXT NOT NULL,
            quantity BIGINT NOT NULL,
            rate DOUBLE PRECISION NOT NULL,
            gst_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
            amount DOUBLE PRECISION NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS counters (
            name TEXT PRIMARY KEY,
            value BIGINT NOT NULL
        )`,
		`INSERT INTO counters (name, value) VALUES ('sale_invoice', 0)
            ON CONFLICT (name) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
            id BIGSERIAL PRIMARY KEY,
            actor_id BIGINT NOT NULL DEFAULT 0,
            action TEXT NOT NULL,
            entity TEXT NOT NULL,
            entity_id TEXT NOT NULL DEFAULT '',
            meta JSONB,
            at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS audit_logs_entity_idx ON audit_logs (entity, at DESC)`,
		`CREATE INDEX IF NOT EXISTS batches_expiry_idx ON batches (expiry)`,
	}

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
