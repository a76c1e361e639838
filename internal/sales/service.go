package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rxstock/rxstock/internal/customers"
	"github.com/rxstock/rxstock/internal/inventory"
	"github.com/rxstock/rxstock/internal/payments"
	"github.com/rxstock/rxstock/internal/pricing"
	"github.com/rxstock/rxstock/internal/shared"
)

// TxRepository exposes every operation the fulfillment, payment and
// reversal flows run inside one transaction.
type TxRepository interface {
	NextInvoiceNumber(ctx context.Context) (string, error)

	GetBatchByIDForUpdate(ctx context.Context, id int64) (inventory.Batch, error)
	GetBatchByLabelForUpdate(ctx context.Context, medicineName, batchNo string) (inventory.Batch, error)
	SetBatchStock(ctx context.Context, batchID int64, stock int64) error
	MedicineName(ctx context.Context, medicineID int64) (string, error)

	InsertInvoice(ctx context.Context, inv SaleInvoice) (int64, error)
	InsertLine(ctx context.Context, line SaleLine) (int64, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (SaleInvoice, error)
	GetLines(ctx context.Context, invoiceID int64) ([]SaleLine, error)
	UpdateInvoicePayment(ctx context.Context, id int64, paid, due float64, status payments.Status) error
	DeleteInvoice(ctx context.Context, id int64) error

	GetCustomerForUpdate(ctx context.Context, id int64) (customers.Customer, error)
	AdjustOutstanding(ctx context.Context, customerID int64, delta float64) error
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (SaleInvoice, []SaleLine, error)
	ListInvoices(ctx context.Context, limit, offset int) ([]SaleInvoice, error)
}

// AuditPort records audit entries after successful mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts completed engine transactions by kind and outcome.
type MetricsPort interface {
	CountTransaction(kind string, err error)
}

// Service drives the sale fulfillment engine.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a sales service. audit and metrics may be nil.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, logger: logger, now: time.Now}
}

func (s *Service) countTx(kind string, err error) {
	if s.metrics != nil {
		s.metrics.CountTransaction(kind, err)
	}
}

// CartLine references a batch and a quantity to sell. Rate zero means
// "charge the batch's current selling rate".
type CartLine struct {
	BatchID  int64   `json:"batch_id"`
	Quantity int64   `json:"quantity"`
	Rate     float64 `json:"rate,omitempty"`
}

// FulfillInput is a full point-of-sale request.
type FulfillInput struct {
	CustomerID  *int64
	Lines       []CartLine
	AmountPaid  float64
	PaymentMode string
	ActorID     int64
}

// Fulfill sells a cart in one atomic unit of work: invoice number from the
// counter row, per-line stock check and decrement under a row lock, header
// and lines persisted, payment status derived, customer outstanding moved
// by the due amount. A batch sold down to zero stays as a zero-stock row.
func (s *Service) Fulfill(ctx context.Context, input FulfillInput) (SaleInvoice, error) {
	if len(input.Lines) == 0 {
		return SaleInvoice{}, ErrNoItems
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return SaleInvoice{}, ErrInvalidQuantity
		}
		if line.BatchID <= 0 {
			return SaleInvoice{}, inventory.ErrBatchNotFound
		}
		if line.Rate < 0 {
			return SaleInvoice{}, ErrInvalidAmount
		}
	}
	if input.AmountPaid < 0 {
		return SaleInvoice{}, ErrInvalidPayment
	}

	var created SaleInvoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextInvoiceNumber(ctx)
		if err != nil {
			return err
		}

		var subtotal, tax float64
		var lines []SaleLine
		for _, cart := range input.Lines {
			batch, err := tx.GetBatchByIDForUpdate(ctx, cart.BatchID)
			if err != nil {
				return err
			}
			if batch.Stock < cart.Quantity {
				return &inventory.InsufficientStockError{
					BatchNo:   batch.BatchNo,
					Requested: cart.Quantity,
					Available: batch.Stock,
				}
			}
			if err := tx.SetBatchStock(ctx, batch.ID, batch.Stock-cart.Quantity); err != nil {
				return err
			}
			name, err := tx.MedicineName(ctx, batch.MedicineID)
			if err != nil {
				return err
			}
			rate := cart.Rate
			if rate == 0 {
				rate = batch.SellingRate
			}
			amount := pricing.Round2(float64(cart.Quantity) * rate)
			subtotal += amount
			tax += amount * batch.GSTRate / 100
			lines = append(lines, SaleLine{
				MedicineID:   batch.MedicineID,
				BatchID:      batch.ID,
				MedicineName: name,
				BatchNo:      batch.BatchNo,
				Quantity:     cart.Quantity,
				Rate:         rate,
				GSTRate:      batch.GSTRate,
				Amount:       amount,
			})
		}

		subtotal = pricing.Round2(subtotal)
		tax = pricing.Round2(tax)
		total := pricing.Round2(subtotal + tax)
		if total <= 0 {
			return ErrInvalidAmount
		}
		paid := pricing.Round2(input.AmountPaid)
		if paid > total {
			return ErrInvalidPayment
		}
		due, status := payments.Derive(total, paid)

		inv := SaleInvoice{
			InvoiceNo:     number,
			CustomerID:    input.CustomerID,
			SaleDate:      s.now(),
			Subtotal:      subtotal,
			TaxAmount:     tax,
			TotalAmount:   total,
			AmountPaid:    paid,
			AmountDue:     due,
			PaymentStatus: status,
			PaymentMode:   input.PaymentMode,
			CreatedBy:     input.ActorID,
		}
		invoiceID, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}
		for _, line := range lines {
			line.InvoiceID = invoiceID
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
		}

		if input.CustomerID != nil && due > 0 {
			if _, err := tx.GetCustomerForUpdate(ctx, *input.CustomerID); err != nil {
				return err
			}
			if err := tx.AdjustOutstanding(ctx, *input.CustomerID, due); err != nil {
				return err
			}
		}

		inv.ID = invoiceID
		created = inv
		return nil
	})
	s.countTx("sale_fulfill", err)
	if err != nil {
		return SaleInvoice{}, err
	}
	s.recordAudit(ctx, input.ActorID, "SALE_CREATE", created.ID, map[string]any{
		"invoice_no": created.InvoiceNo, "total": created.TotalAmount, "lines": len(input.Lines),
	})
	return created, nil
}

// UpdatePayment records the single post-sale top-up. The cumulative paid
// amount must stay within [0, total]; the customer's outstanding moves by
// the due delta.
func (s *Service) UpdatePayment(ctx context.Context, invoiceID int64, additional float64, actorID int64) (SaleInvoice, error) {
	if additional <= 0 {
		return SaleInvoice{}, ErrInvalidPayment
	}
	var updated SaleInvoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		paid := pricing.Round2(inv.AmountPaid + additional)
		if paid > inv.TotalAmount {
			return ErrInvalidPayment
		}
		due, status := payments.Derive(inv.TotalAmount, paid)
		if err := tx.UpdateInvoicePayment(ctx, invoiceID, paid, due, status); err != nil {
			return err
		}
		if inv.CustomerID != nil {
			delta := due - inv.AmountDue
			if delta != 0 {
				if _, err := tx.GetCustomerForUpdate(ctx, *inv.CustomerID); err != nil {
					return err
				}
				if err := tx.AdjustOutstanding(ctx, *inv.CustomerID, delta); err != nil {
					return err
				}
			}
		}
		inv.AmountPaid = paid
		inv.AmountDue = due
		inv.PaymentStatus = status
		updated = inv
		return nil
	})
	s.countTx("sale_payment", err)
	if err != nil {
		return SaleInvoice{}, err
	}
	s.recordAudit(ctx, actorID, "SALE_PAYMENT", invoiceID, map[string]any{
		"amount": additional, "status": string(updated.PaymentStatus),
	})
	return updated, nil
}

// Delete reverses a sale: every line's quantity returns to its batch and
// the customer's outstanding drops by the invoice's due amount. Restoring
// stock cannot go negative, so unlike purchase reversal there is no unsafe
// case.
func (s *Service) Delete(ctx context.Context, invoiceID int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		lines, err := tx.GetLines(ctx, invoiceID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			batch, err := s.lockLineBatch(ctx, tx, line)
			if err != nil {
				if errors.Is(err, inventory.ErrBatchNotFound) {
					// Batch removed by a purchase reversal; the stock this
					// line would restore no longer has a home.
					continue
				}
				return err
			}
			if err := tx.SetBatchStock(ctx, batch.ID, batch.Stock+line.Quantity); err != nil {
				return err
			}
		}
		if inv.CustomerID != nil && inv.AmountDue > 0 {
			if _, err := tx.GetCustomerForUpdate(ctx, *inv.CustomerID); err != nil {
				return err
			}
			if err := tx.AdjustOutstanding(ctx, *inv.CustomerID, -inv.AmountDue); err != nil {
				return err
			}
		}
		return tx.DeleteInvoice(ctx, invoiceID)
	})
	s.countTx("sale_reversal", err)
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "SALE_DELETE", invoiceID, nil)
	return nil
}

// lockLineBatch resolves a sale line to its batch. Lines written by this
// engine carry the batch id; rows imported from older data may only have
// the denormalized medicine name and batch label.
func (s *Service) lockLineBatch(ctx context.Context, tx TxRepository, line SaleLine) (inventory.Batch, error) {
	if line.BatchID > 0 {
		batch, err := tx.GetBatchByIDForUpdate(ctx, line.BatchID)
		if err == nil || !errors.Is(err, inventory.ErrBatchNotFound) {
			return batch, err
		}
	}
	return tx.GetBatchByLabelForUpdate(ctx, line.MedicineName, line.BatchNo)
}

// Get returns an invoice with its lines.
func (s *Service) Get(ctx context.Context, id int64) (SaleInvoice, []SaleLine, error) {
	return s.repo.GetInvoice(ctx, id)
}

// List returns recent invoices.
func (s *Service) List(ctx context.Context, limit, offset int) ([]SaleInvoice, error) {
	return s.repo.ListInvoices(ctx, limit, offset)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		// Audit must never block the business transaction.
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
