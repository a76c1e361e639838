package purchase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rxstock/rxstock/internal/catalog"
	"github.com/rxstock/rxstock/internal/inventory"
	"github.com/rxstock/rxstock/internal/payments"
	"github.com/rxstock/rxstock/internal/pricing"
	"github.com/rxstock/rxstock/internal/shared"
)

// TxRepository exposes every operation the intake, payment and reversal
// flows run inside one transaction.
type TxRepository interface {
	FindMedicine(ctx context.Context, name, salt, manufacturer string) (catalog.Medicine, error)
	CreateMedicine(ctx context.Context, m catalog.Medicine) (int64, error)
	SetDefaultMargin(ctx context.Context, medicineID int64, margin float64) error

	GetBatchForUpdate(ctx context.Context, medicineID int64, batchNo string) (inventory.Batch, error)
	GetBatchByIDForUpdate(ctx context.Context, id int64) (inventory.Batch, error)
	InsertBatch(ctx context.Context, b inventory.Batch) (int64, error)
	MergeRestock(ctx context.Context, batchID int64, qty int64, p inventory.Pricing) error
	SetBatchStock(ctx context.Context, batchID int64, stock int64) error
	SetBatchPricing(ctx context.Context, batchID int64, p inventory.Pricing) error
	DeleteBatch(ctx context.Context, batchID int64) error

	InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertLine(ctx context.Context, line PurchaseLine) (int64, error)
	GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	GetLines(ctx context.Context, orderID int64) ([]PurchaseLine, error)
	DeleteOrder(ctx context.Context, id int64) error

	InsertPayment(ctx context.Context, p SupplierPayment) (int64, error)
	SumPayments(ctx context.Context, orderID int64) (float64, error)
	UpdateOrderPayment(ctx context.Context, id int64, paid, due float64, status payments.Status) error
	UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, []PurchaseLine, error)
	ListOrders(ctx context.Context, limit, offset int) ([]PurchaseOrder, error)
	ListPayments(ctx context.Context, orderID int64) ([]SupplierPayment, error)
}

// AuditPort records audit entries after successful mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts completed engine transactions by kind and outcome.
type MetricsPort interface {
	CountTransaction(kind string, err error)
}

// Service drives the purchase intake pipeline.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a purchase service. audit and metrics may be nil.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, logger: logger, now: time.Now}
}

func (s *Service) countTx(kind string, err error) {
	if s.metrics != nil {
		s.metrics.CountTransaction(kind, err)
	}
}

// LineInput is the single typed purchase line shared by all three entry
// points (manual form, CSV file, pasted CSV), so validation cannot drift
// between them.
type LineInput struct {
	MedicineName string   `json:"medicine_name"`
	Salt         string   `json:"salt"`
	Manufacturer string   `json:"manufacturer"`
	Category     string   `json:"category"`
	BatchNo      string   `json:"batch_no"`
	Expiry       string   `json:"expiry"`
	Quantity     int64    `json:"quantity"`
	FreeQuantity int64    `json:"free_quantity"`
	Rate         float64  `json:"rate"`
	MRP          float64  `json:"mrp"`
	GSTRate      float64  `json:"gst_rate"`
	Margin       *float64 `json:"margin,omitempty"`
	HSNCode      string   `json:"hsn_code"`
}

// IntakeInput is a full purchase intake request.
type IntakeInput struct {
	SupplierID   int64
	InvoiceNo    string
	PurchaseDate time.Time
	Lines        []LineInput
	ActorID      int64
}

func (l LineInput) validate() error {
	if strings.TrimSpace(l.MedicineName) == "" {
		return &FieldError{Field: "medicine_name", Reason: "required"}
	}
	if strings.TrimSpace(l.BatchNo) == "" {
		return &FieldError{Field: "batch_no", Reason: "required"}
	}
	if l.Quantity <= 0 {
		return &FieldError{Field: "quantity", Reason: "must be a positive integer"}
	}
	if l.FreeQuantity < 0 {
		return &FieldError{Field: "free_quantity", Reason: "must not be negative"}
	}
	if l.Rate <= 0 {
		return &FieldError{Field: "rate", Reason: "must be a positive number"}
	}
	if l.MRP <= 0 {
		return &FieldError{Field: "mrp", Reason: "must be a positive number"}
	}
	if l.GSTRate < 0 {
		return &FieldError{Field: "gst_rate", Reason: "must not be negative"}
	}
	return nil
}

// Intake validates and persists a supplier invoice as one atomic unit of
// work: medicines resolved or created, batches merged or created, line
// items and header written. Any failure rolls the whole intake back.
func (s *Service) Intake(ctx context.Context, input IntakeInput) (PurchaseOrder, error) {
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, ErrNoItems
	}
	if input.SupplierID <= 0 {
		return PurchaseOrder{}, &FieldError{Field: "supplier_id", Reason: "required"}
	}
	now := s.now()

	type resolved struct {
		line   LineInput
		expiry time.Time
	}
	prepared := make([]resolved, 0, len(input.Lines))
	for _, line := range input.Lines {
		if err := line.validate(); err != nil {
			return PurchaseOrder{}, err
		}
		expiry, err := inventory.ParseExpiry(line.Expiry)
		if err != nil {
			return PurchaseOrder{}, fmt.Errorf("%w: %q", ErrInvalidExpiry, line.Expiry)
		}
		if !expiry.After(now) {
			return PurchaseOrder{}, fmt.Errorf("%w: %q is not in the future", ErrInvalidExpiry, line.Expiry)
		}
		prepared = append(prepared, resolved{line: line, expiry: expiry})
	}

	purchaseDate := input.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = now
	}

	var created PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var total float64
		var pendingLines []PurchaseLine

		for _, p := range prepared {
			med, isNew, err := s.resolveMedicine(ctx, tx, p.line)
			if err != nil {
				return err
			}
			res, err := pricing.ResolveMargin(p.line.Margin, isNew, med.DefaultMargin)
			if err != nil {
				return err
			}
			if res.UpdateDefault && !isNew {
				if err := tx.SetDefaultMargin(ctx, med.ID, res.Margin); err != nil {
					return err
				}
			}
			sellingRate := pricing.SellingRate(p.line.Rate, res.Margin)
			newPricing := inventory.Pricing{
				PurchaseRate: p.line.Rate,
				MRP:          p.line.MRP,
				SellingRate:  sellingRate,
				Margin:       res.Margin,
				GSTRate:      p.line.GSTRate,
				Expiry:       p.expiry,
			}

			addQty := p.line.Quantity + p.line.FreeQuantity
			var batchID int64
			var batchCreated bool
			var prev *Snapshot

			batch, err := tx.GetBatchForUpdate(ctx, med.ID, p.line.BatchNo)
			switch {
			case err == nil:
				prev = &Snapshot{
					PurchaseRate: batch.PurchaseRate,
					MRP:          batch.MRP,
					SellingRate:  batch.SellingRate,
					Margin:       batch.Margin,
					GSTRate:      batch.GSTRate,
					Expiry:       batch.Expiry,
				}
				if err := tx.MergeRestock(ctx, batch.ID, addQty, newPricing); err != nil {
					return err
				}
				batchID = batch.ID
			case errors.Is(err, inventory.ErrBatchNotFound):
				batchID, err = tx.InsertBatch(ctx, inventory.Batch{
					MedicineID:   med.ID,
					BatchNo:      p.line.BatchNo,
					Expiry:       p.expiry,
					Stock:        addQty,
					PurchaseRate: newPricing.PurchaseRate,
					MRP:          newPricing.MRP,
					SellingRate:  newPricing.SellingRate,
					Margin:       newPricing.Margin,
					GSTRate:      newPricing.GSTRate,
				})
				if err != nil {
					return err
				}
				batchCreated = true
			default:
				return err
			}

			amount := pricing.Round2(float64(p.line.Quantity) * p.line.Rate)
			total += amount
			pendingLines = append(pendingLines, PurchaseLine{
				MedicineID:   med.ID,
				BatchID:      batchID,
				Quantity:     p.line.Quantity,
				FreeQuantity: p.line.FreeQuantity,
				Rate:         p.line.Rate,
				MRP:          p.line.MRP,
				GSTRate:      p.line.GSTRate,
				Margin:       res.Margin,
				Amount:       amount,
				HSNCode:      p.line.HSNCode,
				BatchCreated: batchCreated,
				PrevPricing:  prev,
			})
		}

		total = pricing.Round2(total)
		due, status := payments.Derive(total, 0)
		po := PurchaseOrder{
			SupplierID:    input.SupplierID,
			InvoiceNo:     input.InvoiceNo,
			PurchaseDate:  purchaseDate,
			TotalAmount:   total,
			AmountPaid:    0,
			AmountDue:     due,
			PaymentStatus: status,
			Status:        OrderStatusPending,
			CreatedBy:     input.ActorID,
		}
		orderID, err := tx.InsertOrder(ctx, po)
		if err != nil {
			return err
		}
		for _, pl := range pendingLines {
			pl.OrderID = orderID
			if _, err := tx.InsertLine(ctx, pl); err != nil {
				return err
			}
		}
		po.ID = orderID
		created = po
		return nil
	})
	s.countTx("purchase_intake", err)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.ActorID, "PURCHASE_CREATE", created.ID, map[string]any{
		"invoice_no": created.InvoiceNo, "total": created.TotalAmount, "lines": len(input.Lines),
	})
	return created, nil
}

func (s *Service) resolveMedicine(ctx context.Context, tx TxRepository, line LineInput) (catalog.Medicine, bool, error) {
	med, err := tx.FindMedicine(ctx, line.MedicineName, line.Salt, line.Manufacturer)
	if err == nil {
		return med, false, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return catalog.Medicine{}, false, err
	}
	// First purchase of an unseen medicine: the margin policy requires an
	// explicit margin before the row may be created.
	res, err := pricing.ResolveMargin(line.Margin, true, nil)
	if err != nil {
		return catalog.Medicine{}, false, err
	}
	margin := res.Margin
	id, err := tx.CreateMedicine(ctx, catalog.Medicine{
		Name:          strings.TrimSpace(line.MedicineName),
		Salt:          strings.TrimSpace(line.Salt),
		Manufacturer:  strings.TrimSpace(line.Manufacturer),
		Category:      strings.TrimSpace(line.Category),
		DefaultMargin: &margin,
	})
	if err != nil {
		return catalog.Medicine{}, false, err
	}
	return catalog.Medicine{ID: id, DefaultMargin: &margin}, true, nil
}

// ImportTable runs the bulk import: full pre-validation pass, then the
// shared intake pipeline. Zero rows are committed when any row fails.
func (s *Service) ImportTable(ctx context.Context, r io.Reader, input IntakeInput) (PurchaseOrder, []RowError, error) {
	lines, rowErrs, err := ParseTable(r, s.now())
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	if len(rowErrs) > 0 {
		return PurchaseOrder{}, rowErrs, ErrImportRejected
	}
	input.Lines = lines
	po, err := s.Intake(ctx, input)
	return po, nil, err
}

// Get returns an order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, []PurchaseLine, error) {
	return s.repo.GetOrder(ctx, id)
}

// List returns recent orders.
func (s *Service) List(ctx context.Context, limit, offset int) ([]PurchaseOrder, error) {
	return s.repo.ListOrders(ctx, limit, offset)
}

// Payments returns the append-only payment ledger of an order.
func (s *Service) Payments(ctx context.Context, orderID int64) ([]SupplierPayment, error) {
	return s.repo.ListPayments(ctx, orderID)
}

// PaymentInput describes one supplier payment.
type PaymentInput struct {
	Amount     float64
	PaidOn     time.Time
	Mode       string
	Reference  string
	Notes      string
	RecordedBy int64
}

// RecordPayment appends a ledger entry and re-derives the order's payment
// state from the full ledger sum, eliminating incremental drift.
func (s *Service) RecordPayment(ctx context.Context, orderID int64, input PaymentInput) (PurchaseOrder, error) {
	if input.Amount <= 0 {
		return PurchaseOrder{}, ErrInvalidPayment
	}
	if input.PaidOn.IsZero() {
		input.PaidOn = s.now()
	}
	if input.Reference == "" {
		input.Reference = uuid.NewString()
	}
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if _, err := tx.InsertPayment(ctx, SupplierPayment{
			OrderID:    orderID,
			Amount:     pricing.Round2(input.Amount),
			PaidOn:     input.PaidOn,
			Mode:       input.Mode,
			Reference:  input.Reference,
			Notes:      input.Notes,
			RecordedBy: input.RecordedBy,
		}); err != nil {
			return err
		}
		paid, err := tx.SumPayments(ctx, orderID)
		if err != nil {
			return err
		}
		paid = pricing.Round2(paid)
		due, status := payments.Derive(po.TotalAmount, paid)
		if err := tx.UpdateOrderPayment(ctx, orderID, paid, due, status); err != nil {
			return err
		}
		po.AmountPaid = paid
		po.AmountDue = due
		po.PaymentStatus = status
		// A fully settled invoice finishes the order's lifecycle.
		if status == payments.StatusPaid && po.Status != OrderStatusCompleted {
			if err := tx.UpdateOrderStatus(ctx, orderID, OrderStatusCompleted); err != nil {
				return err
			}
			po.Status = OrderStatusCompleted
		}
		updated = po
		return nil
	})
	s.countTx("purchase_payment", err)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.RecordedBy, "PURCHASE_PAYMENT", orderID, map[string]any{
		"amount": input.Amount, "status": string(updated.PaymentStatus),
	})
	return updated, nil
}

// Delete reverses a purchase order: every line's batch effect is undone or
// the whole deletion is refused. A batch created by this order whose stock
// returns to exactly zero is removed; a merged batch gets its prior pricing
// restored from the line snapshot.
func (s *Service) Delete(ctx context.Context, orderID int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetOrderForUpdate(ctx, orderID); err != nil {
			return err
		}
		lines, err := tx.GetLines(ctx, orderID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			batch, err := tx.GetBatchByIDForUpdate(ctx, line.BatchID)
			if err != nil {
				if errors.Is(err, inventory.ErrBatchNotFound) {
					// Batch already gone; nothing to unwind for this line.
					continue
				}
				return err
			}
			remaining := batch.Stock - (line.Quantity + line.FreeQuantity)
			if remaining < 0 {
				return fmt.Errorf("%w: batch %s is short by %d units",
					ErrStockAlreadySold, batch.BatchNo, -remaining)
			}
			if remaining == 0 {
				if err := tx.DeleteBatch(ctx, batch.ID); err != nil {
					return err
				}
				continue
			}
			if err := tx.SetBatchStock(ctx, batch.ID, remaining); err != nil {
				return err
			}
			if line.PrevPricing != nil {
				if err := tx.SetBatchPricing(ctx, batch.ID, inventory.Pricing{
					PurchaseRate: line.PrevPricing.PurchaseRate,
					MRP:          line.PrevPricing.MRP,
					SellingRate:  line.PrevPricing.SellingRate,
					Margin:       line.PrevPricing.Margin,
					GSTRate:      line.PrevPricing.GSTRate,
					Expiry:       line.PrevPricing.Expiry,
				}); err != nil {
					return err
				}
			}
		}
		return tx.DeleteOrder(ctx, orderID)
	})
	s.countTx("purchase_reversal", err)
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PURCHASE_DELETE", orderID, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		// Audit must never block the business transaction.
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
