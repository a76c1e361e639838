package sales

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rxstock/rxstock/internal/customers"
	"github.com/rxstock/rxstock/internal/inventory"
	"github.com/rxstock/rxstock/internal/payments"
	"github.com/rxstock/rxstock/internal/settings"
	"github.com/rxstock/rxstock/internal/shared"
)

type memoryRepo struct {
	batches  map[int64]inventory.Batch
	names    map[int64]string
	buyers   map[int64]customers.Customer
	invoices map[int64]SaleInvoice
	lines    map[int64][]SaleLine
	counter  int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		batches:  map[int64]inventory.Batch{},
		names:    map[int64]string{},
		buyers:   map[int64]customers.Customer{},
		invoices: map[int64]SaleInvoice{},
		lines:    map[int64][]SaleLine{},
	}
}

func (m *memoryRepo) id() int64 { m.nextID++; return m.nextID }

// WithTx snapshots state before the closure and restores it on error, so
// rollback semantics hold for the fake as well.
func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	batches := make(map[int64]inventory.Batch, len(m.batches))
	for k, v := range m.batches {
		batches[k] = v
	}
	buyers := make(map[int64]customers.Customer, len(m.buyers))
	for k, v := range m.buyers {
		buyers[k] = v
	}
	invoices := make(map[int64]SaleInvoice, len(m.invoices))
	for k, v := range m.invoices {
		invoices[k] = v
	}
	lines := make(map[int64][]SaleLine, len(m.lines))
	for k, v := range m.lines {
		lines[k] = v
	}
	counter := m.counter

	if err := fn(ctx, m); err != nil {
		m.batches, m.buyers, m.invoices, m.lines, m.counter = batches, buyers, invoices, lines, counter
		return err
	}
	return nil
}

func (m *memoryRepo) NextInvoiceNumber(context.Context) (string, error) {
	m.counter++
	return fmt.Sprintf("INV-%04d", m.counter), nil
}

func (m *memoryRepo) GetBatchByIDForUpdate(_ context.Context, id int64) (inventory.Batch, error) {
	b, ok := m.batches[id]
	if !ok {
		return inventory.Batch{}, inventory.ErrBatchNotFound
	}
	return b, nil
}

func (m *memoryRepo) GetBatchByLabelForUpdate(_ context.Context, medicineName, batchNo string) (inventory.Batch, error) {
	for _, b := range m.batches {
		if strings.EqualFold(m.names[b.MedicineID], medicineName) && b.BatchNo == batchNo {
			return b, nil
		}
	}
	return inventory.Batch{}, inventory.ErrBatchNotFound
}

func (m *memoryRepo) SetBatchStock(_ context.Context, batchID int64, stock int64) error {
	b, ok := m.batches[batchID]
	if !ok {
		return inventory.ErrBatchNotFound
	}
	b.Stock = stock
	m.batches[batchID] = b
	return nil
}

func (m *memoryRepo) MedicineName(_ context.Context, medicineID int64) (string, error) {
	return m.names[medicineID], nil
}

func (m *memoryRepo) InsertInvoice(_ context.Context, inv SaleInvoice) (int64, error) {
	inv.ID = m.id()
	m.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (m *memoryRepo) InsertLine(_ context.Context, line SaleLine) (int64, error) {
	line.ID = m.id()
	m.lines[line.InvoiceID] = append(m.lines[line.InvoiceID], line)
	return line.ID, nil
}

func (m *memoryRepo) GetInvoiceForUpdate(_ context.Context, id int64) (SaleInvoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return SaleInvoice{}, ErrNotFound
	}
	return inv, nil
}

func (m *memoryRepo) GetLines(_ context.Context, invoiceID int64) ([]SaleLine, error) {
	return m.lines[invoiceID], nil
}

func (m *memoryRepo) UpdateInvoicePayment(_ context.Context, id int64, paid, due float64, status payments.Status) error {
	inv, ok := m.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.AmountPaid, inv.AmountDue, inv.PaymentStatus = paid, due, status
	m.invoices[id] = inv
	return nil
}

func (m *memoryRepo) DeleteInvoice(_ context.Context, id int64) error {
	delete(m.invoices, id)
	delete(m.lines, id)
	return nil
}

func (m *memoryRepo) GetCustomerForUpdate(_ context.Context, id int64) (customers.Customer, error) {
	c, ok := m.buyers[id]
	if !ok {
		return customers.Customer{}, customers.ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) AdjustOutstanding(_ context.Context, customerID int64, delta float64) error {
	c, ok := m.buyers[customerID]
	if !ok {
		return customers.ErrNotFound
	}
	c.Outstanding += delta
	m.buyers[customerID] = c
	return nil
}

func (m *memoryRepo) GetInvoice(_ context.Context, id int64) (SaleInvoice, []SaleLine, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return SaleInvoice{}, nil, ErrNotFound
	}
	return inv, m.lines[id], nil
}

func (m *memoryRepo) ListInvoices(context.Context, int, int) ([]SaleInvoice, error) {
	var out []SaleInvoice
	for _, inv := range m.invoices {
		out = append(out, inv)
	}
	return out, nil
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, shared.AuditLog) error { return nil }

// txCount is one recorded transaction outcome.
type txCount struct {
	kind string
	ok   bool
}

type recordingMetrics struct {
	counts []txCount
}

func (r *recordingMetrics) CountTransaction(kind string, err error) {
	r.counts = append(r.counts, txCount{kind: kind, ok: err == nil})
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nopAudit{}, nil, slog.New(slog.DiscardHandler))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func seedBatch(repo *memoryRepo, stock int64) inventory.Batch {
	b := inventory.Batch{
		ID: repo.id(), MedicineID: repo.id(), BatchNo: "B1",
		Expiry:      time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC),
		Stock:       stock,
		SellingRate: 6.00, PurchaseRate: 5.00, Margin: 20, GSTRate: 12,
	}
	repo.batches[b.ID] = b
	repo.names[b.MedicineID] = "Paracetamol 500"
	return b
}

func seedCustomer(repo *memoryRepo) customers.Customer {
	c := customers.Customer{ID: repo.id(), Name: "Ravi Medical"}
	repo.buyers[c.ID] = c
	return c
}

func custID(c customers.Customer) *int64 { return &c.ID }

func TestFulfillDecrementsStockAndNumbersInvoices(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	batch := seedBatch(repo, 100)

	inv, err := svc.Fulfill(context.Background(), FulfillInput{
		Lines:      []CartLine{{BatchID: batch.ID, Quantity: 30}},
		AmountPaid: 100,
	})
	require.NoError(t, err)
	require.Equal(t, "INV-0001", inv.InvoiceNo)
	require.Equal(t, int64(70), repo.batches[batch.ID].Stock)
	require.Equal(t, 180.0, inv.Subtotal, "30 units at the batch selling rate")
	require.Equal(t, 21.6, inv.TaxAmount)
	require.Equal(t, 201.6, inv.TotalAmount)
	require.Equal(t, payments.StatusPartial, inv.PaymentStatus)

	lines := repo.lines[inv.ID]
	require.Len(t, lines, 1)
	require.Equal(t, batch.ID, lines[0].BatchID)
	require.Equal(t, "Paracetamol 500", lines[0].MedicineName)

	second, err := svc.Fulfill(context.Background(), FulfillInput{
		Lines:      []CartLine{{BatchID: batch.ID, Quantity: 70}},
		AmountPaid: 0,
	})
	require.NoError(t, err)
	require.Equal(t, "INV-0002", second.InvoiceNo)
	require.Equal(t, int64(0), repo.batches[batch.ID].Stock,
		"sold-out batch stays as a zero-stock row")
}

func TestFulfillRejectsInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	batch := seedBatch(repo, 10)

	_, err := svc.Fulfill(context.Background(), FulfillInput{
		Lines: []CartLine{{BatchID: batch.ID, Quantity: 11}},
	})
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(10), stockErr.Available)
	require.Equal(t, int64(10), repo.batches[batch.ID].Stock, "rolled back")
	require.Empty(t, repo.invoices)
}

func TestFulfillRollsBackWholeCartOnOneBadLine(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	good := seedBatch(repo, 100)
	bad := inventory.Batch{ID: repo.id(), MedicineID: good.MedicineID, BatchNo: "B2", Stock: 2, SellingRate: 6}
	repo.batches[bad.ID] = bad

	_, err := svc.Fulfill(context.Background(), FulfillInput{
		Lines: []CartLine{
			{BatchID: good.ID, Quantity: 10},
			{BatchID: bad.ID, Quantity: 5},
		},
	})
	require.Error(t, err)
	require.Equal(t, int64(100), repo.batches[good.ID].Stock,
		"first line's decrement must roll back")
}

func TestFulfillValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	batch := seedBatch(repo, 10)

	_, err := svc.Fulfill(context.Background(), FulfillInput{})
	require.ErrorIs(t, err, ErrNoItems)

	_, err = svc.Fulfill(context.Background(), FulfillInput{
		Lines: []CartLine{{BatchID: batch.ID, Quantity: 0}},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Fulfill(context.Background(), FulfillInput{
		Lines:      []CartLine{{BatchID: batch.ID, Quantity: 1}},
		AmountPaid: 1000,
	})
	require.ErrorIs(t, err, ErrInvalidPayment, "paid above total")
}

func TestFulfillAddsDueToCustomerOutstanding(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	batch := seedBatch(repo, 100)
	buyer := seedCustomer(repo)

	inv, err := svc.Fulfill(context.Background(), FulfillInput{
		CustomerID: custID(buyer),
		Lines:      []CartLine{{BatchID: batch.ID, Quantity: 30}},
		AmountPaid: 100.8, // half of 201.60
	})
	require.NoError(t, err)
	require.Equal(t, 100.8, inv.AmountDue)
	require.Equal(t, 100.8, repo.buyers[buyer.ID].Outstanding)
}

func TestUpdatePaymentTopUpMovesOutstandingByDelta(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	batch := seedBatch(repo, 100)
	buyer := seedCustomer(repo)

	inv, err := svc.Fulfill(context.Background(), FulfillInput{
		CustomerID: custID(buyer),
		Lines:      []CartLine{{BatchID: batch.ID, Quantity: 30}},
		AmountPaid: 100.8,
	})
	require.NoError(t, err)

	inv, err = svc.UpdatePayment(context.Background(), inv.ID, 100.8, 0)
	require.NoError(t, err)
	require.Equal(t, payments.StatusPaid, inv.PaymentStatus)
	require.Equal(t, 0.0, inv.AmountDue)
	require.Equal(t, 0.0, repo.buyers[buyer.ID].Outstanding)

	_, err = svc.UpdatePayment(context.Background(), inv.ID, 1, 0)
	require.ErrorIs(t, err, ErrInvalidPayment, "top-up cannot exceed the total")
}

func TestDeleteRestoresStockAndOutstanding(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	batch := seedBatch(repo, 100)
	buyer := seedCustomer(repo)

	inv, err := svc.Fulfill(context.Background(), FulfillInput{
		CustomerID: custID(buyer),
		Lines:      []CartLine{{BatchID: batch.ID, Quantity: 30}},
		AmountPaid: 0,
	})
	require.NoError(t, err)
	require.Equal(t, int64(70), repo.batches[batch.ID].Stock)

	require.NoError(t, svc.Delete(context.Background(), inv.ID, 0))
	require.Equal(t, int64(100), repo.batches[batch.ID].Stock)
	require.Equal(t, 0.0, repo.buyers[buyer.ID].Outstanding)
	require.Empty(t, repo.invoices)
}

func TestDeleteFallsBackToLabelLookup(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	batch := seedBatch(repo, 50)

	// Legacy line with no stored batch id.
	invID := repo.id()
	repo.invoices[invID] = SaleInvoice{ID: invID, InvoiceNo: "INV-0099", TotalAmount: 60, AmountDue: 60, PaymentStatus: payments.StatusDue}
	repo.lines[invID] = []SaleLine{{
		InvoiceID: invID, MedicineName: "Paracetamol 500", BatchNo: "B1", Quantity: 10,
	}}

	require.NoError(t, svc.Delete(context.Background(), invID, 0))
	require.Equal(t, int64(60), repo.batches[batch.ID].Stock)
}

func TestMetricsCountEveryEngineTransaction(t *testing.T) {
	repo := newMemoryRepo()
	metrics := &recordingMetrics{}
	svc := NewService(repo, nopAudit{}, metrics, slog.New(slog.DiscardHandler))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	batch := seedBatch(repo, 100)

	inv, err := svc.Fulfill(context.Background(), FulfillInput{
		Lines:      []CartLine{{BatchID: batch.ID, Quantity: 30}},
		AmountPaid: 100,
	})
	require.NoError(t, err)
	_, err = svc.Fulfill(context.Background(), FulfillInput{
		Lines: []CartLine{{BatchID: batch.ID, Quantity: 500}},
	})
	require.Error(t, err)
	_, err = svc.UpdatePayment(context.Background(), inv.ID, 101.6, 0)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), inv.ID, 0))

	require.Equal(t, []txCount{
		{kind: "sale_fulfill", ok: true},
		{kind: "sale_fulfill", ok: false},
		{kind: "sale_payment", ok: true},
		{kind: "sale_reversal", ok: true},
	}, metrics.counts)
}

func TestWriteInvoiceCSV(t *testing.T) {
	profile := settings.Settings{
		PharmacyName: "RxStock Pharmacy",
		Address:      "12 MG Road, Pune",
		GSTIN:        "27AAAAA0000A1Z5",
	}
	inv := SaleInvoice{
		InvoiceNo: "INV-0007",
		SaleDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Subtotal:  180, TaxAmount: 21.6, TotalAmount: 201.6,
		AmountPaid: 201.6, PaymentStatus: payments.StatusPaid,
	}
	lines := []SaleLine{{MedicineName: "Paracetamol 500", BatchNo: "B1", Quantity: 30, Rate: 6, GSTRate: 12, Amount: 180}}

	var buf bytes.Buffer
	require.NoError(t, WriteInvoiceCSV(&buf, profile, inv, lines))
	out := buf.String()
	require.Contains(t, out, "Pharmacy,RxStock Pharmacy")
	require.Contains(t, out, "Address,\"12 MG Road, Pune\"")
	require.Contains(t, out, "GSTIN,27AAAAA0000A1Z5")
	require.NotContains(t, out, "Phone,", "empty profile fields are omitted")
	require.Contains(t, out, "Invoice,INV-0007")
	require.Contains(t, out, "Total,201.60")
	require.Contains(t, out, "Paracetamol 500,B1,30,6.00,12.00,180.00")
	require.Less(t, strings.Index(out, "Pharmacy,"), strings.Index(out, "Invoice,"),
		"letterhead precedes the invoice block")
}

func TestWriteInvoiceCSVWithoutProfile(t *testing.T) {
	inv := SaleInvoice{InvoiceNo: "INV-0008", SaleDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	var buf bytes.Buffer
	require.NoError(t, WriteInvoiceCSV(&buf, settings.Settings{}, inv, nil))
	out := buf.String()
	require.NotContains(t, out, "Pharmacy,")
	require.True(t, strings.HasPrefix(out, "Invoice,INV-0008"), "invoice block starts the file")
}
