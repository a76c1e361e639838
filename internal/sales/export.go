package sales

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rxstock/rxstock/internal/settings"
)

// WriteInvoiceCSV serialises an invoice with its lines to CSV: the
// pharmacy profile block, the invoice header block, a blank row, then
// the line table. A zero profile skips the pharmacy block.
func WriteInvoiceCSV(w io.Writer, profile settings.Settings, inv SaleInvoice, lines []SaleLine) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	var header [][]string
	if profile.PharmacyName != "" {
		header = append(header, []string{"Pharmacy", profile.PharmacyName})
		if profile.Address != "" {
			header = append(header, []string{"Address", profile.Address})
		}
		if profile.Phone != "" {
			header = append(header, []string{"Phone", profile.Phone})
		}
		if profile.GSTIN != "" {
			header = append(header, []string{"GSTIN", profile.GSTIN})
		}
		header = append(header, []string{""})
	}
	header = append(header, [][]string{
		{"Invoice", inv.InvoiceNo},
		{"Date", inv.SaleDate.Format("2006-01-02")},
		{"Subtotal", formatFloat(inv.Subtotal)},
		{"Tax", formatFloat(inv.TaxAmount)},
		{"Total", formatFloat(inv.TotalAmount)},
		{"Paid", formatFloat(inv.AmountPaid)},
		{"Due", formatFloat(inv.AmountDue)},
		{"Status", string(inv.PaymentStatus)},
	}...)
	for _, record := range header {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	if err := writer.Write([]string{""}); err != nil {
		return err
	}
	if err := writer.Write([]string{"Medicine", "Batch", "Quantity", "Rate", "GST %", "Amount"}); err != nil {
		return err
	}
	for _, line := range lines {
		if err := writer.Write([]string{
			line.MedicineName,
			line.BatchNo,
			strconv.FormatInt(line.Quantity, 10),
			formatFloat(line.Rate),
			formatFloat(line.GSTRate),
			formatFloat(line.Amount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
