package purchase

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/rxstock/rxstock/internal/inventory"
)

// Canonical column keys after header normalization.
const (
	colName     = "name"
	colBatch    = "batch"
	colExpiry   = "expiry"
	colQuantity = "quantity"
	colRate     = "rate"
	colMRP      = "mrp"
	colMargin   = "margin"
	colFree     = "free"
	colGST      = "gst"
	colHSN      = "hsn"
	colSalt     = "salt"
	colMaker    = "manufacturer"
)

var requiredColumns = []string{colName, colBatch, colExpiry, colQuantity, colRate, colMRP}

// headerAliases maps folded, stripped header text to canonical keys.
var headerAliases = map[string]string{
	"name": colName, "productname": colName, "product": colName,
	"medicinename": colName, "medicine": colName, "itemname": colName, "item": colName,
	"batch": colBatch, "batchno": colBatch, "batchnumber": colBatch,
	"expiry": colExpiry, "expirydate": colExpiry, "exp": colExpiry, "expdate": colExpiry,
	"quantity": colQuantity, "qty": colQuantity,
	"rate": colRate, "purchaserate": colRate, "price": colRate, "purchaseprice": colRate,
	"mrp":    colMRP,
	"margin": colMargin, "marginpercent": colMargin,
	"free": colFree, "freequantity": colFree, "freeqty": colFree, "bonus": colFree,
	"gst": colGST, "gstpercent": colGST, "gstrate": colGST, "tax": colGST,
	"hsn": colHSN, "hsncode": colHSN,
	"salt": colSalt, "composition": colSalt, "genericname": colSalt,
	"manufacturer": colMaker, "company": colMaker, "maker": colMaker,
}

var headerFold = cases.Fold()

// normalizeHeader folds case and strips spaces, dots and underscores so
// "Product Name", "product_name" and "PRODUCT.NAME" all match.
func normalizeHeader(h string) string {
	folded := headerFold.String(strings.TrimSpace(h))
	replacer := strings.NewReplacer(" ", "", ".", "", "_", "", "-", "")
	return replacer.Replace(folded)
}

// ParseTable reads tabular CSV data and validates every row before any of
// them reaches the database. The returned line inputs are complete only
// when the error slice is empty; bulk import is all-or-nothing, so callers
// must refuse the whole file on any row error.
func ParseTable(r io.Reader, now time.Time) ([]LineInput, []RowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, ErrNoItems
	}
	if err != nil {
		return nil, nil, fmt.Errorf("purchase: read header: %w", err)
	}

	index := map[string]int{}
	for i, h := range header {
		if canonical, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := index[canonical]; !dup {
				index[canonical] = i
			}
		}
	}
	var rowErrs []RowError
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			rowErrs = append(rowErrs, RowError{Row: 1, Column: col, Reason: "required column missing"})
		}
	}
	if len(rowErrs) > 0 {
		return nil, rowErrs, nil
	}

	cell := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var lines []LineInput
	seen := map[string]int{}
	rowNo := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("purchase: read row: %w", err)
		}
		rowNo++
		if isBlank(record) {
			continue
		}

		line, errs := parseRow(record, cell, rowNo, now)
		if len(errs) > 0 {
			rowErrs = append(rowErrs, errs...)
			continue
		}

		key := headerFold.String(line.MedicineName) + "\x00" + headerFold.String(line.BatchNo)
		if first, dup := seen[key]; dup {
			rowErrs = append(rowErrs, RowError{Row: rowNo, Column: colBatch,
				Reason: fmt.Sprintf("duplicate medicine/batch pair, first seen on row %d", first)})
			continue
		}
		seen[key] = rowNo
		lines = append(lines, line)
	}

	if len(rowErrs) > 0 {
		return nil, rowErrs, nil
	}
	if len(lines) == 0 {
		return nil, nil, ErrNoItems
	}
	return lines, nil, nil
}

func parseRow(record []string, cell func([]string, string) string, rowNo int, now time.Time) (LineInput, []RowError) {
	var errs []RowError
	line := LineInput{
		MedicineName: cell(record, colName),
		Salt:         cell(record, colSalt),
		Manufacturer: cell(record, colMaker),
		BatchNo:      cell(record, colBatch),
		Expiry:       cell(record, colExpiry),
		HSNCode:      cell(record, colHSN),
	}

	if line.MedicineName == "" {
		errs = append(errs, RowError{Row: rowNo, Column: colName, Reason: "product name is required"})
	}
	if line.BatchNo == "" {
		errs = append(errs, RowError{Row: rowNo, Column: colBatch, Reason: "batch is required"})
	}

	if qty, err := strconv.ParseInt(cell(record, colQuantity), 10, 64); err != nil || qty <= 0 {
		errs = append(errs, RowError{Row: rowNo, Column: colQuantity, Reason: "quantity must be a positive integer"})
	} else {
		line.Quantity = qty
	}
	if raw := cell(record, colFree); raw != "" {
		if free, err := strconv.ParseInt(raw, 10, 64); err != nil || free < 0 {
			errs = append(errs, RowError{Row: rowNo, Column: colFree, Reason: "free quantity must be a non-negative integer"})
		} else {
			line.FreeQuantity = free
		}
	}
	if rate, err := strconv.ParseFloat(cell(record, colRate), 64); err != nil || rate <= 0 {
		errs = append(errs, RowError{Row: rowNo, Column: colRate, Reason: "rate must be a positive number"})
	} else {
		line.Rate = rate
	}
	if mrp, err := strconv.ParseFloat(cell(record, colMRP), 64); err != nil || mrp <= 0 {
		errs = append(errs, RowError{Row: rowNo, Column: colMRP, Reason: "MRP must be a positive number"})
	} else {
		line.MRP = mrp
	}
	if raw := cell(record, colMargin); raw != "" {
		if margin, err := strconv.ParseFloat(raw, 64); err != nil {
			errs = append(errs, RowError{Row: rowNo, Column: colMargin, Reason: "margin must be numeric"})
		} else {
			line.Margin = &margin
		}
	}
	if raw := cell(record, colGST); raw != "" {
		if gst, err := strconv.ParseFloat(raw, 64); err != nil || gst < 0 {
			errs = append(errs, RowError{Row: rowNo, Column: colGST, Reason: "GST percent must be a non-negative number"})
		} else {
			line.GSTRate = gst
		}
	}

	if raw := cell(record, colExpiry); raw == "" {
		errs = append(errs, RowError{Row: rowNo, Column: colExpiry, Reason: "expiry is required"})
	} else if expiry, err := inventory.ParseExpiry(raw); err != nil {
		errs = append(errs, RowError{Row: rowNo, Column: colExpiry, Reason: "unrecognized expiry format"})
	} else if !expiry.After(now) {
		errs = append(errs, RowError{Row: rowNo, Column: colExpiry, Reason: "expiry must be in the future"})
	}

	return line, errs
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
