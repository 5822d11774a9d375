package reconcile

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Header is the column layout of the persisted report.
var Header = []string{
	"barcode",
	"product_code",
	"description",
	"system_balance",
	"counted_total",
	"counted_store",
	"counted_warehouse",
	"difference",
}

const sheetName = "Report"

func (r Row) record() []string {
	return []string{
		r.Barcode,
		r.ProductCode,
		r.Description,
		r.SystemBalance.String(),
		r.CountedTotal.String(),
		r.CountedStore.String(),
		r.CountedWarehouse.String(),
		signed(r.Difference),
	}
}

// signed renders surpluses with an explicit plus sign.
func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}

// EncodeCSV serializes rows as semicolon-delimited text with a header row.
func EncodeCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("encode csv header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(r.record()); err != nil {
			return nil, fmt.Errorf("encode csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCSV parses a report produced by EncodeCSV back into string records,
// header included. Used when converting a stored report to another format.
func DecodeCSV(content []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = ';'
	r.FieldsPerRecord = len(Header)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	return records, nil
}

// EncodeXLSX renders stored report records (header first) as a spreadsheet.
func EncodeXLSX(records [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("xlsx cell: %w", err)
		}
		values := make([]interface{}, len(rec))
		for j, v := range rec {
			values[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
