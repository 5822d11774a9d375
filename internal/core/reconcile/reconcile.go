// Package reconcile cross-references counted balances against a session's
// catalog snapshot and renders the discrepancy report.
package reconcile

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// Row is one line of the discrepancy report.
type Row struct {
	Barcode          string
	ProductCode      string
	Description      string
	SystemBalance    decimal.Decimal
	CountedTotal     decimal.Decimal
	CountedStore     decimal.Decimal
	CountedWarehouse decimal.Decimal
	Difference       decimal.Decimal
	// Unregistered is set for codes that were counted but are absent from the catalog.
	Unregistered bool
}

// Build produces one row per catalog entry plus one row per counted code that
// is not in the catalog. Counted codes match a catalog barcode first and fall
// back to the product code. Rows are ordered by absolute difference, largest first.
func Build(catalog []domain.CatalogEntry, balances []domain.Balance) []Row {
	rows := make([]Row, len(catalog))
	byBarcode := make(map[string]int, len(catalog))
	byProductCode := make(map[string]int, len(catalog))

	for i, e := range catalog {
		rows[i] = Row{
			ProductCode:      e.ProductCode,
			Description:      e.Description,
			SystemBalance:    e.SystemBalance,
			CountedTotal:     decimal.Zero,
			CountedStore:     decimal.Zero,
			CountedWarehouse: decimal.Zero,
		}
		if e.Barcode != nil && *e.Barcode != "" {
			rows[i].Barcode = *e.Barcode
			if _, dup := byBarcode[*e.Barcode]; !dup {
				byBarcode[*e.Barcode] = i
			}
		}
		if e.ProductCode != "" {
			if _, dup := byProductCode[e.ProductCode]; !dup {
				byProductCode[e.ProductCode] = i
			}
		}
	}

	for _, b := range balances {
		i, ok := byBarcode[b.Barcode]
		if !ok {
			i, ok = byProductCode[b.Barcode]
		}
		if !ok {
			rows = append(rows, Row{
				Barcode:          b.Barcode,
				SystemBalance:    decimal.Zero,
				CountedTotal:     b.Total,
				CountedStore:     b.Store,
				CountedWarehouse: b.Warehouse,
				Unregistered:     true,
			})
			continue
		}
		rows[i].CountedTotal = rows[i].CountedTotal.Add(b.Total)
		rows[i].CountedStore = rows[i].CountedStore.Add(b.Store)
		rows[i].CountedWarehouse = rows[i].CountedWarehouse.Add(b.Warehouse)
	}

	for i := range rows {
		rows[i].Difference = rows[i].CountedTotal.Sub(rows[i].SystemBalance)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ai, aj := rows[i].Difference.Abs(), rows[j].Difference.Abs()
		if c := ai.Cmp(aj); c != 0 {
			return c > 0
		}
		if rows[i].Barcode != rows[j].Barcode {
			return rows[i].Barcode < rows[j].Barcode
		}
		return rows[i].ProductCode < rows[j].ProductCode
	})
	return rows
}

// Summary condenses a report for logs and events.
type Summary struct {
	Rows          int
	Discrepancies int
	Unregistered  int
}

func Summarize(rows []Row) Summary {
	s := Summary{Rows: len(rows)}
	for _, r := range rows {
		if !r.Difference.IsZero() {
			s.Discrepancies++
		}
		if r.Unregistered {
			s.Unregistered++
		}
	}
	return s
}

// Filename names the saved report after the session code and finalization time.
func Filename(s *domain.Session, at time.Time) string {
	code := strings.ToLower(s.AccessCode)
	if code == "" {
		code = s.ID
	}
	return fmt.Sprintf("count_%s_%s.csv", code, at.UTC().Format("20060102-150405"))
}
