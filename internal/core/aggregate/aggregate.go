// Package aggregate turns a session's movement ledger into counted balances.
//
// Aggregation is a pure fold over movements using decimal addition, so the
// result does not depend on the order in which movements arrive.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// Compute groups movements by barcode, sub-grouped by location, and returns
// one balance per barcode sorted by barcode.
func Compute(movements []domain.Movement) []domain.Balance {
	byBarcode := make(map[string]*domain.Balance)
	for _, m := range movements {
		b, ok := byBarcode[m.Barcode]
		if !ok {
			b = &domain.Balance{
				Barcode:   m.Barcode,
				Store:     decimal.Zero,
				Warehouse: decimal.Zero,
				Total:     decimal.Zero,
			}
			byBarcode[m.Barcode] = b
		}
		switch m.Location {
		case domain.LocationWarehouse:
			b.Warehouse = b.Warehouse.Add(m.Quantity)
		default:
			b.Store = b.Store.Add(m.Quantity)
		}
		b.Total = b.Total.Add(m.Quantity)
	}

	out := make([]domain.Balance, 0, len(byBarcode))
	for _, b := range byBarcode {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Barcode < out[j].Barcode })
	return out
}

// Totals returns the total counted quantity per barcode, ignoring location.
func Totals(movements []domain.Movement) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, m := range movements {
		cur, ok := out[m.Barcode]
		if !ok {
			cur = decimal.Zero
		}
		out[m.Barcode] = cur.Add(m.Quantity)
	}
	return out
}

// Index keys balances by barcode.
func Index(balances []domain.Balance) map[string]domain.Balance {
	out := make(map[string]domain.Balance, len(balances))
	for _, b := range balances {
		out[b.Barcode] = b
	}
	return out
}

// Merge adds delta balances on top of base, returning a new sorted slice.
// Used by clients to overlay unconfirmed local movements on the server view.
func Merge(base []domain.Balance, delta []domain.Balance) []domain.Balance {
	idx := Index(base)
	for _, d := range delta {
		cur, ok := idx[d.Barcode]
		if !ok {
			idx[d.Barcode] = d
			continue
		}
		cur.Store = cur.Store.Add(d.Store)
		cur.Warehouse = cur.Warehouse.Add(d.Warehouse)
		cur.Total = cur.Total.Add(d.Total)
		idx[d.Barcode] = cur
	}
	out := make([]domain.Balance, 0, len(idx))
	for _, b := range idx {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Barcode < out[j].Barcode })
	return out
}
