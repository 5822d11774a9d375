package aggregate

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

func mv(barcode, qty string, loc domain.LocationTag) domain.Movement {
	return domain.Movement{Barcode: barcode, Quantity: decimal.RequireFromString(qty), Location: loc}
}

func TestCompute_GroupsByBarcodeAndLocation(t *testing.T) {
	got := Compute([]domain.Movement{
		mv("123", "3", domain.LocationStore),
		mv("123", "2", domain.LocationWarehouse),
		mv("999", "1.5", domain.LocationStore),
		mv("999", "-0.5", domain.LocationStore),
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 balances, got %d", len(got))
	}
	if got[0].Barcode != "123" || got[1].Barcode != "999" {
		t.Fatalf("expected balances sorted by barcode, got %s, %s", got[0].Barcode, got[1].Barcode)
	}
	if !got[0].Store.Equal(decimal.NewFromInt(3)) || !got[0].Warehouse.Equal(decimal.NewFromInt(2)) {
		t.Errorf("unexpected split for 123: store=%s warehouse=%s", got[0].Store, got[0].Warehouse)
	}
	if !got[0].Total.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected total 5, got %s", got[0].Total)
	}
	if !got[1].Total.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected total 1 after correction, got %s", got[1].Total)
	}
}

func TestCompute_OrderIndependent(t *testing.T) {
	var movements []domain.Movement
	for i := 0; i < 200; i++ {
		loc := domain.LocationStore
		if i%3 == 0 {
			loc = domain.LocationWarehouse
		}
		qty := decimal.New(int64(i%7)-2, -1) // -0.2 .. 0.4, exercises fractional sums
		movements = append(movements, domain.Movement{Barcode: []string{"A", "B", "C"}[i%3], Quantity: qty, Location: loc})
	}

	want := Compute(movements)

	r := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		shuffled := append([]domain.Movement(nil), movements...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := Compute(shuffled)
		for i := range want {
			if !got[i].Total.Equal(want[i].Total) ||
				!got[i].Store.Equal(want[i].Store) ||
				!got[i].Warehouse.Equal(want[i].Warehouse) {
				t.Fatalf("round %d: balance for %s differs: %+v vs %+v", round, want[i].Barcode, got[i], want[i])
			}
		}
	}
}

func TestCompute_NoFloatDrift(t *testing.T) {
	var movements []domain.Movement
	for i := 0; i < 10; i++ {
		movements = append(movements, mv("X", "0.1", domain.LocationStore))
	}
	got := Compute(movements)
	if got[0].Total.String() != "1" {
		t.Fatalf("expected exactly 1, got %s", got[0].Total)
	}
}

func TestTotals(t *testing.T) {
	got := Totals([]domain.Movement{
		mv("X", "1", domain.LocationStore),
		mv("X", "1", domain.LocationWarehouse),
	})
	if !got["X"].Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected 2, got %s", got["X"])
	}
}

func TestMerge_OverlaysDelta(t *testing.T) {
	base := Compute([]domain.Movement{mv("A", "2", domain.LocationStore)})
	delta := Compute([]domain.Movement{
		mv("A", "1", domain.LocationWarehouse),
		mv("B", "4", domain.LocationStore),
	})

	got := Index(Merge(base, delta))
	if !got["A"].Total.Equal(decimal.NewFromInt(3)) || !got["A"].Warehouse.Equal(decimal.NewFromInt(1)) {
		t.Errorf("unexpected merged A: %+v", got["A"])
	}
	if !got["B"].Total.Equal(decimal.NewFromInt(4)) {
		t.Errorf("unexpected merged B: %+v", got["B"])
	}
}
