package main

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want scan
	}{
		{"7501234", scan{"7501234", decimal.NewFromInt(1), domain.LocationStore}},
		{"7501234 5", scan{"7501234", decimal.NewFromInt(5), domain.LocationStore}},
		{"7501234 -2 warehouse", scan{"7501234", decimal.NewFromInt(-2), domain.LocationWarehouse}},
		{"7501234 WAREHOUSE 1.5", scan{"7501234", decimal.RequireFromString("1.5"), domain.LocationWarehouse}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got.Barcode != tt.want.Barcode || !got.Quantity.Equal(tt.want.Quantity) || got.Location != tt.want.Location {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseLine_Invalid(t *testing.T) {
	for _, line := range []string{"", "123 abc", "123 0", "123 1 store extra"} {
		if _, err := parseLine(line); err == nil {
			t.Errorf("expected error for %q", line)
		}
	}
}
