package domain_test

import (
	"testing"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

func makeRecord() domain.InventoryRecord {
	return domain.InventoryRecord{
		ProductID:           "product-1",
		CurrentStock:        100,
		ReservedStock:       0,
		OutOfStockThreshold: 0,
		LowStockThreshold:   10,
		OverstockThreshold:  500,
	}
}

func TestInventoryRecompute_Status(t *testing.T) {
	cases := []struct {
		name     string
		current  int64
		reserved int64
		want     domain.StockStatus
	}{
		{"plenty", 100, 0, domain.StockStatusInStock},
		{"low", 100, 92, domain.StockStatusLowStock},
		{"boundary low", 100, 90, domain.StockStatusLowStock},
		{"out", 100, 100, domain.StockStatusOutOfStock},
		{"empty", 0, 0, domain.StockStatusOutOfStock},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := makeRecord()
			rec.CurrentStock = tc.current
			rec.ReservedStock = tc.reserved
			rec.Recompute()
			if rec.Status != tc.want {
				t.Fatalf("expected status %s, got %s", tc.want, rec.Status)
			}
		})
	}
}

func TestInventoryRecompute_AlertsNotDuplicated(t *testing.T) {
	rec := makeRecord()
	rec.ReservedStock = 95

	// Повторный пересчёт в том же состоянии не должен дублировать алерт.
	rec.Recompute()
	rec.Recompute()

	count := 0
	for _, a := range rec.Alerts {
		if a == domain.AlertLowStock {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one low_stock alert, got %d", count)
	}
}

func TestInventoryRecompute_AlertCleared(t *testing.T) {
	rec := makeRecord()
	rec.ReservedStock = 100
	rec.Recompute()
	if !rec.HasAlert(domain.AlertOutOfStock) {
		t.Fatal("expected out_of_stock alert")
	}

	rec.ReservedStock = 0
	rec.Recompute()
	if rec.HasAlert(domain.AlertOutOfStock) {
		t.Fatal("out_of_stock alert should be cleared after restock")
	}
}

func TestInventoryRecompute_Overstock(t *testing.T) {
	rec := makeRecord()
	rec.CurrentStock = 600
	rec.Recompute()
	if !rec.HasAlert(domain.AlertOverstock) {
		t.Fatal("expected overstock alert")
	}

	rec.CurrentStock = 400
	rec.Recompute()
	if rec.HasAlert(domain.AlertOverstock) {
		t.Fatal("overstock alert should be cleared")
	}
}

func TestInventoryCheckInvariants(t *testing.T) {
	rec := makeRecord()
	if errs := rec.CheckInvariants(); len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}

	rec.ReservedStock = rec.CurrentStock + 1
	if errs := rec.CheckInvariants(); len(errs) == 0 {
		t.Fatal("expected reserved > current to be reported")
	}
}
