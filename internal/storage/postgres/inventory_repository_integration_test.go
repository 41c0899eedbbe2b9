package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

func TestInventoryRepository_Integration_ReserveCommit(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewInventoryRepository(store)

	if err := repo.Create(domain.InventoryRecord{
		ProductID:         "p-int-1",
		CurrentStock:      10,
		LowStockThreshold: 2,
		CreatedAt:         time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create inventory record: %v", err)
	}

	record, err := repo.Reserve("p-int-1", 4)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if record.ReservedStock != 4 || record.Available() != 6 {
		t.Fatalf("unexpected counters after reserve: %+v", record)
	}

	// Больше доступного — атомарный отказ без изменения счётчиков.
	if _, err := repo.Reserve("p-int-1", 7); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	record, err = repo.Commit("p-int-1", 4)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if record.CurrentStock != 6 || record.ReservedStock != 0 {
		t.Fatalf("unexpected counters after commit: %+v", record)
	}
}

func TestInventoryRepository_Integration_AdjustInvariant(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewInventoryRepository(store)

	if err := repo.Create(domain.InventoryRecord{
		ProductID:    "p-int-2",
		CurrentStock: 5,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create inventory record: %v", err)
	}

	if _, err := repo.Reserve("p-int-2", 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// current нельзя опустить ниже reserved.
	if _, err := repo.Adjust("p-int-2", -3); !errors.Is(err, domain.ErrStockInvariant) {
		t.Fatalf("expected ErrStockInvariant, got %v", err)
	}

	record, err := repo.Adjust("p-int-2", -2)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if record.CurrentStock != 3 || record.ReservedStock != 3 {
		t.Fatalf("unexpected counters after adjust: %+v", record)
	}

	if _, err := repo.Get("missing-product"); !errors.Is(err, domain.ErrInventoryNotFound) {
		t.Fatalf("expected ErrInventoryNotFound, got %v", err)
	}
}
