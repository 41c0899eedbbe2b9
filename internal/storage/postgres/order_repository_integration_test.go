package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

func TestOrderRepository_Integration_CreateGetSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Truncate(time.Microsecond)
	order := domain.Order{
		ID:       uuid.NewString(),
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Status:   domain.OrderStatusPending,
		Currency: "USD",
		Items: []domain.OrderItem{
			{ID: uuid.NewString(), ProductID: "p-1", Qty: 2, UnitPriceMinor: 250, CreatedAt: now},
		},
		AmountMinor: 500,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := repo.Create(order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	stored, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != domain.OrderStatusPending {
		t.Fatalf("unexpected status: %s", stored.Status)
	}
	if len(stored.Items) != 1 || stored.Items[0].ProductID != "p-1" {
		t.Fatalf("unexpected items: %+v", stored.Items)
	}

	stored.Status = domain.OrderStatusPaymentPending
	stored.UpdatedAt = time.Now().UTC()
	if err := repo.Save(stored); err != nil {
		t.Fatalf("save order: %v", err)
	}

	// Повторный Save с устаревшей версией — конфликт.
	if err := repo.Save(stored); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	updated, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if updated.Version != stored.Version+1 {
		t.Fatalf("expected version bump to %d, got %d", stored.Version+1, updated.Version)
	}

	orders, err := repo.ListByBuyer("buyer-1", 10)
	if err != nil {
		t.Fatalf("list by buyer: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
}

func TestOrderRepository_Integration_GetMissing(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	if _, err := repo.Get(uuid.NewString()); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
