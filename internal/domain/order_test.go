package domain_test

import (
	"testing"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:          "order-1",
		BuyerID:     "buyer-1",
		SellerID:    "seller-1",
		Status:      domain.OrderStatusPending,
		Currency:    "USD",
		AmountMinor: 500,
		Items: []domain.OrderItem{
			{
				ID:             "item-1",
				ProductID:      "product-1",
				Qty:            5,
				UnitPriceMinor: 100,
				CreatedAt:      now,
			},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no buyer",
			mut: func(o *domain.Order) {
				o.BuyerID = ""
			},
		},
		{
			name: "no seller",
			mut: func(o *domain.Order) {
				o.SellerID = ""
			},
		},
		{
			name: "negative amount",
			mut: func(o *domain.Order) {
				o.AmountMinor = -1
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "amount mismatch",
			mut: func(o *domain.Order) {
				o.AmountMinor = 1
			},
		},
		{
			name: "unknown status",
			mut: func(o *domain.Order) {
				o.Status = domain.OrderStatus("archived")
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			if errs := order.ValidateInvariants(); len(errs) == 0 {
				t.Fatalf("expected validation errors, got none")
			}
		})
	}
}

func TestOrderStatus_TransitionTable(t *testing.T) {
	cases := []struct {
		from    domain.OrderStatus
		to      domain.OrderStatus
		allowed bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusPaymentPending, true},
		{domain.OrderStatusPending, domain.OrderStatusShipped, false},
		{domain.OrderStatusPaymentPending, domain.OrderStatusConfirmed, true},
		{domain.OrderStatusPaymentPending, domain.OrderStatusPaymentFailed, true},
		{domain.OrderStatusPaymentFailed, domain.OrderStatusPaymentPending, true},
		{domain.OrderStatusPaymentFailed, domain.OrderStatusConfirmed, false},
		{domain.OrderStatusConfirmed, domain.OrderStatusEscrowFunded, true},
		{domain.OrderStatusEscrowFunded, domain.OrderStatusProcessing, true},
		{domain.OrderStatusProcessing, domain.OrderStatusDisputed, true},
		{domain.OrderStatusShipped, domain.OrderStatusInTransit, true},
		{domain.OrderStatusShipped, domain.OrderStatusCancelled, false},
		{domain.OrderStatusDelivered, domain.OrderStatusCompleted, true},
		{domain.OrderStatusDelivered, domain.OrderStatusReturned, true},
		{domain.OrderStatusDisputed, domain.OrderStatusShipped, false},
		{domain.OrderStatusDisputed, domain.OrderStatusCompleted, true},
		{domain.OrderStatusDisputed, domain.OrderStatusRefunded, true},
		{domain.OrderStatusReturned, domain.OrderStatusRefunded, true},
		{domain.OrderStatusCompleted, domain.OrderStatusRefunded, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPending, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	terminal := []domain.OrderStatus{
		domain.OrderStatusCompleted,
		domain.OrderStatusCancelled,
		domain.OrderStatusRefunded,
	}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
		if len(s.Successors()) != 0 {
			t.Errorf("%s should have no successors", s)
		}
	}

	if domain.OrderStatusDelivered.Terminal() {
		t.Error("delivered must not be terminal")
	}
	if domain.OrderStatus("archived").Terminal() {
		t.Error("unknown status must not be treated as terminal")
	}
}
