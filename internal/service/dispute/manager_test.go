package dispute_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/dispute"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/escrow"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/inventory"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/payment"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/saga"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/storage/memory"
)

type env struct {
	manager *dispute.Manager
	machine *saga.Machine
	orders  domain.OrderRepository
	holds   domain.EscrowRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()

	orders := memory.NewOrderRepository()
	holds := memory.NewEscrowRepository()
	stock := memory.NewInventoryRepository()
	payments := memory.NewPaymentRepository()

	if err := stock.Create(domain.InventoryRecord{
		ProductID:    "p-1",
		CurrentStock: 10,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	coordinator := payment.NewCoordinator(payments, payment.NewMockGateway(), payment.Config{
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
		AttemptTimeout: time.Second,
	})
	machine := saga.NewMachine(
		orders,
		memory.NewHistoryRepository(),
		memory.NewScheduleRepository(),
		memory.NewOutboxRepository(),
		inventory.NewManager(stock, nil, nil),
		escrow.NewLedger(holds, nil),
		coordinator,
	)

	return &env{
		manager: dispute.NewManager(memory.NewDisputeRepository(), machine),
		machine: machine,
		orders:  orders,
		holds:   holds,
	}
}

func (e *env) fundedOrder(t *testing.T) domain.Order {
	t.Helper()
	order, err := e.machine.Checkout(context.Background(), saga.CheckoutRequest{
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Currency: "USD",
		Items:    []domain.OrderItem{{ProductID: "p-1", Qty: 1, UnitPriceMinor: 500}},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	return order
}

func TestManager_OpenFreezesEscrowAndLinksOrder(t *testing.T) {
	e := newEnv(t)
	order := e.fundedOrder(t)

	d, err := e.manager.Open(context.Background(), dispute.OpenRequest{
		OrderID:             order.ID,
		OpenedBy:            "buyer-1",
		Reason:              "item not as described",
		RequestedResolution: domain.DispositionRefund,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if d.Status != domain.DisputeStatusOpen {
		t.Fatalf("expected open, got %s", d.Status)
	}

	stored, _ := e.orders.Get(order.ID)
	if stored.Status != domain.OrderStatusDisputed {
		t.Fatalf("order must be disputed, got %s", stored.Status)
	}
	if stored.DisputeID != d.ID {
		t.Fatalf("dispute must be linked to order, got %q", stored.DisputeID)
	}

	hold, _ := e.holds.Get(order.EscrowHoldID)
	if hold.Status != domain.HoldStatusFrozen {
		t.Fatalf("escrow must be frozen, got %s", hold.Status)
	}
}

func TestManager_OpenRequiresReason(t *testing.T) {
	e := newEnv(t)
	order := e.fundedOrder(t)

	if _, err := e.manager.Open(context.Background(), dispute.OpenRequest{
		OrderID:  order.ID,
		OpenedBy: "buyer-1",
	}); !errors.Is(err, domain.ErrDisputeReasonRequired) {
		t.Fatalf("expected ErrDisputeReasonRequired, got %v", err)
	}
}

func TestManager_OpenOutsideDisputeWindowRejected(t *testing.T) {
	e := newEnv(t)
	order := e.fundedOrder(t)

	if _, err := e.machine.Advance(context.Background(), order.ID, domain.OrderStatusCancelled, domain.SystemActor(), ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := e.manager.Open(context.Background(), dispute.OpenRequest{
		OrderID:  order.ID,
		OpenedBy: "buyer-1",
		Reason:   "too late",
	})
	if !domain.IsTransitionError(err) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

func TestManager_ResolveRefund(t *testing.T) {
	e := newEnv(t)
	order := e.fundedOrder(t)

	d, err := e.manager.Open(context.Background(), dispute.OpenRequest{
		OrderID:  order.ID,
		OpenedBy: "buyer-1",
		Reason:   "damaged",
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := e.manager.StartReview(d.ID); err != nil {
		t.Fatalf("start review: %v", err)
	}

	resolved, err := e.manager.Resolve(context.Background(), d.ID, domain.DispositionRefund, domain.Actor{ID: "admin-1", Kind: domain.ActorAdmin}, "refund approved")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != domain.DisputeStatusResolved || resolved.Outcome != domain.DispositionRefund {
		t.Fatalf("unexpected dispute after resolve: %+v", resolved)
	}

	stored, _ := e.orders.Get(order.ID)
	if stored.Status != domain.OrderStatusRefunded {
		t.Fatalf("order must be refunded, got %s", stored.Status)
	}
	hold, _ := e.holds.Get(order.EscrowHoldID)
	if hold.Status != domain.HoldStatusRefunded || hold.PayeeID != "buyer-1" {
		t.Fatalf("hold must be refunded to buyer: %+v", hold)
	}

	// Повторное разрешение отклоняется.
	if _, err := e.manager.Resolve(context.Background(), d.ID, domain.DispositionRelease, domain.SystemActor(), ""); !errors.Is(err, domain.ErrDisputeClosed) {
		t.Fatalf("expected ErrDisputeClosed, got %v", err)
	}
}

func TestManager_ResolveRelease(t *testing.T) {
	e := newEnv(t)
	order := e.fundedOrder(t)

	d, err := e.manager.Open(context.Background(), dispute.OpenRequest{
		OrderID:  order.ID,
		OpenedBy: "buyer-1",
		Reason:   "late delivery",
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	resolved, err := e.manager.Resolve(context.Background(), d.ID, domain.DispositionRelease, domain.Actor{ID: "admin-1", Kind: domain.ActorAdmin}, "seller provided proof")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Outcome != domain.DispositionRelease {
		t.Fatalf("expected release outcome, got %s", resolved.Outcome)
	}

	stored, _ := e.orders.Get(order.ID)
	if stored.Status != domain.OrderStatusCompleted {
		t.Fatalf("order must be completed, got %s", stored.Status)
	}
	hold, _ := e.holds.Get(order.EscrowHoldID)
	if hold.Status != domain.HoldStatusReleased || hold.PayeeID != "seller-1" {
		t.Fatalf("hold must be released to seller: %+v", hold)
	}

	if _, err := e.manager.Resolve(context.Background(), "missing", domain.DispositionRelease, domain.SystemActor(), ""); !errors.Is(err, domain.ErrDisputeNotFound) {
		t.Fatalf("expected ErrDisputeNotFound, got %v", err)
	}
}
