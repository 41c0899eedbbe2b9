package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/escrow"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/inventory"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/payment"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/storage/memory"
)

type testEnv struct {
	machine   *Machine
	orders    domain.OrderRepository
	escrow    domain.EscrowRepository
	inventory domain.InventoryRepository
	schedule  domain.ScheduleRepository
	outbox    domain.OutboxRepository
	payments  domain.PaymentRepository
	gateway   *payment.MockGateway
}

func newTestEnv(t *testing.T, gatewayScript ...error) *testEnv {
	t.Helper()

	orders := memory.NewOrderRepository()
	holds := memory.NewEscrowRepository()
	stock := memory.NewInventoryRepository()
	schedule := memory.NewScheduleRepository()
	outbox := memory.NewOutboxRepository()
	history := memory.NewHistoryRepository()
	payments := memory.NewPaymentRepository()

	gateway := payment.NewMockGateway(gatewayScript...)
	coordinator := payment.NewCoordinator(payments, gateway, payment.Config{
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		AttemptTimeout: time.Second,
	})

	machine := NewMachine(
		orders,
		history,
		schedule,
		outbox,
		inventory.NewManager(stock, nil, nil),
		escrow.NewLedger(holds, nil),
		coordinator,
	)

	return &testEnv{
		machine:   machine,
		orders:    orders,
		escrow:    holds,
		inventory: stock,
		schedule:  schedule,
		outbox:    outbox,
		payments:  payments,
		gateway:   gateway,
	}
}

func (e *testEnv) seedStock(t *testing.T, productID string, qty int64) {
	t.Helper()
	err := e.inventory.Create(domain.InventoryRecord{
		ProductID:           productID,
		CurrentStock:        qty,
		LowStockThreshold:   2,
		OutOfStockThreshold: 0,
		CreatedAt:           time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed stock %s: %v", productID, err)
	}
}

func checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		BuyerID:        "buyer-1",
		SellerID:       "seller-1",
		Currency:       "USD",
		DeliveryMethod: "courier",
		Items: []domain.OrderItem{
			{ProductID: "p-1", Qty: 2, UnitPriceMinor: 250},
		},
	}
}

func TestMachine_CheckoutHappyPath(t *testing.T) {
	env := newTestEnv(t)
	env.seedStock(t, "p-1", 10)

	order, err := env.machine.Checkout(context.Background(), checkoutRequest())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	if order.Status != domain.OrderStatusEscrowFunded {
		t.Fatalf("expected escrow_funded, got %s", order.Status)
	}
	if order.AmountMinor != 500 {
		t.Fatalf("expected amount 500, got %d", order.AmountMinor)
	}
	if order.PaymentID == "" || order.EscrowHoldID == "" {
		t.Fatalf("payment and escrow ids must be linked: %+v", order)
	}

	hold, err := env.escrow.Get(order.EscrowHoldID)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if hold.Status != domain.HoldStatusHeld || hold.AmountMinor != 500 {
		t.Fatalf("unexpected hold: %+v", hold)
	}

	record, _ := env.inventory.Get("p-1")
	if record.ReservedStock != 2 || record.CurrentStock != 10 {
		t.Fatalf("reservation must be soft: %+v", record)
	}

	entries, err := env.machine.History(order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusPaymentPending,
		domain.OrderStatusConfirmed,
		domain.OrderStatusEscrowFunded,
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d history entries, got %d", len(want), len(entries))
	}
	for i, status := range want {
		if entries[i].Status != status {
			t.Fatalf("history[%d]: expected %s, got %s", i, status, entries[i].Status)
		}
	}
}

func TestMachine_CheckoutInsufficientStockCancels(t *testing.T) {
	env := newTestEnv(t)
	env.seedStock(t, "p-1", 1)

	order, err := env.machine.Checkout(context.Background(), checkoutRequest())
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}
	if env.gateway.Calls != 0 {
		t.Fatal("gateway must not be called when reservation fails")
	}
}

func TestMachine_PaymentExhaustionReleasesReservation(t *testing.T) {
	env := newTestEnv(t,
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
	)
	env.seedStock(t, "p-1", 10)

	order, err := env.machine.Checkout(context.Background(), checkoutRequest())
	if err == nil {
		t.Fatal("expected payment failure")
	}
	if order.Status != domain.OrderStatusPaymentFailed {
		t.Fatalf("expected payment_failed, got %s", order.Status)
	}

	record, _ := env.inventory.Get("p-1")
	if record.ReservedStock != 0 {
		t.Fatalf("reservation must be released after payment failure: %+v", record)
	}

	// Ручной повтор: резерв возобновляется, заводится новый логический платёж.
	retried, err := env.machine.RetryPayment(context.Background(), order.ID, domain.Actor{ID: "buyer-1", Kind: domain.ActorBuyer})
	if err != nil {
		t.Fatalf("retry payment: %v", err)
	}
	if retried.Status != domain.OrderStatusEscrowFunded {
		t.Fatalf("expected escrow_funded after retry, got %s", retried.Status)
	}
	if retried.PaymentID == order.PaymentID {
		t.Fatal("manual retry must mint a new logical payment id")
	}
	wantRef := domain.GatewayReference(retried.PaymentID, 1)
	if env.gateway.Refs[len(env.gateway.Refs)-1] != wantRef {
		t.Fatalf("fresh payment must restart attempt numbering, last ref %s, want %s",
			env.gateway.Refs[len(env.gateway.Refs)-1], wantRef)
	}

	stale, err := env.payments.GetPayment(order.PaymentID)
	if err != nil {
		t.Fatalf("get exhausted payment: %v", err)
	}
	if stale.Outcome != domain.PaymentOutcomeFailed {
		t.Fatalf("exhausted payment must keep its terminal outcome, got %s", stale.Outcome)
	}
}

func TestMachine_IllegalTransitionRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedStock(t, "p-1", 10)

	order, err := env.machine.Checkout(context.Background(), checkoutRequest())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	_, err = env.machine.Advance(context.Background(), order.ID, domain.OrderStatusShipped, domain.SystemActor(), "")
	if !domain.IsTransitionError(err) {
		t.Fatalf("expected TransitionError, got %v", err)
	}

	stored, _ := env.orders.Get(order.ID)
	if stored.Status != domain.OrderStatusEscrowFunded {
		t.Fatalf("illegal transition must not change status, got %s", stored.Status)
	}
}

func advanceChain(t *testing.T, env *testEnv, orderID string, statuses ...domain.OrderStatus) domain.Order {
	t.Helper()
	var order domain.Order
	var err error
	for _, status := range statuses {
		order, err = env.machine.Advance(context.Background(), orderID, status, domain.SystemActor(), "")
		if err != nil {
			t.Fatalf("advance to %s: %v", status, err)
		}
	}
	return order
}

func TestMachine_FullLifecycleToCompleted(t *testing.T) {
	env := newTestEnv(t)
	env.seedStock(t, "p-1", 10)

	order, err := env.machine.Checkout(context.Background(), checkoutRequest())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	advanceChain(t, env, order.ID,
		domain.OrderStatusProcessing,
		domain.OrderStatusReadyForShipment,
		domain.OrderStatusShipped,
		domain.OrderStatusInTransit,
		domain.OrderStatusOutForDelivery,
		domain.OrderStatusDelivered,
	)

	completed, err := env.machine.ConfirmSatisfaction(context.Background(), order.ID, domain.Actor{ID: "buyer-1", Kind: domain.ActorBuyer})
	if err != nil {
		t.Fatalf("confirm satisfaction: %v", err)
	}
	if completed.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if !completed.SatisfactionStatus {
		t.Fatal("satisfaction flag must be persisted")
	}

	hold, _ := env.escrow.Get(order.EscrowHoldID)
	if hold.Status != domain.HoldStatusReleased || hold.PayeeID != "seller-1" {
		t.Fatalf("escrow must be released to seller: %+v", hold)
	}

	record, _ := env.inventory.Get("p-1")
	if record.CurrentStock != 8 || record.ReservedStock != 0 {
		t.Fatalf("stock must be committed: %+v", record)
	}

	// Каждый логистический статус поставил свой отложенный переход.
	due, err := env.schedule.PullDue(time.Now().UTC().Add(30*24*time.Hour), 10)
	if err != nil {
		t.Fatalf("pull due: %v", err)
	}
	if len(due) != 4 {
		t.Fatalf("expected 4 schedule entries, got %d", len(due))
	}
}

func TestMachine_DisputeFreezesAndRefunds(t *testing.T) {
	env := newTestEnv(t)
	env.seedStock(t, "p-1", 10)

	order, err := env.machine.Checkout(context.Background(), checkoutRequest())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	advanceChain(t, env, order.ID,
		domain.OrderStatusProcessing,
		domain.OrderStatusReadyForShipment,
		domain.OrderStatusShipped,
		domain.OrderStatusInTransit,
	)

	disputed, err := env.machine.Advance(context.Background(), order.ID, domain.OrderStatusDisputed, domain.Actor{ID: "buyer-1", Kind: domain.ActorBuyer}, "item damaged")
	if err != nil {
		t.Fatalf("advance to disputed: %v", err)
	}
	if disputed.Status != domain.OrderStatusDisputed {
		t.Fatalf("expected disputed, got %s", disputed.Status)
	}

	hold, _ := env.escrow.Get(order.EscrowHoldID)
	if hold.Status != domain.HoldStatusFrozen {
		t.Fatalf("hold must be frozen during dispute, got %s", hold.Status)
	}

	refunded, err := env.machine.Advance(context.Background(), order.ID, domain.OrderStatusRefunded, domain.Actor{ID: "admin-1", Kind: domain.ActorAdmin}, "resolved for buyer")
	if err != nil {
		t.Fatalf("advance to refunded: %v", err)
	}
	if refunded.Status != domain.OrderStatusRefunded {
		t.Fatalf("expected refunded, got %s", refunded.Status)
	}

	hold, _ = env.escrow.Get(order.EscrowHoldID)
	if hold.Status != domain.HoldStatusRefunded || hold.PayeeID != "buyer-1" {
		t.Fatalf("hold must be refunded to buyer: %+v", hold)
	}
	record, _ := env.inventory.Get("p-1")
	if record.ReservedStock != 0 || record.CurrentStock != 10 {
		t.Fatalf("reservation must be released on refund: %+v", record)
	}
}

func TestMachine_CancelCompensates(t *testing.T) {
	env := newTestEnv(t)
	env.seedStock(t, "p-1", 10)

	order, err := env.machine.Checkout(context.Background(), checkoutRequest())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	cancelled, err := env.machine.Advance(context.Background(), order.ID, domain.OrderStatusCancelled, domain.Actor{ID: "buyer-1", Kind: domain.ActorBuyer}, "changed my mind")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	hold, _ := env.escrow.Get(order.EscrowHoldID)
	if hold.Status != domain.HoldStatusRefunded {
		t.Fatalf("escrow must be refunded on cancel, got %s", hold.Status)
	}
	record, _ := env.inventory.Get("p-1")
	if record.ReservedStock != 0 {
		t.Fatalf("reservation must be released on cancel: %+v", record)
	}

	// Терминальный статус: дальнейшие переходы отклоняются.
	if _, err := env.machine.Advance(context.Background(), order.ID, domain.OrderStatusProcessing, domain.SystemActor(), ""); !domain.IsTransitionError(err) {
		t.Fatalf("expected TransitionError from terminal status, got %v", err)
	}
}

func TestMachine_ReturnedThenRefunded(t *testing.T) {
	env := newTestEnv(t)
	env.seedStock(t, "p-1", 10)

	order, err := env.machine.Checkout(context.Background(), checkoutRequest())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	advanceChain(t, env, order.ID,
		domain.OrderStatusProcessing,
		domain.OrderStatusReadyForShipment,
		domain.OrderStatusShipped,
		domain.OrderStatusInTransit,
		domain.OrderStatusOutForDelivery,
		domain.OrderStatusDelivered,
		domain.OrderStatusReturned,
	)

	refunded, err := env.machine.Advance(context.Background(), order.ID, domain.OrderStatusRefunded, domain.SystemActor(), "return accepted")
	if err != nil {
		t.Fatalf("advance to refunded: %v", err)
	}
	if refunded.Status != domain.OrderStatusRefunded {
		t.Fatalf("expected refunded, got %s", refunded.Status)
	}

	hold, _ := env.escrow.Get(order.EscrowHoldID)
	if hold.Status != domain.HoldStatusRefunded {
		t.Fatalf("hold must be refunded after return, got %s", hold.Status)
	}
}
