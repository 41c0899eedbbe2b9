package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/payment"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/storage/memory"
)

func fastConfig() payment.Config {
	return payment.Config{
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func TestCoordinator_SucceedsAfterTransientFailures(t *testing.T) {
	gateway := payment.NewMockGateway(
		domain.NewPaymentError(domain.PaymentErrNetwork, "connection reset"),
		domain.NewPaymentError(domain.PaymentErrTimeout, "gateway slow"),
		nil,
	)
	coordinator := payment.NewCoordinator(memory.NewPaymentRepository(), gateway, fastConfig())

	result, err := coordinator.Charge(context.Background(), "order-1", "buyer-1", 500, "USD")
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if result.Outcome != domain.PaymentOutcomeSuccess {
		t.Fatalf("expected success, got %s", result.Outcome)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", result.Attempts)
	}

	// Каждая попытка идёт со своим уникальным reference.
	if len(gateway.Refs) != 3 {
		t.Fatalf("expected 3 gateway calls, got %d", len(gateway.Refs))
	}
	seen := map[string]bool{}
	for i, ref := range gateway.Refs {
		if seen[ref] {
			t.Fatalf("gateway references must be unique per attempt, got %v", gateway.Refs)
		}
		seen[ref] = true
		want := domain.GatewayReference(result.ID, int32(i+1))
		if ref != want {
			t.Fatalf("attempt %d: expected ref %s, got %s", i+1, want, ref)
		}
	}

	attempts, err := coordinator.Attempts(result.ID)
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempt records, got %d", len(attempts))
	}
	if attempts[0].ErrorKind != domain.PaymentErrNetwork || attempts[1].ErrorKind != domain.PaymentErrTimeout {
		t.Fatalf("attempt error kinds not recorded: %+v", attempts)
	}
	if attempts[2].Outcome != domain.PaymentOutcomeSuccess {
		t.Fatalf("final attempt must be success, got %s", attempts[2].Outcome)
	}
}

func TestCoordinator_TerminalDeclineStopsRetries(t *testing.T) {
	gateway := payment.NewMockGateway(
		domain.NewPaymentError(domain.PaymentErrCardDeclined, "do not honor"),
	)
	coordinator := payment.NewCoordinator(memory.NewPaymentRepository(), gateway, fastConfig())

	result, err := coordinator.Charge(context.Background(), "order-1", "buyer-1", 500, "USD")
	var pe *domain.PaymentError
	if !errors.As(err, &pe) || pe.Kind != domain.PaymentErrCardDeclined {
		t.Fatalf("expected card_declined error, got %v", err)
	}
	if result.Outcome != domain.PaymentOutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", result.Outcome)
	}
	if gateway.Calls != 1 {
		t.Fatalf("terminal decline must not be retried, got %d calls", gateway.Calls)
	}
	if result.LastErrorKind != domain.PaymentErrCardDeclined {
		t.Fatalf("last error kind must be recorded, got %s", result.LastErrorKind)
	}
}

func TestCoordinator_ExhaustedRetries(t *testing.T) {
	gateway := payment.NewMockGateway(
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
	)
	coordinator := payment.NewCoordinator(memory.NewPaymentRepository(), gateway, fastConfig())

	result, err := coordinator.Charge(context.Background(), "order-1", "buyer-1", 500, "USD")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if result.Outcome != domain.PaymentOutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", result.Outcome)
	}
	if gateway.Calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", gateway.Calls)
	}
}

func TestCoordinator_SuccessIsSticky(t *testing.T) {
	gateway := payment.NewMockGateway()
	coordinator := payment.NewCoordinator(memory.NewPaymentRepository(), gateway, fastConfig())

	result, err := coordinator.Charge(context.Background(), "order-1", "buyer-1", 500, "USD")
	if err != nil {
		t.Fatalf("charge: %v", err)
	}

	again, err := coordinator.Execute(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("repeated execute: %v", err)
	}
	if again.Attempts != result.Attempts {
		t.Fatalf("repeated execute must not add attempts: %d vs %d", again.Attempts, result.Attempts)
	}
	if gateway.Calls != 1 {
		t.Fatalf("repeated execute must not hit gateway, got %d calls", gateway.Calls)
	}
}

func TestCoordinator_FreshPaymentRestartsAttemptNumbering(t *testing.T) {
	gateway := payment.NewMockGateway(
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
	)
	repo := memory.NewPaymentRepository()
	coordinator := payment.NewCoordinator(repo, gateway, fastConfig())

	first, err := coordinator.Charge(context.Background(), "order-1", "buyer-1", 500, "USD")
	if err == nil {
		t.Fatal("expected first payment to exhaust its attempts")
	}

	// Ручной повтор оплаты — это новый логический платёж на тот же заказ:
	// нумерация попыток и gateway reference начинаются заново.
	second, err := coordinator.Begin("order-1", "buyer-1", 500, "USD")
	if err != nil {
		t.Fatalf("begin fresh payment: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("fresh payment must get a new logical id")
	}

	result, err := coordinator.Execute(context.Background(), second.ID)
	if err != nil {
		t.Fatalf("execute fresh payment: %v", err)
	}
	if result.Outcome != domain.PaymentOutcomeSuccess {
		t.Fatalf("expected success, got %s", result.Outcome)
	}
	if result.Attempts != 1 {
		t.Fatalf("fresh payment must start numbering at 1, got %d", result.Attempts)
	}
	wantRef := domain.GatewayReference(second.ID, 1)
	if gateway.Refs[len(gateway.Refs)-1] != wantRef {
		t.Fatalf("expected ref %s, got %s", wantRef, gateway.Refs[len(gateway.Refs)-1])
	}

	// Исчерпанный платёж сохраняет свой терминальный исход.
	stale, err := coordinator.Get(first.ID)
	if err != nil {
		t.Fatalf("get exhausted payment: %v", err)
	}
	if stale.Outcome != domain.PaymentOutcomeFailed {
		t.Fatalf("exhausted payment outcome must stay failed, got %s", stale.Outcome)
	}
}

func TestCoordinator_AttemptTimeoutClassified(t *testing.T) {
	gateway := payment.NewMockGateway()
	gateway.Delay = 50 * time.Millisecond
	config := payment.Config{
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
		AttemptTimeout: 5 * time.Millisecond,
	}
	coordinator := payment.NewCoordinator(memory.NewPaymentRepository(), gateway, config)

	result, err := coordinator.Charge(context.Background(), "order-1", "buyer-1", 500, "USD")
	var pe *domain.PaymentError
	if !errors.As(err, &pe) || pe.Kind != domain.PaymentErrTimeout {
		t.Fatalf("expected timeout classification, got %v", err)
	}
	if result.Outcome != domain.PaymentOutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %s", result.Outcome)
	}
}

func TestCoordinator_BreakerBlocksAfterFailures(t *testing.T) {
	gateway := payment.NewMockGateway(
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
		domain.NewPaymentError(domain.PaymentErrNetwork, "reset"),
	)
	breaker := payment.NewCircuitBreaker(2, time.Hour, nil)
	coordinator := payment.NewCoordinator(memory.NewPaymentRepository(), gateway, fastConfig(),
		payment.WithBreaker(breaker))

	if _, err := coordinator.Charge(context.Background(), "order-1", "buyer-1", 500, "USD"); err == nil {
		t.Fatal("expected failure")
	}

	// Третья попытка уже не дошла до шлюза: breaker открылся после второй.
	if gateway.Calls != 2 {
		t.Fatalf("expected breaker to block third call, got %d gateway calls", gateway.Calls)
	}
	if breaker.State() != payment.CircuitOpen {
		t.Fatal("breaker must be open after repeated failures")
	}
}
