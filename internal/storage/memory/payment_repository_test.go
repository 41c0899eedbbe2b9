package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/storage/memory"
)

func TestPaymentRepository_SuccessIsSticky(t *testing.T) {
	repo := memory.NewPaymentRepository()
	payment := domain.Payment{
		ID:          "pay-1",
		OrderID:     "order-1",
		AmountMinor: 500,
		Currency:    "USD",
		Outcome:     domain.PaymentOutcomePending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.CreatePayment(payment); err != nil {
		t.Fatalf("create: %v", err)
	}

	payment.Outcome = domain.PaymentOutcomeSuccess
	if err := repo.SavePayment(payment); err != nil {
		t.Fatalf("save success: %v", err)
	}

	payment.Outcome = domain.PaymentOutcomeFailed
	if err := repo.SavePayment(payment); !errors.Is(err, domain.ErrPaymentAlreadySucceeded) {
		t.Fatalf("expected ErrPaymentAlreadySucceeded, got %v", err)
	}

	stored, _ := repo.GetPayment("pay-1")
	if stored.Outcome != domain.PaymentOutcomeSuccess {
		t.Fatalf("success outcome must be immutable, got %s", stored.Outcome)
	}
}

func TestPaymentRepository_AttemptsOrdered(t *testing.T) {
	repo := memory.NewPaymentRepository()

	for _, seq := range []int32{2, 1, 3} {
		err := repo.AppendAttempt(domain.PaymentAttempt{
			PaymentID:  "pay-1",
			Seq:        seq,
			GatewayRef: domain.GatewayReference("pay-1", seq),
			Outcome:    domain.PaymentOutcomeFailed,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("append attempt: %v", err)
		}
	}

	attempts, err := repo.ListAttempts("pay-1")
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(attempts))
	}
	for i, a := range attempts {
		if a.Seq != int32(i+1) {
			t.Fatalf("attempts must be ordered by seq, got %v", attempts)
		}
	}
}
