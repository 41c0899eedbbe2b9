package domain_test

import (
	"testing"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

func TestEscrowHold_Transitions(t *testing.T) {
	cases := []struct {
		from    domain.HoldStatus
		to      domain.HoldStatus
		allowed bool
	}{
		{domain.HoldStatusHeld, domain.HoldStatusReleased, true},
		{domain.HoldStatusHeld, domain.HoldStatusRefunded, true},
		{domain.HoldStatusHeld, domain.HoldStatusFrozen, true},
		{domain.HoldStatusHeld, domain.HoldStatusHeld, false},
		{domain.HoldStatusFrozen, domain.HoldStatusReleased, true},
		{domain.HoldStatusFrozen, domain.HoldStatusRefunded, true},
		{domain.HoldStatusFrozen, domain.HoldStatusFrozen, false},
		{domain.HoldStatusReleased, domain.HoldStatusRefunded, false},
		{domain.HoldStatusRefunded, domain.HoldStatusReleased, false},
	}

	for _, tc := range cases {
		hold := domain.EscrowHold{Status: tc.from}
		if got := hold.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestEscrowHold_Disposed(t *testing.T) {
	for status, want := range map[domain.HoldStatus]bool{
		domain.HoldStatusHeld:     false,
		domain.HoldStatusFrozen:   false,
		domain.HoldStatusReleased: true,
		domain.HoldStatusRefunded: true,
	} {
		hold := domain.EscrowHold{Status: status}
		if hold.Disposed() != want {
			t.Errorf("%s: expected disposed=%v", status, want)
		}
	}
}

func TestEscrowHold_Validate(t *testing.T) {
	hold := domain.EscrowHold{OrderID: "order-1", Currency: "USD", AmountMinor: 100}
	if errs := hold.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid hold, got %v", errs)
	}

	hold = domain.EscrowHold{AmountMinor: -1}
	if errs := hold.Validate(); len(errs) != 3 {
		t.Fatalf("expected 3 validation errors, got %v", errs)
	}
}
