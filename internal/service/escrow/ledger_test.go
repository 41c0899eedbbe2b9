package escrow_test

import (
	"errors"
	"testing"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/service/escrow"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/storage/memory"
)

func newLedger() *escrow.Ledger {
	return escrow.NewLedger(memory.NewEscrowRepository(), nil)
}

func TestLedger_FundOncePerOrder(t *testing.T) {
	ledger := newLedger()

	hold, err := ledger.Fund("order-1", 500, "USD")
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if hold.Status != domain.HoldStatusHeld {
		t.Fatalf("expected held, got %s", hold.Status)
	}

	if _, err := ledger.Fund("order-1", 500, "USD"); !errors.Is(err, domain.ErrEscrowAlreadyFunded) {
		t.Fatalf("expected ErrEscrowAlreadyFunded, got %v", err)
	}
}

func TestLedger_ReleaseIsIdempotent(t *testing.T) {
	ledger := newLedger()
	hold, _ := ledger.Fund("order-1", 500, "USD")

	first, err := ledger.Release(hold.ID, "seller-1")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if first.Status != domain.HoldStatusReleased || first.PayeeID != "seller-1" {
		t.Fatalf("unexpected hold after release: %+v", first)
	}

	second, err := ledger.Release(hold.ID, "seller-other")
	if err != nil {
		t.Fatalf("repeated release must be a no-op, got %v", err)
	}
	if second.PayeeID != "seller-1" {
		t.Fatalf("repeated release must return stored result, got payee %s", second.PayeeID)
	}
}

func TestLedger_ConflictingDispositionRejected(t *testing.T) {
	ledger := newLedger()
	hold, _ := ledger.Fund("order-1", 500, "USD")

	if _, err := ledger.Refund(hold.ID, "buyer-1"); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := ledger.Release(hold.ID, "seller-1"); !errors.Is(err, domain.ErrInvalidHoldState) {
		t.Fatalf("expected ErrInvalidHoldState, got %v", err)
	}
}

func TestLedger_FreezeBlocksDirectDisposition(t *testing.T) {
	ledger := newLedger()
	hold, _ := ledger.Fund("order-1", 500, "USD")

	frozen, err := ledger.Freeze(hold.ID)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if frozen.Status != domain.HoldStatusFrozen {
		t.Fatalf("expected frozen, got %s", frozen.Status)
	}

	// Повторная заморозка — no-op.
	if _, err := ledger.Freeze(hold.ID); err != nil {
		t.Fatalf("repeated freeze must be a no-op, got %v", err)
	}

	if _, err := ledger.Release(hold.ID, "seller-1"); !errors.Is(err, domain.ErrInvalidHoldState) {
		t.Fatalf("frozen hold must not be released directly, got %v", err)
	}

	resolved, err := ledger.ResolveFrozen(hold.ID, domain.DispositionRefund, "buyer-1")
	if err != nil {
		t.Fatalf("resolve frozen: %v", err)
	}
	if resolved.Status != domain.HoldStatusRefunded {
		t.Fatalf("expected refunded, got %s", resolved.Status)
	}
}

func TestLedger_FreezeAfterDispositionRejected(t *testing.T) {
	ledger := newLedger()
	hold, _ := ledger.Fund("order-1", 500, "USD")
	if _, err := ledger.Release(hold.ID, "seller-1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	if _, err := ledger.Freeze(hold.ID); !errors.Is(err, domain.ErrInvalidHoldState) {
		t.Fatalf("expected ErrInvalidHoldState, got %v", err)
	}
}

func TestLedger_ResolveFrozenValidatesDisposition(t *testing.T) {
	ledger := newLedger()
	hold, _ := ledger.Fund("order-1", 500, "USD")
	if _, err := ledger.Freeze(hold.ID); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	if _, err := ledger.ResolveFrozen(hold.ID, domain.Disposition("split"), "seller-1"); !errors.Is(err, domain.ErrDisputeResolutionInvalid) {
		t.Fatalf("expected ErrDisputeResolutionInvalid, got %v", err)
	}
}
