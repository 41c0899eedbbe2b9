package escrow

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// Ledger ведёт эскроу-холды заказов. Каждый холд получает ровно одну
// терминальную диспозицию; повтор той же диспозиции — no-op, возвращающий
// исходный результат (толерантность к at-least-once доставке событий).
type Ledger struct {
	holds  domain.EscrowRepository
	logger *log.Entry
}

// NewLedger создаёт сервис эскроу.
func NewLedger(holds domain.EscrowRepository, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "escrow")
	}
	return &Ledger{holds: holds, logger: logger}
}

// Fund создаёт холд под заказ. Второй вызов для того же заказа — ErrEscrowAlreadyFunded.
func (l *Ledger) Fund(orderID string, amountMinor int64, currency string) (domain.EscrowHold, error) {
	hold := domain.EscrowHold{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		AmountMinor: amountMinor,
		Currency:    currency,
		Status:      domain.HoldStatusHeld,
		CreatedAt:   time.Now().UTC(),
	}
	if errs := hold.Validate(); len(errs) != 0 {
		return domain.EscrowHold{}, errs[0]
	}

	if err := l.holds.Create(hold); err != nil {
		return domain.EscrowHold{}, err
	}

	l.logger.WithFields(log.Fields{
		"hold_id":      hold.ID,
		"order_id":     orderID,
		"amount_minor": amountMinor,
	}).Info("escrow hold funded")
	return hold, nil
}

// Get возвращает холд по ID.
func (l *Ledger) Get(holdID string) (domain.EscrowHold, error) {
	return l.holds.Get(holdID)
}

// GetByOrder возвращает холд заказа.
func (l *Ledger) GetByOrder(orderID string) (domain.EscrowHold, error) {
	return l.holds.GetByOrder(orderID)
}

// Release выплачивает средства продавцу.
func (l *Ledger) Release(holdID, payeeID string) (domain.EscrowHold, error) {
	return l.dispose(holdID, payeeID, domain.HoldStatusReleased, false)
}

// Refund возвращает средства покупателю.
func (l *Ledger) Refund(holdID, payeeID string) (domain.EscrowHold, error) {
	return l.dispose(holdID, payeeID, domain.HoldStatusRefunded, false)
}

// Freeze замораживает холд на время спора. Повторная заморозка — no-op.
func (l *Ledger) Freeze(holdID string) (domain.EscrowHold, error) {
	hold, err := l.holds.Get(holdID)
	if err != nil {
		return domain.EscrowHold{}, err
	}

	if hold.Status == domain.HoldStatusFrozen {
		return hold, nil
	}
	if !hold.CanTransitionTo(domain.HoldStatusFrozen) {
		return domain.EscrowHold{}, domain.ErrInvalidHoldState
	}

	hold.Status = domain.HoldStatusFrozen
	if err := l.holds.Save(hold); err != nil {
		return domain.EscrowHold{}, err
	}

	l.logger.WithFields(log.Fields{
		"hold_id":  hold.ID,
		"order_id": hold.OrderID,
	}).Info("escrow hold frozen")
	return hold, nil
}

// ResolveFrozen применяет диспозицию к замороженному холду —
// единственный путь, которым замороженный холд когда-либо диспонируется.
func (l *Ledger) ResolveFrozen(holdID string, disposition domain.Disposition, payeeID string) (domain.EscrowHold, error) {
	if !disposition.Valid() {
		return domain.EscrowHold{}, domain.ErrDisputeResolutionInvalid
	}

	target := domain.HoldStatusReleased
	if disposition == domain.DispositionRefund {
		target = domain.HoldStatusRefunded
	}
	return l.dispose(holdID, payeeID, target, true)
}

// dispose переводит холд в терминальный статус. Идемпотентность по паре
// (holdID, target): уже применённая диспозиция возвращает сохранённый холд.
func (l *Ledger) dispose(holdID, payeeID string, target domain.HoldStatus, fromFrozen bool) (domain.EscrowHold, error) {
	hold, err := l.holds.Get(holdID)
	if err != nil {
		return domain.EscrowHold{}, err
	}

	if hold.Status == target {
		l.logger.WithFields(log.Fields{
			"hold_id": hold.ID,
			"status":  hold.Status,
		}).Debug("disposition already applied, returning stored hold")
		return hold, nil
	}

	expected := domain.HoldStatusHeld
	if fromFrozen {
		expected = domain.HoldStatusFrozen
	}
	if hold.Status != expected || !hold.CanTransitionTo(target) {
		return domain.EscrowHold{}, domain.ErrInvalidHoldState
	}

	hold.Status = target
	hold.PayeeID = payeeID
	hold.DisposedAt = time.Now().UTC()
	if err := l.holds.Save(hold); err != nil {
		return domain.EscrowHold{}, err
	}

	l.logger.WithFields(log.Fields{
		"hold_id":  hold.ID,
		"order_id": hold.OrderID,
		"status":   hold.Status,
		"payee_id": payeeID,
	}).Info("escrow hold disposed")
	return hold, nil
}
