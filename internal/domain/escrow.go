package domain

import "time"

// HoldStatus отражает статус эскроу-холда.
type HoldStatus string

const (
	// HoldStatusHeld — средства удержаны и ждут диспозиции.
	HoldStatusHeld HoldStatus = "held"
	// HoldStatusReleased — средства выплачены продавцу.
	HoldStatusReleased HoldStatus = "released"
	// HoldStatusRefunded — средства возвращены покупателю.
	HoldStatusRefunded HoldStatus = "refunded"
	// HoldStatusFrozen — холд заморожен до разрешения спора.
	HoldStatusFrozen HoldStatus = "frozen"
)

// Disposition — терминальное назначение средств холда.
type Disposition string

const (
	// DispositionRelease — выплата продавцу.
	DispositionRelease Disposition = "release"
	// DispositionRefund — возврат покупателю.
	DispositionRefund Disposition = "refund"
)

// Valid проверяет, что диспозиция входит в замкнутый набор.
func (d Disposition) Valid() bool {
	return d == DispositionRelease || d == DispositionRefund
}

// EscrowHold описывает удержанные под заказ средства (1:1 с заказом после финансирования).
// Сумма неизменна после создания; терминальная диспозиция наступает ровно один раз.
type EscrowHold struct {
	ID          string
	OrderID     string
	AmountMinor int64
	Currency    string
	Status      HoldStatus
	// PayeeID — получатель средств после диспозиции (продавец или покупатель).
	PayeeID    string
	CreatedAt  time.Time
	DisposedAt time.Time
}

// Disposed сообщает, получил ли холд терминальную диспозицию.
func (h *EscrowHold) Disposed() bool {
	return h.Status == HoldStatusReleased || h.Status == HoldStatusRefunded
}

// CanTransitionTo проверяет легальность смены статуса холда:
// held -> {released|refunded|frozen}, frozen -> {released|refunded}.
func (h *EscrowHold) CanTransitionTo(next HoldStatus) bool {
	switch h.Status {
	case HoldStatusHeld:
		return next == HoldStatusReleased || next == HoldStatusRefunded || next == HoldStatusFrozen
	case HoldStatusFrozen:
		return next == HoldStatusReleased || next == HoldStatusRefunded
	default:
		return false
	}
}

// Validate проверяет корректность ключевых полей холда.
func (h *EscrowHold) Validate() []error {
	var errs []error

	if h.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if h.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if h.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	return errs
}
