package domain

import (
	"fmt"
	"time"
)

// PaymentOutcome описывает исход логического платежа или отдельной попытки.
type PaymentOutcome string

const (
	// PaymentOutcomePending — попытка инициирована, исход не известен.
	PaymentOutcomePending PaymentOutcome = "pending"
	// PaymentOutcomeSuccess — списание подтверждено шлюзом.
	PaymentOutcomeSuccess PaymentOutcome = "success"
	// PaymentOutcomeFailed — шлюз отказал или попытки исчерпаны.
	PaymentOutcomeFailed PaymentOutcome = "failed"
	// PaymentOutcomeCancelled — платёж отменён до терминального исхода.
	PaymentOutcomeCancelled PaymentOutcome = "cancelled"
	// PaymentOutcomeTimeout — попытка не уложилась в лимит времени.
	PaymentOutcomeTimeout PaymentOutcome = "timeout"
)

// Terminal сообщает, является ли исход логического платежа окончательным.
func (o PaymentOutcome) Terminal() bool {
	return o == PaymentOutcomeSuccess || o == PaymentOutcomeFailed || o == PaymentOutcomeCancelled
}

// Payment — логический платёж: стабильный ID на все retry-попытки одного списания.
// Инвариант: не более одной успешной попытки; после успеха новые попытки не выпускаются.
type Payment struct {
	ID          string
	OrderID     string
	BuyerID     string
	AmountMinor int64
	Currency    string
	Outcome     PaymentOutcome
	// Attempts — число уже выпущенных попыток.
	Attempts int32
	// LastErrorKind хранит классификацию последнего отказа.
	LastErrorKind PaymentErrorKind
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate проверяет корректность полей логического платежа.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if p.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	return errs
}

// PaymentAttempt — одна попытка списания в рамках логического платежа.
type PaymentAttempt struct {
	PaymentID string
	Seq       int32
	// GatewayRef уникален на попытку: внешний шлюз трактует каждый reference
	// как отдельное списание, поэтому источником идемпотентности служит координатор.
	GatewayRef string
	// TxnID — идентификатор транзакции шлюза при успехе.
	TxnID     string
	Outcome   PaymentOutcome
	ErrorKind PaymentErrorKind
	CreatedAt time.Time
}

// GatewayReference строит reference попытки из логического ID и номера попытки.
func GatewayReference(paymentID string, seq int32) string {
	return fmt.Sprintf("%s-%d", paymentID, seq)
}
