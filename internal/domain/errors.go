package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора покупателя.
	ErrBuyerRequired = errors.New("buyer_id is required")
	// Ошибка отсутствующего идентификатора продавца.
	ErrSellerRequired = errors.New("seller_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка статуса вне замкнутого набора.
	ErrStatusUnknown = errors.New("order status is not a known status")
	// Ошибка отсутствующего идентификатора заказа в связанных сущностях.
	ErrOrderIDRequired = errors.New("order_id is required")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении (optimistic locking).
	ErrVersionConflict = errors.New("version conflict")

	// ErrInsufficientStock — доступного стока не хватает под резерв.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInventoryNotFound — запись инвентаря для товара отсутствует.
	ErrInventoryNotFound = errors.New("inventory record not found")
	// ErrStockInvariant — операция нарушила бы инвариант reserved <= current.
	ErrStockInvariant = errors.New("operation would violate stock invariant")

	// ErrEscrowAlreadyFunded — по заказу уже существует эскроу-холд.
	ErrEscrowAlreadyFunded = errors.New("escrow hold already funded for order")
	// ErrHoldNotFound — эскроу-холд не найден.
	ErrHoldNotFound = errors.New("escrow hold not found")
	// ErrInvalidHoldState — операция недопустима для текущего статуса холда.
	ErrInvalidHoldState = errors.New("invalid escrow hold state")

	// ErrPaymentNotFound — логический платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentAlreadySucceeded — по логическому платежу уже есть успешная попытка.
	ErrPaymentAlreadySucceeded = errors.New("payment already succeeded")

	// ErrDisputeNotFound — спор не найден.
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrDisputeClosed — спор уже разрешён.
	ErrDisputeClosed = errors.New("dispute already resolved")
	// ErrDisputeReasonRequired — спор без причины не принимается.
	ErrDisputeReasonRequired = errors.New("dispute reason is required")
	// ErrDisputeResolutionInvalid — запрошенная диспозиция вне замкнутого набора.
	ErrDisputeResolutionInvalid = errors.New("dispute resolution must be release or refund")

	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyKeyNotFound — ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyHashMismatch — тот же ключ пришёл с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// TransitionError описывает попытку нелегального перехода статуса заказа.
// Переход вне таблицы — всегда программная ошибка или гонка; статус заказа не меняется.
type TransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s for order %s", e.From, e.To, e.OrderID)
}

// NewTransitionError создаёт ошибку нелегального перехода.
func NewTransitionError(orderID string, from, to OrderStatus) *TransitionError {
	return &TransitionError{OrderID: orderID, From: from, To: to}
}

// IsTransitionError проверяет, является ли ошибка нарушением таблицы переходов.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// PaymentErrorKind классифицирует отказ платёжного шлюза.
type PaymentErrorKind string

const (
	PaymentErrNetwork           PaymentErrorKind = "network_error"
	PaymentErrTimeout           PaymentErrorKind = "timeout"
	PaymentErrCardDeclined      PaymentErrorKind = "card_declined"
	PaymentErrInsufficientFunds PaymentErrorKind = "insufficient_funds"
	PaymentErrInvalidCard       PaymentErrorKind = "invalid_card"
	PaymentErrExpiredCard       PaymentErrorKind = "expired_card"
	PaymentErrUnknown           PaymentErrorKind = "unknown"
)

// Retryable сообщает, имеет ли смысл повторная попытка при данном виде отказа.
func (k PaymentErrorKind) Retryable() bool {
	switch k {
	case PaymentErrNetwork, PaymentErrTimeout, PaymentErrUnknown:
		return true
	default:
		return false
	}
}

// PaymentError — классифицированная ошибка платёжной попытки.
type PaymentError struct {
	Kind    PaymentErrorKind
	Message string
}

func (e *PaymentError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable делегирует классификации вида ошибки.
func (e *PaymentError) Retryable() bool {
	return e.Kind.Retryable()
}

// NewPaymentError создаёт классифицированную платёжную ошибку.
func NewPaymentError(kind PaymentErrorKind, message string) *PaymentError {
	return &PaymentError{Kind: kind, Message: message}
}

// ClassifyPaymentError приводит произвольную ошибку шлюза к PaymentError.
// Неизвестные ошибки считаются retryable (kind=unknown).
func ClassifyPaymentError(err error) *PaymentError {
	if err == nil {
		return nil
	}
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe
	}
	return &PaymentError{Kind: PaymentErrUnknown, Message: err.Error()}
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
