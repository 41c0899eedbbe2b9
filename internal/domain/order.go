package domain

import "time"

// OrderStatus описывает жизненный цикл заказа от оформления до расчёта.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, резервирование и оплата ещё не выполнены.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaymentPending — товары зарезервированы, платёж в работе у координатора.
	OrderStatusPaymentPending OrderStatus = "payment_pending"
	// OrderStatusPaymentFailed — платёж исчерпал попытки; выход только через новую ручную оплату.
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
	// OrderStatusConfirmed — оплата подтверждена, эскроу ещё не профинансирован.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusEscrowFunded — средства удержаны в эскроу под заказ.
	OrderStatusEscrowFunded OrderStatus = "escrow_funded"
	// OrderStatusProcessing — продавец собирает заказ.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusReadyForShipment — заказ готов к передаче перевозчику.
	OrderStatusReadyForShipment OrderStatus = "ready_for_shipment"
	// OrderStatusShipped — заказ передан перевозчику.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusInTransit — заказ в пути.
	OrderStatusInTransit OrderStatus = "in_transit"
	// OrderStatusOutForDelivery — заказ на последней миле.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered — заказ доставлен; ждём подтверждение покупателя или таймаут.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCompleted — средства выплачены продавцу, сток списан окончательно.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён до завершения цикла.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded — средства возвращены покупателю.
	OrderStatusRefunded OrderStatus = "refunded"
	// OrderStatusDisputed — по заказу открыт спор, эскроу заморожен.
	OrderStatusDisputed OrderStatus = "disputed"
	// OrderStatusReturned — покупатель вернул товар после доставки.
	OrderStatusReturned OrderStatus = "returned"
)

// statusSuccessors — замкнутая таблица переходов. Пустой набор означает терминальный статус.
var statusSuccessors = map[OrderStatus][]OrderStatus{
	OrderStatusPending:          {OrderStatusPaymentPending, OrderStatusCancelled},
	OrderStatusPaymentPending:   {OrderStatusConfirmed, OrderStatusPaymentFailed, OrderStatusCancelled},
	OrderStatusPaymentFailed:    {OrderStatusPaymentPending, OrderStatusCancelled},
	OrderStatusConfirmed:        {OrderStatusEscrowFunded, OrderStatusCancelled},
	OrderStatusEscrowFunded:     {OrderStatusProcessing, OrderStatusDisputed, OrderStatusCancelled},
	OrderStatusProcessing:       {OrderStatusReadyForShipment, OrderStatusDisputed, OrderStatusCancelled},
	OrderStatusReadyForShipment: {OrderStatusShipped, OrderStatusDisputed, OrderStatusCancelled},
	OrderStatusShipped:          {OrderStatusInTransit, OrderStatusDisputed},
	OrderStatusInTransit:        {OrderStatusOutForDelivery, OrderStatusDisputed},
	OrderStatusOutForDelivery:   {OrderStatusDelivered, OrderStatusDisputed},
	OrderStatusDelivered:        {OrderStatusCompleted, OrderStatusReturned, OrderStatusDisputed},
	OrderStatusReturned:         {OrderStatusRefunded},
	OrderStatusDisputed:         {OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusCompleted:        {},
	OrderStatusCancelled:        {},
	OrderStatusRefunded:         {},
}

// Valid проверяет, что статус входит в замкнутый набор.
func (s OrderStatus) Valid() bool {
	_, ok := statusSuccessors[s]
	return ok
}

// Terminal сообщает, является ли статус терминальным.
func (s OrderStatus) Terminal() bool {
	succ, ok := statusSuccessors[s]
	return ok && len(succ) == 0
}

// CanTransitionTo проверяет легальность ребра s → next по таблице переходов.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range statusSuccessors[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Successors возвращает копию набора допустимых следующих статусов.
func (s OrderStatus) Successors() []OrderStatus {
	succ := statusSuccessors[s]
	result := make([]OrderStatus, len(succ))
	copy(result, succ)
	return result
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — идентификатор товара в каталоге.
	ProductID string
	// Qty — количество единиц товара.
	Qty int32
	// UnitPriceMinor — цена за единицу в минимальных денежных единицах.
	UnitPriceMinor int64
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Order агрегирует состояние заказа. Мутируется только стейт-машиной,
// история статусов ведётся отдельным append-only репозиторием.
type Order struct {
	ID             string
	BuyerID        string
	SellerID       string
	Status         OrderStatus
	Currency       string
	AmountMinor    int64
	Items          []OrderItem
	DeliveryMethod string
	// EscrowHoldID пуст до финансирования эскроу.
	EscrowHoldID string
	// PaymentID — текущий логический платёж заказа.
	PaymentID string
	// DisputeID пуст, пока по заказу не открыт спор.
	DisputeID          string
	SatisfactionStatus bool
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if o.SellerID == "" {
		errs = append(errs, ErrSellerRequired)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.AmountMinor < 0 {
		errs = append(errs, ErrAmountNegative)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusUnknown)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.UnitPriceMinor
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
