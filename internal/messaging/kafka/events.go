package kafka

import "time"

// EventType определяет тип события пайплайна.
type EventType string

const (
	// События заказа
	EventTypeOrderCheckedOut    EventType = "order.checked_out"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderCompleted     EventType = "order.completed"
	EventTypeOrderCancelled     EventType = "order.cancelled"
	EventTypeOrderRefunded      EventType = "order.refunded"

	// События платежей
	EventTypePaymentSucceeded EventType = "payment.succeeded"
	EventTypePaymentFailed    EventType = "payment.failed"

	// События эскроу
	EventTypeEscrowFunded   EventType = "escrow.funded"
	EventTypeEscrowReleased EventType = "escrow.released"
	EventTypeEscrowRefunded EventType = "escrow.refunded"
	EventTypeEscrowFrozen   EventType = "escrow.frozen"

	// События споров
	EventTypeDisputeOpened   EventType = "dispute.opened"
	EventTypeDisputeResolved EventType = "dispute.resolved"

	// События склада
	EventTypeStockAlert EventType = "inventory.stock_alert"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "checkout.order.events"
	TopicPipelineEvents  = "checkout.pipeline.events"
	TopicDeadLetterQueue = "checkout.dlq"
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// PipelineEvent представляет событие чекаут-пайплайна.
type PipelineEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewPipelineEvent создаёт новое событие пайплайна.
func NewPipelineEvent(eventType EventType, orderID string, metadata map[string]interface{}) *PipelineEvent {
	return &PipelineEvent{
		EventType: eventType,
		OrderID:   orderID,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
