package saga

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/messaging/kafka"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/metrics"
)

// InventoryService — операции менеджера резервов, нужные стейт-машине.
type InventoryService interface {
	ReserveItems(orderID string, items []domain.OrderItem) error
	ReleaseItems(orderID string, items []domain.OrderItem) error
	CommitItems(orderID string, items []domain.OrderItem) error
}

// EscrowService — операции эскроу, нужные стейт-машине.
type EscrowService interface {
	Fund(orderID string, amountMinor int64, currency string) (domain.EscrowHold, error)
	Release(holdID, payeeID string) (domain.EscrowHold, error)
	Refund(holdID, payeeID string) (domain.EscrowHold, error)
	Freeze(holdID string) (domain.EscrowHold, error)
	ResolveFrozen(holdID string, disposition domain.Disposition, payeeID string) (domain.EscrowHold, error)
}

// PaymentService — операции платёжного координатора, нужные стейт-машине.
type PaymentService interface {
	Begin(orderID, buyerID string, amountMinor int64, currency string) (domain.Payment, error)
	Execute(ctx context.Context, paymentID string) (domain.Payment, error)
}

// Config задаёт тайминги отложенных переходов.
type Config struct {
	// AutoAdvanceDelay — пауза между автоматическими логистическими переходами.
	AutoAdvanceDelay time.Duration
	// ConfirmTimeout — срок ожидания подтверждения покупателя после доставки.
	ConfirmTimeout time.Duration
}

// DefaultConfig возвращает тайминги по умолчанию.
func DefaultConfig() Config {
	return Config{
		AutoAdvanceDelay: 15 * time.Second,
		ConfirmTimeout:   7 * 24 * time.Hour,
	}
}

// Option настраивает Machine.
type Option func(*Machine)

// WithLogger задаёт logger стейт-машины.
func WithLogger(logger *log.Entry) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithMetrics включает сбор метрик пайплайна.
func WithMetrics(pm *metrics.PipelineMetrics) Option {
	return func(m *Machine) {
		m.metrics = pm
	}
}

// WithKafkaProducer включает публикацию событий пайплайна в Kafka.
func WithKafkaProducer(producer *kafka.Producer) Option {
	return func(m *Machine) {
		m.kafkaProducer = producer
	}
}

// WithConfig задаёт тайминги отложенных переходов.
func WithConfig(config Config) Option {
	return func(m *Machine) {
		m.config = config
	}
}

// Machine — единственная точка мутации статуса заказа. Все побочные эффекты
// (резервы, эскроу, расписание, история, события) привязаны к рёбрам таблицы
// переходов и выполняются только при принятии соответствующего перехода.
type Machine struct {
	orders    domain.OrderRepository
	history   domain.HistoryRepository
	schedule  domain.ScheduleRepository
	outbox    domain.OutboxRepository
	inventory InventoryService
	escrow    EscrowService
	payments  PaymentService

	config        Config
	logger        *log.Entry
	metrics       *metrics.PipelineMetrics
	kafkaProducer *kafka.Producer
}

// NewMachine создаёт стейт-машину заказов.
func NewMachine(
	orders domain.OrderRepository,
	history domain.HistoryRepository,
	schedule domain.ScheduleRepository,
	outbox domain.OutboxRepository,
	inventory InventoryService,
	escrow EscrowService,
	payments PaymentService,
	options ...Option,
) *Machine {
	m := &Machine{
		orders:    orders,
		history:   history,
		schedule:  schedule,
		outbox:    outbox,
		inventory: inventory,
		escrow:    escrow,
		payments:  payments,
		config:    DefaultConfig(),
	}
	for _, option := range options {
		option(m)
	}
	if m.logger == nil {
		m.logger = log.New().WithField("component", "order-machine")
	}
	return m
}

// Get возвращает заказ.
func (m *Machine) Get(orderID string) (domain.Order, error) {
	return m.orders.Get(orderID)
}

// History возвращает историю статусов заказа в порядке принятия переходов.
func (m *Machine) History(orderID string) ([]domain.StatusHistoryEntry, error) {
	return m.history.List(orderID)
}

// LinkDispute привязывает открытый спор к заказу.
func (m *Machine) LinkDispute(orderID, disputeID string) error {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return err
	}
	order.DisputeID = disputeID
	order.UpdatedAt = time.Now().UTC()
	return m.orders.Save(order)
}

// Advance переводит заказ в target, выполняя побочные эффекты ребра.
// Нелегальный переход возвращает TransitionError и не меняет заказ.
func (m *Machine) Advance(ctx context.Context, orderID string, target domain.OrderStatus, actor domain.Actor, note string) (domain.Order, error) {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if err := m.applyEdge(ctx, &order, target, actor, note); err != nil {
		return order, err
	}
	return order, nil
}

// applyEdge выполняет эффекты ребра order.Status → target и сохраняет переход.
func (m *Machine) applyEdge(ctx context.Context, order *domain.Order, target domain.OrderStatus, actor domain.Actor, note string) error {
	from := order.Status
	if !from.CanTransitionTo(target) {
		if m.metrics != nil {
			m.metrics.RecordTransitionRejected()
		}
		return domain.NewTransitionError(order.ID, from, target)
	}

	var mutate func(*domain.Order)

	switch target {
	case domain.OrderStatusPaymentPending:
		// Вход в оплату всегда сопровождается активным резервом.
		if err := m.inventory.ReserveItems(order.ID, order.Items); err != nil {
			return err
		}

	case domain.OrderStatusPaymentFailed:
		// Исчерпанные попытки оплаты освобождают резерв до ручного повтора.
		if err := m.inventory.ReleaseItems(order.ID, order.Items); err != nil {
			m.logger.WithError(err).WithField("order_id", order.ID).Warn("release after payment failure failed")
		}

	case domain.OrderStatusEscrowFunded:
		hold, err := m.escrow.Fund(order.ID, order.AmountMinor, order.Currency)
		if err != nil {
			return err
		}
		mutate = func(o *domain.Order) { o.EscrowHoldID = hold.ID }
		if m.metrics != nil {
			m.metrics.RecordEscrowDisposition("funded")
		}

	case domain.OrderStatusDisputed:
		if order.EscrowHoldID != "" {
			if _, err := m.escrow.Freeze(order.EscrowHoldID); err != nil {
				return err
			}
		}

	case domain.OrderStatusCompleted:
		if err := m.settleToSeller(order, from); err != nil {
			return err
		}

	case domain.OrderStatusRefunded:
		if err := m.settleToBuyer(order, from); err != nil {
			return err
		}

	case domain.OrderStatusCancelled:
		m.compensateCancel(order, from)
	}

	if err := m.transition(order, target, actor, note, mutate); err != nil {
		return err
	}

	m.afterEntry(order, from, actor)
	return nil
}

// settleToSeller выплачивает эскроу продавцу и окончательно списывает сток.
func (m *Machine) settleToSeller(order *domain.Order, from domain.OrderStatus) error {
	if order.EscrowHoldID != "" {
		var err error
		if from == domain.OrderStatusDisputed {
			_, err = m.escrow.ResolveFrozen(order.EscrowHoldID, domain.DispositionRelease, order.SellerID)
		} else {
			_, err = m.escrow.Release(order.EscrowHoldID, order.SellerID)
		}
		if err != nil {
			return err
		}
		if m.metrics != nil {
			m.metrics.RecordEscrowDisposition("released")
		}
	}
	return m.inventory.CommitItems(order.ID, order.Items)
}

// settleToBuyer возвращает эскроу покупателю и снимает резерв.
func (m *Machine) settleToBuyer(order *domain.Order, from domain.OrderStatus) error {
	if order.EscrowHoldID != "" {
		var err error
		if from == domain.OrderStatusDisputed {
			_, err = m.escrow.ResolveFrozen(order.EscrowHoldID, domain.DispositionRefund, order.BuyerID)
		} else {
			_, err = m.escrow.Refund(order.EscrowHoldID, order.BuyerID)
		}
		if err != nil {
			return err
		}
		if m.metrics != nil {
			m.metrics.RecordEscrowDisposition("refunded")
		}
	}
	if err := m.inventory.ReleaseItems(order.ID, order.Items); err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Warn("release during refund failed")
	}
	return nil
}

// compensateCancel снимает резерв и возвращает эскроу при отмене.
// Компенсации best-effort: отказ компенсации не блокирует отмену.
func (m *Machine) compensateCancel(order *domain.Order, from domain.OrderStatus) {
	if from != domain.OrderStatusPending {
		if err := m.inventory.ReleaseItems(order.ID, order.Items); err != nil {
			m.logger.WithError(err).WithField("order_id", order.ID).Warn("release during cancel failed")
		}
	}
	if order.EscrowHoldID != "" {
		if _, err := m.escrow.Refund(order.EscrowHoldID, order.BuyerID); err != nil {
			m.logger.WithError(err).WithField("order_id", order.ID).Warn("escrow refund during cancel failed")
		} else if m.metrics != nil {
			m.metrics.RecordEscrowDisposition("refunded")
		}
	}
}

// transition сохраняет смену статуса с optimistic locking retry.
// При version conflict заказ перечитывается и легальность перехода проверяется заново.
func (m *Machine) transition(order *domain.Order, target domain.OrderStatus, actor domain.Actor, note string, mutate func(*domain.Order)) error {
	if order.Status == target {
		return nil
	}

	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		from := order.Status
		order.Status = target
		if mutate != nil {
			mutate(order)
		}
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		if err := m.orders.Save(*order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				m.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := m.orders.Get(order.ID)
				if loadErr != nil {
					return loadErr
				}
				*order = fresh

				if !order.Status.CanTransitionTo(target) {
					if m.metrics != nil {
						m.metrics.RecordTransitionRejected()
					}
					return domain.NewTransitionError(order.ID, order.Status, target)
				}

				time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
				continue
			}

			order.Status = from
			m.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist status")
			return err
		}

		order.Version = prevVersion + 1

		if err := m.history.Append(domain.StatusHistoryEntry{
			OrderID:  order.ID,
			Status:   target,
			Actor:    actor,
			Note:     note,
			Occurred: order.UpdatedAt,
		}); err != nil {
			m.logger.WithError(err).WithField("order_id", order.ID).Warn("append status history failed")
		}

		if m.metrics != nil {
			m.metrics.RecordTransition(string(from), string(target))
			if target.Terminal() {
				m.metrics.RecordOrderClosed()
			}
		}

		m.emitEvent(order, string(kafka.EventTypeOrderStatusChanged), map[string]interface{}{
			"from":   string(from),
			"to":     string(target),
			"actor":  string(actor.Kind),
			"status": string(target),
		})
		m.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"from":     from,
			"to":       target,
			"actor":    actor.Kind,
		}).Info("order transition accepted")
		return nil
	}

	return domain.ErrVersionConflict
}

// afterEntry ставит отложенные переходы и публикует доменные события входа в статус.
func (m *Machine) afterEntry(order *domain.Order, from domain.OrderStatus, actor domain.Actor) {
	switch order.Status {
	case domain.OrderStatusShipped:
		m.enqueueAuto(order, domain.OrderStatusShipped, domain.OrderStatusInTransit, m.config.AutoAdvanceDelay)
	case domain.OrderStatusInTransit:
		m.enqueueAuto(order, domain.OrderStatusInTransit, domain.OrderStatusOutForDelivery, m.config.AutoAdvanceDelay)
	case domain.OrderStatusOutForDelivery:
		m.enqueueAuto(order, domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered, m.config.AutoAdvanceDelay)
	case domain.OrderStatusDelivered:
		m.enqueueAuto(order, domain.OrderStatusDelivered, domain.OrderStatusCompleted, m.config.ConfirmTimeout)
	case domain.OrderStatusCompleted:
		m.publishPipelineEvent(kafka.EventTypeOrderCompleted, order.ID, map[string]interface{}{
			"buyer_id":  order.BuyerID,
			"seller_id": order.SellerID,
			"amount":    order.AmountMinor,
		})
	case domain.OrderStatusCancelled:
		m.publishPipelineEvent(kafka.EventTypeOrderCancelled, order.ID, map[string]interface{}{
			"buyer_id": order.BuyerID,
			"from":     string(from),
		})
	case domain.OrderStatusRefunded:
		m.publishPipelineEvent(kafka.EventTypeOrderRefunded, order.ID, map[string]interface{}{
			"buyer_id": order.BuyerID,
			"amount":   order.AmountMinor,
		})
	case domain.OrderStatusEscrowFunded:
		m.publishPipelineEvent(kafka.EventTypeEscrowFunded, order.ID, map[string]interface{}{
			"hold_id": order.EscrowHoldID,
			"amount":  order.AmountMinor,
		})
	}
}

// enqueueAuto ставит долговечную запись авто-перехода. Отмена не нужна:
// устаревшая запись отфильтруется по несовпадению исходного статуса.
func (m *Machine) enqueueAuto(order *domain.Order, from, to domain.OrderStatus, delay time.Duration) {
	if m.schedule == nil || delay <= 0 {
		return
	}

	_, err := m.schedule.Enqueue(domain.ScheduleEntry{
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   to,
		DueAt:      time.Now().UTC().Add(delay),
		Note:       "auto transition",
	})
	if err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"from":     from,
			"to":       to,
		}).Warn("enqueue auto transition failed")
	}
}

// emitEvent кладёт событие в transactional outbox.
func (m *Machine) emitEvent(order *domain.Order, eventType string, payload map[string]interface{}) {
	if m.outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	payload["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := m.outbox.Enqueue(msg); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
	} else if m.metrics != nil {
		m.metrics.RecordOutboxEvent()
	}
}

// publishPipelineEvent публикует событие в Kafka fire-and-forget (если producer настроен).
func (m *Machine) publishPipelineEvent(eventType kafka.EventType, orderID string, metadata map[string]interface{}) {
	if m.kafkaProducer == nil {
		return
	}

	event := kafka.NewPipelineEvent(eventType, orderID, metadata)
	if err := m.kafkaProducer.PublishEvent(kafka.TopicPipelineEvents, orderID, event); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"event_type": eventType,
			"order_id":   orderID,
		}).Warn("failed to publish pipeline event to kafka")
	}
}
