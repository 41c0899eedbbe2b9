package saga

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/messaging/kafka"
)

// CheckoutRequest — входные данные чекаута.
type CheckoutRequest struct {
	BuyerID        string
	SellerID       string
	Currency       string
	DeliveryMethod string
	Items          []domain.OrderItem
}

// Checkout проводит заказ по цепочке pending → payment_pending → confirmed →
// escrow_funded. Отказ на любом шаге оставляет заказ в статусе, отражающем
// фактически достигнутый прогресс.
func (m *Machine) Checkout(ctx context.Context, req CheckoutRequest) (domain.Order, error) {
	start := time.Now()
	if m.metrics != nil {
		m.metrics.RecordCheckoutStarted()
		defer func() {
			m.metrics.RecordStepDuration(string(domain.StepPay), time.Since(start))
		}()
	}

	now := time.Now().UTC()
	var amount int64
	items := make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		items[i] = item
		amount += int64(item.Qty) * item.UnitPriceMinor
	}

	order := domain.Order{
		ID:             uuid.NewString(),
		BuyerID:        req.BuyerID,
		SellerID:       req.SellerID,
		Status:         domain.OrderStatusPending,
		Currency:       req.Currency,
		AmountMinor:    amount,
		Items:          items,
		DeliveryMethod: req.DeliveryMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		return domain.Order{}, errs[0]
	}

	if err := m.orders.Create(order); err != nil {
		return domain.Order{}, err
	}
	if m.metrics != nil {
		m.metrics.RecordOrderOpened()
	}
	if err := m.history.Append(domain.StatusHistoryEntry{
		OrderID:  order.ID,
		Status:   order.Status,
		Actor:    domain.Actor{ID: order.BuyerID, Kind: domain.ActorBuyer},
		Note:     "order created",
		Occurred: now,
	}); err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Warn("append status history failed")
	}
	m.emitEvent(&order, string(kafka.EventTypeOrderCheckedOut), map[string]interface{}{
		"buyer_id":  order.BuyerID,
		"seller_id": order.SellerID,
		"amount":    order.AmountMinor,
		"currency":  order.Currency,
	})

	buyer := domain.Actor{ID: order.BuyerID, Kind: domain.ActorBuyer}

	// Резерв при входе в оплату; при нехватке стока заказ отменяется сразу.
	if err := m.applyEdge(ctx, &order, domain.OrderStatusPaymentPending, buyer, "checkout"); err != nil {
		if cancelErr := m.applyEdge(ctx, &order, domain.OrderStatusCancelled, domain.SystemActor(), "reservation failed"); cancelErr != nil {
			m.logger.WithError(cancelErr).WithField("order_id", order.ID).Error("cancel after failed reservation failed")
		}
		return order, err
	}

	payment, err := m.payments.Begin(order.ID, order.BuyerID, order.AmountMinor, order.Currency)
	if err != nil {
		return order, err
	}
	order.PaymentID = payment.ID
	order.UpdatedAt = time.Now().UTC()
	if err := m.orders.Save(order); err != nil {
		return order, err
	}
	order.Version++

	return m.runPayment(ctx, order)
}

// RetryPayment повторяет оплату заказа после payment_failed. Ручной повтор
// заводит новый логический платёж: исчерпанный платёж остаётся в истории со
// своим терминальным исходом, нумерация попыток начинается заново. Заказ снова
// резервирует позиции.
func (m *Machine) RetryPayment(ctx context.Context, orderID string, actor domain.Actor) (domain.Order, error) {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusPaymentFailed {
		return order, domain.NewTransitionError(order.ID, order.Status, domain.OrderStatusPaymentPending)
	}

	if err := m.applyEdge(ctx, &order, domain.OrderStatusPaymentPending, actor, "payment retry"); err != nil {
		return order, err
	}

	payment, err := m.payments.Begin(order.ID, order.BuyerID, order.AmountMinor, order.Currency)
	if err != nil {
		return order, err
	}
	order.PaymentID = payment.ID
	order.UpdatedAt = time.Now().UTC()
	if err := m.orders.Save(order); err != nil {
		return order, err
	}
	order.Version++

	return m.runPayment(ctx, order)
}

// runPayment выполняет цикл попыток и двигает заказ по исходу платежа.
func (m *Machine) runPayment(ctx context.Context, order domain.Order) (domain.Order, error) {
	payment, payErr := m.payments.Execute(ctx, order.PaymentID)

	if m.metrics != nil {
		m.metrics.RecordPaymentAttempt(string(payment.Outcome))
	}

	if payErr != nil || payment.Outcome != domain.PaymentOutcomeSuccess {
		m.logger.WithError(payErr).WithFields(log.Fields{
			"order_id":   order.ID,
			"payment_id": order.PaymentID,
			"outcome":    payment.Outcome,
		}).Warn("payment did not succeed")
		m.publishPipelineEvent(kafka.EventTypePaymentFailed, order.ID, map[string]interface{}{
			"payment_id": order.PaymentID,
			"error_kind": string(payment.LastErrorKind),
		})

		if err := m.applyEdge(ctx, &order, domain.OrderStatusPaymentFailed, domain.SystemActor(), "payment attempts exhausted"); err != nil {
			m.logger.WithError(err).WithField("order_id", order.ID).Error("transition to payment_failed failed")
		}
		return order, payErr
	}

	m.publishPipelineEvent(kafka.EventTypePaymentSucceeded, order.ID, map[string]interface{}{
		"payment_id": payment.ID,
		"attempts":   payment.Attempts,
	})

	if err := m.applyEdge(ctx, &order, domain.OrderStatusConfirmed, domain.SystemActor(), "payment confirmed"); err != nil {
		return order, err
	}
	if err := m.applyEdge(ctx, &order, domain.OrderStatusEscrowFunded, domain.SystemActor(), "escrow funded"); err != nil {
		return order, err
	}
	return order, nil
}

// ConfirmSatisfaction — явное подтверждение покупателя после доставки:
// delivered → completed с пометкой удовлетворённости.
func (m *Machine) ConfirmSatisfaction(ctx context.Context, orderID string, actor domain.Actor) (domain.Order, error) {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusDelivered {
		return order, domain.NewTransitionError(order.ID, order.Status, domain.OrderStatusCompleted)
	}

	order.SatisfactionStatus = true
	if err := m.applyEdge(ctx, &order, domain.OrderStatusCompleted, actor, "buyer confirmed satisfaction"); err != nil {
		return order, err
	}
	return order, nil
}
