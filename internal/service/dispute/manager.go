package dispute

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/metrics"
)

// OrderMachine — операции стейт-машины, нужные менеджеру споров.
// Заморозка и диспозиция эскроу выполняются машиной как эффекты рёбер
// disputed → completed|refunded; менеджер статус заказа сам не трогает.
type OrderMachine interface {
	Get(orderID string) (domain.Order, error)
	Advance(ctx context.Context, orderID string, target domain.OrderStatus, actor domain.Actor, note string) (domain.Order, error)
	LinkDispute(orderID, disputeID string) error
}

// OpenRequest — данные для открытия спора.
type OpenRequest struct {
	OrderID             string
	OpenedBy            string
	Reason              string
	Description         string
	EvidenceRefs        []string
	RequestedResolution domain.Disposition
	Urgency             domain.DisputeUrgency
}

// Manager ведёт споры по заказам. Открытие спора замораживает эскроу через
// переход заказа в disputed; разрешение закрывает спор и распускает холд
// в сторону, зафиксированную исходом.
type Manager struct {
	disputes domain.DisputeRepository
	machine  OrderMachine
	logger   *log.Entry
	metrics  *metrics.PipelineMetrics
}

// Option настраивает Manager.
type Option func(*Manager)

// WithLogger задаёт logger менеджера споров.
func WithLogger(logger *log.Entry) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics включает сбор метрик по спорам.
func WithMetrics(pm *metrics.PipelineMetrics) Option {
	return func(m *Manager) {
		m.metrics = pm
	}
}

// NewManager создаёт менеджер споров.
func NewManager(disputes domain.DisputeRepository, machine OrderMachine, options ...Option) *Manager {
	m := &Manager{disputes: disputes, machine: machine}
	for _, option := range options {
		option(m)
	}
	if m.logger == nil {
		m.logger = log.New().WithField("component", "dispute-manager")
	}
	return m
}

// Open открывает спор: переводит заказ в disputed (с заморозкой эскроу)
// и фиксирует запись спора. Из статусов вне окна споров — TransitionError.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (domain.Dispute, error) {
	dispute := domain.Dispute{
		ID:                  uuid.NewString(),
		OrderID:             req.OrderID,
		OpenedBy:            req.OpenedBy,
		Reason:              req.Reason,
		Description:         req.Description,
		EvidenceRefs:        req.EvidenceRefs,
		RequestedResolution: req.RequestedResolution,
		Urgency:             req.Urgency,
		Status:              domain.DisputeStatusOpen,
		CreatedAt:           time.Now().UTC(),
	}
	if dispute.Urgency == "" {
		dispute.Urgency = domain.DisputeUrgencyNormal
	}
	if errs := dispute.Validate(); len(errs) != 0 {
		return domain.Dispute{}, errs[0]
	}

	actor := domain.Actor{ID: req.OpenedBy, Kind: domain.ActorBuyer}
	if req.OpenedBy == "" {
		actor = domain.SystemActor()
	}
	if _, err := m.machine.Advance(ctx, req.OrderID, domain.OrderStatusDisputed, actor, "dispute opened: "+req.Reason); err != nil {
		return domain.Dispute{}, err
	}

	if err := m.disputes.Create(dispute); err != nil {
		return domain.Dispute{}, err
	}
	if err := m.machine.LinkDispute(req.OrderID, dispute.ID); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id":   req.OrderID,
			"dispute_id": dispute.ID,
		}).Warn("link dispute to order failed")
	}

	if m.metrics != nil {
		m.metrics.RecordDisputeOpened()
	}
	m.logger.WithFields(log.Fields{
		"dispute_id": dispute.ID,
		"order_id":   req.OrderID,
		"urgency":    dispute.Urgency,
	}).Info("dispute opened")
	return dispute, nil
}

// Get возвращает спор.
func (m *Manager) Get(disputeID string) (domain.Dispute, error) {
	return m.disputes.Get(disputeID)
}

// StartReview берёт открытый спор в работу.
func (m *Manager) StartReview(disputeID string) (domain.Dispute, error) {
	dispute, err := m.disputes.Get(disputeID)
	if err != nil {
		return domain.Dispute{}, err
	}
	if dispute.Status == domain.DisputeStatusResolved {
		return domain.Dispute{}, domain.ErrDisputeClosed
	}
	if dispute.Status == domain.DisputeStatusUnderReview {
		return dispute, nil
	}

	dispute.Status = domain.DisputeStatusUnderReview
	if err := m.disputes.Save(dispute); err != nil {
		return domain.Dispute{}, err
	}
	return dispute, nil
}

// Resolve закрывает спор: release завершает заказ в пользу продавца,
// refund возвращает средства покупателю. Повторное разрешение — ErrDisputeClosed.
func (m *Manager) Resolve(ctx context.Context, disputeID string, outcome domain.Disposition, actor domain.Actor, note string) (domain.Dispute, error) {
	if !outcome.Valid() {
		return domain.Dispute{}, domain.ErrDisputeResolutionInvalid
	}

	dispute, err := m.disputes.Get(disputeID)
	if err != nil {
		return domain.Dispute{}, err
	}
	if dispute.Status == domain.DisputeStatusResolved {
		return domain.Dispute{}, domain.ErrDisputeClosed
	}

	target := domain.OrderStatusCompleted
	if outcome == domain.DispositionRefund {
		target = domain.OrderStatusRefunded
	}
	if _, err := m.machine.Advance(ctx, dispute.OrderID, target, actor, "dispute resolved: "+note); err != nil {
		return domain.Dispute{}, err
	}

	dispute.Status = domain.DisputeStatusResolved
	dispute.Outcome = outcome
	dispute.ResolvedAt = time.Now().UTC()
	if err := m.disputes.Save(dispute); err != nil {
		return domain.Dispute{}, err
	}

	if m.metrics != nil {
		m.metrics.RecordDisputeResolved()
	}
	m.logger.WithFields(log.Fields{
		"dispute_id": dispute.ID,
		"order_id":   dispute.OrderID,
		"outcome":    outcome,
	}).Info("dispute resolved")
	return dispute, nil
}
