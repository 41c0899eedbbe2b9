package inventory

import (
	log "github.com/sirupsen/logrus"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// AlertSink получает уведомления о смене алертов по товару.
// Ошибка доставки не откатывает мутацию стока.
type AlertSink interface {
	StockAlertChanged(record domain.InventoryRecord, alert domain.StockAlert, active bool)
}

// GuardDecision — вердикт быстрой проверки доступности.
type GuardDecision int

const (
	// GuardUnknown — guard не знает остаток, решение за хранилищем.
	GuardUnknown GuardDecision = iota
	// GuardAllow — остаток списан в guard, можно резервировать.
	GuardAllow
	// GuardDeny — доступного остатка не хватает.
	GuardDeny
)

// AvailabilityGuard — опциональный быстрый счётчик доступного остатка
// перед обращением к основному хранилищу. Ошибки guard не блокируют
// операции: источник истины всегда репозиторий.
type AvailabilityGuard interface {
	// TryReserve атомарно проверяет и списывает доступный остаток.
	TryReserve(productID string, qty int64) (GuardDecision, error)
	// Restore возвращает остаток после отказа хранилища. Вызывается
	// только после GuardAllow.
	Restore(productID string, qty int64) error
	// Sync выставляет счётчик по авторитетной записи.
	Sync(record domain.InventoryRecord) error
}

// Manager ведёт складские резервы: soft-резерв при оформлении, commit при
// финализации продажи, release при отмене. Атомарность условных мутаций
// обеспечивает репозиторий; менеджер добавляет rollback частичных резервов
// и публикацию алертов.
type Manager struct {
	records domain.InventoryRepository
	alerts  AlertSink
	guard   AvailabilityGuard
	logger  *log.Entry
}

// Option настраивает менеджер резервов.
type Option func(*Manager)

// WithAvailabilityGuard подключает быстрый счётчик доступности.
func WithAvailabilityGuard(guard AvailabilityGuard) Option {
	return func(m *Manager) {
		m.guard = guard
	}
}

// NewManager создаёт менеджер резервов.
func NewManager(records domain.InventoryRepository, alerts AlertSink, logger *log.Entry, options ...Option) *Manager {
	if logger == nil {
		logger = log.New().WithField("component", "inventory")
	}
	m := &Manager{records: records, alerts: alerts, logger: logger}
	for _, option := range options {
		option(m)
	}
	return m
}

// ReserveItems резервирует все позиции заказа. При отказе на любой позиции
// уже сделанные резервы снимаются — частичный резерв не остаётся.
func (m *Manager) ReserveItems(orderID string, items []domain.OrderItem) error {
	reserved := make([]domain.OrderItem, 0, len(items))

	for _, item := range items {
		qty := int64(item.Qty)

		decision := m.guardReserve(item.ProductID, qty)
		if decision == GuardDeny {
			m.logger.WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": item.ProductID,
				"qty":        item.Qty,
			}).Warn("reserve denied by availability guard")
			m.rollback(orderID, reserved)
			return domain.ErrInsufficientStock
		}

		before, getErr := m.records.Get(item.ProductID)
		record, err := m.records.Reserve(item.ProductID, qty)
		if err != nil {
			if decision == GuardAllow {
				m.guardRestore(item.ProductID, qty)
			}
			m.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": item.ProductID,
				"qty":        item.Qty,
			}).Warn("reserve failed, rolling back partial reservation")
			m.rollback(orderID, reserved)
			return err
		}
		m.syncGuard(record)
		reserved = append(reserved, item)
		if getErr == nil {
			m.emitAlertChanges(before, record)
		}
	}

	m.logger.WithFields(log.Fields{
		"order_id": orderID,
		"items":    len(items),
	}).Debug("reservation complete")
	return nil
}

// ReleaseItems снимает резерв по позициям заказа (отмена до отгрузки).
func (m *Manager) ReleaseItems(orderID string, items []domain.OrderItem) error {
	var firstErr error
	for _, item := range items {
		before, getErr := m.records.Get(item.ProductID)
		record, err := m.records.Release(item.ProductID, int64(item.Qty))
		if err != nil {
			m.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": item.ProductID,
			}).Warn("release failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.syncGuard(record)
		if getErr == nil {
			m.emitAlertChanges(before, record)
		}
	}
	return firstErr
}

// CommitItems финализирует продажу: перманентное списание стока.
func (m *Manager) CommitItems(orderID string, items []domain.OrderItem) error {
	for _, item := range items {
		before, getErr := m.records.Get(item.ProductID)
		record, err := m.records.Commit(item.ProductID, int64(item.Qty))
		if err != nil {
			m.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": item.ProductID,
			}).Error("commit failed")
			return err
		}
		m.syncGuard(record)
		if getErr == nil {
			m.emitAlertChanges(before, record)
		}
	}
	return nil
}

// Adjust корректирует текущий сток в обход резервов (приёмка, брак, инвентаризация).
func (m *Manager) Adjust(productID string, delta int64, reason string) (domain.InventoryRecord, error) {
	before, getErr := m.records.Get(productID)
	record, err := m.records.Adjust(productID, delta)
	if err != nil {
		return domain.InventoryRecord{}, err
	}

	m.logger.WithFields(log.Fields{
		"product_id": productID,
		"delta":      delta,
		"reason":     reason,
		"current":    record.CurrentStock,
	}).Info("stock adjusted")
	m.syncGuard(record)
	if getErr == nil {
		m.emitAlertChanges(before, record)
	}
	return record, nil
}

// Get возвращает запись инвентаря.
func (m *Manager) Get(productID string) (domain.InventoryRecord, error) {
	return m.records.Get(productID)
}

// Register заводит запись инвентаря для нового товара.
func (m *Manager) Register(record domain.InventoryRecord) error {
	return m.records.Create(record)
}

func (m *Manager) rollback(orderID string, reserved []domain.OrderItem) {
	for _, item := range reserved {
		record, err := m.records.Release(item.ProductID, int64(item.Qty))
		if err != nil {
			m.logger.WithError(err).WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": item.ProductID,
			}).Error("rollback release failed")
			continue
		}
		m.syncGuard(record)
	}
}

func (m *Manager) guardReserve(productID string, qty int64) GuardDecision {
	if m.guard == nil {
		return GuardUnknown
	}
	decision, err := m.guard.TryReserve(productID, qty)
	if err != nil {
		m.logger.WithError(err).WithField("product_id", productID).Warn("availability guard unavailable")
		return GuardUnknown
	}
	return decision
}

func (m *Manager) guardRestore(productID string, qty int64) {
	if err := m.guard.Restore(productID, qty); err != nil {
		m.logger.WithError(err).WithField("product_id", productID).Warn("availability guard restore failed")
	}
}

func (m *Manager) syncGuard(record domain.InventoryRecord) {
	if m.guard == nil {
		return
	}
	if err := m.guard.Sync(record); err != nil {
		m.logger.WithError(err).WithField("product_id", record.ProductID).Warn("availability guard sync failed")
	}
}

// emitAlertChanges сравнивает наборы алертов до и после мутации и
// отправляет только фактические изменения.
func (m *Manager) emitAlertChanges(before, after domain.InventoryRecord) {
	if m.alerts == nil {
		return
	}

	all := []domain.StockAlert{domain.AlertLowStock, domain.AlertOutOfStock, domain.AlertOverstock}
	for _, alert := range all {
		was := before.HasAlert(alert)
		now := after.HasAlert(alert)
		if was != now {
			m.alerts.StockAlertChanged(after, alert, now)
		}
	}
}
