package domain

import "time"

// OrderRepository описывает требования к хранилищу заказов.
// Save применяет optimistic locking по полю Version: несовпадение версии
// возвращает ErrVersionConflict, и вызывающий перечитывает заказ.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ошибку, если запись с таким ID уже существует.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByBuyer возвращает заказы покупателя с опциональным ограничением на количество.
	ListByBuyer(buyerID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// EscrowRepository хранит эскроу-холды.
type EscrowRepository interface {
	// Create сохраняет новый холд; второй холд по заказу — ErrEscrowAlreadyFunded.
	Create(hold EscrowHold) error
	// Get возвращает холд по ID или ErrHoldNotFound.
	Get(id string) (EscrowHold, error)
	// GetByOrder возвращает холд заказа или ErrHoldNotFound.
	GetByOrder(orderID string) (EscrowHold, error)
	// Save перезаписывает холд; смена статуса валидируется сервисом эскроу.
	Save(hold EscrowHold) error
}

// InventoryRepository хранит счётчики стока. Мутации счётчиков — атомарные
// check-and-update операции на стороне хранилища, не read-then-write из приложения.
type InventoryRepository interface {
	// Create сохраняет новую запись инвентаря.
	Create(record InventoryRecord) error
	// Get возвращает запись или ErrInventoryNotFound.
	Get(productID string) (InventoryRecord, error)
	// Reserve атомарно увеличивает reserved при условии available >= qty,
	// иначе ErrInsufficientStock. Возвращает запись после мутации.
	Reserve(productID string, qty int64) (InventoryRecord, error)
	// Release атомарно уменьшает reserved (не ниже нуля).
	Release(productID string, qty int64) (InventoryRecord, error)
	// Commit атомарно списывает current и reserved на qty (финализация продажи).
	Commit(productID string, qty int64) (InventoryRecord, error)
	// Adjust атомарно меняет current на delta; нарушение reserved <= current — ErrStockInvariant.
	Adjust(productID string, delta int64) (InventoryRecord, error)
}

// PaymentRepository хранит логические платежи и их попытки.
type PaymentRepository interface {
	// CreatePayment сохраняет новый логический платёж.
	CreatePayment(payment Payment) error
	// GetPayment возвращает платёж или ErrPaymentNotFound.
	GetPayment(id string) (Payment, error)
	// SavePayment перезаписывает платёж.
	SavePayment(payment Payment) error
	// AppendAttempt фиксирует попытку списания.
	AppendAttempt(attempt PaymentAttempt) error
	// ListAttempts возвращает попытки платежа в порядке их выпуска.
	ListAttempts(paymentID string) ([]PaymentAttempt, error)
}

// DisputeRepository хранит споры.
type DisputeRepository interface {
	Create(dispute Dispute) error
	Get(id string) (Dispute, error)
	Save(dispute Dispute) error
}

// ScheduleRepository хранит долговечные записи авто-переходов.
type ScheduleRepository interface {
	// Enqueue сохраняет запись; пустой ID генерируется хранилищем.
	Enqueue(entry ScheduleEntry) (ScheduleEntry, error)
	// PullDue возвращает до limit pending-записей с DueAt <= now.
	PullDue(now time.Time, limit int) ([]ScheduleEntry, error)
	// MarkDone помечает запись применённой.
	MarkDone(id string) error
	// MarkSkipped помечает запись пропущенной (исходный статус не совпал).
	MarkSkipped(id string) error
}

// HistoryRepository хранит append-only историю статусов заказа.
type HistoryRepository interface {
	Append(entry StatusHistoryEntry) error
	List(orderID string) ([]StatusHistoryEntry, error)
}
