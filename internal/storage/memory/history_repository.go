package memory

import (
	"sync"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// historyRepositoryInMemory хранит историю статусов в памяти (для разработки/тестов).
// Порядок записей — порядок принятия переходов стейт-машиной; сортировка
// по времени здесь не нужна и скрывала бы нарушения упорядоченности.
type historyRepositoryInMemory struct {
	mu      sync.RWMutex
	entries map[string][]domain.StatusHistoryEntry
}

// NewHistoryRepository создаёт in-memory реализацию HistoryRepository.
func NewHistoryRepository() domain.HistoryRepository {
	return &historyRepositoryInMemory{entries: make(map[string][]domain.StatusHistoryEntry)}
}

// Append добавляет запись в конец истории заказа.
func (r *historyRepositoryInMemory) Append(entry domain.StatusHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.OrderID] = append(r.entries[entry.OrderID], entry)
	return nil
}

// List возвращает историю заказа в порядке принятия переходов.
func (r *historyRepositoryInMemory) List(orderID string) ([]domain.StatusHistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.entries[orderID]
	result := make([]domain.StatusHistoryEntry, len(entries))
	copy(result, entries)
	return result, nil
}

var _ domain.HistoryRepository = (*historyRepositoryInMemory)(nil)
