package memory

import (
	"sync"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// escrowRepositoryInMemory хранит эскроу-холды с индексом по заказу.
type escrowRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.EscrowHold
	byOrder map[string]string
}

// NewEscrowRepository создаёт in-memory реализацию EscrowRepository.
func NewEscrowRepository() domain.EscrowRepository {
	return &escrowRepositoryInMemory{
		items:   make(map[string]domain.EscrowHold),
		byOrder: make(map[string]string),
	}
}

// Create сохраняет новый холд; второй холд по заказу — ErrEscrowAlreadyFunded.
func (r *escrowRepositoryInMemory) Create(hold domain.EscrowHold) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOrder[hold.OrderID]; exists {
		return domain.ErrEscrowAlreadyFunded
	}
	r.items[hold.ID] = hold
	r.byOrder[hold.OrderID] = hold.ID
	return nil
}

// Get возвращает холд по ID или ErrHoldNotFound.
func (r *escrowRepositoryInMemory) Get(id string) (domain.EscrowHold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hold, ok := r.items[id]
	if !ok {
		return domain.EscrowHold{}, domain.ErrHoldNotFound
	}
	return hold, nil
}

// GetByOrder возвращает холд заказа или ErrHoldNotFound.
func (r *escrowRepositoryInMemory) GetByOrder(orderID string) (domain.EscrowHold, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOrder[orderID]
	if !ok {
		return domain.EscrowHold{}, domain.ErrHoldNotFound
	}
	return r.items[id], nil
}

// Save перезаписывает существующий холд. Сумма не меняется после создания.
func (r *escrowRepositoryInMemory) Save(hold domain.EscrowHold) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[hold.ID]
	if !ok {
		return domain.ErrHoldNotFound
	}
	hold.AmountMinor = current.AmountMinor
	r.items[hold.ID] = hold
	return nil
}

var _ domain.EscrowRepository = (*escrowRepositoryInMemory)(nil)
