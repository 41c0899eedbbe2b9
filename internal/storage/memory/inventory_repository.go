package memory

import (
	"sync"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// inventoryRepositoryInMemory хранит счётчики стока под одним мьютексом.
// Все мутации — check-and-update внутри критической секции: это in-memory
// эквивалент conditional update на стороне внешнего хранилища.
type inventoryRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.InventoryRecord
}

// NewInventoryRepository создаёт in-memory реализацию InventoryRepository.
func NewInventoryRepository() domain.InventoryRepository {
	return &inventoryRepositoryInMemory{
		items: make(map[string]domain.InventoryRecord),
	}
}

// Create сохраняет новую запись инвентаря с пересчитанным статусом.
func (r *inventoryRepositoryInMemory) Create(record domain.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[record.ProductID]; exists {
		return domain.ErrVersionConflict
	}
	record.Recompute()
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	r.items[record.ProductID] = cloneRecord(record)
	return nil
}

// Get возвращает запись или ErrInventoryNotFound.
func (r *inventoryRepositoryInMemory) Get(productID string) (domain.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.items[productID]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}
	return cloneRecord(record), nil
}

// Reserve атомарно проверяет available >= qty и увеличивает reserved.
func (r *inventoryRepositoryInMemory) Reserve(productID string, qty int64) (domain.InventoryRecord, error) {
	return r.mutate(productID, func(record *domain.InventoryRecord) error {
		if record.Available() < qty {
			return domain.ErrInsufficientStock
		}
		record.ReservedStock += qty
		return nil
	})
}

// Release уменьшает reserved, не опускаясь ниже нуля.
func (r *inventoryRepositoryInMemory) Release(productID string, qty int64) (domain.InventoryRecord, error) {
	return r.mutate(productID, func(record *domain.InventoryRecord) error {
		record.ReservedStock -= qty
		if record.ReservedStock < 0 {
			record.ReservedStock = 0
		}
		return nil
	})
}

// Commit финализирует продажу: списывает current и reserved.
func (r *inventoryRepositoryInMemory) Commit(productID string, qty int64) (domain.InventoryRecord, error) {
	return r.mutate(productID, func(record *domain.InventoryRecord) error {
		if record.ReservedStock < qty || record.CurrentStock < qty {
			return domain.ErrStockInvariant
		}
		record.CurrentStock -= qty
		record.ReservedStock -= qty
		return nil
	})
}

// Adjust меняет current на delta в обход резервов (приёмка/брак/коррекция).
func (r *inventoryRepositoryInMemory) Adjust(productID string, delta int64) (domain.InventoryRecord, error) {
	return r.mutate(productID, func(record *domain.InventoryRecord) error {
		next := record.CurrentStock + delta
		if next < record.ReservedStock || next < 0 {
			return domain.ErrStockInvariant
		}
		record.CurrentStock = next
		return nil
	})
}

func (r *inventoryRepositoryInMemory) mutate(productID string, fn func(record *domain.InventoryRecord) error) (domain.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.items[productID]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrInventoryNotFound
	}

	if err := fn(&record); err != nil {
		return domain.InventoryRecord{}, err
	}

	record.Recompute()
	record.Version++
	record.UpdatedAt = time.Now().UTC()
	r.items[productID] = cloneRecord(record)
	return cloneRecord(record), nil
}

func cloneRecord(src domain.InventoryRecord) domain.InventoryRecord {
	dst := src
	dst.Alerts = append([]domain.StockAlert(nil), src.Alerts...)
	return dst
}

var _ domain.InventoryRepository = (*inventoryRepositoryInMemory)(nil)
