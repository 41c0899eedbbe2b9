package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// scheduleRepositoryInMemory хранит записи авто-переходов.
type scheduleRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.ScheduleEntry
}

// NewScheduleRepository создаёт in-memory реализацию ScheduleRepository.
func NewScheduleRepository() domain.ScheduleRepository {
	return &scheduleRepositoryInMemory{items: make(map[string]domain.ScheduleEntry)}
}

// Enqueue сохраняет запись со статусом pending, генерируя ID при необходимости.
func (r *scheduleRepositoryInMemory) Enqueue(entry domain.ScheduleEntry) (domain.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	entry.State = domain.SchedulePending
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	r.items[entry.ID] = entry
	return entry, nil
}

// PullDue возвращает pending-записи с истёкшим DueAt, отсортированные по сроку.
func (r *scheduleRepositoryInMemory) PullDue(now time.Time, limit int) ([]domain.ScheduleEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	result := make([]domain.ScheduleEntry, 0, limit)
	for _, entry := range r.items {
		if entry.State != domain.SchedulePending || entry.DueAt.After(now) {
			continue
		}
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DueAt.Before(result[j].DueAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MarkDone помечает запись применённой.
func (r *scheduleRepositoryInMemory) MarkDone(id string) error {
	return r.markState(id, domain.ScheduleDone)
}

// MarkSkipped помечает запись пропущенной.
func (r *scheduleRepositoryInMemory) MarkSkipped(id string) error {
	return r.markState(id, domain.ScheduleSkipped)
}

func (r *scheduleRepositoryInMemory) markState(id string, state domain.ScheduleState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.items[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	entry.State = state
	entry.UpdatedAt = time.Now().UTC()
	r.items[id] = entry
	return nil
}

var _ domain.ScheduleRepository = (*scheduleRepositoryInMemory)(nil)
