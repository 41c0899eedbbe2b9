package memory

import (
	"sync"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// disputeRepositoryInMemory — in-memory хранилище споров.
type disputeRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Dispute
}

// NewDisputeRepository создаёт in-memory реализацию DisputeRepository.
func NewDisputeRepository() domain.DisputeRepository {
	return &disputeRepositoryInMemory{items: make(map[string]domain.Dispute)}
}

func (r *disputeRepositoryInMemory) Create(dispute domain.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[dispute.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.items[dispute.ID] = cloneDispute(dispute)
	return nil
}

func (r *disputeRepositoryInMemory) Get(id string) (domain.Dispute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dispute, ok := r.items[id]
	if !ok {
		return domain.Dispute{}, domain.ErrDisputeNotFound
	}
	return cloneDispute(dispute), nil
}

func (r *disputeRepositoryInMemory) Save(dispute domain.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[dispute.ID]; !ok {
		return domain.ErrDisputeNotFound
	}
	r.items[dispute.ID] = cloneDispute(dispute)
	return nil
}

func cloneDispute(src domain.Dispute) domain.Dispute {
	dst := src
	dst.EvidenceRefs = append([]string(nil), src.EvidenceRefs...)
	return dst
}

var _ domain.DisputeRepository = (*disputeRepositoryInMemory)(nil)
