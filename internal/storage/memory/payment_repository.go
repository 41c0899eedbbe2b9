package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// paymentRepositoryInMemory хранит логические платежи и их попытки.
type paymentRepositoryInMemory struct {
	mu       sync.RWMutex
	payments map[string]domain.Payment
	attempts map[string][]domain.PaymentAttempt
}

// NewPaymentRepository создаёт in-memory реализацию PaymentRepository.
func NewPaymentRepository() domain.PaymentRepository {
	return &paymentRepositoryInMemory{
		payments: make(map[string]domain.Payment),
		attempts: make(map[string][]domain.PaymentAttempt),
	}
}

// CreatePayment сохраняет новый логический платёж.
func (r *paymentRepositoryInMemory) CreatePayment(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.payments[payment.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.payments[payment.ID] = payment
	return nil
}

// GetPayment возвращает платёж или ErrPaymentNotFound.
func (r *paymentRepositoryInMemory) GetPayment(id string) (domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.payments[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// SavePayment перезаписывает платёж. Успешный исход неизменяем:
// любая попытка перевести success во что-то другое отклоняется.
func (r *paymentRepositoryInMemory) SavePayment(payment domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.payments[payment.ID]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if current.Outcome == domain.PaymentOutcomeSuccess && payment.Outcome != domain.PaymentOutcomeSuccess {
		return domain.ErrPaymentAlreadySucceeded
	}
	payment.UpdatedAt = time.Now().UTC()
	r.payments[payment.ID] = payment
	return nil
}

// AppendAttempt фиксирует попытку списания.
func (r *paymentRepositoryInMemory) AppendAttempt(attempt domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts[attempt.PaymentID] = append(r.attempts[attempt.PaymentID], attempt)
	return nil
}

// ListAttempts возвращает попытки в порядке их выпуска.
func (r *paymentRepositoryInMemory) ListAttempts(paymentID string) ([]domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	attempts := r.attempts[paymentID]
	result := make([]domain.PaymentAttempt, len(attempts))
	copy(result, attempts)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)
