package payment

import (
	"context"
	"sync"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

// MockGateway — конфигурируемая заглушка платёжного шлюза для тестов.
// Script задаёт результат каждой попытки по порядку: nil — успех,
// не-nil — ошибка. После исчерпания Script все вызовы успешны.
type MockGateway struct {
	mu sync.Mutex

	Script []error
	// Delay имитирует задержку шлюза на каждый вызов.
	Delay time.Duration

	Refs  []string
	Calls int
}

// NewMockGateway возвращает mock с успешным сценарием по умолчанию.
func NewMockGateway(script ...error) *MockGateway {
	return &MockGateway{Script: script}
}

// Charge возвращает заранее настроенный результат и запоминает reference вызова.
func (m *MockGateway) Charge(ctx context.Context, ref string, amountMinor int64, currency, buyerID string) (string, error) {
	m.mu.Lock()
	call := m.Calls
	m.Calls++
	m.Refs = append(m.Refs, ref)
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	if call < len(m.Script) && m.Script[call] != nil {
		return "", m.Script[call]
	}
	return "txn-" + ref, nil
}

var _ domain.PaymentGateway = (*MockGateway)(nil)
