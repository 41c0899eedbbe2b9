package domain

import (
	"context"
	"time"
)

// PaymentGateway — адаптер внешнего платёжного шлюза. Charge вызывается
// один раз на попытку и никогда не считается идемпотентным на стороне шлюза.
type PaymentGateway interface {
	// Charge инициирует списание по уникальному reference попытки.
	// Возвращает идентификатор транзакции шлюза либо ошибку (классифицируемую в PaymentError).
	Charge(ctx context.Context, ref string, amountMinor int64, currency, buyerID string) (string, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// PipelineStep задаёт константы шагов чекаут-пайплайна для метрик/логов.
type PipelineStep string

const (
	StepReserve PipelineStep = "reserve"
	StepPay     PipelineStep = "pay"
	StepFund    PipelineStep = "fund"
	StepRelease PipelineStep = "release"
	StepCommit  PipelineStep = "commit"
	StepCancel  PipelineStep = "cancel"
	StepRefund  PipelineStep = "refund"
	StepFreeze  PipelineStep = "freeze"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
