package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/storage/memory"
	"github.com/KachiAlex/ojawaecommerce-sub000/internal/storage/postgres"
)

// Dependencies содержит хранилища пайплайна. Выбор реализации (PostgreSQL
// или in-memory) делается один раз при старте по наличию DSN.
type Dependencies struct {
	Orders      domain.OrderRepository
	History     domain.HistoryRepository
	Payments    domain.PaymentRepository
	Escrow      domain.EscrowRepository
	Disputes    domain.DisputeRepository
	Inventory   domain.InventoryRepository
	Schedule    domain.ScheduleRepository
	Outbox      domain.OutboxRepository
	Idempotency domain.IdempotencyRepository

	store *postgres.Store
}

// newDependencies создаёт хранилища: PostgreSQL при заданном DSN
// (с применением миграций), иначе in-memory.
func newDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if cfg.PostgresDSN == "" {
		logger.Info("postgres DSN is not set, using in-memory storage")
		return &Dependencies{
			Orders:      memory.NewOrderRepository(),
			History:     memory.NewHistoryRepository(),
			Payments:    memory.NewPaymentRepository(),
			Escrow:      memory.NewEscrowRepository(),
			Disputes:    memory.NewDisputeRepository(),
			Inventory:   memory.NewInventoryRepository(),
			Schedule:    memory.NewScheduleRepository(),
			Outbox:      memory.NewOutboxRepository(),
			Idempotency: memory.NewIdempotencyRepository(),
		}, nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("postgres storage initialized")

	return &Dependencies{
		Orders:      postgres.NewOrderRepository(store),
		History:     postgres.NewHistoryRepository(store),
		Payments:    postgres.NewPaymentRepository(store),
		Escrow:      postgres.NewEscrowRepository(store),
		Disputes:    postgres.NewDisputeRepository(store),
		Inventory:   postgres.NewInventoryRepository(store),
		Schedule:    postgres.NewScheduleRepository(store),
		Outbox:      postgres.NewOutboxRepository(store),
		Idempotency: postgres.NewIdempotencyRepository(store),
		store:       store,
	}, nil
}

// Store возвращает PostgreSQL store или nil в in-memory режиме.
func (d *Dependencies) Store() *postgres.Store {
	return d.store
}

// Close освобождает ресурсы хранилищ.
func (d *Dependencies) Close(logger *log.Entry) {
	if d.store == nil {
		return
	}
	if err := d.store.Close(); err != nil {
		logger.WithError(err).Warn("failed to close postgres store")
	}
}
