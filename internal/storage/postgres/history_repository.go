package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

type historyRepository struct {
	db *sql.DB
}

// NewHistoryRepository создаёт PostgreSQL-реализацию HistoryRepository.
// Порядок записей гарантируется монотонным BIGSERIAL.
func NewHistoryRepository(store *Store) domain.HistoryRepository {
	return &historyRepository{db: store.DB()}
}

func (r *historyRepository) Append(entry domain.StatusHistoryEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_status_history (
			order_id, status, actor_id, actor_kind, note, occurred_at
		) VALUES ($1,$2,$3,$4,$5,$6)
	`,
		entry.OrderID, string(entry.Status), entry.Actor.ID,
		string(entry.Actor.Kind), entry.Note, entry.Occurred,
	)
	if err != nil {
		return fmt.Errorf("append status history: %w", err)
	}

	return nil
}

func (r *historyRepository) List(orderID string) ([]domain.StatusHistoryEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, status, actor_id, actor_kind, note, occurred_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.StatusHistoryEntry, 0)
	for rows.Next() {
		var (
			entry     domain.StatusHistoryEntry
			status    string
			actorKind string
		)
		if err := rows.Scan(
			&entry.OrderID, &status, &entry.Actor.ID, &actorKind, &entry.Note, &entry.Occurred,
		); err != nil {
			return nil, fmt.Errorf("scan status history entry: %w", err)
		}
		entry.Status = domain.OrderStatus(status)
		entry.Actor.Kind = domain.ActorKind(actorKind)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}

	return entries, nil
}

var _ domain.HistoryRepository = (*historyRepository)(nil)
