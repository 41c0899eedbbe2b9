package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

type scheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository создаёт PostgreSQL-реализацию ScheduleRepository.
func NewScheduleRepository(store *Store) domain.ScheduleRepository {
	return &scheduleRepository{db: store.DB()}
}

func (r *scheduleRepository) Enqueue(entry domain.ScheduleEntry) (domain.ScheduleEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.State == "" {
		entry.State = domain.SchedulePending
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedule_entries (
			id, order_id, from_status, to_status, note, due_at, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		entry.ID, entry.OrderID, string(entry.FromStatus), string(entry.ToStatus),
		entry.Note, entry.DueAt, string(entry.State), entry.CreatedAt, now,
	)
	if err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("enqueue schedule entry: %w", err)
	}

	entry.UpdatedAt = now
	return entry, nil
}

func (r *scheduleRepository) PullDue(now time.Time, limit int) ([]domain.ScheduleEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, from_status, to_status, note, due_at, status, created_at, updated_at
		FROM schedule_entries
		WHERE status = 'pending'
		  AND due_at <= $1
		ORDER BY due_at, id
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("pull due schedule entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.ScheduleEntry, 0, limit)
	for rows.Next() {
		var (
			entry      domain.ScheduleEntry
			fromStatus string
			toStatus   string
			state      string
		)
		if err := rows.Scan(
			&entry.ID, &entry.OrderID, &fromStatus, &toStatus,
			&entry.Note, &entry.DueAt, &state, &entry.CreatedAt, &entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		entry.FromStatus = domain.OrderStatus(fromStatus)
		entry.ToStatus = domain.OrderStatus(toStatus)
		entry.State = domain.ScheduleState(state)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule entries: %w", err)
	}

	return entries, nil
}

func (r *scheduleRepository) MarkDone(id string) error {
	return r.markState(id, domain.ScheduleDone)
}

func (r *scheduleRepository) MarkSkipped(id string) error {
	return r.markState(id, domain.ScheduleSkipped)
}

func (r *scheduleRepository) markState(id string, state domain.ScheduleState) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE schedule_entries
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
		  AND status = 'pending'
	`, id, string(state), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark schedule entry as %s: %w", state, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("schedule entry %s is not pending", id)
	}

	return nil
}

var _ domain.ScheduleRepository = (*scheduleRepository)(nil)
