package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

type escrowRepository struct {
	db *sql.DB
}

// NewEscrowRepository создаёт PostgreSQL-реализацию EscrowRepository.
// Уникальный индекс по order_id гарантирует не более одного холда на заказ.
func NewEscrowRepository(store *Store) domain.EscrowRepository {
	return &escrowRepository{db: store.DB()}
}

func (r *escrowRepository) Create(hold domain.EscrowHold) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO escrow_holds (
			id, order_id, amount_minor, currency, status, payee_id, created_at, disposed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		hold.ID, hold.OrderID, hold.AmountMinor, hold.Currency,
		string(hold.Status), hold.PayeeID, hold.CreatedAt, nullableTime(hold.DisposedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEscrowAlreadyFunded
		}
		return fmt.Errorf("insert escrow hold: %w", err)
	}

	return nil
}

func (r *escrowRepository) Get(id string) (domain.EscrowHold, error) {
	return r.getBy("id", id)
}

func (r *escrowRepository) GetByOrder(orderID string) (domain.EscrowHold, error) {
	return r.getBy("order_id", orderID)
}

func (r *escrowRepository) Save(hold domain.EscrowHold) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE escrow_holds
		SET status = $1,
		    payee_id = $2,
		    disposed_at = $3
		WHERE id = $4
	`, string(hold.Status), hold.PayeeID, nullableTime(hold.DisposedAt), hold.ID)
	if err != nil {
		return fmt.Errorf("update escrow hold: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("escrow rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrHoldNotFound
	}

	return nil
}

func (r *escrowRepository) getBy(column, value string) (domain.EscrowHold, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		hold       domain.EscrowHold
		status     string
		disposedAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, order_id, amount_minor, currency, status, payee_id, created_at, disposed_at
		FROM escrow_holds
		WHERE %s = $1
	`, column), value).Scan(
		&hold.ID, &hold.OrderID, &hold.AmountMinor, &hold.Currency,
		&status, &hold.PayeeID, &hold.CreatedAt, &disposedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EscrowHold{}, domain.ErrHoldNotFound
		}
		return domain.EscrowHold{}, fmt.Errorf("select escrow hold: %w", err)
	}

	hold.Status = domain.HoldStatus(status)
	if disposedAt.Valid {
		hold.DisposedAt = disposedAt.Time.UTC()
	}

	return hold, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ domain.EscrowRepository = (*escrowRepository)(nil)
