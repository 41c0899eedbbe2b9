package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) CreatePayment(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, order_id, buyer_id, amount_minor, currency,
			outcome, attempts, last_error_kind, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		payment.ID, payment.OrderID, payment.BuyerID, payment.AmountMinor, payment.Currency,
		string(payment.Outcome), payment.Attempts, string(payment.LastErrorKind),
		payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) GetPayment(id string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		payment   domain.Payment
		outcome   string
		errorKind string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, buyer_id, amount_minor, currency,
		       outcome, attempts, last_error_kind, created_at, updated_at
		FROM payments
		WHERE id = $1
	`, id).Scan(
		&payment.ID, &payment.OrderID, &payment.BuyerID, &payment.AmountMinor, &payment.Currency,
		&outcome, &payment.Attempts, &errorKind, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}

	payment.Outcome = domain.PaymentOutcome(outcome)
	payment.LastErrorKind = domain.PaymentErrorKind(errorKind)
	return payment, nil
}

func (r *paymentRepository) SavePayment(payment domain.Payment) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET outcome = $1,
		    attempts = $2,
		    last_error_kind = $3,
		    updated_at = $4
		WHERE id = $5
	`,
		string(payment.Outcome), payment.Attempts, string(payment.LastErrorKind),
		payment.UpdatedAt, payment.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("payment rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrPaymentNotFound
	}

	return nil
}

func (r *paymentRepository) AppendAttempt(attempt domain.PaymentAttempt) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_attempts (
			payment_id, seq, gateway_ref, txn_id, outcome, error_kind, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		attempt.PaymentID, attempt.Seq, attempt.GatewayRef, attempt.TxnID,
		string(attempt.Outcome), string(attempt.ErrorKind), attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment attempt: %w", err)
	}

	return nil
}

func (r *paymentRepository) ListAttempts(paymentID string) ([]domain.PaymentAttempt, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT payment_id, seq, gateway_ref, txn_id, outcome, error_kind, created_at
		FROM payment_attempts
		WHERE payment_id = $1
		ORDER BY seq ASC
	`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list payment attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]domain.PaymentAttempt, 0)
	for rows.Next() {
		var (
			attempt   domain.PaymentAttempt
			outcome   string
			errorKind string
		)
		if err := rows.Scan(
			&attempt.PaymentID, &attempt.Seq, &attempt.GatewayRef, &attempt.TxnID,
			&outcome, &errorKind, &attempt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment attempt: %w", err)
		}
		attempt.Outcome = domain.PaymentOutcome(outcome)
		attempt.ErrorKind = domain.PaymentErrorKind(errorKind)
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment attempts: %w", err)
	}

	return attempts, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
