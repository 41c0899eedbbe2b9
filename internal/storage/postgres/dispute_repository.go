package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KachiAlex/ojawaecommerce-sub000/internal/domain"
)

type disputeRepository struct {
	db *sql.DB
}

// NewDisputeRepository создаёт PostgreSQL-реализацию DisputeRepository.
func NewDisputeRepository(store *Store) domain.DisputeRepository {
	return &disputeRepository{db: store.DB()}
}

func (r *disputeRepository) Create(dispute domain.Dispute) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	evidence, err := json.Marshal(dispute.EvidenceRefs)
	if err != nil {
		return fmt.Errorf("marshal evidence refs: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO disputes (
			id, order_id, opened_by, reason, description, evidence_refs,
			requested_resolution, urgency, status, outcome, created_at, resolved_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		dispute.ID, dispute.OrderID, dispute.OpenedBy, dispute.Reason, dispute.Description,
		evidence, string(dispute.RequestedResolution),
		string(dispute.Urgency), string(dispute.Status), string(dispute.Outcome),
		dispute.CreatedAt, nullableTime(dispute.ResolvedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert dispute: %w", err)
	}

	return nil
}

func (r *disputeRepository) Get(id string) (domain.Dispute, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		dispute    domain.Dispute
		evidence   []byte
		resolution string
		urgency    string
		status     string
		outcome    string
		resolvedAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, opened_by, reason, description, evidence_refs,
		       requested_resolution, urgency, status, outcome, created_at, resolved_at
		FROM disputes
		WHERE id = $1
	`, id).Scan(
		&dispute.ID, &dispute.OrderID, &dispute.OpenedBy, &dispute.Reason, &dispute.Description,
		&evidence, &resolution, &urgency, &status, &outcome, &dispute.CreatedAt, &resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Dispute{}, domain.ErrDisputeNotFound
		}
		return domain.Dispute{}, fmt.Errorf("select dispute: %w", err)
	}

	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &dispute.EvidenceRefs); err != nil {
			return domain.Dispute{}, fmt.Errorf("unmarshal evidence refs: %w", err)
		}
	}
	dispute.RequestedResolution = domain.Disposition(resolution)
	dispute.Urgency = domain.DisputeUrgency(urgency)
	dispute.Status = domain.DisputeStatus(status)
	dispute.Outcome = domain.Disposition(outcome)
	if resolvedAt.Valid {
		dispute.ResolvedAt = resolvedAt.Time.UTC()
	}

	return dispute, nil
}

func (r *disputeRepository) Save(dispute domain.Dispute) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE disputes
		SET status = $1,
		    outcome = $2,
		    resolved_at = $3
		WHERE id = $4
	`, string(dispute.Status), string(dispute.Outcome), nullableTime(dispute.ResolvedAt), dispute.ID)
	if err != nil {
		return fmt.Errorf("update dispute: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("dispute rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrDisputeNotFound
	}

	return nil
}

var _ domain.DisputeRepository = (*disputeRepository)(nil)
