package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"procurement/internal/models"
)

const modificationColumns = `
	id,
	brfq_id,
	status,
	reason,
	summary,
	requested_by,
	reviewed_by,
	reviewed_at,
	created_at
`

func (repo *Repository) AddModification(ctx context.Context, m models.ModificationRequest) (models.ModificationRequest, error) {
	query := `
	INSERT INTO modification_requests (brfq_id, status, reason, summary, requested_by)
	VALUES ($1, 'PENDING', $2, $3, $4)
	RETURNING` + modificationColumns

	var result models.ModificationRequest
	err := repo.q.QueryRowxContext(ctx, query, m.BrfqId, m.Reason, m.Summary, m.RequestedBy).StructScan(&result)
	if err != nil {
		return result, fmt.Errorf("repository.Repository.AddModification: %w", err)
	}
	return result, nil
}

func (repo *Repository) GetModification(ctx context.Context, id string) (models.ModificationRequest, error) {
	var m models.ModificationRequest
	err := repo.q.GetContext(ctx, &m, "SELECT"+modificationColumns+"FROM modification_requests WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("repository.Repository.GetModification: no modification found by id %s, %w", id, sql.ErrNoRows)
	} else if err != nil {
		return m, fmt.Errorf("repository.Repository.GetModification: %w", err)
	}
	return m, nil
}

// DecideModification moves a pending modification to its final status.
// It reports false when the modification was no longer pending.
func (repo *Repository) DecideModification(ctx context.Context, id string, status models.ModificationStatus, reviewedBy, reason string, at time.Time) (models.ModificationRequest, bool, error) {
	query := `
	UPDATE modification_requests
	SET (status, reviewed_by, reviewed_at, reason) = ($2, $3, $4, CASE WHEN $5::text = '' THEN reason ELSE $5::text END)
	WHERE id = $1 AND status = 'PENDING'
	RETURNING` + modificationColumns

	var m models.ModificationRequest
	err := repo.q.QueryRowxContext(ctx, query, id, status, reviewedBy, at, reason).StructScan(&m)
	if errors.Is(err, sql.ErrNoRows) {
		return m, false, nil
	} else if err != nil {
		return m, false, fmt.Errorf("repository.Repository.DecideModification: %w", err)
	}
	return m, true, nil
}
