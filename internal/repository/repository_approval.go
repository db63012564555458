package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"procurement/internal/models"
)

const stepColumns = `
	s.id,
	s.approval_id,
	s.step_order,
	s.role,
	s.approver_name,
	s.status,
	s.sla_duration,
	s.step_condition,
	s.is_required,
	s.comments,
	s.decided_by,
	s.activated_at,
	s.decided_at,
	s.escalated_at,
	s.created_at,
	s.updated_at
`

const requestStepColumns = stepColumns + `,
	a.request_id,
	r.title AS request_title
`

const requestStepJoin = `
	FROM approval_steps s
	JOIN approvals a ON a.id = s.approval_id
	JOIN requests r ON r.id = a.request_id
`

//// Approval containers

func (repo *Repository) GetApproval(ctx context.Context, requestId string) (models.Approval, bool, error) {
	var approval models.Approval
	err := repo.q.GetContext(ctx, &approval, "SELECT id, request_id, created_at FROM approvals WHERE request_id = $1", requestId)
	if errors.Is(err, sql.ErrNoRows) {
		return approval, false, nil
	} else if err != nil {
		return approval, false, fmt.Errorf("repository.Repository.GetApproval: %w", err)
	}
	return approval, true, nil
}

func (repo *Repository) AddApproval(ctx context.Context, requestId string) (models.Approval, error) {
	query := `
	INSERT INTO approvals (request_id)
	VALUES ($1)
	ON CONFLICT (request_id) DO UPDATE SET request_id = EXCLUDED.request_id
	RETURNING id, request_id, created_at
	`

	var approval models.Approval
	err := repo.q.QueryRowxContext(ctx, query, requestId).StructScan(&approval)
	if err != nil {
		return approval, fmt.Errorf("repository.Repository.AddApproval: %w", err)
	}
	return approval, nil
}

//// Steps

func (repo *Repository) AddSteps(ctx context.Context, steps []models.ApprovalStep) ([]models.ApprovalStep, error) {
	query := `
	INSERT INTO approval_steps AS s
		(approval_id, step_order, role, approver_name, status, sla_duration, step_condition, is_required, activated_at)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING` + stepColumns

	result := make([]models.ApprovalStep, 0, len(steps))
	for _, step := range steps {
		var created models.ApprovalStep
		err := repo.q.QueryRowxContext(ctx, query,
			step.ApprovalId, step.Order, step.Role, step.ApproverName, step.Status,
			step.SlaDuration, step.Condition, step.IsRequired, step.ActivatedAt,
		).StructScan(&created)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.AddSteps: %w", err)
		}
		result = append(result, created)
	}
	return result, nil
}

func (repo *Repository) GetSteps(ctx context.Context, approvalId string) ([]models.ApprovalStep, error) {
	query := `SELECT` + stepColumns + `
	FROM approval_steps s
	WHERE s.approval_id = $1
	ORDER BY s.step_order
	`

	steps := []models.ApprovalStep{}
	err := repo.q.SelectContext(ctx, &steps, query, approvalId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetSteps: %w", err)
	}
	return steps, nil
}

func (repo *Repository) GetRequestStep(ctx context.Context, stepId string) (models.RequestStep, error) {
	query := `SELECT` + requestStepColumns + requestStepJoin + `WHERE s.id = $1`

	var step models.RequestStep
	err := repo.q.GetContext(ctx, &step, query, stepId)
	if errors.Is(err, sql.ErrNoRows) {
		return step, fmt.Errorf("repository.Repository.GetRequestStep: no step found by id %s, %w", stepId, sql.ErrNoRows)
	} else if err != nil {
		return step, fmt.Errorf("repository.Repository.GetRequestStep: %w", err)
	}
	return step, nil
}

// NextStep returns the first step ordered strictly after the given position.
func (repo *Repository) NextStep(ctx context.Context, approvalId string, afterOrder int) (models.ApprovalStep, bool, error) {
	query := `SELECT` + stepColumns + `
	FROM approval_steps s
	WHERE s.approval_id = $1 AND s.step_order > $2
	ORDER BY s.step_order
	LIMIT 1
	`

	var step models.ApprovalStep
	err := repo.q.GetContext(ctx, &step, query, approvalId, afterOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return step, false, nil
	} else if err != nil {
		return step, false, fmt.Errorf("repository.Repository.NextStep: %w", err)
	}
	return step, true, nil
}

// ResetSteps moves every step of the container back to WAITING and clears decisions.
func (repo *Repository) ResetSteps(ctx context.Context, approvalId string) error {
	query := `
	UPDATE approval_steps
	SET (status, comments, decided_by, activated_at, decided_at, escalated_at, updated_at) =
		('WAITING', '', '', NULL, NULL, NULL, CURRENT_TIMESTAMP)
	WHERE approval_id = $1
	`

	_, err := repo.q.ExecContext(ctx, query, approvalId)
	if err != nil {
		return fmt.Errorf("repository.Repository.ResetSteps: %w", err)
	}
	return nil
}

func (repo *Repository) ActivateStep(ctx context.Context, stepId string, at time.Time) (models.ApprovalStep, error) {
	query := `
	UPDATE approval_steps AS s
	SET (status, activated_at, escalated_at, updated_at) = ('PENDING', $2, NULL, CURRENT_TIMESTAMP)
	WHERE s.id = $1
	RETURNING` + stepColumns

	var step models.ApprovalStep
	err := repo.q.QueryRowxContext(ctx, query, stepId, at).StructScan(&step)
	if errors.Is(err, sql.ErrNoRows) {
		return step, fmt.Errorf("repository.Repository.ActivateStep: no step found by id %s, %w", stepId, sql.ErrNoRows)
	} else if err != nil {
		return step, fmt.Errorf("repository.Repository.ActivateStep: %w", err)
	}
	return step, nil
}

// DecideStep records a decision only if the step is still pending.
// It reports false when another decision got there first.
func (repo *Repository) DecideStep(ctx context.Context, stepId string, decision models.Decision, decidedBy, comments string, at time.Time) (models.ApprovalStep, bool, error) {
	query := `
	UPDATE approval_steps AS s
	SET (status, decided_by, comments, decided_at, updated_at) = ($2, $3, $4, $5, CURRENT_TIMESTAMP)
	WHERE s.id = $1 AND s.status = 'PENDING'
	RETURNING` + stepColumns

	var step models.ApprovalStep
	err := repo.q.QueryRowxContext(ctx, query, stepId, decision, decidedBy, comments, at).StructScan(&step)
	if errors.Is(err, sql.ErrNoRows) {
		return step, false, nil
	} else if err != nil {
		return step, false, fmt.Errorf("repository.Repository.DecideStep: %w", err)
	}
	return step, true, nil
}

// PendingStepsFor lists the active steps assigned to the approver, either by name
// or, for steps without a named approver, by role.
func (repo *Repository) PendingStepsFor(ctx context.Context, approverName, role string) ([]models.RequestStep, error) {
	query := `SELECT` + requestStepColumns + requestStepJoin + `
	WHERE s.status = 'PENDING'
		AND (s.approver_name = $1 OR (s.approver_name = '' AND $2::text <> '' AND s.role = $2::text))
	ORDER BY s.activated_at
	`

	steps := []models.RequestStep{}
	err := repo.q.SelectContext(ctx, &steps, query, approverName, role)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.PendingStepsFor: %w", err)
	}
	return steps, nil
}

// OverdueSteps lists pending steps past their SLA that have not been escalated yet.
func (repo *Repository) OverdueSteps(ctx context.Context, now time.Time) ([]models.RequestStep, error) {
	query := `SELECT` + requestStepColumns + requestStepJoin + `
	WHERE s.status = 'PENDING'
		AND s.sla_duration > 0
		AND s.escalated_at IS NULL
		AND s.activated_at + make_interval(hours => s.sla_duration) <= $1
	ORDER BY s.activated_at
	`

	steps := []models.RequestStep{}
	err := repo.q.SelectContext(ctx, &steps, query, now)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.OverdueSteps: %w", err)
	}
	return steps, nil
}

func (repo *Repository) MarkStepEscalated(ctx context.Context, stepId string, at time.Time) (bool, error) {
	res, err := repo.q.ExecContext(ctx, `
	UPDATE approval_steps
	SET escalated_at = $2
	WHERE id = $1 AND status = 'PENDING' AND escalated_at IS NULL
	`, stepId, at)
	if err != nil {
		return false, fmt.Errorf("repository.Repository.MarkStepEscalated: %w", err)
	}

	ok, err := affectedOne(res)
	if err != nil {
		return false, fmt.Errorf("repository.Repository.MarkStepEscalated: %w", err)
	}
	return ok, nil
}

// ClearStepEscalation removes the reminder stamp of a still pending step.
func (repo *Repository) ClearStepEscalation(ctx context.Context, stepId string) error {
	_, err := repo.q.ExecContext(ctx, `
	UPDATE approval_steps
	SET escalated_at = NULL
	WHERE id = $1 AND status = 'PENDING'
	`, stepId)
	if err != nil {
		return fmt.Errorf("repository.Repository.ClearStepEscalation: %w", err)
	}
	return nil
}
