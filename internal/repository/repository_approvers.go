package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"procurement/internal/models"
)

const approverColumns = `id, name, email, role, user_id, created_at, updated_at`

func (repo *Repository) GetApprovers(ctx context.Context) ([]models.Approver, error) {
	approvers := []models.Approver{}
	err := repo.q.SelectContext(ctx, &approvers, "SELECT "+approverColumns+" FROM approvers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetApprovers: %w", err)
	}
	return approvers, nil
}

func (repo *Repository) GetApprover(ctx context.Context, id string) (models.Approver, error) {
	var approver models.Approver
	err := repo.q.GetContext(ctx, &approver, "SELECT "+approverColumns+" FROM approvers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return approver, fmt.Errorf("repository.Repository.GetApprover: no approver found by id %s, %w", id, sql.ErrNoRows)
	} else if err != nil {
		return approver, fmt.Errorf("repository.Repository.GetApprover: %w", err)
	}
	return approver, nil
}

func (repo *Repository) ApproverByName(ctx context.Context, name string) (models.Approver, bool, error) {
	return repo.approverBy(ctx, "name = $1", name)
}

// ApproverByRole returns the earliest registered approver holding the role.
func (repo *Repository) ApproverByRole(ctx context.Context, role string) (models.Approver, bool, error) {
	return repo.approverBy(ctx, "role = $1", role)
}

func (repo *Repository) ApproverByUserId(ctx context.Context, userId string) (models.Approver, bool, error) {
	return repo.approverBy(ctx, "user_id = $1", userId)
}

func (repo *Repository) approverBy(ctx context.Context, condition string, arg string) (models.Approver, bool, error) {
	var approver models.Approver
	query := "SELECT " + approverColumns + " FROM approvers WHERE " + condition + " ORDER BY created_at LIMIT 1"

	err := repo.q.GetContext(ctx, &approver, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return approver, false, nil
	} else if err != nil {
		return approver, false, fmt.Errorf("repository.Repository.approverBy: %w", err)
	}
	return approver, true, nil
}

func (repo *Repository) AddApprover(ctx context.Context, a models.Approver) (models.Approver, error) {
	query := `
	INSERT INTO approvers (name, email, role, user_id)
	VALUES ($1, $2, $3, $4)
	RETURNING ` + approverColumns

	var result models.Approver
	err := repo.q.QueryRowxContext(ctx, query, a.Name, a.Email, a.Role, a.UserId).StructScan(&result)
	if err != nil {
		return result, fmt.Errorf("repository.Repository.AddApprover: %w", err)
	}
	return result, nil
}

func (repo *Repository) UpdateApprover(ctx context.Context, a models.Approver) (models.Approver, error) {
	query := `
	UPDATE approvers
	SET (name, email, role, user_id, updated_at) = ($2, $3, $4, $5, CURRENT_TIMESTAMP)
	WHERE id = $1
	RETURNING ` + approverColumns

	var result models.Approver
	err := repo.q.QueryRowxContext(ctx, query, a.Id, a.Name, a.Email, a.Role, a.UserId).StructScan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return result, fmt.Errorf("repository.Repository.UpdateApprover: no approver found by id %s, %w", a.Id, sql.ErrNoRows)
	} else if err != nil {
		return result, fmt.Errorf("repository.Repository.UpdateApprover: %w", err)
	}
	return result, nil
}

func (repo *Repository) DeleteApprover(ctx context.Context, id string) error {
	res, err := repo.q.ExecContext(ctx, "DELETE FROM approvers WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("repository.Repository.DeleteApprover: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("repository.Repository.DeleteApprover: %w", err)
	}
	if !ok {
		return fmt.Errorf("repository.Repository.DeleteApprover: no approver found by id %s, %w", id, sql.ErrNoRows)
	}
	return nil
}
