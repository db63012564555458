package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"procurement/internal/models"
)

const ruleColumns = `
	id,
	name,
	criteria,
	approvers,
	sla_hours,
	escalation_email,
	auto_publish,
	active,
	created_at,
	updated_at
`

func (repo *Repository) GetRules(ctx context.Context, onlyActive bool) ([]models.ApprovalRule, error) {
	rules := []models.ApprovalRule{}
	err := repo.q.SelectContext(ctx, &rules, "SELECT"+ruleColumns+"FROM approval_rules WHERE (NOT $1 OR active) ORDER BY name", onlyActive)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetRules: %w", err)
	}
	return rules, nil
}

func (repo *Repository) GetRule(ctx context.Context, id string) (models.ApprovalRule, error) {
	var rule models.ApprovalRule
	err := repo.q.GetContext(ctx, &rule, "SELECT"+ruleColumns+"FROM approval_rules WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return rule, fmt.Errorf("repository.Repository.GetRule: no rule found by id %s, %w", id, sql.ErrNoRows)
	} else if err != nil {
		return rule, fmt.Errorf("repository.Repository.GetRule: %w", err)
	}
	return rule, nil
}

func (repo *Repository) AddRule(ctx context.Context, r models.ApprovalRule) (models.ApprovalRule, error) {
	query := `
	INSERT INTO approval_rules
		(name, criteria, approvers, sla_hours, escalation_email, auto_publish, active)
	VALUES
		($1, $2, $3, $4, $5, $6, $7)
	RETURNING` + ruleColumns

	var result models.ApprovalRule
	err := repo.q.QueryRowxContext(ctx, query,
		r.Name, r.Criteria, r.Approvers, r.SlaHours, r.EscalationEmail, r.AutoPublish, r.Active,
	).StructScan(&result)
	if err != nil {
		return result, fmt.Errorf("repository.Repository.AddRule: %w", err)
	}
	return result, nil
}

func (repo *Repository) UpdateRule(ctx context.Context, r models.ApprovalRule) (models.ApprovalRule, error) {
	query := `
	UPDATE approval_rules
	SET (name, criteria, approvers, sla_hours, escalation_email, auto_publish, active, updated_at) =
		($2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
	WHERE id = $1
	RETURNING` + ruleColumns

	var result models.ApprovalRule
	err := repo.q.QueryRowxContext(ctx, query,
		r.Id, r.Name, r.Criteria, r.Approvers, r.SlaHours, r.EscalationEmail, r.AutoPublish, r.Active,
	).StructScan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return result, fmt.Errorf("repository.Repository.UpdateRule: no rule found by id %s, %w", r.Id, sql.ErrNoRows)
	} else if err != nil {
		return result, fmt.Errorf("repository.Repository.UpdateRule: %w", err)
	}
	return result, nil
}

func (repo *Repository) DeleteRule(ctx context.Context, id string) error {
	res, err := repo.q.ExecContext(ctx, "DELETE FROM approval_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("repository.Repository.DeleteRule: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("repository.Repository.DeleteRule: %w", err)
	}
	if !ok {
		return fmt.Errorf("repository.Repository.DeleteRule: no rule found by id %s, %w", id, sql.ErrNoRows)
	}
	return nil
}
