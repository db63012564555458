package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"procurement/internal/models"
)

const templateColumns = `id, name, is_default, created_at, updated_at`

const stepTemplateColumns = `id, template_id, step_order, role, approver_name, sla_duration, step_condition, is_required`

func (repo *Repository) GetTemplate(ctx context.Context, id string) (models.WorkflowTemplate, error) {
	var t models.WorkflowTemplate
	err := repo.q.GetContext(ctx, &t, "SELECT "+templateColumns+" FROM workflow_templates WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("repository.Repository.GetTemplate: no template found by id %s, %w", id, sql.ErrNoRows)
	} else if err != nil {
		return t, fmt.Errorf("repository.Repository.GetTemplate: %w", err)
	}

	t.Steps, err = repo.getStepTemplates(ctx, t.Id)
	if err != nil {
		return t, fmt.Errorf("repository.Repository.GetTemplate: %w", err)
	}
	return t, nil
}

// GetDefaultTemplate returns the template flagged as default, if any.
func (repo *Repository) GetDefaultTemplate(ctx context.Context) (models.WorkflowTemplate, bool, error) {
	var t models.WorkflowTemplate
	err := repo.q.GetContext(ctx, &t, "SELECT "+templateColumns+" FROM workflow_templates WHERE is_default LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return t, false, nil
	} else if err != nil {
		return t, false, fmt.Errorf("repository.Repository.GetDefaultTemplate: %w", err)
	}

	t.Steps, err = repo.getStepTemplates(ctx, t.Id)
	if err != nil {
		return t, false, fmt.Errorf("repository.Repository.GetDefaultTemplate: %w", err)
	}
	return t, true, nil
}

func (repo *Repository) GetTemplates(ctx context.Context) ([]models.WorkflowTemplate, error) {
	templates := []models.WorkflowTemplate{}
	err := repo.q.SelectContext(ctx, &templates, "SELECT "+templateColumns+" FROM workflow_templates ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetTemplates: %w", err)
	}

	for i := range templates {
		templates[i].Steps, err = repo.getStepTemplates(ctx, templates[i].Id)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetTemplates: %w", err)
		}
	}
	return templates, nil
}

// AddTemplate inserts the template row only; steps are written with ReplaceTemplateSteps.
func (repo *Repository) AddTemplate(ctx context.Context, t models.WorkflowTemplate) (models.WorkflowTemplate, error) {
	query := `
	INSERT INTO workflow_templates (name, is_default)
	VALUES ($1, $2)
	RETURNING ` + templateColumns

	var result models.WorkflowTemplate
	err := repo.q.QueryRowxContext(ctx, query, t.Name, t.IsDefault).StructScan(&result)
	if err != nil {
		return result, fmt.Errorf("repository.Repository.AddTemplate: %w", err)
	}
	result.Steps = []models.StepTemplate{}
	return result, nil
}

func (repo *Repository) ReplaceTemplateSteps(ctx context.Context, templateId string, steps []models.StepTemplate) ([]models.StepTemplate, error) {
	_, err := repo.q.ExecContext(ctx, "DELETE FROM step_templates WHERE template_id = $1", templateId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.ReplaceTemplateSteps: %w", err)
	}

	query := `
	INSERT INTO step_templates
		(template_id, step_order, role, approver_name, sla_duration, step_condition, is_required)
	VALUES
		($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + stepTemplateColumns

	result := make([]models.StepTemplate, 0, len(steps))
	for _, step := range steps {
		var created models.StepTemplate
		err = repo.q.QueryRowxContext(ctx, query,
			templateId, step.Order, step.Role, step.ApproverName, step.SlaDuration, step.Condition, step.IsRequired,
		).StructScan(&created)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.ReplaceTemplateSteps: %w", err)
		}
		result = append(result, created)
	}

	_, err = repo.q.ExecContext(ctx, "UPDATE workflow_templates SET updated_at = CURRENT_TIMESTAMP WHERE id = $1", templateId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.ReplaceTemplateSteps: %w", err)
	}
	return result, nil
}

// SetDefaultTemplate moves the default flag to the given template.
func (repo *Repository) SetDefaultTemplate(ctx context.Context, id string) error {
	_, err := repo.q.ExecContext(ctx, "UPDATE workflow_templates SET is_default = FALSE WHERE is_default AND id <> $1", id)
	if err != nil {
		return fmt.Errorf("repository.Repository.SetDefaultTemplate: %w", err)
	}

	res, err := repo.q.ExecContext(ctx, "UPDATE workflow_templates SET (is_default, updated_at) = (TRUE, CURRENT_TIMESTAMP) WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("repository.Repository.SetDefaultTemplate: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("repository.Repository.SetDefaultTemplate: %w", err)
	}
	if !ok {
		return fmt.Errorf("repository.Repository.SetDefaultTemplate: no template found by id %s, %w", id, sql.ErrNoRows)
	}
	return nil
}

func (repo *Repository) getStepTemplates(ctx context.Context, templateId string) ([]models.StepTemplate, error) {
	steps := []models.StepTemplate{}
	err := repo.q.SelectContext(ctx, &steps, "SELECT "+stepTemplateColumns+" FROM step_templates WHERE template_id = $1 ORDER BY step_order", templateId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.getStepTemplates: %w", err)
	}
	return steps, nil
}
