package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"procurement/internal/models"
)

//// Approvers

func (s *Service) GetApprovers(ctx context.Context) ([]models.Approver, error) {
	approvers, err := s.store.GetApprovers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetApprovers: %w", err)
	}
	return approvers, nil
}

func (s *Service) GetApprover(ctx context.Context, id string) (models.Approver, error) {
	approver, err := s.store.GetApprover(ctx, id)
	if err != nil {
		return approver, fmt.Errorf("service.Service.GetApprover: %w", notFound(err, models.ErrNoApprover))
	}
	return approver, nil
}

func (s *Service) CreateApprover(ctx context.Context, approver models.Approver) (models.Approver, error) {
	if err := validateApprover(&approver); err != nil {
		return approver, fmt.Errorf("service.Service.CreateApprover: %w", err)
	}

	approver, err := s.store.AddApprover(ctx, approver)
	if err != nil {
		return approver, fmt.Errorf("service.Service.CreateApprover: %w", err)
	}
	return approver, nil
}

func (s *Service) UpdateApprover(ctx context.Context, approver models.Approver) (models.Approver, error) {
	if err := validateApprover(&approver); err != nil {
		return approver, fmt.Errorf("service.Service.UpdateApprover: %w", err)
	}

	approver, err := s.store.UpdateApprover(ctx, approver)
	if err != nil {
		return approver, fmt.Errorf("service.Service.UpdateApprover: %w", notFound(err, models.ErrNoApprover))
	}
	return approver, nil
}

func (s *Service) DeleteApprover(ctx context.Context, id string) error {
	err := s.store.DeleteApprover(ctx, id)
	if err != nil {
		return fmt.Errorf("service.Service.DeleteApprover: %w", notFound(err, models.ErrNoApprover))
	}
	return nil
}

func validateApprover(a *models.Approver) error {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	if a.Name == "" {
		return validation("approver name is required")
	}
	if !strings.Contains(a.Email, "@") {
		return validation("invalid approver email '%s'", a.Email)
	}
	if a.UserId != nil && *a.UserId == "" {
		a.UserId = nil
	}
	return nil
}

//// Workflow templates

// GetDefaultTemplate returns the template used by requests without their own.
func (s *Service) GetDefaultTemplate(ctx context.Context) (models.WorkflowTemplate, error) {
	tmpl, ok, err := s.store.GetDefaultTemplate(ctx)
	if err != nil {
		return tmpl, fmt.Errorf("service.Service.GetDefaultTemplate: %w", err)
	}
	if !ok {
		return tmpl, fmt.Errorf("service.Service.GetDefaultTemplate: %w", models.ErrNoTemplate)
	}
	return tmpl, nil
}

func (s *Service) GetTemplates(ctx context.Context) ([]models.WorkflowTemplate, error) {
	templates, err := s.store.GetTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetTemplates: %w", err)
	}
	return templates, nil
}

// CreateTemplate stores a template with its steps. A default template replaces the previous default.
func (s *Service) CreateTemplate(ctx context.Context, tmpl models.WorkflowTemplate) (models.WorkflowTemplate, error) {
	tmpl.Name = strings.TrimSpace(tmpl.Name)
	if tmpl.Name == "" {
		return tmpl, fmt.Errorf("service.Service.CreateTemplate: %w", validation("template name is required"))
	}

	steps, err := validateSteps(tmpl.Steps)
	if err != nil {
		return tmpl, fmt.Errorf("service.Service.CreateTemplate: %w", err)
	}

	var created models.WorkflowTemplate
	err = s.store.WithinTx(ctx, func(tx Store) error {
		created, err = s.saveTemplate(ctx, tx, tmpl.Name, tmpl.IsDefault, steps)
		return err
	})
	if err != nil {
		return created, fmt.Errorf("service.Service.CreateTemplate: %w", err)
	}
	return created, nil
}

// ReplaceTemplateSteps swaps the whole step list of a template.
func (s *Service) ReplaceTemplateSteps(ctx context.Context, templateId string, steps []models.StepTemplate) (models.WorkflowTemplate, error) {
	steps, err := validateSteps(steps)
	if err != nil {
		return models.WorkflowTemplate{}, fmt.Errorf("service.Service.ReplaceTemplateSteps: %w", err)
	}

	var tmpl models.WorkflowTemplate
	err = s.store.WithinTx(ctx, func(tx Store) error {
		tmpl, err = tx.GetTemplate(ctx, templateId)
		if err != nil {
			return notFound(err, models.ErrNoTemplate)
		}

		tmpl.Steps, err = tx.ReplaceTemplateSteps(ctx, templateId, steps)
		return err
	})
	if err != nil {
		return tmpl, fmt.Errorf("service.Service.ReplaceTemplateSteps: %w", err)
	}
	return tmpl, nil
}

// ReplaceDefaultTemplateSteps updates the default template, creating the master workflow
// when there is no default yet.
func (s *Service) ReplaceDefaultTemplateSteps(ctx context.Context, steps []models.StepTemplate) (models.WorkflowTemplate, error) {
	steps, err := validateSteps(steps)
	if err != nil {
		return models.WorkflowTemplate{}, fmt.Errorf("service.Service.ReplaceDefaultTemplateSteps: %w", err)
	}

	var tmpl models.WorkflowTemplate
	err = s.store.WithinTx(ctx, func(tx Store) error {
		current, ok, err := tx.GetDefaultTemplate(ctx)
		if err != nil {
			return err
		}
		if !ok {
			tmpl, err = s.saveTemplate(ctx, tx, models.MasterWorkflowName, true, steps)
			return err
		}

		tmpl = current
		tmpl.Steps, err = tx.ReplaceTemplateSteps(ctx, current.Id, steps)
		return err
	})
	if err != nil {
		return tmpl, fmt.Errorf("service.Service.ReplaceDefaultTemplateSteps: %w", err)
	}
	return tmpl, nil
}

func (s *Service) SetDefaultTemplate(ctx context.Context, templateId string) (models.WorkflowTemplate, error) {
	var tmpl models.WorkflowTemplate
	err := s.store.WithinTx(ctx, func(tx Store) error {
		err := tx.SetDefaultTemplate(ctx, templateId)
		if err != nil {
			return notFound(err, models.ErrNoTemplate)
		}
		tmpl, err = tx.GetTemplate(ctx, templateId)
		return notFound(err, models.ErrNoTemplate)
	})
	if err != nil {
		return tmpl, fmt.Errorf("service.Service.SetDefaultTemplate: %w", err)
	}
	return tmpl, nil
}

type templateFile struct {
	Templates []models.WorkflowTemplate `yaml:"templates"`
}

// ImportTemplates loads workflow templates from a YAML document. Templates are matched
// by name: existing ones get their steps replaced, unknown ones are created.
func (s *Service) ImportTemplates(ctx context.Context, data []byte) ([]models.WorkflowTemplate, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("service.Service.ImportTemplates: %w", validation("invalid template file: %s", err))
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("service.Service.ImportTemplates: %w", validation("no templates found"))
	}

	defaults := 0
	for i, tmpl := range file.Templates {
		file.Templates[i].Name = strings.TrimSpace(tmpl.Name)
		if file.Templates[i].Name == "" {
			return nil, fmt.Errorf("service.Service.ImportTemplates: %w", validation("template %d has no name", i+1))
		}
		steps, err := validateSteps(tmpl.Steps)
		if err != nil {
			return nil, fmt.Errorf("service.Service.ImportTemplates: template '%s': %w", tmpl.Name, err)
		}
		file.Templates[i].Steps = steps
		if tmpl.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		return nil, fmt.Errorf("service.Service.ImportTemplates: %w", validation("only one template may be the default"))
	}

	imported := make([]models.WorkflowTemplate, 0, len(file.Templates))
	err := s.store.WithinTx(ctx, func(tx Store) error {
		existing, err := tx.GetTemplates(ctx)
		if err != nil {
			return err
		}
		byName := make(map[string]models.WorkflowTemplate, len(existing))
		for _, t := range existing {
			byName[t.Name] = t
		}

		for _, tmpl := range file.Templates {
			current, ok := byName[tmpl.Name]
			if !ok {
				created, err := s.saveTemplate(ctx, tx, tmpl.Name, tmpl.IsDefault, tmpl.Steps)
				if err != nil {
					return err
				}
				imported = append(imported, created)
				continue
			}

			current.Steps, err = tx.ReplaceTemplateSteps(ctx, current.Id, tmpl.Steps)
			if err != nil {
				return err
			}
			if tmpl.IsDefault && !current.IsDefault {
				if err = tx.SetDefaultTemplate(ctx, current.Id); err != nil {
					return err
				}
				current.IsDefault = true
			}
			imported = append(imported, current)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service.Service.ImportTemplates: %w", err)
	}
	return imported, nil
}

func (s *Service) saveTemplate(ctx context.Context, tx Store, name string, isDefault bool, steps []models.StepTemplate) (models.WorkflowTemplate, error) {
	tmpl, err := tx.AddTemplate(ctx, models.WorkflowTemplate{Name: name})
	if err != nil {
		return tmpl, err
	}

	tmpl.Steps, err = tx.ReplaceTemplateSteps(ctx, tmpl.Id, steps)
	if err != nil {
		return tmpl, err
	}

	if isDefault {
		if err = tx.SetDefaultTemplate(ctx, tmpl.Id); err != nil {
			return tmpl, err
		}
		tmpl.IsDefault = true
	}
	return tmpl, nil
}

// validateSteps checks a template step list and returns it ordered. Missing orders are
// assigned from the position in the list.
func validateSteps(steps []models.StepTemplate) ([]models.StepTemplate, error) {
	result := make([]models.StepTemplate, len(steps))
	seen := make(map[int]bool, len(steps))

	for i, step := range steps {
		if step.Order == 0 {
			step.Order = i + 1
		}
		step.Role = strings.TrimSpace(step.Role)
		step.ApproverName = strings.TrimSpace(step.ApproverName)

		switch {
		case step.Order < 0:
			return nil, validation("step order must be positive, got %d", step.Order)
		case seen[step.Order]:
			return nil, validation("duplicate step order %d", step.Order)
		case step.Role == "" && step.ApproverName == "":
			return nil, validation("step %d needs a role or an approver", step.Order)
		case step.SlaDuration < 0:
			return nil, validation("step %d has a negative sla", step.Order)
		}

		seen[step.Order] = true
		result[i] = step
	}

	return sortedSteps(result), nil
}

func sortedSteps(steps []models.StepTemplate) []models.StepTemplate {
	sorted := make([]models.StepTemplate, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}

//// Approval rules

func (s *Service) GetRules(ctx context.Context, onlyActive bool) ([]models.ApprovalRule, error) {
	rules, err := s.store.GetRules(ctx, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetRules: %w", err)
	}
	return rules, nil
}

func (s *Service) GetRule(ctx context.Context, id string) (models.ApprovalRule, error) {
	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return rule, fmt.Errorf("service.Service.GetRule: %w", notFound(err, models.ErrNoRule))
	}
	return rule, nil
}

func (s *Service) CreateRule(ctx context.Context, rule models.ApprovalRule) (models.ApprovalRule, error) {
	if err := validateRule(&rule); err != nil {
		return rule, fmt.Errorf("service.Service.CreateRule: %w", err)
	}

	rule, err := s.store.AddRule(ctx, rule)
	if err != nil {
		return rule, fmt.Errorf("service.Service.CreateRule: %w", err)
	}
	return rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, rule models.ApprovalRule) (models.ApprovalRule, error) {
	if err := validateRule(&rule); err != nil {
		return rule, fmt.Errorf("service.Service.UpdateRule: %w", err)
	}

	rule, err := s.store.UpdateRule(ctx, rule)
	if err != nil {
		return rule, fmt.Errorf("service.Service.UpdateRule: %w", notFound(err, models.ErrNoRule))
	}
	return rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, id string) error {
	err := s.store.DeleteRule(ctx, id)
	if err != nil {
		return fmt.Errorf("service.Service.DeleteRule: %w", notFound(err, models.ErrNoRule))
	}
	return nil
}

func validateRule(r *models.ApprovalRule) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return validation("rule name is required")
	}
	if len(r.Approvers) == 0 {
		return validation("rule needs at least one approver")
	}
	for _, a := range r.Approvers {
		if a.Order < 1 {
			return validation("approver '%s' has order %d, orders start at 1", a.Name, a.Order)
		}
	}
	if r.SlaHours < 0 {
		return validation("sla hours must not be negative")
	}
	sort.SliceStable(r.Approvers, func(i, j int) bool {
		return r.Approvers[i].Order < r.Approvers[j].Order
	})
	return nil
}

//// Suppliers

func (s *Service) CreateSupplier(ctx context.Context, supplier models.Supplier) (models.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	supplier.Email = strings.TrimSpace(supplier.Email)
	if supplier.Name == "" {
		return supplier, fmt.Errorf("service.Service.CreateSupplier: %w", validation("supplier name is required"))
	}
	if !strings.Contains(supplier.Email, "@") {
		return supplier, fmt.Errorf("service.Service.CreateSupplier: %w", validation("invalid supplier email '%s'", supplier.Email))
	}

	supplier, err := s.store.AddSupplier(ctx, supplier)
	if err != nil {
		return supplier, fmt.Errorf("service.Service.CreateSupplier: %w", err)
	}
	return supplier, nil
}

func (s *Service) GetSupplier(ctx context.Context, id string) (models.Supplier, error) {
	supplier, ok, err := s.store.GetSupplier(ctx, id)
	if err != nil {
		return supplier, fmt.Errorf("service.Service.GetSupplier: %w", err)
	}
	if !ok {
		return supplier, fmt.Errorf("service.Service.GetSupplier: %w: %s", models.ErrNoSupplier, id)
	}
	return supplier, nil
}
