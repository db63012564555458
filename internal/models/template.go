package models

import "time"

const MasterWorkflowName = "Master Workflow"

type WorkflowTemplate struct {
	Id        string         `json:"id" db:"id"`
	Name      string         `json:"name" db:"name" yaml:"name"`
	IsDefault bool           `json:"isDefault" db:"is_default" yaml:"default"`
	Steps     []StepTemplate `json:"steps" db:"-" yaml:"steps"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at" yaml:"-"`
	UpdatedAt time.Time      `json:"updatedAt" db:"updated_at" yaml:"-"`
}

type StepTemplate struct {
	Id           string `json:"id" db:"id" yaml:"-"`
	TemplateId   string `json:"templateId" db:"template_id" yaml:"-"`
	Order        int    `json:"order" db:"step_order" yaml:"order"`
	Role         string `json:"role" db:"role" yaml:"role"`
	ApproverName string `json:"approverName" db:"approver_name" yaml:"approver"`
	SlaDuration  int    `json:"slaDuration" db:"sla_duration" yaml:"sla"`
	Condition    string `json:"condition,omitempty" db:"step_condition" yaml:"condition"`
	IsRequired   bool   `json:"isRequired" db:"is_required" yaml:"required"`
}

// Instantiate copies the template step into a new request step.
func (t StepTemplate) Instantiate(approvalId string) ApprovalStep {
	return ApprovalStep{
		ApprovalId:   approvalId,
		Order:        t.Order,
		Role:         t.Role,
		ApproverName: t.ApproverName,
		Status:       StepWaiting,
		SlaDuration:  t.SlaDuration,
		Condition:    t.Condition,
		IsRequired:   t.IsRequired,
	}
}
