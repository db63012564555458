package service

import (
	"context"
	"time"

	"procurement/internal/models"
	"procurement/internal/repository"
)

// Store is the persistence the service works against.
type Store interface {
	// WithinTx runs fn against a store bound to one transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	AddRequest(ctx context.Context, r models.Request) (models.Request, error)
	GetRequest(ctx context.Context, id string) (models.Request, error)
	GetRequests(ctx context.Context, limit, offset int, status models.RequestStatus) ([]models.Request, error)
	SetRequestStatus(ctx context.Context, id string, status models.RequestStatus) error

	GetApproval(ctx context.Context, requestId string) (models.Approval, bool, error)
	AddApproval(ctx context.Context, requestId string) (models.Approval, error)
	AddSteps(ctx context.Context, steps []models.ApprovalStep) ([]models.ApprovalStep, error)
	GetSteps(ctx context.Context, approvalId string) ([]models.ApprovalStep, error)
	GetRequestStep(ctx context.Context, stepId string) (models.RequestStep, error)
	NextStep(ctx context.Context, approvalId string, afterOrder int) (models.ApprovalStep, bool, error)
	ResetSteps(ctx context.Context, approvalId string) error
	ActivateStep(ctx context.Context, stepId string, at time.Time) (models.ApprovalStep, error)
	DecideStep(ctx context.Context, stepId string, decision models.Decision, decidedBy, comments string, at time.Time) (models.ApprovalStep, bool, error)
	PendingStepsFor(ctx context.Context, approverName, role string) ([]models.RequestStep, error)
	OverdueSteps(ctx context.Context, now time.Time) ([]models.RequestStep, error)
	MarkStepEscalated(ctx context.Context, stepId string, at time.Time) (bool, error)
	ClearStepEscalation(ctx context.Context, stepId string) error

	GetTemplate(ctx context.Context, id string) (models.WorkflowTemplate, error)
	GetDefaultTemplate(ctx context.Context) (models.WorkflowTemplate, bool, error)
	GetTemplates(ctx context.Context) ([]models.WorkflowTemplate, error)
	AddTemplate(ctx context.Context, t models.WorkflowTemplate) (models.WorkflowTemplate, error)
	ReplaceTemplateSteps(ctx context.Context, templateId string, steps []models.StepTemplate) ([]models.StepTemplate, error)
	SetDefaultTemplate(ctx context.Context, id string) error

	GetApprovers(ctx context.Context) ([]models.Approver, error)
	GetApprover(ctx context.Context, id string) (models.Approver, error)
	ApproverByName(ctx context.Context, name string) (models.Approver, bool, error)
	ApproverByRole(ctx context.Context, role string) (models.Approver, bool, error)
	ApproverByUserId(ctx context.Context, userId string) (models.Approver, bool, error)
	AddApprover(ctx context.Context, a models.Approver) (models.Approver, error)
	UpdateApprover(ctx context.Context, a models.Approver) (models.Approver, error)
	DeleteApprover(ctx context.Context, id string) error

	GetRules(ctx context.Context, onlyActive bool) ([]models.ApprovalRule, error)
	GetRule(ctx context.Context, id string) (models.ApprovalRule, error)
	AddRule(ctx context.Context, r models.ApprovalRule) (models.ApprovalRule, error)
	UpdateRule(ctx context.Context, r models.ApprovalRule) (models.ApprovalRule, error)
	DeleteRule(ctx context.Context, id string) error

	AddSupplier(ctx context.Context, s models.Supplier) (models.Supplier, error)
	GetSupplier(ctx context.Context, id string) (models.Supplier, bool, error)

	AddBrfq(ctx context.Context, b models.Brfq) (models.Brfq, error)
	GetBrfq(ctx context.Context, id string) (models.Brfq, error)
	UpdateBrfq(ctx context.Context, b models.Brfq) (models.Brfq, error)
	ReplaceBrfqItems(ctx context.Context, brfqId string, items []models.BrfqItem) ([]models.BrfqItem, error)

	AddModification(ctx context.Context, m models.ModificationRequest) (models.ModificationRequest, error)
	GetModification(ctx context.Context, id string) (models.ModificationRequest, error)
	DecideModification(ctx context.Context, id string, status models.ModificationStatus, reviewedBy, reason string, at time.Time) (models.ModificationRequest, bool, error)
}

type repoStore struct {
	*repository.Repository
}

// NewRepositoryStore adapts the postgres repository to Store.
func NewRepositoryStore(repo *repository.Repository) Store {
	return repoStore{Repository: repo}
}

func (s repoStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.Repository.InTx(ctx, func(tx *repository.Repository) error {
		return fn(repoStore{Repository: tx})
	})
}
