package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"procurement/internal/models"
)

// memStore is an in-memory Store. Transactions snapshot the state and restore it on error.
type memStore struct {
	mu sync.Mutex

	requests  map[string]models.Request
	approvals map[string]models.Approval
	steps     map[string]models.ApprovalStep
	templates map[string]models.WorkflowTemplate
	approvers map[string]models.Approver
	rules     map[string]models.ApprovalRule
	suppliers map[string]models.Supplier
	brfqs     map[string]models.Brfq
	mods      map[string]models.ModificationRequest
}

func newMemStore() *memStore {
	return &memStore{
		requests:  map[string]models.Request{},
		approvals: map[string]models.Approval{},
		steps:     map[string]models.ApprovalStep{},
		templates: map[string]models.WorkflowTemplate{},
		approvers: map[string]models.Approver{},
		rules:     map[string]models.ApprovalRule{},
		suppliers: map[string]models.Supplier{},
		brfqs:     map[string]models.Brfq{},
		mods:      map[string]models.ModificationRequest{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (m *memStore) snapshot() *memStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &memStore{
		requests:  copyMap(m.requests),
		approvals: copyMap(m.approvals),
		steps:     copyMap(m.steps),
		templates: copyMap(m.templates),
		approvers: copyMap(m.approvers),
		rules:     copyMap(m.rules),
		suppliers: copyMap(m.suppliers),
		brfqs:     copyMap(m.brfqs),
		mods:      copyMap(m.mods),
	}
}

func (m *memStore) restore(s *memStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests, m.approvals, m.steps = s.requests, s.approvals, s.steps
	m.templates, m.approvers, m.rules = s.templates, s.approvers, s.rules
	m.suppliers, m.brfqs, m.mods = s.suppliers, s.brfqs, s.mods
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	saved := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

func noRows(kind, id string) error {
	return fmt.Errorf("memStore: no %s found by id %s, %w", kind, id, sql.ErrNoRows)
}

//// Requests

func (m *memStore) AddRequest(ctx context.Context, r models.Request) (models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Id = uuid.NewString()
	r.CreatedAt, r.UpdatedAt = time.Now(), time.Now()
	m.requests[r.Id] = r
	return r, nil
}

func (m *memStore) GetRequest(ctx context.Context, id string) (models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return r, noRows("request", id)
	}
	return r, nil
}

func (m *memStore) GetRequests(ctx context.Context, limit, offset int, status models.RequestStatus) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []models.Request{}
	for _, r := range m.requests {
		if status == "" || r.Status == status {
			result = append(result, r)
		}
	}
	if offset >= len(result) {
		return []models.Request{}, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (m *memStore) SetRequestStatus(ctx context.Context, id string, status models.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return noRows("request", id)
	}
	r.Status = status
	m.requests[id] = r
	return nil
}

//// Approvals

func (m *memStore) GetApproval(ctx context.Context, requestId string) (models.Approval, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[requestId]
	return a, ok, nil
}

func (m *memStore) AddApproval(ctx context.Context, requestId string) (models.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.approvals[requestId]; ok {
		return a, nil
	}
	a := models.Approval{Id: uuid.NewString(), RequestId: requestId, CreatedAt: time.Now()}
	m.approvals[requestId] = a
	return a, nil
}

func (m *memStore) AddSteps(ctx context.Context, steps []models.ApprovalStep) ([]models.ApprovalStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.ApprovalStep, len(steps))
	for i, s := range steps {
		s.Id = uuid.NewString()
		s.CreatedAt = time.Now()
		m.steps[s.Id] = s
		result[i] = s
	}
	return result, nil
}

func (m *memStore) GetSteps(ctx context.Context, approvalId string) ([]models.ApprovalStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stepsOf(approvalId), nil
}

func (m *memStore) stepsOf(approvalId string) []models.ApprovalStep {
	steps := []models.ApprovalStep{}
	for _, s := range m.steps {
		if s.ApprovalId == approvalId {
			steps = append(steps, s)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	return steps
}

func (m *memStore) requestStep(s models.ApprovalStep) models.RequestStep {
	rs := models.RequestStep{ApprovalStep: s}
	for _, a := range m.approvals {
		if a.Id == s.ApprovalId {
			rs.RequestId = a.RequestId
			rs.RequestTitle = m.requests[a.RequestId].Title
		}
	}
	return rs
}

func (m *memStore) GetRequestStep(ctx context.Context, stepId string) (models.RequestStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[stepId]
	if !ok {
		return models.RequestStep{}, noRows("step", stepId)
	}
	return m.requestStep(s), nil
}

func (m *memStore) NextStep(ctx context.Context, approvalId string, afterOrder int) (models.ApprovalStep, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.stepsOf(approvalId) {
		if s.Order > afterOrder {
			return s, true, nil
		}
	}
	return models.ApprovalStep{}, false, nil
}

func (m *memStore) ResetSteps(ctx context.Context, approvalId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.stepsOf(approvalId) {
		s.Status = models.StepWaiting
		s.Comments, s.DecidedBy = "", ""
		s.ActivatedAt, s.DecidedAt, s.EscalatedAt = nil, nil, nil
		m.steps[s.Id] = s
	}
	return nil
}

func (m *memStore) ActivateStep(ctx context.Context, stepId string, at time.Time) (models.ApprovalStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[stepId]
	if !ok {
		return s, noRows("step", stepId)
	}
	for _, other := range m.stepsOf(s.ApprovalId) {
		if other.Status == models.StepPending && other.Id != stepId {
			return s, fmt.Errorf("memStore: approval %s already has a pending step", s.ApprovalId)
		}
	}
	s.Status = models.StepPending
	s.ActivatedAt = &at
	s.EscalatedAt = nil
	m.steps[stepId] = s
	return s, nil
}

func (m *memStore) DecideStep(ctx context.Context, stepId string, decision models.Decision, decidedBy, comments string, at time.Time) (models.ApprovalStep, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[stepId]
	if !ok || s.Status != models.StepPending {
		return models.ApprovalStep{}, false, nil
	}
	s.Status = decision
	s.DecidedBy = decidedBy
	s.Comments = comments
	s.DecidedAt = &at
	m.steps[stepId] = s
	return s, true, nil
}

func (m *memStore) PendingStepsFor(ctx context.Context, approverName, role string) ([]models.RequestStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []models.RequestStep{}
	for _, s := range m.steps {
		if s.Status != models.StepPending {
			continue
		}
		if s.ApproverName == approverName || (s.ApproverName == "" && role != "" && s.Role == role) {
			result = append(result, m.requestStep(s))
		}
	}
	return result, nil
}

func (m *memStore) OverdueSteps(ctx context.Context, now time.Time) ([]models.RequestStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []models.RequestStep{}
	for _, s := range m.steps {
		deadline, ok := s.SlaDeadline()
		if s.Status == models.StepPending && s.EscalatedAt == nil && ok && !deadline.After(now) {
			result = append(result, m.requestStep(s))
		}
	}
	return result, nil
}

func (m *memStore) MarkStepEscalated(ctx context.Context, stepId string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[stepId]
	if !ok || s.Status != models.StepPending || s.EscalatedAt != nil {
		return false, nil
	}
	s.EscalatedAt = &at
	m.steps[stepId] = s
	return true, nil
}

func (m *memStore) ClearStepEscalation(ctx context.Context, stepId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[stepId]
	if ok && s.Status == models.StepPending {
		s.EscalatedAt = nil
		m.steps[stepId] = s
	}
	return nil
}

//// Templates

func (m *memStore) GetTemplate(ctx context.Context, id string) (models.WorkflowTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return t, noRows("template", id)
	}
	return t, nil
}

func (m *memStore) GetDefaultTemplate(ctx context.Context) (models.WorkflowTemplate, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.IsDefault {
			return t, true, nil
		}
	}
	return models.WorkflowTemplate{}, false, nil
}

func (m *memStore) GetTemplates(ctx context.Context) ([]models.WorkflowTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []models.WorkflowTemplate{}
	for _, t := range m.templates {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *memStore) AddTemplate(ctx context.Context, t models.WorkflowTemplate) (models.WorkflowTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.templates {
		if other.Name == t.Name {
			return t, fmt.Errorf("memStore: duplicate template name %s", t.Name)
		}
	}
	t.Id = uuid.NewString()
	t.IsDefault = false
	t.Steps = []models.StepTemplate{}
	m.templates[t.Id] = t
	return t, nil
}

func (m *memStore) ReplaceTemplateSteps(ctx context.Context, templateId string, steps []models.StepTemplate) ([]models.StepTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[templateId]
	if !ok {
		return nil, noRows("template", templateId)
	}
	result := make([]models.StepTemplate, len(steps))
	for i, s := range steps {
		s.Id = uuid.NewString()
		s.TemplateId = templateId
		result[i] = s
	}
	t.Steps = result
	m.templates[templateId] = t
	return result, nil
}

func (m *memStore) SetDefaultTemplate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[id]; !ok {
		return noRows("template", id)
	}
	for key, t := range m.templates {
		t.IsDefault = key == id
		m.templates[key] = t
	}
	return nil
}

//// Approvers

func (m *memStore) GetApprovers(ctx context.Context) ([]models.Approver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []models.Approver{}
	for _, a := range m.approvers {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *memStore) GetApprover(ctx context.Context, id string) (models.Approver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvers[id]
	if !ok {
		return a, noRows("approver", id)
	}
	return a, nil
}

func (m *memStore) approverBy(match func(models.Approver) bool) (models.Approver, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		found models.Approver
		ok    bool
	)
	for _, a := range m.approvers {
		if match(a) && (!ok || a.CreatedAt.Before(found.CreatedAt)) {
			found, ok = a, true
		}
	}
	return found, ok, nil
}

func (m *memStore) ApproverByName(ctx context.Context, name string) (models.Approver, bool, error) {
	return m.approverBy(func(a models.Approver) bool { return a.Name == name })
}

func (m *memStore) ApproverByRole(ctx context.Context, role string) (models.Approver, bool, error) {
	return m.approverBy(func(a models.Approver) bool { return a.Role == role })
}

func (m *memStore) ApproverByUserId(ctx context.Context, userId string) (models.Approver, bool, error) {
	return m.approverBy(func(a models.Approver) bool { return a.UserId != nil && *a.UserId == userId })
}

func (m *memStore) AddApprover(ctx context.Context, a models.Approver) (models.Approver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Id = uuid.NewString()
	a.CreatedAt = time.Now()
	m.approvers[a.Id] = a
	return a, nil
}

func (m *memStore) UpdateApprover(ctx context.Context, a models.Approver) (models.Approver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.approvers[a.Id]
	if !ok {
		return a, noRows("approver", a.Id)
	}
	a.CreatedAt = old.CreatedAt
	m.approvers[a.Id] = a
	return a, nil
}

func (m *memStore) DeleteApprover(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.approvers[id]; !ok {
		return noRows("approver", id)
	}
	delete(m.approvers, id)
	return nil
}

//// Rules

func (m *memStore) GetRules(ctx context.Context, onlyActive bool) ([]models.ApprovalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []models.ApprovalRule{}
	for _, r := range m.rules {
		if !onlyActive || r.Active {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *memStore) GetRule(ctx context.Context, id string) (models.ApprovalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return r, noRows("rule", id)
	}
	return r, nil
}

func (m *memStore) AddRule(ctx context.Context, r models.ApprovalRule) (models.ApprovalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Id = uuid.NewString()
	m.rules[r.Id] = r
	return r, nil
}

func (m *memStore) UpdateRule(ctx context.Context, r models.ApprovalRule) (models.ApprovalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[r.Id]; !ok {
		return r, noRows("rule", r.Id)
	}
	m.rules[r.Id] = r
	return r, nil
}

func (m *memStore) DeleteRule(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return noRows("rule", id)
	}
	delete(m.rules, id)
	return nil
}

//// Suppliers and BRFQ

func (m *memStore) AddSupplier(ctx context.Context, s models.Supplier) (models.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Id = uuid.NewString()
	m.suppliers[s.Id] = s
	return s, nil
}

func (m *memStore) GetSupplier(ctx context.Context, id string) (models.Supplier, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	return s, ok, nil
}

func (m *memStore) AddBrfq(ctx context.Context, b models.Brfq) (models.Brfq, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.Id = uuid.NewString()
	if b.Status == "" {
		b.Status = models.BrfqDraft
	}
	b.Items = m.withItemIds(b.Id, b.Items)
	m.brfqs[b.Id] = b
	return b, nil
}

func (m *memStore) withItemIds(brfqId string, items []models.BrfqItem) []models.BrfqItem {
	result := make([]models.BrfqItem, len(items))
	for i, item := range items {
		item.Id = uuid.NewString()
		item.BrfqId = brfqId
		result[i] = item
	}
	return result
}

func (m *memStore) GetBrfq(ctx context.Context, id string) (models.Brfq, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.brfqs[id]
	if !ok {
		return b, noRows("brfq", id)
	}
	return b, nil
}

func (m *memStore) UpdateBrfq(ctx context.Context, b models.Brfq) (models.Brfq, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.brfqs[b.Id]
	if !ok {
		return b, noRows("brfq", b.Id)
	}
	old.Title, old.Description, old.Deadline = b.Title, b.Description, b.Deadline
	old.Currency, old.Terms = b.Currency, b.Terms
	m.brfqs[b.Id] = old
	old.Items = nil
	return old, nil
}

func (m *memStore) ReplaceBrfqItems(ctx context.Context, brfqId string, items []models.BrfqItem) ([]models.BrfqItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.brfqs[brfqId]
	if !ok {
		return nil, noRows("brfq", brfqId)
	}
	b.Items = m.withItemIds(brfqId, items)
	m.brfqs[brfqId] = b
	return b.Items, nil
}

func (m *memStore) AddModification(ctx context.Context, mod models.ModificationRequest) (models.ModificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod.Id = uuid.NewString()
	mod.Status = models.ModificationPending
	m.mods[mod.Id] = mod
	return mod, nil
}

func (m *memStore) GetModification(ctx context.Context, id string) (models.ModificationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.mods[id]
	if !ok {
		return mod, noRows("modification", id)
	}
	return mod, nil
}

func (m *memStore) DecideModification(ctx context.Context, id string, status models.ModificationStatus, reviewedBy, reason string, at time.Time) (models.ModificationRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.mods[id]
	if !ok || mod.Status != models.ModificationPending {
		return models.ModificationRequest{}, false, nil
	}
	mod.Status = status
	mod.ReviewedBy = reviewedBy
	mod.ReviewedAt = &at
	if reason != "" {
		mod.Reason = reason
	}
	m.mods[id] = mod
	return mod, true, nil
}
