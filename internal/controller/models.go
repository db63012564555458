package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"procurement/internal/models"
)

// New request

type NewRequestReq struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Requester   string  `json:"requester"`
	TemplateId  *string `json:"templateId"`
}

func ParseNewRequestReq(data []byte) (*NewRequestReq, error) {
	r := &NewRequestReq{}

	err := json.Unmarshal(data, r)
	if err != nil {
		return nil, err
	}

	if len(strings.TrimSpace(r.Title)) == 0 {
		return nil, errors.New("field 'title' is required")
	}
	if err = checkLengthLimit(r.Title, "title", 200); err != nil {
		return nil, err
	}
	if err = checkSingleLine(r.Title, "title"); err != nil {
		return nil, err
	}
	if err = checkLengthLimit(r.Requester, "requester", 100); err != nil {
		return nil, err
	}
	if err = checkLengthLimit(r.Description, "description", 5000); err != nil {
		return nil, err
	}

	return r, nil
}

// Decisions

// VerifyReq is the body of the public link decision endpoint.
type VerifyReq struct {
	Token    string `json:"token"`
	Decision string `json:"decision"`
	Comments string `json:"comments"`
}

func ParseVerifyReq(data []byte) (*VerifyReq, error) {
	v := &VerifyReq{}
	if len(data) == 0 {
		return v, nil
	}

	err := json.Unmarshal(data, v)
	if err != nil {
		return nil, err
	}
	if err = checkLengthLimit(v.Comments, "comments", 2000); err != nil {
		return nil, err
	}
	return v, nil
}

type ActionReq struct {
	StepId   string `json:"stepId"`
	Action   string `json:"action"`
	Comments string `json:"comments"`
}

func ParseActionReq(data []byte) (*ActionReq, error) {
	a := &ActionReq{}

	err := json.Unmarshal(data, a)
	if err != nil {
		return nil, err
	}

	if len(a.StepId) == 0 {
		return nil, errors.New("field 'stepId' is required")
	}
	if _, ok := models.ParseAction(a.Action); !ok {
		return nil, fmt.Errorf("invalid action supplied: '%s', should be one of: approve, reject", a.Action)
	}
	if err = checkLengthLimit(a.Comments, "comments", 2000); err != nil {
		return nil, err
	}
	return a, nil
}

// TokenTargetResp is returned to the link landing page.
type TokenTargetResp struct {
	Request   models.Request      `json:"request"`
	Step      models.ApprovalStep `json:"step"`
	ExpiresAt *time.Time          `json:"expiresAt,omitempty"`
	Action    string              `json:"action"`
}

// Templates

type TemplateStepsReq struct {
	Steps []models.StepTemplate `json:"steps"`
}

func ParseTemplateStepsReq(data []byte) (*TemplateStepsReq, error) {
	t := &TemplateStepsReq{}

	err := json.Unmarshal(data, t)
	if err != nil {
		return nil, err
	}
	if t.Steps == nil {
		return nil, errors.New("field 'steps' is required")
	}
	return t, nil
}

func ParseTemplateReq(data []byte) (*models.WorkflowTemplate, error) {
	t := &models.WorkflowTemplate{}

	err := json.Unmarshal(data, t)
	if err != nil {
		return nil, err
	}
	if err = checkLengthLimit(t.Name, "name", 100); err != nil {
		return nil, err
	}
	return t, nil
}

// Administration

func ParseApproverReq(data []byte) (*models.Approver, error) {
	a := &models.Approver{}

	err := json.Unmarshal(data, a)
	if err != nil {
		return nil, err
	}
	if err = checkLengthLimit(a.Name, "name", 100); err != nil {
		return nil, err
	}
	if err = checkLengthLimit(a.Role, "role", 100); err != nil {
		return nil, err
	}
	if err = checkLengthLimit(a.Email, "email", 254); err != nil {
		return nil, err
	}
	return a, nil
}

func ParseRuleReq(data []byte) (*models.ApprovalRule, error) {
	r := &models.ApprovalRule{}

	err := json.Unmarshal(data, r)
	if err != nil {
		return nil, err
	}
	if err = checkLengthLimit(r.Name, "name", 100); err != nil {
		return nil, err
	}
	return r, nil
}

func ParseSupplierReq(data []byte) (*models.Supplier, error) {
	s := &models.Supplier{}

	err := json.Unmarshal(data, s)
	if err != nil {
		return nil, err
	}
	if err = checkLengthLimit(s.Name, "name", 200); err != nil {
		return nil, err
	}
	return s, nil
}

// BRFQ

func ParseBrfqReq(data []byte) (*models.Brfq, error) {
	b := &models.Brfq{}

	err := json.Unmarshal(data, b)
	if err != nil {
		return nil, err
	}
	if err = checkLengthLimit(b.Title, "title", 200); err != nil {
		return nil, err
	}
	if err = checkSingleLine(b.Title, "title"); err != nil {
		return nil, err
	}
	if err = checkLengthLimit(b.Currency, "currency", 3); err != nil {
		return nil, err
	}
	return b, nil
}

type ModificationReq struct {
	Summary     models.ChangeSummary `json:"summary"`
	Reason      string               `json:"reason"`
	RequestedBy string               `json:"requestedBy"`
}

func ParseModificationReq(data []byte) (*ModificationReq, error) {
	m := &ModificationReq{}

	err := json.Unmarshal(data, m)
	if err != nil {
		return nil, err
	}
	if err = checkLengthLimit(m.Reason, "reason", 2000); err != nil {
		return nil, err
	}
	return m, nil
}

type RejectReq struct {
	Reason string `json:"reason"`
}

// Service

func checkLengthLimit(str, fieldName string, limit int) error {
	if len(str) > limit {
		return fmt.Errorf("field '%s' exceeds length limit: %d / %d", fieldName, len(str), limit)
	}
	return nil
}

// checkSingleLine rejects control characters in values that end up in mail headers.
func checkSingleLine(str, fieldName string) error {
	if strings.IndexFunc(str, unicode.IsControl) >= 0 {
		return fmt.Errorf("field '%s' must not contain control characters", fieldName)
	}
	return nil
}
