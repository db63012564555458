package models

import "time"

type StepStatus string

const (
	StepWaiting  StepStatus = "WAITING"
	StepPending  StepStatus = "PENDING"
	StepApproved StepStatus = "APPROVED"
	StepRejected StepStatus = "REJECTED"
)

// Decision is the outcome an approver records on a pending step.
type Decision = StepStatus

func ValidDecision(d Decision) bool {
	switch d {
	case StepApproved, StepRejected:
		return true
	default:
		return false
	}
}

// ParseAction maps the "approve" / "reject" verbs used by links and the dashboard.
func ParseAction(action string) (Decision, bool) {
	switch action {
	case "approve", "approved", "APPROVE", string(StepApproved):
		return StepApproved, true
	case "reject", "rejected", "REJECT", string(StepRejected):
		return StepRejected, true
	default:
		return "", false
	}
}

// Approval groups the ordered steps of one request.
type Approval struct {
	Id        string    `json:"id" db:"id"`
	RequestId string    `json:"requestId" db:"request_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ApprovalStep struct {
	Id           string     `json:"id" db:"id"`
	ApprovalId   string     `json:"approvalId" db:"approval_id"`
	Order        int        `json:"order" db:"step_order"`
	Role         string     `json:"role" db:"role"`
	ApproverName string     `json:"approverName" db:"approver_name"`
	Status       StepStatus `json:"status" db:"status"`
	SlaDuration  int        `json:"slaDuration" db:"sla_duration"`
	Condition    string     `json:"condition,omitempty" db:"step_condition"`
	IsRequired   bool       `json:"isRequired" db:"is_required"`
	Comments     string     `json:"comments,omitempty" db:"comments"`
	DecidedBy    string     `json:"decidedBy,omitempty" db:"decided_by"`
	ActivatedAt  *time.Time `json:"activatedAt,omitempty" db:"activated_at"`
	DecidedAt    *time.Time `json:"decidedAt,omitempty" db:"decided_at"`
	EscalatedAt  *time.Time `json:"escalatedAt,omitempty" db:"escalated_at"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"-" db:"updated_at"`
}

// SlaDeadline reports when an active step becomes overdue.
func (s ApprovalStep) SlaDeadline() (time.Time, bool) {
	if s.SlaDuration <= 0 || s.ActivatedAt == nil {
		return time.Time{}, false
	}
	return s.ActivatedAt.Add(time.Duration(s.SlaDuration) * time.Hour), true
}

// RequestStep is an approval step together with the request it gates.
type RequestStep struct {
	ApprovalStep
	RequestId    string `json:"requestId" db:"request_id"`
	RequestTitle string `json:"requestTitle" db:"request_title"`
}

// RequestApproval is the read model of a request with its ordered steps.
type RequestApproval struct {
	Request Request        `json:"request"`
	Steps   []ApprovalStep `json:"steps"`
}
