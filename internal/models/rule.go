package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ApprovalRule configures the approver chain of BRFQ events.
type ApprovalRule struct {
	Id              string        `json:"id" db:"id"`
	Name            string        `json:"name" db:"name"`
	Criteria        string        `json:"criteria" db:"criteria"`
	Approvers       RuleApprovers `json:"approvers" db:"approvers"`
	SlaHours        int           `json:"slaHours" db:"sla_hours"`
	EscalationEmail string        `json:"escalationEmail" db:"escalation_email"`
	AutoPublish     bool          `json:"autoPublish" db:"auto_publish"`
	Active          bool          `json:"active" db:"active"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" db:"updated_at"`
}

type RuleApprover struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Order    int    `json:"order"`
	Parallel bool   `json:"parallel"`
}

// RuleApprovers is stored as a jsonb column.
type RuleApprovers []RuleApprover

func (a RuleApprovers) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *RuleApprovers) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("models.RuleApprovers.Scan: unsupported type %T", src)
	}
}
