package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ModificationStatus string

const (
	ModificationPending  ModificationStatus = "PENDING"
	ModificationApproved ModificationStatus = "APPROVED"
	ModificationRejected ModificationStatus = "REJECTED"
)

// ModifiableBrfqFields lists the BRFQ fields an approved modification may overwrite.
var ModifiableBrfqFields = []string{"title", "description", "deadline", "currency", "terms"}

type FieldChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ChangeSummary is the proposed diff of a modification request.
// A nil Items leaves the item list untouched; a non-nil one replaces it entirely.
type ChangeSummary struct {
	Fields map[string]FieldChange `json:"fields"`
	Items  *[]BrfqItem            `json:"items,omitempty"`
}

func (c ChangeSummary) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *ChangeSummary) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = ChangeSummary{}
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return fmt.Errorf("models.ChangeSummary.Scan: unsupported type %T", src)
	}
}

type ModificationRequest struct {
	Id          string             `json:"id" db:"id"`
	BrfqId      string             `json:"brfqId" db:"brfq_id"`
	Status      ModificationStatus `json:"status" db:"status"`
	Reason      string             `json:"reason" db:"reason"`
	Summary     ChangeSummary      `json:"summary" db:"summary"`
	RequestedBy string             `json:"requestedBy" db:"requested_by"`
	ReviewedBy  string             `json:"reviewedBy,omitempty" db:"reviewed_by"`
	ReviewedAt  *time.Time         `json:"reviewedAt,omitempty" db:"reviewed_at"`
	CreatedAt   time.Time          `json:"createdAt" db:"created_at"`
}
