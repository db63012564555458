package models

import "time"

type RequestStatus string

const (
	RequestDraft           RequestStatus = "draft"
	RequestPendingApproval RequestStatus = "pending_approval"
	RequestApproved        RequestStatus = "approved"
	RequestRejected        RequestStatus = "rejected"
	RequestAwarded         RequestStatus = "awarded"
	RequestClosed          RequestStatus = "closed"
)

func ValidRequestStatus(s RequestStatus) bool {
	switch s {
	case RequestDraft, RequestPendingApproval, RequestApproved, RequestRejected, RequestAwarded, RequestClosed:
		return true
	default:
		return false
	}
}

// Request is an RFQ/RFP moving through the approval workflow.
type Request struct {
	Id          string        `json:"id" db:"id"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	Requester   string        `json:"requester" db:"requester"`
	TemplateId  *string       `json:"templateId,omitempty" db:"template_id"`
	Status      RequestStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" db:"updated_at"`
}
