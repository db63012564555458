package models

import (
	"time"

	"github.com/lib/pq"
)

type BrfqStatus string

const (
	BrfqDraft     BrfqStatus = "draft"
	BrfqPublished BrfqStatus = "published"
	BrfqClosed    BrfqStatus = "closed"
	BrfqAwarded   BrfqStatus = "awarded"
)

func ValidBrfqStatus(s BrfqStatus) bool {
	switch s {
	case BrfqDraft, BrfqPublished, BrfqClosed, BrfqAwarded:
		return true
	default:
		return false
	}
}

// Brfq is a buyer-side RFQ event sent out to suppliers.
type Brfq struct {
	Id          string         `json:"id" db:"id"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	Status      BrfqStatus     `json:"status" db:"status"`
	Deadline    *time.Time     `json:"deadline,omitempty" db:"deadline"`
	Currency    string         `json:"currency" db:"currency"`
	Terms       string         `json:"terms" db:"terms"`
	Suppliers   pq.StringArray `json:"suppliers" db:"suppliers"`
	Items       []BrfqItem     `json:"items" db:"-"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time      `json:"updatedAt" db:"updated_at"`
}

type BrfqItem struct {
	Id            string  `json:"id" db:"id"`
	BrfqId        string  `json:"brfqId" db:"brfq_id"`
	Name          string  `json:"name" db:"name"`
	Quantity      float64 `json:"quantity" db:"quantity"`
	Unit          string  `json:"unit" db:"unit"`
	Specification string  `json:"specification" db:"specification"`
}

type Supplier struct {
	Id        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
