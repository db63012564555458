package models

import "time"

type Approver struct {
	Id        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	UserId    *string   `json:"userId,omitempty" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Actor is the authenticated dashboard user acting on a step.
type Actor struct {
	UserId   string
	Username string
	IsAdmin  bool
}
