package models

import "time"

// Staff roles recognized by assignee resolution.
const (
	StaffRoleAdmin      = "admin"
	StaffRoleAccountant = "accountant"
)

// StaffProfile is a member of the accounting firm who can own generated
// tasks.
type StaffProfile struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Email       string    `json:"email" db:"email"`
	Role        string    `json:"role" db:"role"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
