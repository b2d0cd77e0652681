package models

import "time"

// Task is an obligation occurrence materialized for a client. Completion
// tracking and delivery live in the host application; sage only creates
// and links tasks.
type Task struct {
	ID              string    `json:"id" db:"id"`
	TenantID        string    `json:"tenant_id" db:"tenant_id"`
	ClientID        string    `json:"client_id" db:"client_id"`
	Title           string    `json:"title" db:"title"`
	Description     string    `json:"description" db:"description"`
	TaskType        string    `json:"task_type" db:"task_type"`
	Priority        string    `json:"priority" db:"priority"`
	DueDate         time.Time `json:"due_date" db:"due_date"`
	AssigneeID      string    `json:"assignee_id" db:"assignee_id"`
	RecurrenceLabel string    `json:"recurrence_label" db:"recurrence_label"`
	PeriodKey       string    `json:"period_key" db:"period_key"`
	RequiresProof   bool      `json:"requires_proof" db:"requires_proof"`
	CreatedBy       *string   `json:"created_by,omitempty" db:"created_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
