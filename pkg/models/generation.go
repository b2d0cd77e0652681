package models

import (
	"time"

	"github.com/Ramsey-B/sage/pkg/database"
)

// GenerationStatus is the lifecycle of a generation record. A record never
// reverts from linked/error back to an untracked state; a record with a
// linked task is permanently satisfied for its period.
type GenerationStatus string

const (
	GenerationStatusCreated GenerationStatus = "created"
	GenerationStatusLinked  GenerationStatus = "linked"
	GenerationStatusError   GenerationStatus = "error"
)

// GenerationContext is the traceability blob stored with each record.
type GenerationContext struct {
	RuleCode   string   `json:"rule_code"`
	TaskTitle  string   `json:"task_title"`
	LegalBasis []string `json:"legal_basis,omitempty"`
}

// GenerationRecord is the idempotency ledger row: at most one exists per
// (tenant, client, rule, period key).
type GenerationRecord struct {
	ID           string                              `json:"id" db:"id"`
	TenantID     string                              `json:"tenant_id" db:"tenant_id"`
	ClientID     string                              `json:"client_id" db:"client_id"`
	RuleID       string                              `json:"rule_id" db:"rule_id"`
	RuleCode     string                              `json:"rule_code" db:"rule_code"`
	PeriodKey    string                              `json:"period_key" db:"period_key"`
	Status       GenerationStatus                    `json:"status" db:"status"`
	DueDate      time.Time                           `json:"due_date" db:"due_date"`
	TaskID       *string                             `json:"task_id,omitempty" db:"task_id"`
	ErrorMessage *string                             `json:"error_message,omitempty" db:"error_message"`
	Context      database.JSONB[GenerationContext]   `json:"context" db:"context"`
	CreatedBy    *string                             `json:"created_by,omitempty" db:"created_by"`
	CreatedAt    time.Time                           `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time                           `json:"updated_at" db:"updated_at"`
}

// RunStatus is the lifecycle of a generation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// CandidateError describes one failed candidate inside a run. Candidate
// failures never abort the run; they accumulate here for operator review.
type CandidateError struct {
	ClientID  string `json:"client_id"`
	RuleCode  string `json:"rule_code"`
	PeriodKey string `json:"period_key"`
	Message   string `json:"message"`
}

// GenerationRun is the persisted summary of one orchestrator invocation.
type GenerationRun struct {
	ID                      string                            `json:"id" db:"id"`
	TenantID                string                            `json:"tenant_id" db:"tenant_id"`
	Status                  RunStatus                         `json:"status" db:"status"`
	WindowFrom              time.Time                         `json:"window_from" db:"window_from"`
	WindowTo                time.Time                         `json:"window_to" db:"window_to"`
	DryRun                  bool                              `json:"dry_run" db:"dry_run"`
	ForceRetry              bool                              `json:"force_retry" db:"force_retry"`
	TriggeredBy             *string                           `json:"triggered_by,omitempty" db:"triggered_by"`
	ProcessedClients        int                               `json:"processed_clients" db:"processed_clients"`
	EvaluatedRules          int                               `json:"evaluated_rules" db:"evaluated_rules"`
	MatchedCandidates       int                               `json:"matched_candidates" db:"matched_candidates"`
	CreatedTasks            int                               `json:"created_tasks" db:"created_tasks"`
	LinkedExistingTasks     int                               `json:"linked_existing_tasks" db:"linked_existing_tasks"`
	SkippedAlreadyGenerated int                               `json:"skipped_already_generated" db:"skipped_already_generated"`
	SkippedByCondition      int                               `json:"skipped_by_condition" db:"skipped_by_condition"`
	SkippedNoAssignee       int                               `json:"skipped_no_assignee" db:"skipped_no_assignee"`
	Errors                  database.JSONB[[]CandidateError]  `json:"errors" db:"errors"`
	ErrorMessage            *string                           `json:"error_message,omitempty" db:"error_message"`
	StartedAt               time.Time                         `json:"started_at" db:"started_at"`
	FinishedAt              *time.Time                        `json:"finished_at,omitempty" db:"finished_at"`
}
