package models

import (
	"encoding/json"
	"time"
)

// Audit actions written by the generation orchestrator.
const (
	AuditActionGenerationCompleted = "compliance.generation.completed"
	AuditActionGenerationFailed    = "compliance.generation.failed"
)

// AuditEntry records who triggered what, with a JSON details blob.
type AuditEntry struct {
	ID        string          `json:"id" db:"id"`
	TenantID  string          `json:"tenant_id" db:"tenant_id"`
	ActorID   *string         `json:"actor_id,omitempty" db:"actor_id"`
	Action    string          `json:"action" db:"action"`
	Details   json.RawMessage `json:"details" db:"details"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
