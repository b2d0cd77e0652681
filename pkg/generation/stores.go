package generation

import (
	"context"
	"time"

	"github.com/Ramsey-B/sage/pkg/models"
)

// Store interfaces declared by the orchestrator and satisfied by the
// repositories, so generation logic is testable against fakes.

// VersionStore reads rulebook versions
type VersionStore interface {
	GetActive(ctx context.Context, tenantID string) (*models.RulebookVersion, error)
}

// RuleStore reads the rules of a version
type RuleStore interface {
	ListActiveByVersion(ctx context.Context, tenantID, versionID string) ([]models.Rule, error)
}

// OverrideStore reads per-client rule overrides
type OverrideStore interface {
	ListByTenant(ctx context.Context, tenantID string) ([]models.RuleOverride, error)
}

// ClientStore reads the client registry
type ClientStore interface {
	ListActive(ctx context.Context, tenantID string) ([]models.Client, error)
	ListAssignments(ctx context.Context, tenantID string) ([]models.ClientAssignment, error)
}

// StaffStore reads the staff directory
type StaffStore interface {
	ListActive(ctx context.Context, tenantID string) ([]models.StaffProfile, error)
}

// RecordStore is the generation ledger
type RecordStore interface {
	ListByClient(ctx context.Context, tenantID, clientID string) ([]models.GenerationRecord, error)
	Insert(ctx context.Context, record *models.GenerationRecord) (bool, error)
	GetByKey(ctx context.Context, tenantID, clientID, ruleID, periodKey string) (*models.GenerationRecord, error)
	UpdateLinked(ctx context.Context, tenantID, id, taskID string) error
	MarkError(ctx context.Context, tenantID, id, message string) error
}

// TaskStore creates and adopts tasks
type TaskStore interface {
	FindMatching(ctx context.Context, tenantID, clientID, title string, dueDate time.Time, periodKey string) (*models.Task, error)
	Create(ctx context.Context, task *models.Task) error
}

// RunStore persists run summaries
type RunStore interface {
	Create(ctx context.Context, run *models.GenerationRun) error
	Finish(ctx context.Context, run *models.GenerationRun) error
}

// AuditStore appends audit entries
type AuditStore interface {
	Insert(ctx context.Context, entry *models.AuditEntry) error
}

// Emitter publishes generation events for downstream consumers. Emission is
// best-effort: the orchestrator logs failures and moves on.
type Emitter interface {
	EmitTaskCreated(ctx context.Context, task *models.Task) error
	EmitRunCompleted(ctx context.Context, run *models.GenerationRun) error
}
