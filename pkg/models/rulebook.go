package models

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/sage/pkg/database"
)

// RulebookVersion is a named, dated set of compliance rules for a tenant.
// Exactly one version is active per tenant at any time; generation always
// reads the single active version.
type RulebookVersion struct {
	ID            string     `json:"id" db:"id"`
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	Name          string     `json:"name" db:"name"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	EffectiveFrom time.Time  `json:"effective_from" db:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" db:"effective_to"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Rule is a single compliance obligation definition inside a rulebook
// version. The condition, recurrence, due rule and task template are stored
// as JSON and parsed into typed shapes at load time; a rule whose shapes do
// not parse is simply not actionable. Rules are immutable once referenced
// by generation history; behavior changes go through overrides or a new
// version.
type Rule struct {
	ID             string                    `json:"id" db:"id"`
	TenantID       string                    `json:"tenant_id" db:"tenant_id"`
	VersionID      string                    `json:"version_id" db:"version_id"`
	Code           string                    `json:"code" db:"code"`
	Name           string                    `json:"name" db:"name"`
	MatchCondition json.RawMessage           `json:"match_condition" db:"match_condition"`
	Recurrence     json.RawMessage           `json:"recurrence" db:"recurrence"`
	DueRule        json.RawMessage           `json:"due_rule" db:"due_rule"`
	TaskTemplate   json.RawMessage           `json:"task_template" db:"task_template"`
	LegalBasis     database.JSONB[[]string]  `json:"legal_basis" db:"legal_basis"`
	SortOrder      int                       `json:"sort_order" db:"sort_order"`
	IsActive       bool                      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time                 `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at" db:"updated_at"`
}

// RuleOverride customizes one rule for one client. Absence of an override
// means "use the rule as authored". The due rule and task template replace
// the base values only when present and well-formed.
type RuleOverride struct {
	ID           string          `json:"id" db:"id"`
	TenantID     string          `json:"tenant_id" db:"tenant_id"`
	ClientID     string          `json:"client_id" db:"client_id"`
	RuleID       string          `json:"rule_id" db:"rule_id"`
	IsEnabled    bool            `json:"is_enabled" db:"is_enabled"`
	DueRule      json.RawMessage `json:"due_rule,omitempty" db:"due_rule"`
	TaskTemplate json.RawMessage `json:"task_template,omitempty" db:"task_template"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// CreateVersionRequest is the request to create a rulebook version.
type CreateVersionRequest struct {
	Name          string     `json:"name" validate:"required"`
	EffectiveFrom time.Time  `json:"effective_from" validate:"required"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
}

// CreateRuleRequest is the request to add a rule to a version.
type CreateRuleRequest struct {
	Code           string          `json:"code" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	MatchCondition json.RawMessage `json:"match_condition" validate:"required"`
	Recurrence     json.RawMessage `json:"recurrence" validate:"required"`
	DueRule        json.RawMessage `json:"due_rule" validate:"required"`
	TaskTemplate   json.RawMessage `json:"task_template" validate:"required"`
	LegalBasis     []string        `json:"legal_basis,omitempty"`
	SortOrder      int             `json:"sort_order"`
	IsActive       bool            `json:"is_active"`
}

// UpsertOverrideRequest is the request to set a per-client rule override.
type UpsertOverrideRequest struct {
	RuleID       string          `json:"rule_id" validate:"required"`
	IsEnabled    bool            `json:"is_enabled"`
	DueRule      json.RawMessage `json:"due_rule,omitempty"`
	TaskTemplate json.RawMessage `json:"task_template,omitempty"`
}
