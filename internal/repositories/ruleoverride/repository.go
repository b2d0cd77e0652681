package ruleoverride

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Repository handles per-client rule override persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new rule override repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const columns = "id, tenant_id, client_id, rule_id, is_enabled, due_rule, task_template, created_at, updated_at"

// Upsert creates or replaces the override for (client, rule)
func (r *Repository) Upsert(ctx context.Context, tenantID, clientID string, req models.UpsertOverrideRequest) (*models.RuleOverride, error) {
	ctx, span := tracing.StartSpan(ctx, "ruleoverride.Repository.Upsert")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "Upsert",
		"tenant_id": tenantID,
		"client_id": clientID,
		"rule_id":   req.RuleID,
	})

	now := time.Now().UTC()
	override := &models.RuleOverride{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		ClientID:     clientID,
		RuleID:       req.RuleID,
		IsEnabled:    req.IsEnabled,
		DueRule:      req.DueRule,
		TaskTemplate: req.TaskTemplate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `
		INSERT INTO rule_overrides (id, tenant_id, client_id, rule_id, is_enabled, due_rule, task_template, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, client_id, rule_id) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			due_rule = EXCLUDED.due_rule,
			task_template = EXCLUDED.task_template,
			updated_at = EXCLUDED.updated_at`

	var dueRule, taskTemplate any
	if len(override.DueRule) > 0 {
		dueRule = []byte(override.DueRule)
	}
	if len(override.TaskTemplate) > 0 {
		taskTemplate = []byte(override.TaskTemplate)
	}

	if _, err := r.db.ExecContext(ctx, query, override.ID, override.TenantID, override.ClientID, override.RuleID, override.IsEnabled, dueRule, taskTemplate, override.CreatedAt, override.UpdatedAt); err != nil {
		log.WithError(err).Error("Failed to upsert rule override")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert rule override")
	}

	log.Info("Upserted rule override")
	return override, nil
}

// ListByClient retrieves all overrides for one client
func (r *Repository) ListByClient(ctx context.Context, tenantID, clientID string) ([]models.RuleOverride, error) {
	ctx, span := tracing.StartSpan(ctx, "ruleoverride.Repository.ListByClient")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("rule_overrides")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("client_id", clientID),
	)

	query, args := sb.Build()
	var overrides []models.RuleOverride
	if err := r.db.SelectContext(ctx, &overrides, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list rule overrides")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list rule overrides")
	}

	return overrides, nil
}

// ListByTenant retrieves every override in the tenant, for bulk loading at
// the start of a generation run
func (r *Repository) ListByTenant(ctx context.Context, tenantID string) ([]models.RuleOverride, error) {
	ctx, span := tracing.StartSpan(ctx, "ruleoverride.Repository.ListByTenant")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("rule_overrides")
	sb.Where(sb.Equal("tenant_id", tenantID))

	query, args := sb.Build()
	var overrides []models.RuleOverride
	if err := r.db.SelectContext(ctx, &overrides, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list rule overrides")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list rule overrides")
	}

	return overrides, nil
}

// Delete removes an override, restoring the rule as authored
func (r *Repository) Delete(ctx context.Context, tenantID, clientID, ruleID string) error {
	ctx, span := tracing.StartSpan(ctx, "ruleoverride.Repository.Delete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("rule_overrides")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("client_id", clientID),
		sb.Equal("rule_id", ruleID),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete rule override")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete rule override")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "rule override not found")
	}

	return nil
}
