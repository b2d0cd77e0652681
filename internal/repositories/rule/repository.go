package rule

import (
	"context"
	"fmt"
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

// Repository handles compliance rule persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new rule repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const columns = "id, tenant_id, version_id, code, name, match_condition, recurrence, due_rule, task_template, legal_basis, sort_order, is_active, created_at, updated_at"

// Create adds a rule to a rulebook version
func (r *Repository) Create(ctx context.Context, tenantID, versionID string, req models.CreateRuleRequest) (*models.Rule, error) {
	ctx, span := tracing.StartSpan(ctx, "rule.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":     "Create",
		"tenant_id":  tenantID,
		"version_id": versionID,
		"code":       req.Code,
	})

	now := time.Now().UTC()
	rule := &models.Rule{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		VersionID:      versionID,
		Code:           req.Code,
		Name:           req.Name,
		MatchCondition: req.MatchCondition,
		Recurrence:     req.Recurrence,
		DueRule:        req.DueRule,
		TaskTemplate:   req.TaskTemplate,
		LegalBasis:     database.JSONB[[]string]{Data: req.LegalBasis},
		SortOrder:      req.SortOrder,
		IsActive:       req.IsActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("rules")
	sb.Cols("id", "tenant_id", "version_id", "code", "name", "match_condition", "recurrence", "due_rule", "task_template", "legal_basis", "sort_order", "is_active", "created_at", "updated_at")
	sb.Values(rule.ID, rule.TenantID, rule.VersionID, rule.Code, rule.Name, []byte(rule.MatchCondition), []byte(rule.Recurrence), []byte(rule.DueRule), []byte(rule.TaskTemplate), rule.LegalBasis, rule.SortOrder, rule.IsActive, rule.CreatedAt, rule.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to create rule")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create rule")
	}

	log.WithFields(map[string]any{"id": rule.ID}).Info("Created rule")
	return rule, nil
}

// Get retrieves a rule by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Rule, error) {
	ctx, span := tracing.StartSpan(ctx, "rule.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("rules")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var rule models.Rule
	if err := r.db.GetContext(ctx, &rule, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("rule %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get rule")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get rule")
	}

	return &rule, nil
}

// ListActiveByVersion retrieves the active rules of a version in evaluation
// order (sort_order, then code for a stable tie-break)
func (r *Repository) ListActiveByVersion(ctx context.Context, tenantID, versionID string) ([]models.Rule, error) {
	ctx, span := tracing.StartSpan(ctx, "rule.Repository.ListActiveByVersion")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("rules")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("version_id", versionID),
		sb.Equal("is_active", true),
	)
	sb.OrderBy("sort_order ASC", "code ASC")

	query, args := sb.Build()
	var rules []models.Rule
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list rules")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list rules")
	}

	return rules, nil
}

// ListByVersion retrieves all rules of a version, active or not
func (r *Repository) ListByVersion(ctx context.Context, tenantID, versionID string) ([]models.Rule, error) {
	ctx, span := tracing.StartSpan(ctx, "rule.Repository.ListByVersion")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("rules")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("version_id", versionID),
	)
	sb.OrderBy("sort_order ASC", "code ASC")

	query, args := sb.Build()
	var rules []models.Rule
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list rules")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list rules")
	}

	return rules, nil
}

// SetActive toggles a rule on or off without touching its definition
func (r *Repository) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	ctx, span := tracing.StartSpan(ctx, "rule.Repository.SetActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("rules")
	sb.Set(
		sb.Assign("is_active", active),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update rule")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update rule")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("rule %s not found", id))
	}

	return nil
}
