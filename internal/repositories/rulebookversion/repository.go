package rulebookversion

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

// Repository handles rulebook version persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new rulebook version repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const columns = "id, tenant_id, name, is_active, effective_from, effective_to, created_at, updated_at"

// Create creates a new, inactive rulebook version
func (r *Repository) Create(ctx context.Context, tenantID string, req models.CreateVersionRequest) (*models.RulebookVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "rulebookversion.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "Create",
		"tenant_id": tenantID,
		"name":      req.Name,
	})

	now := time.Now().UTC()
	version := &models.RulebookVersion{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		Name:          req.Name,
		IsActive:      false,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("rulebook_versions")
	sb.Cols("id", "tenant_id", "name", "is_active", "effective_from", "effective_to", "created_at", "updated_at")
	sb.Values(version.ID, version.TenantID, version.Name, version.IsActive, version.EffectiveFrom, version.EffectiveTo, version.CreatedAt, version.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to create rulebook version")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create rulebook version")
	}

	log.WithFields(map[string]any{"id": version.ID}).Info("Created rulebook version")
	return version, nil
}

// Get retrieves a rulebook version by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.RulebookVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "rulebookversion.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("rulebook_versions")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var version models.RulebookVersion
	if err := r.db.GetContext(ctx, &version, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("rulebook version %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get rulebook version")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get rulebook version")
	}

	return &version, nil
}

// GetActive retrieves the tenant's single active rulebook version
func (r *Repository) GetActive(ctx context.Context, tenantID string) (*models.RulebookVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "rulebookversion.Repository.GetActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("rulebook_versions")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_active", true),
	)

	query, args := sb.Build()
	var version models.RulebookVersion
	if err := r.db.GetContext(ctx, &version, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "no active rulebook version")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get active rulebook version")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get active rulebook version")
	}

	return &version, nil
}

// List retrieves all rulebook versions for a tenant, newest first
func (r *Repository) List(ctx context.Context, tenantID string) ([]models.RulebookVersion, error) {
	ctx, span := tracing.StartSpan(ctx, "rulebookversion.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("rulebook_versions")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	var versions []models.RulebookVersion
	if err := r.db.SelectContext(ctx, &versions, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list rulebook versions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list rulebook versions")
	}

	return versions, nil
}

// Activate makes the given version the tenant's active one, deactivating
// whichever version held that position. The old row is cleared before the
// new one is set, inside one transaction: the partial unique index on
// (tenant_id) WHERE is_active is checked per row, so a single-statement
// swap can trip it depending on update order.
func (r *Repository) Activate(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "rulebookversion.Repository.Activate")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "Activate",
		"tenant_id": tenantID,
		"id":        id,
	})

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		log.WithError(err).Error("Failed to begin activation transaction")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to activate rulebook version")
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	deactivate := `
		UPDATE rulebook_versions
		SET is_active = FALSE, updated_at = $1
		WHERE tenant_id = $2 AND is_active = TRUE AND id <> $3`
	if _, err := tx.ExecContext(ctx, deactivate, now, tenantID, id); err != nil {
		log.WithError(err).Error("Failed to deactivate current rulebook version")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to activate rulebook version")
	}

	activate := `
		UPDATE rulebook_versions
		SET is_active = TRUE, updated_at = $1
		WHERE tenant_id = $2 AND id = $3`
	result, err := tx.ExecContext(ctx, activate, now, tenantID, id)
	if err != nil {
		log.WithError(err).Error("Failed to activate rulebook version")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to activate rulebook version")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("rulebook version %s not found", id))
	}

	if err := tx.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit activation transaction")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to activate rulebook version")
	}

	log.Info("Activated rulebook version")
	return nil
}
