package staff

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Repository reads the staff directory. Staff records are written by the
// host application; sage only resolves assignees from them.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new staff repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListActive retrieves the tenant's active staff, ordered by creation so
// assignee fallbacks pick the longest-tenured match first
func (r *Repository) ListActive(ctx context.Context, tenantID string) ([]models.StaffProfile, error) {
	ctx, span := tracing.StartSpan(ctx, "staff.Repository.ListActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "display_name", "email", "role", "is_active", "created_at")
	sb.From("staff_profiles")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("is_active", true),
	)
	sb.OrderBy("created_at ASC", "id ASC")

	query, args := sb.Build()
	var staff []models.StaffProfile
	if err := r.db.SelectContext(ctx, &staff, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list staff")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list staff")
	}

	return staff, nil
}
