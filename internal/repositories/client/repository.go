package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Repository reads the client registry. Clients are written by the host
// application; sage never mutates them.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new client repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const columns = "id, tenant_id, name, client_type, status, tax_regime, vat_registered, employee_count, tags, timezone, payroll_advance_day, payroll_final_day, archived_at, created_at, updated_at"

// Get retrieves a client by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("clients")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var client models.Client
	if err := r.db.GetContext(ctx, &client, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("client %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get client")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get client")
	}

	return &client, nil
}

// ListActive retrieves the tenant's clients that participate in generation:
// not archived, ordered by ID for deterministic runs
func (r *Repository) ListActive(ctx context.Context, tenantID string) ([]models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.ListActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("clients")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.IsNull("archived_at"),
	)
	sb.OrderBy("id ASC")

	query, args := sb.Build()
	var clients []models.Client
	if err := r.db.SelectContext(ctx, &clients, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list clients")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list clients")
	}

	return clients, nil
}

// ListAssignments retrieves all staff assignments in the tenant, for bulk
// loading at the start of a generation run
func (r *Repository) ListAssignments(ctx context.Context, tenantID string) ([]models.ClientAssignment, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.ListAssignments")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tenant_id", "client_id", "staff_id", "is_primary")
	sb.From("client_assignments")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("client_id ASC", "is_primary DESC", "staff_id ASC")

	query, args := sb.Build()
	var assignments []models.ClientAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list client assignments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list client assignments")
	}

	return assignments, nil
}
