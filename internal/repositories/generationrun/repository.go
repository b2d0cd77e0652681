package generationrun

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

// Repository handles generation run persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new generation run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const columns = "id, tenant_id, status, window_from, window_to, dry_run, force_retry, triggered_by, processed_clients, evaluated_rules, matched_candidates, created_tasks, linked_existing_tasks, skipped_already_generated, skipped_by_condition, skipped_no_assignee, errors, error_message, started_at, finished_at"

// Create persists a run in the running state
func (r *Repository) Create(ctx context.Context, run *models.GenerationRun) error {
	ctx, span := tracing.StartSpan(ctx, "generationrun.Repository.Create")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("generation_runs")
	sb.Cols("id", "tenant_id", "status", "window_from", "window_to", "dry_run", "force_retry", "triggered_by", "started_at")
	sb.Values(run.ID, run.TenantID, run.Status, run.WindowFrom, run.WindowTo, run.DryRun, run.ForceRetry, run.TriggeredBy, run.StartedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create generation run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create generation run")
	}

	return nil
}

// Finish records the run's terminal status and counters
func (r *Repository) Finish(ctx context.Context, run *models.GenerationRun) error {
	ctx, span := tracing.StartSpan(ctx, "generationrun.Repository.Finish")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("generation_runs")
	sb.Set(
		sb.Assign("status", run.Status),
		sb.Assign("processed_clients", run.ProcessedClients),
		sb.Assign("evaluated_rules", run.EvaluatedRules),
		sb.Assign("matched_candidates", run.MatchedCandidates),
		sb.Assign("created_tasks", run.CreatedTasks),
		sb.Assign("linked_existing_tasks", run.LinkedExistingTasks),
		sb.Assign("skipped_already_generated", run.SkippedAlreadyGenerated),
		sb.Assign("skipped_by_condition", run.SkippedByCondition),
		sb.Assign("skipped_no_assignee", run.SkippedNoAssignee),
		sb.Assign("errors", run.Errors),
		sb.Assign("error_message", run.ErrorMessage),
		sb.Assign("finished_at", run.FinishedAt),
	)
	sb.Where(
		sb.Equal("id", run.ID),
		sb.Equal("tenant_id", run.TenantID),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to finish generation run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to finish generation run")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "generation run not found")
	}

	return nil
}

// Get retrieves a run by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.GenerationRun, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrun.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("generation_runs")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var run models.GenerationRun
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "generation run not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get generation run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get generation run")
	}

	return &run, nil
}

// List retrieves a tenant's recent runs, newest first
func (r *Repository) List(ctx context.Context, tenantID string, limit int) ([]models.GenerationRun, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrun.Repository.List")
	defer span.End()

	if limit < 1 || limit > 100 {
		limit = 20
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("generation_runs")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("started_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var runs []models.GenerationRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list generation runs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list generation runs")
	}

	return runs, nil
}
