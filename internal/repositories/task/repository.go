package task

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Repository handles generated task persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new task repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const columns = "id, tenant_id, client_id, title, description, task_type, priority, due_date, assignee_id, recurrence_label, period_key, requires_proof, created_by, created_at"

// Create persists a generated task
func (r *Repository) Create(ctx context.Context, task *models.Task) error {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":     "Create",
		"tenant_id":  task.TenantID,
		"client_id":  task.ClientID,
		"period_key": task.PeriodKey,
	})

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("tasks")
	sb.Cols("id", "tenant_id", "client_id", "title", "description", "task_type", "priority", "due_date", "assignee_id", "recurrence_label", "period_key", "requires_proof", "created_by", "created_at")
	sb.Values(task.ID, task.TenantID, task.ClientID, task.Title, task.Description, task.TaskType, task.Priority, task.DueDate, task.AssigneeID, task.RecurrenceLabel, task.PeriodKey, task.RequiresProof, task.CreatedBy, task.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to create task")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create task")
	}

	log.WithFields(map[string]any{"id": task.ID}).Info("Created task")
	return nil
}

// FindMatching looks for a pre-existing task to adopt instead of creating a
// duplicate: same client, same title, same due date, and either the same
// period key or none recorded. Returns nil when nothing matches.
func (r *Repository) FindMatching(ctx context.Context, tenantID, clientID, title string, dueDate time.Time, periodKey string) (*models.Task, error) {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.FindMatching")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("tasks")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("client_id", clientID),
		sb.Equal("title", title),
		sb.Equal("due_date", dueDate),
		sb.Or(
			sb.Equal("period_key", periodKey),
			sb.Equal("period_key", ""),
		),
	)
	sb.OrderBy("created_at ASC")
	sb.Limit(1)

	query, args := sb.Build()
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find matching task")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find matching task")
	}

	return &task, nil
}

// Get retrieves a task by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Task, error) {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("tasks")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "task not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get task")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get task")
	}

	return &task, nil
}
