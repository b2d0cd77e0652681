package generationrecord

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Repository handles the generation ledger. The unique index on
// (tenant_id, client_id, rule_id, period_key) is the idempotency guarantee;
// everything else here is bookkeeping around it.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new generation record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const columns = "id, tenant_id, client_id, rule_id, rule_code, period_key, status, due_date, task_id, error_message, context, created_by, created_at, updated_at"

const uniqueViolation = pq.ErrorCode("23505")

// Insert claims the ledger slot for (client, rule, period). The returned
// bool reports whether this call won the slot: false means another run
// already holds it and the caller should re-read with GetByKey.
func (r *Repository) Insert(ctx context.Context, record *models.GenerationRecord) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrecord.Repository.Insert")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("generation_records")
	sb.Cols("id", "tenant_id", "client_id", "rule_id", "rule_code", "period_key", "status", "due_date", "task_id", "error_message", "context", "created_by", "created_at", "updated_at")
	sb.Values(record.ID, record.TenantID, record.ClientID, record.RuleID, record.RuleCode, record.PeriodKey, record.Status, record.DueDate, record.TaskID, record.ErrorMessage, record.Context, record.CreatedBy, record.CreatedAt, record.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return false, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert generation record")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert generation record")
	}

	return true, nil
}

// GetByKey retrieves the ledger row for (client, rule, period)
func (r *Repository) GetByKey(ctx context.Context, tenantID, clientID, ruleID, periodKey string) (*models.GenerationRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrecord.Repository.GetByKey")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("generation_records")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("client_id", clientID),
		sb.Equal("rule_id", ruleID),
		sb.Equal("period_key", periodKey),
	)

	query, args := sb.Build()
	var record models.GenerationRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "generation record not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get generation record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get generation record")
	}

	return &record, nil
}

// ListByClient retrieves every ledger row for one client, for bulk loading
// before evaluating that client's candidates
func (r *Repository) ListByClient(ctx context.Context, tenantID, clientID string) ([]models.GenerationRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "generationrecord.Repository.ListByClient")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns)
	sb.From("generation_records")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("client_id", clientID),
	)

	query, args := sb.Build()
	var records []models.GenerationRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list generation records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list generation records")
	}

	return records, nil
}

// UpdateLinked marks a record satisfied by the given task
func (r *Repository) UpdateLinked(ctx context.Context, tenantID, id, taskID string) error {
	ctx, span := tracing.StartSpan(ctx, "generationrecord.Repository.UpdateLinked")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("generation_records")
	sb.Set(
		sb.Assign("status", models.GenerationStatusLinked),
		sb.Assign("task_id", taskID),
		sb.Assign("error_message", nil),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to link generation record")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to link generation record")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "generation record not found")
	}

	return nil
}

// MarkError records a candidate failure on the ledger row so a later
// force-retry can find and re-attempt it
func (r *Repository) MarkError(ctx context.Context, tenantID, id, message string) error {
	ctx, span := tracing.StartSpan(ctx, "generationrecord.Repository.MarkError")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("generation_records")
	sb.Set(
		sb.Assign("status", models.GenerationStatusError),
		sb.Assign("error_message", message),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark generation record errored")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark generation record errored")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "generation record not found")
	}

	return nil
}
