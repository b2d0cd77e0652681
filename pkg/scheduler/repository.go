package scheduler

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// SchedulableTenant is a tenant whose active rulebook is due for a
// generation pass
type SchedulableTenant struct {
	TenantID  string
	LastRunAt *time.Time
}

// RepositoryImpl implements Repository with cross-tenant access. This is a
// system-level repository not scoped to a single tenant.
type RepositoryImpl struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new scheduler repository
func NewRepository(db database.DB, logger ectologger.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		db:     db,
		logger: logger,
	}
}

// ListSchedulableTenants returns tenants with an active rulebook version
// whose newest non-dry generation run started more than minAge ago, or that
// have never run. Longest-idle tenants come first.
func (r *RepositoryImpl) ListSchedulableTenants(ctx context.Context, minAge time.Duration, limit int) ([]SchedulableTenant, error) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.Repository.ListSchedulableTenants")
	defer span.End()

	query := `
		SELECT v.tenant_id, MAX(gr.started_at) AS last_run_at
		FROM rulebook_versions v
		LEFT JOIN generation_runs gr ON gr.tenant_id = v.tenant_id AND gr.dry_run = FALSE
		WHERE v.is_active = TRUE
		GROUP BY v.tenant_id
		HAVING MAX(gr.started_at) IS NULL OR MAX(gr.started_at) < NOW() - ($1 * INTERVAL '1 second')
		ORDER BY MAX(gr.started_at) ASC NULLS FIRST
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, int(minAge.Seconds()), limit)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to query schedulable tenants")
		return nil, err
	}
	defer rows.Close()

	var tenants []SchedulableTenant
	for rows.Next() {
		var t SchedulableTenant
		if err := rows.Scan(&t.TenantID, &t.LastRunAt); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to scan schedulable tenant")
			return nil, err
		}
		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}
