// Package generation implements the compliance generation orchestrator: it
// walks client → rule → period, materializes each applicable obligation
// occurrence into a task exactly once, and records a summary of the run.
package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/profile"
	"github.com/Ramsey-B/sage/pkg/rules"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// maxErrorMessageLen bounds candidate error messages stored on records and
// in the run summary.
const maxErrorMessageLen = 500

// Config holds orchestrator tuning.
type Config struct {
	// WindowDays is the default window length when the caller gives no
	// end date.
	WindowDays int
	// LookbackDays is how far behind the window start the enumerator
	// scans, so long recurrences whose period started long ago but whose
	// due date falls inside the window are still found.
	LookbackDays int
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		WindowDays:   45,
		LookbackDays: 370,
	}
}

// Request is one orchestrator invocation.
type Request struct {
	TenantID string
	// ActorID attributes created tasks and the audit entry. Nil for
	// scheduled runs.
	ActorID *string
	// FromDate/ToDate bound the window; both default (from = today,
	// to = from + WindowDays).
	FromDate *time.Time
	ToDate   *time.Time
	// Holidays is the jurisdiction holiday calendar for business-day
	// shifts.
	Holidays []time.Time
	// DryRun evaluates and counts identically but writes nothing.
	DryRun bool
	// ForceRetryWithoutLinkedTask re-attempts candidates whose record
	// exists but never got a task linked.
	ForceRetryWithoutLinkedTask bool
}

// Service is the generation orchestrator.
type Service struct {
	versions  VersionStore
	rules     RuleStore
	overrides OverrideStore
	clients   ClientStore
	staff     StaffStore
	records   RecordStore
	tasks     TaskStore
	runs      RunStore
	audit     AuditStore
	emitter   Emitter
	config    Config
	logger    ectologger.Logger
}

// NewService creates a generation orchestrator. The emitter may be nil when
// event emission is disabled.
func NewService(
	versions VersionStore,
	ruleStore RuleStore,
	overrides OverrideStore,
	clients ClientStore,
	staff StaffStore,
	records RecordStore,
	tasks TaskStore,
	runs RunStore,
	audit AuditStore,
	emitter Emitter,
	config Config,
	logger ectologger.Logger,
) *Service {
	if config.WindowDays <= 0 {
		config.WindowDays = DefaultConfig().WindowDays
	}
	if config.LookbackDays <= 0 {
		config.LookbackDays = DefaultConfig().LookbackDays
	}

	return &Service{
		versions:  versions,
		rules:     ruleStore,
		overrides: overrides,
		clients:   clients,
		staff:     staff,
		records:   records,
		tasks:     tasks,
		runs:      runs,
		audit:     audit,
		emitter:   emitter,
		config:    config,
		logger:    logger,
	}
}

// Run executes one generation pass for a tenant. Candidate failures are
// absorbed into the run's error list; only run-level failures (loading
// rules, clients, overrides or ledger state) return an error, after the
// run is marked failed and audited.
func (s *Service) Run(ctx context.Context, req Request) (*models.GenerationRun, error) {
	ctx, span := tracing.StartSpan(ctx, "generation.Service.Run")
	defer span.End()

	if req.TenantID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "tenant id is required")
	}

	windowFrom := utcDate(time.Now())
	if req.FromDate != nil {
		windowFrom = utcDate(*req.FromDate)
	}
	windowTo := windowFrom.AddDate(0, 0, s.config.WindowDays)
	if req.ToDate != nil {
		windowTo = utcDate(*req.ToDate)
	}
	if windowTo.Before(windowFrom) {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "window end precedes window start")
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   req.TenantID,
		"window_from": windowFrom.Format("2006-01-02"),
		"window_to":   windowTo.Format("2006-01-02"),
		"dry_run":     req.DryRun,
		"force_retry": req.ForceRetryWithoutLinkedTask,
	})

	started := time.Now().UTC()
	run := &models.GenerationRun{
		ID:          uuid.New().String(),
		TenantID:    req.TenantID,
		Status:      models.RunStatusRunning,
		WindowFrom:  windowFrom,
		WindowTo:    windowTo,
		DryRun:      req.DryRun,
		ForceRetry:  req.ForceRetryWithoutLinkedTask,
		TriggeredBy: req.ActorID,
		StartedAt:   started,
	}

	if !req.DryRun {
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, err
		}
	}

	log.Info("Starting generation run")

	version, err := s.versions.GetActive(ctx, req.TenantID)
	if err != nil {
		return nil, s.failRun(ctx, req, run, err)
	}
	ruleList, err := s.rules.ListActiveByVersion(ctx, req.TenantID, version.ID)
	if err != nil {
		return nil, s.failRun(ctx, req, run, err)
	}
	overrideList, err := s.overrides.ListByTenant(ctx, req.TenantID)
	if err != nil {
		return nil, s.failRun(ctx, req, run, err)
	}
	clientList, err := s.clients.ListActive(ctx, req.TenantID)
	if err != nil {
		return nil, s.failRun(ctx, req, run, err)
	}
	assignments, err := s.clients.ListAssignments(ctx, req.TenantID)
	if err != nil {
		return nil, s.failRun(ctx, req, run, err)
	}
	staffList, err := s.staff.ListActive(ctx, req.TenantID)
	if err != nil {
		return nil, s.failRun(ctx, req, run, err)
	}

	overridesByClient := make(map[string]map[string]*models.RuleOverride)
	for i := range overrideList {
		o := &overrideList[i]
		byRule, ok := overridesByClient[o.ClientID]
		if !ok {
			byRule = make(map[string]*models.RuleOverride)
			overridesByClient[o.ClientID] = byRule
		}
		byRule[o.RuleID] = o
	}

	idx := newAssigneeIndex(assignments, staffList)
	holidays := rules.NewHolidaySet(req.Holidays)
	scanFrom := windowFrom.AddDate(0, 0, -s.config.LookbackDays)

	for _, client := range clientList {
		existing, err := s.records.ListByClient(ctx, req.TenantID, client.ID)
		if err != nil {
			return nil, s.failRun(ctx, req, run, err)
		}
		recordByKey := make(map[string]*models.GenerationRecord, len(existing))
		for i := range existing {
			r := &existing[i]
			recordByKey[candidateKey(r.RuleID, r.PeriodKey)] = r
		}

		prof := profile.Normalize(client)
		run.ProcessedClients++

		for _, rule := range ruleList {
			var override *models.RuleOverride
			if byRule, ok := overridesByClient[client.ID]; ok {
				override = byRule[rule.ID]
			}

			eff, actionable := rules.MergeOverride(rule, override)
			if !actionable {
				log.WithFields(map[string]any{
					"client_id": client.ID,
					"rule_code": rule.Code,
				}).Warn("Rule configuration does not parse, skipping for client")
				continue
			}
			if !eff.Enabled {
				continue
			}

			run.EvaluatedRules++

			if !eff.Condition.Evaluate(prof) {
				run.SkippedByCondition++
				continue
			}

			assigneeID, ok := idx.Resolve(eff.Template, client.ID)
			if !ok {
				run.SkippedNoAssignee++
				continue
			}

			dueCtx := rules.DueContext{
				Holidays:          holidays,
				PayrollAdvanceDay: prof.PayrollAdvanceDay,
				PayrollFinalDay:   prof.PayrollFinalDay,
			}

			for _, period := range eff.Recurrence.Enumerate(scanFrom, windowTo) {
				due, err := eff.DuePolicy.Resolve(period, dueCtx)
				if err != nil {
					log.WithFields(map[string]any{
						"client_id":  client.ID,
						"rule_code":  rule.Code,
						"period_key": period.Key,
					}).WithError(err).Warn("Due date not resolvable for client, skipping period")
					continue
				}
				if due.Before(windowFrom) || due.After(windowTo) {
					continue
				}

				run.MatchedCandidates++
				s.processCandidate(ctx, req, run, client, eff, period, due, assigneeID, recordByKey)
			}
		}
	}

	run.Status = models.RunStatusCompleted
	finished := time.Now().UTC()
	run.FinishedAt = &finished

	if !req.DryRun {
		if err := s.runs.Finish(ctx, run); err != nil {
			log.WithError(err).Error("Failed to persist run summary")
		}
		s.writeAudit(ctx, req, run, models.AuditActionGenerationCompleted)
		s.emitRunCompleted(ctx, run)
	}

	s.observeRun(run, started)

	log.WithFields(map[string]any{
		"run_id":             run.ID,
		"processed_clients":  run.ProcessedClients,
		"matched_candidates": run.MatchedCandidates,
		"created_tasks":      run.CreatedTasks,
		"linked_existing":    run.LinkedExistingTasks,
		"errors":             len(run.Errors.GetValue()),
	}).Info("Generation run completed")

	return run, nil
}

// processCandidate drives one (client, rule, period) candidate through the
// ledger state machine. Failures are recorded and absorbed.
func (s *Service) processCandidate(
	ctx context.Context,
	req Request,
	run *models.GenerationRun,
	client models.Client,
	eff rules.EffectiveRule,
	period rules.Period,
	due time.Time,
	assigneeID string,
	recordByKey map[string]*models.GenerationRecord,
) {
	record := recordByKey[candidateKey(eff.Rule.ID, period.Key)]
	if record != nil {
		if record.Status == models.GenerationStatusLinked && record.TaskID != nil {
			run.SkippedAlreadyGenerated++
			return
		}
		if !req.ForceRetryWithoutLinkedTask {
			run.SkippedAlreadyGenerated++
			return
		}
		if req.DryRun {
			s.dryRunCandidate(ctx, req, run, client, eff, period, due)
			return
		}
		s.linkOrCreate(ctx, req, run, client, eff, period, due, assigneeID, record)
		return
	}

	if req.DryRun {
		s.dryRunCandidate(ctx, req, run, client, eff, period, due)
		return
	}

	now := time.Now().UTC()
	fresh := &models.GenerationRecord{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID,
		ClientID:  client.ID,
		RuleID:    eff.Rule.ID,
		RuleCode:  eff.Rule.Code,
		PeriodKey: period.Key,
		Status:    models.GenerationStatusCreated,
		DueDate:   due,
		Context: database.JSONB[models.GenerationContext]{Data: models.GenerationContext{
			RuleCode:   eff.Rule.Code,
			TaskTitle:  eff.Template.Title,
			LegalBasis: eff.Rule.LegalBasis.GetValue(),
		}},
		CreatedBy: req.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	inserted, err := s.records.Insert(ctx, fresh)
	if err != nil {
		s.candidateError(ctx, run, nil, client.ID, eff.Rule.Code, period.Key, err)
		return
	}
	if !inserted {
		// lost the insert race: a concurrent run owns this candidate
		winner, err := s.records.GetByKey(ctx, req.TenantID, client.ID, eff.Rule.ID, period.Key)
		if err != nil {
			s.candidateError(ctx, run, nil, client.ID, eff.Rule.Code, period.Key, err)
			return
		}
		if winner.Status == models.GenerationStatusLinked && winner.TaskID != nil {
			run.SkippedAlreadyGenerated++
			return
		}
		if !req.ForceRetryWithoutLinkedTask {
			run.SkippedAlreadyGenerated++
			return
		}
		fresh = winner
	}

	s.linkOrCreate(ctx, req, run, client, eff, period, due, assigneeID, fresh)
}

// dryRunCandidate counts the outcome a real run would have had without
// touching the ledger or the task store.
func (s *Service) dryRunCandidate(
	ctx context.Context,
	req Request,
	run *models.GenerationRun,
	client models.Client,
	eff rules.EffectiveRule,
	period rules.Period,
	due time.Time,
) {
	task, err := s.tasks.FindMatching(ctx, req.TenantID, client.ID, eff.Template.Title, due, period.Key)
	if err != nil {
		s.candidateError(ctx, run, nil, client.ID, eff.Rule.Code, period.Key, err)
		return
	}
	if task != nil {
		run.LinkedExistingTasks++
	} else {
		run.CreatedTasks++
	}
}

// linkOrCreate satisfies a claimed ledger record: adopt a matching
// pre-existing task if one exists, otherwise create one, then link it.
func (s *Service) linkOrCreate(
	ctx context.Context,
	req Request,
	run *models.GenerationRun,
	client models.Client,
	eff rules.EffectiveRule,
	period rules.Period,
	due time.Time,
	assigneeID string,
	record *models.GenerationRecord,
) {
	existing, err := s.tasks.FindMatching(ctx, req.TenantID, client.ID, eff.Template.Title, due, period.Key)
	if err != nil {
		s.candidateError(ctx, run, record, client.ID, eff.Rule.Code, period.Key, err)
		return
	}

	if existing != nil {
		if err := s.records.UpdateLinked(ctx, req.TenantID, record.ID, existing.ID); err != nil {
			s.candidateError(ctx, run, record, client.ID, eff.Rule.Code, period.Key, err)
			return
		}
		run.LinkedExistingTasks++
		return
	}

	task := &models.Task{
		ID:              uuid.New().String(),
		TenantID:        req.TenantID,
		ClientID:        client.ID,
		Title:           eff.Template.Title,
		Description:     taskDescription(eff),
		TaskType:        eff.Template.TaskType,
		Priority:        eff.Template.Priority,
		DueDate:         due,
		AssigneeID:      assigneeID,
		RecurrenceLabel: eff.Recurrence.Label(),
		PeriodKey:       period.Key,
		RequiresProof:   eff.Template.RequiresProof,
		CreatedBy:       req.ActorID,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		s.candidateError(ctx, run, record, client.ID, eff.Rule.Code, period.Key, err)
		return
	}
	if err := s.records.UpdateLinked(ctx, req.TenantID, record.ID, task.ID); err != nil {
		s.candidateError(ctx, run, record, client.ID, eff.Rule.Code, period.Key, err)
		return
	}

	run.CreatedTasks++
	metrics.TasksCreatedTotal.WithLabelValues(req.TenantID).Inc()
	s.emitTaskCreated(ctx, task)
}

// candidateError absorbs one candidate failure: mark the ledger record (when
// one exists), append to the run's error list, and keep going.
func (s *Service) candidateError(ctx context.Context, run *models.GenerationRun, record *models.GenerationRecord, clientID, ruleCode, periodKey string, cause error) {
	msg := truncate(cause.Error(), maxErrorMessageLen)

	if record != nil {
		if err := s.records.MarkError(ctx, run.TenantID, record.ID, msg); err != nil {
			s.logger.WithContext(ctx).WithError(err).Error("Failed to mark generation record errored")
		}
	}

	run.Errors.Data = append(run.Errors.Data, models.CandidateError{
		ClientID:  clientID,
		RuleCode:  ruleCode,
		PeriodKey: periodKey,
		Message:   msg,
	})

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"client_id":  clientID,
		"rule_code":  ruleCode,
		"period_key": periodKey,
	}).WithError(cause).Warn("Candidate failed, continuing run")
}

// failRun marks a run-level failure, audits it, and returns the cause for
// the caller.
func (s *Service) failRun(ctx context.Context, req Request, run *models.GenerationRun, cause error) error {
	msg := truncate(cause.Error(), maxErrorMessageLen)
	run.Status = models.RunStatusFailed
	run.ErrorMessage = &msg
	finished := time.Now().UTC()
	run.FinishedAt = &finished

	if !req.DryRun {
		if err := s.runs.Finish(ctx, run); err != nil {
			s.logger.WithContext(ctx).WithError(err).Error("Failed to persist failed run")
		}
		s.writeAudit(ctx, req, run, models.AuditActionGenerationFailed)
	}

	metrics.GenerationRunsTotal.WithLabelValues(req.TenantID, string(models.RunStatusFailed)).Inc()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": req.TenantID,
		"run_id":    run.ID,
	}).WithError(cause).Error("Generation run failed")

	return cause
}

func (s *Service) writeAudit(ctx context.Context, req Request, run *models.GenerationRun, action string) {
	details, err := json.Marshal(run)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to marshal audit details")
		return
	}

	entry := &models.AuditEntry{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID,
		ActorID:   req.ActorID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to write audit entry")
	}
}

func (s *Service) emitTaskCreated(ctx context.Context, task *models.Task) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.EmitTaskCreated(ctx, task); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit task created event")
	}
}

func (s *Service) emitRunCompleted(ctx context.Context, run *models.GenerationRun) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.EmitRunCompleted(ctx, run); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to emit run completed event")
	}
}

func (s *Service) observeRun(run *models.GenerationRun, started time.Time) {
	metrics.GenerationRunsTotal.WithLabelValues(run.TenantID, string(run.Status)).Inc()
	metrics.GenerationRunDuration.WithLabelValues(run.TenantID).Observe(time.Since(started).Seconds())

	outcomes := map[string]int{
		metrics.OutcomeCreated:          run.CreatedTasks,
		metrics.OutcomeLinkedExisting:   run.LinkedExistingTasks,
		metrics.OutcomeAlreadyGenerated: run.SkippedAlreadyGenerated,
		metrics.OutcomeSkippedCondition: run.SkippedByCondition,
		metrics.OutcomeSkippedAssignee:  run.SkippedNoAssignee,
		metrics.OutcomeError:            len(run.Errors.GetValue()),
	}
	for outcome, count := range outcomes {
		if count > 0 {
			metrics.CandidatesTotal.WithLabelValues(run.TenantID, outcome).Add(float64(count))
		}
	}
}

// taskDescription appends the rule's legal basis citations to the template
// description so the generated task carries its audit trail.
func taskDescription(eff rules.EffectiveRule) string {
	basis := eff.Rule.LegalBasis.GetValue()
	if len(basis) == 0 {
		return eff.Template.Description
	}
	cited := "Legal basis: " + strings.Join(basis, "; ")
	if eff.Template.Description == "" {
		return cited
	}
	return eff.Template.Description + "\n\n" + cited
}

func candidateKey(ruleID, periodKey string) string {
	return ruleID + "|" + periodKey
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func utcDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
