package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/database"
	"github.com/Ramsey-B/sage/pkg/models"
)

// fakeStores backs every orchestrator store interface in memory.
type fakeStores struct {
	version    *models.RulebookVersion
	versionErr error
	rules      []models.Rule
	rulesErr   error
	overrides  []models.RuleOverride
	clients    []models.Client
	assigns    []models.ClientAssignment
	staff      []models.StaffProfile

	records map[string]*models.GenerationRecord
	tasks   []*models.Task
	runs    map[string]*models.GenerationRun
	audits  []*models.AuditEntry

	createTaskErr error
	findTaskErr   error

	insertCalls int
	createCalls int
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		version: &models.RulebookVersion{ID: "version-1", TenantID: "tenant-1", IsActive: true},
		records: make(map[string]*models.GenerationRecord),
		runs:    make(map[string]*models.GenerationRun),
	}
}

func recordKey(tenantID, clientID, ruleID, periodKey string) string {
	return tenantID + "|" + clientID + "|" + ruleID + "|" + periodKey
}

func (f *fakeStores) GetActive(_ context.Context, tenantID string) (*models.RulebookVersion, error) {
	if f.versionErr != nil {
		return nil, f.versionErr
	}
	return f.version, nil
}

func (f *fakeStores) ListActiveByVersion(_ context.Context, _, _ string) ([]models.Rule, error) {
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	return f.rules, nil
}

func (f *fakeStores) ListByTenant(_ context.Context, _ string) ([]models.RuleOverride, error) {
	return f.overrides, nil
}

func (f *fakeStores) ListActive(_ context.Context, _ string) ([]models.Client, error) {
	return f.clients, nil
}

func (f *fakeStores) ListAssignments(_ context.Context, _ string) ([]models.ClientAssignment, error) {
	return f.assigns, nil
}

func (f *fakeStores) ListActiveStaff(ctx context.Context, tenantID string) ([]models.StaffProfile, error) {
	return f.staff, nil
}

func (f *fakeStores) ListByClient(_ context.Context, tenantID, clientID string) ([]models.GenerationRecord, error) {
	var out []models.GenerationRecord
	for _, r := range f.records {
		if r.TenantID == tenantID && r.ClientID == clientID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStores) Insert(_ context.Context, record *models.GenerationRecord) (bool, error) {
	f.insertCalls++
	key := recordKey(record.TenantID, record.ClientID, record.RuleID, record.PeriodKey)
	if _, exists := f.records[key]; exists {
		return false, nil
	}
	stored := *record
	f.records[key] = &stored
	return true, nil
}

func (f *fakeStores) GetByKey(_ context.Context, tenantID, clientID, ruleID, periodKey string) (*models.GenerationRecord, error) {
	if r, ok := f.records[recordKey(tenantID, clientID, ruleID, periodKey)]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, errors.New("generation record not found")
}

func (f *fakeStores) UpdateLinked(_ context.Context, tenantID, id, taskID string) error {
	for _, r := range f.records {
		if r.TenantID == tenantID && r.ID == id {
			r.Status = models.GenerationStatusLinked
			r.TaskID = &taskID
			return nil
		}
	}
	return errors.New("generation record not found")
}

func (f *fakeStores) MarkError(_ context.Context, tenantID, id, message string) error {
	for _, r := range f.records {
		if r.TenantID == tenantID && r.ID == id {
			r.Status = models.GenerationStatusError
			r.ErrorMessage = &message
			return nil
		}
	}
	return errors.New("generation record not found")
}

func (f *fakeStores) FindMatching(_ context.Context, tenantID, clientID, title string, dueDate time.Time, periodKey string) (*models.Task, error) {
	if f.findTaskErr != nil {
		return nil, f.findTaskErr
	}
	for _, t := range f.tasks {
		if t.TenantID == tenantID && t.ClientID == clientID && t.Title == title &&
			t.DueDate.Equal(dueDate) && (t.PeriodKey == periodKey || t.PeriodKey == "") {
			return t, nil
		}
	}
	return nil, nil
}

func (f *fakeStores) Create(_ context.Context, task *models.Task) error {
	if f.createTaskErr != nil {
		return f.createTaskErr
	}
	f.createCalls++
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeStores) CreateRun(ctx context.Context, run *models.GenerationRun) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeStores) Finish(_ context.Context, run *models.GenerationRun) error {
	if _, ok := f.runs[run.ID]; !ok {
		return errors.New("generation run not found")
	}
	f.runs[run.ID] = run
	return nil
}

func (f *fakeStores) InsertAudit(ctx context.Context, entry *models.AuditEntry) error {
	f.audits = append(f.audits, entry)
	return nil
}

// adapters so one fake satisfies interfaces with colliding method names

type staffStoreAdapter struct{ f *fakeStores }

func (a staffStoreAdapter) ListActive(ctx context.Context, tenantID string) ([]models.StaffProfile, error) {
	return a.f.ListActiveStaff(ctx, tenantID)
}

type runStoreAdapter struct{ f *fakeStores }

func (a runStoreAdapter) Create(ctx context.Context, run *models.GenerationRun) error {
	return a.f.CreateRun(ctx, run)
}

func (a runStoreAdapter) Finish(ctx context.Context, run *models.GenerationRun) error {
	return a.f.Finish(ctx, run)
}

type auditStoreAdapter struct{ f *fakeStores }

func (a auditStoreAdapter) Insert(ctx context.Context, entry *models.AuditEntry) error {
	return a.f.InsertAudit(ctx, entry)
}

func newTestService(f *fakeStores) *Service {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewService(f, f, f, f, staffStoreAdapter{f}, f, f, runStoreAdapter{f}, auditStoreAdapter{f}, nil, DefaultConfig(), logger)
}

func vatRule() models.Rule {
	return models.Rule{
		ID:             "rule-vat",
		TenantID:       "tenant-1",
		VersionID:      "version-1",
		Code:           "vat_return_monthly",
		Name:           "Monthly VAT return",
		MatchCondition: json.RawMessage(`{"field": "vat_registered", "op": "eq", "value": true}`),
		Recurrence:     json.RawMessage(`{"kind": "monthly"}`),
		DueRule:        json.RawMessage(`{"kind": "day_of_month", "day": 20, "month_offset": 1}`),
		TaskTemplate:   json.RawMessage(`{"title": "Submit VAT return"}`),
		IsActive:       true,
	}
}

func vatClient() models.Client {
	return models.Client{
		ID:            "client-1",
		TenantID:      "tenant-1",
		Name:          "Birch & Co",
		ClientType:    "company",
		Status:        "active",
		VATRegistered: true,
	}
}

func accountant() models.StaffProfile {
	return models.StaffProfile{ID: "staff-1", TenantID: "tenant-1", Role: models.StaffRoleAccountant, IsActive: true}
}

func windowRequest() Request {
	from := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
	return Request{TenantID: "tenant-1", FromDate: &from, ToDate: &to}
}

func TestService_Run_CreatesTasks(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}
	f.assigns = []models.ClientAssignment{{TenantID: "tenant-1", ClientID: "client-1", StaffID: "staff-1", IsPrimary: true}}

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	// the monthly rule's due date lands on the 20th of the following
	// month; only the 2025-12 period's due date (2026-01-20) is in window
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.ProcessedClients)
	assert.Equal(t, 1, run.EvaluatedRules)
	assert.Equal(t, 1, run.MatchedCandidates)
	assert.Equal(t, 1, run.CreatedTasks)
	assert.Empty(t, run.Errors.GetValue())

	require.Len(t, f.tasks, 1)
	task := f.tasks[0]
	assert.Equal(t, "Submit VAT return", task.Title)
	assert.Equal(t, "staff-1", task.AssigneeID)
	assert.Equal(t, "2025-12", task.PeriodKey)
	assert.Equal(t, time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC), task.DueDate)
	assert.Equal(t, "monthly", task.RecurrenceLabel)

	record, err := f.GetByKey(context.Background(), "tenant-1", "client-1", "rule-vat", "2025-12")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusLinked, record.Status)
	require.NotNil(t, record.TaskID)
	assert.Equal(t, task.ID, *record.TaskID)

	require.Len(t, f.audits, 1)
	assert.Equal(t, models.AuditActionGenerationCompleted, f.audits[0].Action)
}

func TestService_Run_Idempotent(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}
	f.assigns = []models.ClientAssignment{{TenantID: "tenant-1", ClientID: "client-1", StaffID: "staff-1", IsPrimary: true}}

	svc := newTestService(f)

	first, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, first.CreatedTasks)

	second, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, second.CreatedTasks)
	assert.Equal(t, 0, second.LinkedExistingTasks)
	assert.Equal(t, 1, second.SkippedAlreadyGenerated)
	assert.Len(t, f.tasks, 1)
	assert.Len(t, f.records, 1)
}

func TestService_Run_ConditionMiss(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	client := vatClient()
	client.VATRegistered = false
	f.clients = []models.Client{client}
	f.staff = []models.StaffProfile{accountant()}

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, run.SkippedByCondition)
	assert.Equal(t, 0, run.MatchedCandidates)
	assert.Empty(t, f.tasks)
	assert.Empty(t, f.records)
}

func TestService_Run_NoAssignee(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	f.clients = []models.Client{vatClient()}
	// no staff at all, so nothing in the fallback chain resolves

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, run.SkippedNoAssignee)
	assert.Empty(t, f.tasks)
	assert.Empty(t, f.records)
}

func TestService_Run_OverrideDisables(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}
	f.overrides = []models.RuleOverride{{
		ID:       "override-1",
		TenantID: "tenant-1",
		ClientID: "client-1",
		RuleID:   "rule-vat",
	}}

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, run.EvaluatedRules)
	assert.Empty(t, f.tasks)
	assert.Empty(t, f.records)
}

func TestService_Run_OverrideDuePolicy(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}
	f.overrides = []models.RuleOverride{{
		ID:        "override-1",
		TenantID:  "tenant-1",
		ClientID:  "client-1",
		RuleID:    "rule-vat",
		IsEnabled: true,
		DueRule:   json.RawMessage(`{"kind": "day_of_month", "day": 25, "month_offset": 1}`),
	}}

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, run.CreatedTasks)
	require.Len(t, f.tasks, 1)
	assert.Equal(t, time.Date(2026, time.January, 25, 0, 0, 0, 0, time.UTC), f.tasks[0].DueDate)
}

func TestService_Run_DryRunWritesNothing(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}

	svc := newTestService(f)
	req := windowRequest()
	req.DryRun = true

	run, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, run.MatchedCandidates)
	assert.Equal(t, 1, run.CreatedTasks)
	assert.Empty(t, f.tasks)
	assert.Empty(t, f.records)
	assert.Empty(t, f.runs)
	assert.Empty(t, f.audits)
}

func TestService_Run_AdoptsExistingTask(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}
	f.tasks = []*models.Task{{
		ID:       "task-manual",
		TenantID: "tenant-1",
		ClientID: "client-1",
		Title:    "Submit VAT return",
		DueDate:  time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC),
	}}

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, run.CreatedTasks)
	assert.Equal(t, 1, run.LinkedExistingTasks)
	assert.Len(t, f.tasks, 1)

	record, err := f.GetByKey(context.Background(), "tenant-1", "client-1", "rule-vat", "2025-12")
	require.NoError(t, err)
	require.NotNil(t, record.TaskID)
	assert.Equal(t, "task-manual", *record.TaskID)
}

func TestService_Run_ForceRetry(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}

	msg := "task store exploded"
	f.records[recordKey("tenant-1", "client-1", "rule-vat", "2025-12")] = &models.GenerationRecord{
		ID:           "record-stuck",
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		RuleID:       "rule-vat",
		RuleCode:     "vat_return_monthly",
		PeriodKey:    "2025-12",
		Status:       models.GenerationStatusError,
		DueDate:      time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC),
		ErrorMessage: &msg,
	}

	svc := newTestService(f)

	t.Run("without the flag the stuck record stays skipped", func(t *testing.T) {
		run, err := svc.Run(context.Background(), windowRequest())
		require.NoError(t, err)
		assert.Equal(t, 1, run.SkippedAlreadyGenerated)
		assert.Empty(t, f.tasks)
	})

	t.Run("with the flag the candidate is re-attempted", func(t *testing.T) {
		req := windowRequest()
		req.ForceRetryWithoutLinkedTask = true

		run, err := svc.Run(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 1, run.CreatedTasks)
		require.Len(t, f.tasks, 1)

		record, err := f.GetByKey(context.Background(), "tenant-1", "client-1", "rule-vat", "2025-12")
		require.NoError(t, err)
		assert.Equal(t, models.GenerationStatusLinked, record.Status)
	})
}

func TestService_Run_DryRunForceRetryWritesNothing(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}

	msg := "task store exploded"
	f.records[recordKey("tenant-1", "client-1", "rule-vat", "2025-12")] = &models.GenerationRecord{
		ID:           "record-stuck",
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		RuleID:       "rule-vat",
		RuleCode:     "vat_return_monthly",
		PeriodKey:    "2025-12",
		Status:       models.GenerationStatusError,
		DueDate:      time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC),
		ErrorMessage: &msg,
	}

	svc := newTestService(f)
	req := windowRequest()
	req.DryRun = true
	req.ForceRetryWithoutLinkedTask = true

	run, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	// the re-attempt is counted, but nothing is written
	assert.Equal(t, 1, run.CreatedTasks)
	assert.Empty(t, f.tasks)
	assert.Empty(t, f.runs)
	assert.Empty(t, f.audits)

	record := f.records[recordKey("tenant-1", "client-1", "rule-vat", "2025-12")]
	assert.Equal(t, models.GenerationStatusError, record.Status)
	assert.Nil(t, record.TaskID)
	require.NotNil(t, record.ErrorMessage)
	assert.Equal(t, msg, *record.ErrorMessage)
}

func TestService_Run_CandidateErrorAbsorbed(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}
	f.createTaskErr = errors.New("tasks table unavailable")

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 0, run.CreatedTasks)

	errs := run.Errors.GetValue()
	require.Len(t, errs, 1)
	assert.Equal(t, "client-1", errs[0].ClientID)
	assert.Equal(t, "vat_return_monthly", errs[0].RuleCode)
	assert.Equal(t, "2025-12", errs[0].PeriodKey)
	assert.Contains(t, errs[0].Message, "tasks table unavailable")

	record, err := f.GetByKey(context.Background(), "tenant-1", "client-1", "rule-vat", "2025-12")
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusError, record.Status)
}

func TestService_Run_RunLevelFailure(t *testing.T) {
	f := newFakeStores()
	f.versionErr = errors.New("database gone")

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())

	require.Error(t, err)
	assert.Nil(t, run)

	require.Len(t, f.runs, 1)
	for _, stored := range f.runs {
		assert.Equal(t, models.RunStatusFailed, stored.Status)
		require.NotNil(t, stored.ErrorMessage)
		assert.Contains(t, *stored.ErrorMessage, "database gone")
	}
	require.Len(t, f.audits, 1)
	assert.Equal(t, models.AuditActionGenerationFailed, f.audits[0].Action)
}

func TestService_Run_MalformedRuleProducesNoCandidates(t *testing.T) {
	f := newFakeStores()
	broken := vatRule()
	broken.DueRule = json.RawMessage(`{"kind": "lunar"}`)
	f.rules = []models.Rule{broken}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 0, run.EvaluatedRules)
	assert.Empty(t, run.Errors.GetValue())
	assert.Empty(t, f.tasks)
}

func TestService_Run_AnnualRuleFoundViaLookback(t *testing.T) {
	f := newFakeStores()
	annual := vatRule()
	annual.ID = "rule-annual"
	annual.Code = "annual_report"
	annual.Recurrence = json.RawMessage(`{"kind": "annual"}`)
	// period 2025 ends 2025-12-31; 30 days later is 2026-01-30, inside
	// the window even though the period started over a year earlier
	annual.DueRule = json.RawMessage(`{"kind": "days_after_period_end", "days": 30}`)
	annual.TaskTemplate = json.RawMessage(`{"title": "File annual report"}`)
	f.rules = []models.Rule{annual}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, run.CreatedTasks)
	require.Len(t, f.tasks, 1)
	assert.Equal(t, "2025", f.tasks[0].PeriodKey)
	assert.Equal(t, time.Date(2026, time.January, 30, 0, 0, 0, 0, time.UTC), f.tasks[0].DueDate)
}

func TestService_Run_LegalBasisAppendedToDescription(t *testing.T) {
	f := newFakeStores()
	rule := vatRule()
	rule.LegalBasis = database.JSONB[[]string]{Data: []string{"VAT Act §33", "Regulation 12/2020"}}
	rule.TaskTemplate = json.RawMessage(`{"title": "Submit VAT return", "description": "Prepare and submit the monthly VAT return."}`)
	f.rules = []models.Rule{rule}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, run.CreatedTasks)
	require.Len(t, f.tasks, 1)
	assert.Equal(t,
		"Prepare and submit the monthly VAT return.\n\nLegal basis: VAT Act §33; Regulation 12/2020",
		f.tasks[0].Description)
}

func TestService_Run_ErrorMessageTruncated(t *testing.T) {
	f := newFakeStores()
	f.rules = []models.Rule{vatRule()}
	f.clients = []models.Client{vatClient()}
	f.staff = []models.StaffProfile{accountant()}
	f.createTaskErr = fmt.Errorf("%s", make([]byte, 2000))

	svc := newTestService(f)
	run, err := svc.Run(context.Background(), windowRequest())
	require.NoError(t, err)

	errs := run.Errors.GetValue()
	require.Len(t, errs, 1)
	assert.LessOrEqual(t, len(errs[0].Message), maxErrorMessageLen)
}

func TestService_Run_RejectsInvertedWindow(t *testing.T) {
	f := newFakeStores()
	svc := newTestService(f)

	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Run(context.Background(), Request{TenantID: "tenant-1", FromDate: &from, ToDate: &to})
	assert.Error(t, err)

	_, err = svc.Run(context.Background(), Request{})
	assert.Error(t, err)
}
