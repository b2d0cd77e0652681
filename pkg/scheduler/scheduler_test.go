package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/sage/pkg/generation"
	"github.com/Ramsey-B/sage/pkg/models"
)

type fakeSchedulerRepo struct {
	tenants []SchedulableTenant
	err     error
}

func (f *fakeSchedulerRepo) ListSchedulableTenants(_ context.Context, _ time.Duration, _ int) ([]SchedulableTenant, error) {
	return f.tenants, f.err
}

type fakeRunner struct {
	mu      sync.Mutex
	tenants []string
	errFor  map[string]error
	ran     chan string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		errFor: map[string]error{},
		ran:    make(chan string, 16),
	}
}

func (f *fakeRunner) Run(_ context.Context, req generation.Request) (*models.GenerationRun, error) {
	f.mu.Lock()
	f.tenants = append(f.tenants, req.TenantID)
	f.mu.Unlock()
	f.ran <- req.TenantID
	if err := f.errFor[req.TenantID]; err != nil {
		return nil, err
	}
	return &models.GenerationRun{TenantID: req.TenantID, Status: models.RunStatusCompleted}, nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func waitForTenant(t *testing.T, runner *fakeRunner, want string) {
	t.Helper()
	select {
	case got := <-runner.ran:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("runner was not invoked for tenant %s", want)
	}
}

func TestScheduler_RunsDueTenants(t *testing.T) {
	repo := &fakeSchedulerRepo{tenants: []SchedulableTenant{
		{TenantID: "tenant-a"},
		{TenantID: "tenant-b"},
	}}
	runner := newFakeRunner()

	s := NewScheduler(repo, runner, Config{PollInterval: time.Hour}, noopLogger())
	require.NoError(t, s.Start(context.Background()))

	// the first cycle runs immediately on start
	waitForTenant(t, runner, "tenant-a")
	waitForTenant(t, runner, "tenant-b")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
}

func TestScheduler_StartTwice(t *testing.T) {
	repo := &fakeSchedulerRepo{}
	s := NewScheduler(repo, newFakeRunner(), Config{PollInterval: time.Hour}, noopLogger())

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_TenantFailureDoesNotStopCycle(t *testing.T) {
	repo := &fakeSchedulerRepo{tenants: []SchedulableTenant{
		{TenantID: "tenant-a"},
		{TenantID: "tenant-b"},
	}}
	runner := newFakeRunner()
	runner.errFor["tenant-a"] = errors.New("rulebook load failed")

	s := NewScheduler(repo, runner, Config{PollInterval: time.Hour}, noopLogger())
	require.NoError(t, s.Start(context.Background()))

	waitForTenant(t, runner, "tenant-a")
	waitForTenant(t, runner, "tenant-b")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_Restart(t *testing.T) {
	repo := &fakeSchedulerRepo{tenants: []SchedulableTenant{{TenantID: "tenant-a"}}}
	runner := newFakeRunner()

	s := NewScheduler(repo, runner, Config{PollInterval: time.Hour}, noopLogger())

	require.NoError(t, s.Start(context.Background()))
	waitForTenant(t, runner, "tenant-a")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	// a stopped scheduler can be started again and runs a fresh cycle
	require.NoError(t, s.Start(context.Background()))
	waitForTenant(t, runner, "tenant-a")
	assert.True(t, s.IsRunning())

	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	require.NoError(t, s.Stop(ctx2))
	assert.False(t, s.IsRunning())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := NewScheduler(&fakeSchedulerRepo{}, newFakeRunner(), DefaultConfig(), noopLogger())
	require.NoError(t, s.Stop(context.Background()))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultMinRunAge, cfg.MinRunAge)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
}
