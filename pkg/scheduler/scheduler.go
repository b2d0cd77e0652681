// Package scheduler re-invokes the generation orchestrator on a timer for
// tenants whose active rulebook has not generated recently. There is no
// distributed locking: concurrent runs against the same tenant are safe
// because the generation ledger's unique constraint resolves every race.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/generation"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// ErrSchedulerAlreadyRunning is returned when trying to start an already
// running scheduler
var ErrSchedulerAlreadyRunning = errors.New("scheduler already running")

const (
	// DefaultPollInterval is the default interval between scheduling
	// cycles
	DefaultPollInterval = 5 * time.Minute

	// DefaultMinRunAge is the minimum time since a tenant's last run
	// before it is scheduled again
	DefaultMinRunAge = 24 * time.Hour

	// DefaultBatchSize is the number of tenants to generate per cycle
	DefaultBatchSize = 50
)

// Repository defines the scheduler's data access
type Repository interface {
	ListSchedulableTenants(ctx context.Context, minAge time.Duration, limit int) ([]SchedulableTenant, error)
}

// Runner is the generation entry point the scheduler drives
type Runner interface {
	Run(ctx context.Context, req generation.Request) (*models.GenerationRun, error)
}

// Config holds scheduler configuration
type Config struct {
	PollInterval time.Duration
	MinRunAge    time.Duration
	BatchSize    int
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		MinRunAge:    DefaultMinRunAge,
		BatchSize:    DefaultBatchSize,
	}
}

// Scheduler polls for due tenants and runs generation for each
type Scheduler struct {
	repo   Repository
	runner Runner
	config Config
	logger ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(repo Repository, runner Runner, config Config, logger ectologger.Logger) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.MinRunAge <= 0 {
		config.MinRunAge = DefaultMinRunAge
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	return &Scheduler{
		repo:   repo,
		runner: runner,
		config: config,
		logger: logger,
	}
}

// Start starts the scheduler. A stopped scheduler can be started again;
// each start gets fresh stop channels.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.stopCh = make(chan struct{})
	s.stoppedC = make(chan struct{})
	stopCh, stoppedC := s.stopCh, s.stoppedC
	s.running = true
	s.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "Scheduler.Start")
	defer span.End()

	s.logger.WithContext(ctx).Infof("Starting scheduler: poll_interval=%s min_run_age=%s batch_size=%d",
		s.config.PollInterval, s.config.MinRunAge, s.config.BatchSize)

	go s.pollLoop(ctx, stopCh, stoppedC)

	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, stoppedC := s.stopCh, s.stoppedC
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")

	close(stopCh)

	select {
	case <-stoppedC:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) pollLoop(ctx context.Context, stopCh <-chan struct{}, stoppedC chan<- struct{}) {
	defer close(stoppedC)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	// run immediately on start
	s.runCycle(ctx, stopCh)

	for {
		select {
		case <-stopCh:
			s.logger.WithContext(ctx).Debug("Scheduler poll loop stopping")
			return
		case <-ticker.C:
			s.runCycle(ctx, stopCh)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context, stopCh <-chan struct{}) {
	ctx, span := tracing.StartSpan(ctx, "Scheduler.runCycle")
	defer span.End()

	start := time.Now()

	tenants, err := s.repo.ListSchedulableTenants(ctx, s.config.MinRunAge, s.config.BatchSize)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list schedulable tenants")
		return
	}
	if len(tenants) == 0 {
		s.logger.WithContext(ctx).Debug("No tenants due for generation")
		return
	}

	s.logger.WithContext(ctx).Infof("Found %d tenants due for generation", len(tenants))

	succeeded := 0
	failed := 0
	for _, tenant := range tenants {
		select {
		case <-stopCh:
			return
		default:
		}

		if _, err := s.runner.Run(ctx, generation.Request{TenantID: tenant.TenantID}); err != nil {
			failed++
			s.logger.WithContext(ctx).WithError(err).Warnf("Scheduled generation failed for tenant %s", tenant.TenantID)
			continue
		}
		succeeded++
	}

	s.logger.WithContext(ctx).Infof("Scheduling cycle completed: succeeded=%d failed=%d duration=%s",
		succeeded, failed, time.Since(start))
}
