// Package metrics provides Prometheus metrics for the sage service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationRunsTotal tracks generation runs by terminal status
	GenerationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "generation",
			Name:      "runs_total",
			Help:      "Total number of generation runs by status",
		},
		[]string{"tenant_id", "status"},
	)

	// GenerationRunDuration tracks generation run duration in seconds
	GenerationRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sage",
			Subsystem: "generation",
			Name:      "run_duration_seconds",
			Help:      "Duration of generation runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"tenant_id"},
	)

	// CandidatesTotal tracks candidate outcomes within runs
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "generation",
			Name:      "candidates_total",
			Help:      "Total number of generation candidates by outcome",
		},
		[]string{"tenant_id", "outcome"},
	)

	// TasksCreatedTotal tracks tasks materialized by generation
	TasksCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "generation",
			Name:      "tasks_created_total",
			Help:      "Total number of tasks created by generation",
		},
		[]string{"tenant_id"},
	)

	// EventsEmittedTotal tracks event emission attempts
	EventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sage",
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Total number of events emitted by type and result",
		},
		[]string{"event_type", "result"},
	)
)

// Candidate outcome labels for CandidatesTotal
const (
	OutcomeCreated          = "created"
	OutcomeLinkedExisting   = "linked_existing"
	OutcomeAlreadyGenerated = "already_generated"
	OutcomeSkippedCondition = "skipped_by_condition"
	OutcomeSkippedAssignee  = "skipped_no_assignee"
	OutcomeError            = "error"
)
