package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/metrics"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// Event types emitted by generation
const (
	EventTaskCreated  = "compliance.task.created"
	EventRunCompleted = "compliance.run.completed"
)

// Emitter turns generation outcomes into published events
type Emitter struct {
	producer *Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitTaskCreated emits a task created event
func (e *Emitter) EmitTaskCreated(ctx context.Context, task *models.Task) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitTaskCreated")
	defer span.End()

	return e.publish(ctx, EventTaskCreated, task.TenantID, task.ID, task)
}

// EmitRunCompleted emits a run completed event with the run summary
func (e *Emitter) EmitRunCompleted(ctx context.Context, run *models.GenerationRun) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunCompleted")
	defer span.End()

	return e.publish(ctx, EventRunCompleted, run.TenantID, run.ID, run)
}

func (e *Emitter) publish(ctx context.Context, eventType, tenantID, subjectID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	envelope := &Envelope{
		EventType: eventType,
		TenantID:  tenantID,
		SubjectID: subjectID,
		Data:      data,
	}

	if err := e.producer.Publish(ctx, envelope); err != nil {
		metrics.EventsEmittedTotal.WithLabelValues(eventType, "error").Inc()
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit event")
		return err
	}

	metrics.EventsEmittedTotal.WithLabelValues(eventType, "ok").Inc()
	return nil
}
