package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/pkg/generation"
	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// RunReader reads persisted run summaries
type RunReader interface {
	Get(ctx context.Context, tenantID, id string) (*models.GenerationRun, error)
	List(ctx context.Context, tenantID string, limit int) ([]models.GenerationRun, error)
}

// GenerationHandler exposes generation runs over the admin surface
type GenerationHandler struct {
	service  *generation.Service
	runs     RunReader
	validate *validator.Validate
	logger   ectologger.Logger
}

// NewGenerationHandler creates a new generation handler
func NewGenerationHandler(service *generation.Service, runs RunReader, validate *validator.Validate, logger ectologger.Logger) *GenerationHandler {
	return &GenerationHandler{
		service:  service,
		runs:     runs,
		validate: validate,
		logger:   logger,
	}
}

// TriggerRunRequest is the request body to start a generation run
type TriggerRunRequest struct {
	FromDate                    *time.Time  `json:"from_date,omitempty"`
	ToDate                      *time.Time  `json:"to_date,omitempty"`
	Holidays                    []time.Time `json:"holidays,omitempty" validate:"max=400"`
	DryRun                      bool        `json:"dry_run"`
	ForceRetryWithoutLinkedTask bool        `json:"force_retry_without_linked_task"`
}

// Register registers generation routes
func (h *GenerationHandler) Register(g *echo.Group) {
	g.POST("/runs", h.Trigger)
	g.GET("/runs", h.List)
	g.GET("/runs/:id", h.Get)
}

// Trigger starts a generation run for the current tenant and returns its
// summary
func (h *GenerationHandler) Trigger(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GenerationHandler.Trigger")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req TriggerRunRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	run, err := h.service.Run(ctx, generation.Request{
		TenantID:                    tenantID,
		ActorID:                     GetActorID(c),
		FromDate:                    req.FromDate,
		ToDate:                      req.ToDate,
		Holidays:                    req.Holidays,
		DryRun:                      req.DryRun,
		ForceRetryWithoutLinkedTask: req.ForceRetryWithoutLinkedTask,
	})
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Generation run failed")
		return err
	}

	return SuccessResponse(c, run)
}

// List returns the tenant's recent runs
func (h *GenerationHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GenerationHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return BadRequest("invalid limit")
		}
		limit = n
	}

	runs, err := h.runs.List(ctx, tenantID, limit)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Error("Failed to list generation runs")
		return err
	}

	return SuccessResponse(c, runs)
}

// Get returns one run summary
func (h *GenerationHandler) Get(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "GenerationHandler.Get")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	id, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	run, err := h.runs.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, run)
}
