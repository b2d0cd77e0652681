package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/rules"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// OverrideWriter manages per-client rule overrides
type OverrideWriter interface {
	Upsert(ctx context.Context, tenantID, clientID string, req models.UpsertOverrideRequest) (*models.RuleOverride, error)
	ListByClient(ctx context.Context, tenantID, clientID string) ([]models.RuleOverride, error)
	Delete(ctx context.Context, tenantID, clientID, ruleID string) error
}

// OverrideHandler manages per-client rule overrides
type OverrideHandler struct {
	overrides OverrideWriter
	validate  *validator.Validate
	logger    ectologger.Logger
}

// NewOverrideHandler creates a new override handler
func NewOverrideHandler(overrides OverrideWriter, validate *validator.Validate, logger ectologger.Logger) *OverrideHandler {
	return &OverrideHandler{
		overrides: overrides,
		validate:  validate,
		logger:    logger,
	}
}

// Register registers override routes
func (h *OverrideHandler) Register(g *echo.Group) {
	g.PUT("/:clientId/overrides", h.Upsert)
	g.GET("/:clientId/overrides", h.List)
	g.DELETE("/:clientId/overrides/:ruleId", h.Delete)
}

// Upsert creates or replaces a client's override for one rule. A malformed
// replacement due rule or template is rejected here; at generation time the
// same shapes would silently fall back to the base rule.
func (h *OverrideHandler) Upsert(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OverrideHandler.Upsert")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	clientID, err := RequireParam(c, "clientId")
	if err != nil {
		return err
	}

	var req models.UpsertOverrideRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}
	if len(req.DueRule) > 0 {
		if _, err := rules.ParseDuePolicy(req.DueRule); err != nil {
			return BadRequest(err.Error())
		}
	}
	if len(req.TaskTemplate) > 0 {
		if _, err := rules.ParseTemplate(req.TaskTemplate); err != nil {
			return BadRequest(err.Error())
		}
	}

	override, err := h.overrides.Upsert(ctx, tenantID, clientID, req)
	if err != nil {
		return err
	}

	return SuccessResponse(c, override)
}

// List returns a client's overrides
func (h *OverrideHandler) List(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OverrideHandler.List")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	clientID, err := RequireParam(c, "clientId")
	if err != nil {
		return err
	}

	overrides, err := h.overrides.ListByClient(ctx, tenantID, clientID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, overrides)
}

// Delete removes an override, restoring the rule as authored
func (h *OverrideHandler) Delete(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "OverrideHandler.Delete")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	clientID, err := RequireParam(c, "clientId")
	if err != nil {
		return err
	}
	ruleID, err := RequireParam(c, "ruleId")
	if err != nil {
		return err
	}

	if err := h.overrides.Delete(ctx, tenantID, clientID, ruleID); err != nil {
		return err
	}

	return NoContentResponse(c)
}
