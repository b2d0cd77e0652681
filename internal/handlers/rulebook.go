package handlers

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/pkg/models"
	"github.com/Ramsey-B/sage/pkg/rules"
	"github.com/Ramsey-B/sage/pkg/tracing"
)

// VersionWriter manages rulebook versions
type VersionWriter interface {
	Create(ctx context.Context, tenantID string, req models.CreateVersionRequest) (*models.RulebookVersion, error)
	Get(ctx context.Context, tenantID, id string) (*models.RulebookVersion, error)
	GetActive(ctx context.Context, tenantID string) (*models.RulebookVersion, error)
	List(ctx context.Context, tenantID string) ([]models.RulebookVersion, error)
	Activate(ctx context.Context, tenantID, id string) error
}

// RuleWriter manages the rules of a version
type RuleWriter interface {
	Create(ctx context.Context, tenantID, versionID string, req models.CreateRuleRequest) (*models.Rule, error)
	ListByVersion(ctx context.Context, tenantID, versionID string) ([]models.Rule, error)
	SetActive(ctx context.Context, tenantID, id string, active bool) error
}

// RulebookHandler manages rulebook versions and rules. Rules are immutable
// once referenced by generation history, so there is no rule update route;
// behavior changes go through overrides or a new version.
type RulebookHandler struct {
	versions VersionWriter
	rules    RuleWriter
	validate *validator.Validate
	logger   ectologger.Logger
}

// NewRulebookHandler creates a new rulebook handler
func NewRulebookHandler(versions VersionWriter, ruleWriter RuleWriter, validate *validator.Validate, logger ectologger.Logger) *RulebookHandler {
	return &RulebookHandler{
		versions: versions,
		rules:    ruleWriter,
		validate: validate,
		logger:   logger,
	}
}

// SetRuleActiveRequest toggles a rule
type SetRuleActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// Register registers rulebook routes
func (h *RulebookHandler) Register(g *echo.Group) {
	g.POST("/versions", h.CreateVersion)
	g.GET("/versions", h.ListVersions)
	g.GET("/versions/active", h.GetActiveVersion)
	g.POST("/versions/:id/activate", h.ActivateVersion)
	g.POST("/versions/:id/rules", h.CreateRule)
	g.GET("/versions/:id/rules", h.ListRules)
	g.PATCH("/rules/:id/active", h.SetRuleActive)
}

// CreateVersion creates a new, inactive rulebook version
func (h *RulebookHandler) CreateVersion(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RulebookHandler.CreateVersion")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.CreateVersionRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	version, err := h.versions.Create(ctx, tenantID, req)
	if err != nil {
		return err
	}

	return CreatedResponse(c, version)
}

// ListVersions returns all of the tenant's versions
func (h *RulebookHandler) ListVersions(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RulebookHandler.ListVersions")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	versions, err := h.versions.List(ctx, tenantID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, versions)
}

// GetActiveVersion returns the tenant's single active version
func (h *RulebookHandler) GetActiveVersion(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RulebookHandler.GetActiveVersion")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	version, err := h.versions.GetActive(ctx, tenantID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, version)
}

// ActivateVersion makes the given version active, deactivating the previous
// one
func (h *RulebookHandler) ActivateVersion(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RulebookHandler.ActivateVersion")
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

	if err := h.versions.Activate(ctx, tenantID, id); err != nil {
		return err
	}

	h.logger.WithContext(ctx).Infof("Activated rulebook version %s", id)
	return NoContentResponse(c)
}

// CreateRule adds a rule to a version. The rule's JSON shapes are parsed
// up front so authoring mistakes surface here instead of silently producing
// no candidates at generation time.
func (h *RulebookHandler) CreateRule(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RulebookHandler.CreateRule")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	versionID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	var req models.CreateRuleRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}
	if err := validateRuleShapes(req.MatchCondition, req.Recurrence, req.DueRule, req.TaskTemplate); err != nil {
		return BadRequest(err.Error())
	}

	version, err := h.versions.Get(ctx, tenantID, versionID)
	if err != nil {
		return err
	}

	rule, err := h.rules.Create(ctx, tenantID, version.ID, req)
	if err != nil {
		return err
	}

	return CreatedResponse(c, rule)
}

// ListRules returns all rules of a version
func (h *RulebookHandler) ListRules(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RulebookHandler.ListRules")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}
	versionID, err := RequireParam(c, "id")
	if err != nil {
		return err
	}

	ruleList, err := h.rules.ListByVersion(ctx, tenantID, versionID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ruleList)
}

// SetRuleActive toggles a rule on or off
func (h *RulebookHandler) SetRuleActive(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "RulebookHandler.SetRuleActive")
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

	var req SetRuleActiveRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	if err := h.rules.SetActive(ctx, tenantID, id, req.IsActive); err != nil {
		return err
	}

	return NoContentResponse(c)
}

func validateRuleShapes(condition, recurrence, dueRule, template json.RawMessage) error {
	if _, err := rules.ParseCondition(condition); err != nil {
		return err
	}
	if _, err := rules.ParseRecurrence(recurrence); err != nil {
		return err
	}
	if _, err := rules.ParseDuePolicy(dueRule); err != nil {
		return err
	}
	if _, err := rules.ParseTemplate(template); err != nil {
		return err
	}
	return nil
}
