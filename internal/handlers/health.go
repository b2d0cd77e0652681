package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/sage/pkg/database"
)

// HealthHandler exposes liveness and readiness endpoints
type HealthHandler struct {
	db        database.DB
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db database.DB) *HealthHandler {
	return &HealthHandler{
		db:        db,
		startTime: time.Now().UTC(),
	}
}

// HealthResponse is the health endpoint body
type HealthResponse struct {
	Status     string    `json:"status"`
	Uptime     string    `json:"uptime"`
	ReportedAt time.Time `json:"reported_at"`
}

// Register registers health routes
func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Live)
	e.GET("/health/ready", h.Ready)
}

// Live reports process liveness
func (h *HealthHandler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		Uptime:     time.Since(h.startTime).String(),
		ReportedAt: time.Now().UTC(),
	})
}

// Ready reports readiness by pinging the database
func (h *HealthHandler) Ready(c echo.Context) error {
	if err := h.db.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:     "unhealthy",
			Uptime:     time.Since(h.startTime).String(),
			ReportedAt: time.Now().UTC(),
		})
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		Uptime:     time.Since(h.startTime).String(),
		ReportedAt: time.Now().UTC(),
	})
}
