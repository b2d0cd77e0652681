package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/sage/pkg/appcontext"
)

// GetTenantID extracts the tenant ID from context. Tenant identity is
// resolved upstream by the host gateway and arrives in the X-Tenant-ID
// header.
func GetTenantID(c echo.Context) (string, error) {
	tenantID := appctx.GetTenantID(c.Request().Context())
	if tenantID == "" {
		return "", httperror.NewHTTPError(http.StatusUnauthorized, "tenant identity required")
	}
	return tenantID, nil
}

// GetActorID extracts the acting user from context, when present
func GetActorID(c echo.Context) *string {
	userID := appctx.GetUserID(c.Request().Context())
	if userID == "" {
		return nil
	}
	return &userID
}

// RequireParam extracts a non-empty path parameter
func RequireParam(c echo.Context, param string) (string, error) {
	v := c.Param(param)
	if v == "" {
		return "", httperror.NewHTTPError(http.StatusBadRequest, "missing "+param)
	}
	return v, nil
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// CreatedResponse returns a 201 Created with data
func CreatedResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, data)
}

// NoContentResponse returns a 204 No Content
func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequest returns a 400 Bad Request error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}
