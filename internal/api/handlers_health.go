// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version    string
	backendURL string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, backendURL string) HealthHandler {
	return &HealthHandlerImpl{
		version:    version,
		backendURL: backendURL,
	}
}

// HandleHealth returns server health status. The backend is not probed.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"backend": h.backendURL,
	})
}
