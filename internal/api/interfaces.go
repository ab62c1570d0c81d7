// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pdf-gateway/backend/internal/models"
)

// ConvertHandler handles document conversion
type ConvertHandler interface {
	HandleConvertChunks(c echo.Context) error
}

// IndexHandler handles adding chunks to the vector collection
type IndexHandler interface {
	HandleAddToIndex(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Gateway runs the conversion and indexing pipelines.
// This allows mocking in tests
type Gateway interface {
	Convert(ctx context.Context, payloads []models.FilePayload) (*models.ConversionEnvelope, error)
	AddToIndex(ctx context.Context, req models.IndexRequest) (json.RawMessage, error)
}

// PayloadCollector reads uploaded files from a request.
type PayloadCollector interface {
	Collect(r *http.Request) ([]models.FilePayload, error)
}
