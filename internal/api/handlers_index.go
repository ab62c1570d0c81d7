// handlers_index.go - Vector collection handler
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pdf-gateway/backend/internal/models"
)

// IndexHandlerImpl implements the IndexHandler interface
type IndexHandlerImpl struct {
	gateway       Gateway
	forwardStatus bool
}

// NewIndexHandler creates a new index handler. With forwardStatus a failing
// backend status is returned as-is rather than as 500.
func NewIndexHandler(gateway Gateway, forwardStatus bool) IndexHandler {
	return &IndexHandlerImpl{
		gateway:       gateway,
		forwardStatus: forwardStatus,
	}
}

// HandleAddToIndex forwards chunks and a file name to the backend and passes
// its reply through unchanged.
func (h *IndexHandlerImpl) HandleAddToIndex(c echo.Context) error {
	var req models.IndexRequest
	if err := c.Bind(&req); err != nil {
		if apiErr := requestError(err); apiErr != nil && apiErr.Code == "PAYLOAD_TOO_LARGE" {
			return apiErr
		}
		return NewBadRequestError("Invalid request body", err)
	}

	ctx := context.WithoutCancel(c.Request().Context())

	resp, err := h.gateway.AddToIndex(ctx, req)
	if err != nil {
		return indexError(err, h.forwardStatus)
	}
	return c.JSONBlob(http.StatusOK, resp)
}
