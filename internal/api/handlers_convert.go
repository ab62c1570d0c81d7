// handlers_convert.go - Document conversion handler
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// ConvertHandlerImpl implements the ConvertHandler interface
type ConvertHandlerImpl struct {
	collector PayloadCollector
	gateway   Gateway
}

// NewConvertHandler creates a new conversion handler
func NewConvertHandler(collector PayloadCollector, gateway Gateway) ConvertHandler {
	return &ConvertHandlerImpl{
		collector: collector,
		gateway:   gateway,
	}
}

// HandleConvertChunks collects the uploaded files, converts them in one backend
// call and returns the grouped envelope.
func (h *ConvertHandlerImpl) HandleConvertChunks(c echo.Context) error {
	payloads, err := h.collector.Collect(c.Request())
	if err != nil {
		return convertError(err)
	}

	// The backend call outlives a disconnecting client.
	ctx := context.WithoutCancel(c.Request().Context())

	envelope, err := h.gateway.Convert(ctx, payloads)
	if err != nil {
		return convertError(err)
	}

	if wantsMsgpack(c.Request()) {
		data, err := msgpack.Marshal(envelope)
		if err != nil {
			return NewInternalError(msgInternal, err)
		}
		return c.Blob(http.StatusOK, echo.MIMEApplicationMsgpack, data)
	}
	return c.JSON(http.StatusOK, envelope)
}

// wantsMsgpack reports whether the client asked for a msgpack body.
func wantsMsgpack(r *http.Request) bool {
	for _, accept := range strings.Split(r.Header.Get(echo.HeaderAccept), ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(accept), ";")
		if strings.EqualFold(strings.TrimSpace(mediaType), echo.MIMEApplicationMsgpack) {
			return true
		}
	}
	return false
}
