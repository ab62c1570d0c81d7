// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	logs "github.com/danmuck/smplog"
	"github.com/labstack/echo/v4"
	"github.com/pdf-gateway/backend/internal/backend"
	"github.com/pdf-gateway/backend/internal/models"
	"github.com/pdf-gateway/backend/internal/upload"
)

// Messages shared by the HTTP and WebSocket surfaces.
const (
	msgNoFiles         = "No files uploaded"
	msgIndexRequired   = "Both chunks and fileName are required"
	msgConvertFailed   = "Failed to process PDFs"
	msgIndexFailed     = "Failed to add to vector collection"
	msgInternal        = "Internal server error"
	msgPayloadTooLarge = "Payload too large"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int         `json:"-"`
	Message string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error
func NewValidationError(message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: message,
	}
}

// NewTooManyFilesError creates a 400 error for uploads above the file limit
func NewTooManyFilesError(limit int) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "TOO_MANY_FILES",
		Message: fmt.Sprintf("Too many files: at most %d allowed", limit),
	}
}

// NewPayloadTooLargeError maps a size ceiling violation. Backend replies over
// the ceiling are the gateway's problem, not the caller's, so they become 500.
func NewPayloadTooLargeError(cause *models.PayloadTooLargeError) *APIError {
	status := http.StatusRequestEntityTooLarge
	if cause.Stage == models.StageResponse {
		status = http.StatusInternalServerError
	}
	return &APIError{
		Status:  status,
		Code:    "PAYLOAD_TOO_LARGE",
		Message: msgPayloadTooLarge,
		Details: cause.Error(),
	}
}

// NewBackendError creates an error for a non-2xx backend reply
func NewBackendError(status int, message string, details interface{}) *APIError {
	return &APIError{
		Status:  status,
		Code:    "BACKEND_ERROR",
		Message: message,
		Details: details,
	}
}

// NewBackendUnreachableError creates a 500 error for a failed backend call
func NewBackendUnreachableError(message string, cause error) *APIError {
	return &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "BACKEND_UNREACHABLE",
		Message: message,
		Details: cause.Error(),
	}
}

// NewInvalidBackendResponseError creates a 502 error for a malformed 2xx reply
func NewInvalidBackendResponseError(message string, cause error) *APIError {
	return &APIError{
		Status:  http.StatusBadGateway,
		Code:    "INVALID_BACKEND_RESPONSE",
		Message: message,
		Details: cause.Error(),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// convertError maps a conversion pipeline failure to its response.
func convertError(err error) *APIError {
	if apiErr := requestError(err); apiErr != nil {
		return apiErr
	}

	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		message := statusErr.Detail
		if message == "" {
			message = msgConvertFailed
		}
		return NewBackendError(statusErr.Status, message, statusErr.Details)
	}

	return backendError(err, msgConvertFailed)
}

// indexError maps an indexing pipeline failure to its response. With
// forwardStatus the backend's own status is kept instead of 500.
func indexError(err error, forwardStatus bool) *APIError {
	if errors.Is(err, models.ErrIndexFieldsRequired) {
		return NewValidationError(msgIndexRequired)
	}
	if apiErr := requestError(err); apiErr != nil {
		return apiErr
	}

	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		status := http.StatusInternalServerError
		if forwardStatus {
			status = statusErr.Status
		}
		return NewBackendError(status, msgIndexFailed, statusErr.Details)
	}

	return backendError(err, msgIndexFailed)
}

// requestError maps failures caused by the caller's request, or nil.
func requestError(err error) *APIError {
	var (
		apiErr    *APIError
		tooMany   *upload.TooManyFilesError
		tooLarge  *models.PayloadTooLargeError
		maxBytes  *http.MaxBytesError
		httpErr   *echo.HTTPError
		malformed *upload.MalformedRequestError
		badName   *upload.InvalidFileNameError
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, upload.ErrNoFiles):
		return NewValidationError(msgNoFiles)
	case errors.As(err, &tooMany):
		return NewTooManyFilesError(tooMany.Limit)
	case errors.As(err, &tooLarge):
		return NewPayloadTooLargeError(tooLarge)
	case errors.As(err, &maxBytes):
		return NewPayloadTooLargeError(&models.PayloadTooLargeError{Stage: models.StageRequest, Limit: maxBytes.Limit})
	case errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge:
		return &APIError{
			Status:  http.StatusRequestEntityTooLarge,
			Code:    "PAYLOAD_TOO_LARGE",
			Message: msgPayloadTooLarge,
			Details: fmt.Sprintf("%v", httpErr.Message),
		}
	case errors.As(err, &malformed):
		return NewBadRequestError("Malformed multipart request", malformed.Err)
	case errors.As(err, &badName):
		return NewBadRequestError("Invalid file name", badName)
	}
	return nil
}

// backendError maps transport and response-shape failures shared by both pipelines.
func backendError(err error, message string) *APIError {
	var (
		unreachable *backend.UnreachableError
		invalid     *backend.InvalidResponseError
	)

	switch {
	case errors.As(err, &unreachable):
		return NewBackendUnreachableError(message, unreachable.Err)
	case errors.As(err, &invalid):
		return NewInvalidBackendResponseError(message, invalid)
	}
	return NewInternalError(msgInternal, nil)
}

// ErrorHandler writes every failure as {"error", "code", "details"}.
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		apiErr  *APIError
		httpErr *echo.HTTPError
	)

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge:
		apiErr = requestError(httpErr)
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		logs.Errorf(err, "[API] unhandled error on %s %s", c.Request().Method, c.Request().URL.Path)
		apiErr = NewInternalError(msgInternal, nil)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(apiErr.Status)
	} else {
		writeErr = c.JSON(apiErr.Status, apiErr)
	}
	if writeErr != nil {
		logs.Errorf(writeErr, "[API] failed to write error response")
	}
}
