// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Gateway            Gateway
	Collector          PayloadCollector
	BackendURL         string
	Version            string
	ForwardIndexStatus bool
	WebSocketReadLimit int64
	EnableWebSocket    bool

	// Per-route body limits in echo's size syntax ("110M"); empty means none.
	ConvertBodyLimit string
	IndexBodyLimit   string
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Convert   ConvertHandler
	Index     IndexHandler
	WebSocket *WebSocketHandler

	ConvertBodyLimit string
	IndexBodyLimit   string
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	h := &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.BackendURL),
		Convert: NewConvertHandler(deps.Collector, deps.Gateway),
		Index:   NewIndexHandler(deps.Gateway, deps.ForwardIndexStatus),

		ConvertBodyLimit: deps.ConvertBodyLimit,
		IndexBodyLimit:   deps.IndexBodyLimit,
	}
	if deps.EnableWebSocket {
		h.WebSocket = NewWebSocketHandler(deps.Gateway, deps.WebSocketReadLimit, deps.ForwardIndexStatus)
	}
	return h
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", handlers.Health.HandleHealth)
	apiGroup.POST("/convert-pdfs-chunks", handlers.Convert.HandleConvertChunks, bodyLimit(handlers.ConvertBodyLimit)...)
	apiGroup.POST("/vector-collection/add", handlers.Index.HandleAddToIndex, bodyLimit(handlers.IndexBodyLimit)...)

	if handlers.WebSocket != nil {
		apiGroup.GET("/ws/convert", handlers.WebSocket.HandleWebSocket)
	}
}

// bodyLimit returns the route middleware enforcing limit, if any.
func bodyLimit(limit string) []echo.MiddlewareFunc {
	if limit == "" {
		return nil
	}
	return []echo.MiddlewareFunc{middleware.BodyLimit(limit)}
}

// MiddlewareOptions configures SetupMiddleware
type MiddlewareOptions struct {
	RequestLogging   bool
	EnableCORS       bool
	AllowOrigins     []string
	Compression      bool
	CompressionLevel int
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	if opts.RequestLogging {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Skipper: func(c echo.Context) bool {
				return strings.HasSuffix(c.Path(), "/health")
			},
			Format: "${time_rfc3339} ${id} ${method} ${uri} ${status} ${latency_human} in=${bytes_in} out=${bytes_out}\n",
		}))
	}

	e.Use(middleware.Recover())

	if opts.Compression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: opts.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				// Hijacked WebSocket connections cannot be gzipped.
				return strings.HasPrefix(c.Path(), "/api/ws")
			},
		}))
	}

	if opts.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: opts.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
		}))
	}
}
