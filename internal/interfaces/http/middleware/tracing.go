package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/helixframework/helix/internal/infrastructure/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// Provider defaults to the global tracer provider
	Provider trace.TracerProvider
}

// Tracing returns the otelgin middleware followed by span decoration. Disabled tracing
// installs a pass-through handler.
func Tracing(cfg TracingConfig) []gin.HandlerFunc {
	if !cfg.Enabled {
		return []gin.HandlerFunc{func(c *gin.Context) { c.Next() }}
	}

	var opts []otelgin.Option
	if cfg.Provider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.Provider))
	}
	return []gin.HandlerFunc{otelgin.Middleware(cfg.ServiceName, opts...), SpanDecorator()}
}

// SpanDecorator adds the request id and the dispatched controller and action to the
// active span, and marks 4xx/5xx responses as errors. It must run inside otelgin.
func SpanDecorator() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if id := c.GetString(logger.GinRequestIDKey); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		c.Next()

		if controller := c.Param("controller"); controller != "" {
			span.SetAttributes(attribute.String("helix.controller", controller))
		}
		if action, ok := c.Get(ActionKey); ok {
			if name, ok := action.(string); ok {
				span.SetAttributes(attribute.String("helix.action", name))
			}
		}

		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, SpanStatusText(status))
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
}

// ActionKey is the gin context key the dispatcher stores the resolved action under
const ActionKey = "helix.action"

// SpanStatusText describes an error status on a span
func SpanStatusText(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "Internal Server Error"
	case status == http.StatusUnauthorized:
		return "Unauthorized"
	case status == http.StatusForbidden:
		return "Forbidden"
	case status == http.StatusNotFound:
		return "Not Found"
	default:
		return "Client Error"
	}
}
