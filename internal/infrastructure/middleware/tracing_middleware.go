package middleware

import (
	"time"

	"huddle/internal/core/domain"
	"huddle/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingMiddleware opens a span per HTTP request and annotates it with
// the conference and caller identity resolved while handling it.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()

		span.SetAttributes(
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("http.remote_addr", c.ClientIP()),
		)

		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Conference routes carry the room identifier as a path param;
		// auth middleware stashes the caller once its token is validated.
		if id := c.Param("id"); id != "" {
			span.SetAttributes(attribute.String("huddle.conference_id", id))
		}
		if v, ok := c.Get("user_id"); ok {
			if userID, ok := v.(domain.UserID); ok {
				span.SetAttributes(attribute.String("huddle.user_id", string(userID)))
			}
		}
		if v, ok := c.Get("is_admin"); ok {
			if admin, _ := v.(bool); admin {
				span.SetAttributes(attribute.Bool("huddle.admin", true))
			}
		}

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.duration_ms", duration.Milliseconds()),
		)

		if c.Writer.Status() >= 400 {
			span.SetStatus(codes.Error, c.Errors.String())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}
