package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// maxLoggedQuery bounds query strings in request logs.
	maxLoggedQuery = 200

	// slowRequestAfter promotes the request log line to WARN.
	slowRequestAfter = 10 * time.Second
)

// RequestID attaches a request id to the context and the response,
// honoring an X-Request-ID header when the caller sends one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs one line per request: method, path, status,
// duration and truncated query params. Slow requests log at WARN,
// server errors at ERROR.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := truncate(c.Request.URL.RawQuery, maxLoggedQuery)

		c.Next()

		duration := time.Since(start)
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", duration.Milliseconds(),
			"ip", c.ClientIP(),
			"size", c.Writer.Size(),
		}
		if query != "" {
			attrs = append(attrs, "query", query)
		}
		if id, ok := c.Get("request_id"); ok {
			attrs = append(attrs, "request_id", id)
		}

		switch {
		case duration > slowRequestAfter:
			slog.Warn("slow request", attrs...)
		case c.Writer.Status() >= http.StatusInternalServerError:
			slog.Error("request failed", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	}
}

// Recovery converts panics into a JSON 500 response and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic recovered",
					"error", r,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				c.Abort()
			}
		}()
		c.Next()
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
