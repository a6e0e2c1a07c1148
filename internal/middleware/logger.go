package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
)

const (
	loggerKey = "logger"
	// ComponentKey is the gin context key naming the component serving a route.
	ComponentKey = "component"
)

// Logger stores a request-scoped logger in the context and logs one line per
// request once it completes. Routes tagged with Component carry that name in
// the completion line.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(loggerKey, log.WithRequestID(GetRequestID(c)))

		c.Next()

		// Component may have replaced the stored logger
		requestLogger := GetLogger(c)
		status := c.Writer.Status()
		fields := map[string]interface{}{
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"path":        c.Request.URL.Path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if c.Request.URL.RawQuery != "" {
			fields["query"] = c.Request.URL.RawQuery
		}
		if len(c.Errors) > 0 && status >= 400 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= 500:
			requestLogger.Error("Request completed with server error", nil, fields)
		case status >= 400:
			requestLogger.Warn("Request completed with client error", fields)
		default:
			requestLogger.Info("Request completed", fields)
		}
	}
}

// Component tags the request logger with the component serving the route, so
// handler and completion logs line up with that component's own log lines.
func Component(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ComponentKey, name)
		if log := GetLogger(c); log != nil {
			c.Set(loggerKey, log.WithComponent(name))
		}
		c.Next()
	}
}

// GetLogger retrieves the logger from the Gin context.
// Returns nil if not found.
func GetLogger(c *gin.Context) *logger.Logger {
	if log, exists := c.Get(loggerKey); exists {
		if l, ok := log.(*logger.Logger); ok {
			return l
		}
	}
	return nil
}
