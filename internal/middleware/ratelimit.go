package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/parcelbrief/internal/errors/envelope"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
)

// Counter counts hits for a key within a fixed window.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimit rejects clients that exceed limit requests per window with 429.
// Counter failures let the request through.
func RateLimit(counter Counter, limit int, window time.Duration, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || limit <= 0 {
			c.Next()
			return
		}

		count, err := counter.Increment(c.Request.Context(), c.ClientIP(), window)
		if err != nil {
			requestLogger := GetLogger(c)
			if requestLogger == nil {
				requestLogger = log
			}
			requestLogger.Warn("Rate limit counter unavailable, allowing request", map[string]interface{}{
				"error": err.Error(),
				"ip":    c.ClientIP(),
			})
			c.Next()
			return
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				envelope.New(envelope.CodeRateLimited, "Too many requests, try again later", GetRequestID(c)))
			return
		}

		c.Next()
	}
}
