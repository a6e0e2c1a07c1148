package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/parcelbrief/internal/errors/envelope"
	"github.com/stwalsh4118/parcelbrief/internal/logger"
)

// Recovery turns a panic in a handler into a 500 error envelope and logs the stack.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			requestID := GetRequestID(c)
			requestLogger := GetLogger(c)
			if requestLogger == nil {
				requestLogger = log.WithRequestID(requestID)
			}

			fields := map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"stack":  string(debug.Stack()),
			}
			if component := c.GetString(ComponentKey); component != "" {
				fields["component"] = component
			}
			requestLogger.Error("Panic recovered", fmt.Errorf("panic: %v", recovered), fields)

			c.AbortWithStatusJSON(http.StatusInternalServerError,
				envelope.New(envelope.CodeInternalServer, "An unexpected error occurred", requestID))
		}()

		c.Next()
	}
}
