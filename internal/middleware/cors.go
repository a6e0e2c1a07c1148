package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Headers browsers may read from API responses: request correlation, rate
// limit state and the fact sheet download name.
var exposedHeaders = []string{
	RequestIDHeader,
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"Retry-After",
	"Content-Disposition",
}

// CORS allows the configured origins to call the analysis API.
// The API has no credentials of its own, so cookies are not allowed.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: exposedHeaders,
		MaxAge:        12 * time.Hour,
	})
}
