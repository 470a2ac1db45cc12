package middleware

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes

	"ml_system/internal/ratelimit" // Sliding-window limiter

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// RateLimitMiddleware enforces the per-user sliding window before any
// handler (and therefore any token debit) runs
func RateLimitMiddleware(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Key the window by username; fall back to client IP for safety
		key := c.GetString("username")
		if key == "" {
			key = c.ClientIP()
		}
		if err := ratelimit.Check(c.Request.Context(), limiter, key); err != nil {
			if errors.Is(err, ratelimit.ErrThrottled) {
				// Throttled requests never reach the token ledger
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
				return
			}
			// Limiter backend failure: reject rather than bypass the limit
			logrus.WithFields(logrus.Fields{
				"key":   key,
				"error": err.Error(),
			}).Error("Rate limiter unavailable")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Rate limiter unavailable"})
			return
		}
		c.Next() // Proceed to the next handler
	}
}
