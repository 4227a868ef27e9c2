package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Middleware rejects requests from clients over their limit with 429.
// onReject, when set, runs for every rejected request.
func Middleware(l KeyedLimiter, onReject func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := l.Allow(c.ClientIP())

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

		if d.Allowed {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))

		if onReject != nil {
			onReject(c)
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      "Too many requests",
			"retryAfter": retryAfter,
		})
	}
}
