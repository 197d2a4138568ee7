package middleware

import (
	"net/http"
	"sync"

	"github.com/AbiyasX/FirebaseActt/pkg/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limitKey picks the bucket for a request: the authenticated subject when
// AuthMiddleware ran earlier, otherwise the client IP. Article writes get
// their own bucket so bursts of edits never lock a reader out of the list.
func limitKey(c *gin.Context) string {
	who := "ip:" + c.ClientIP()
	if sub, ok := Claims(c)["sub"].(string); ok && sub != "" {
		who = "sub:" + sub
	} else if c.ClientIP() == "" {
		who = "ip:unknown"
	}
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return who + ":read"
	}
	return who + ":write"
}

// RateLimitMiddleware returns a Gin middleware enforcing a token bucket per
// limitKey. rps = allowed events per second, burst = maximum tokens in bucket.
// Buckets live as long as the middleware.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var buckets sync.Map // limitKey -> *rate.Limiter
	return func(c *gin.Context) {
		key := limitKey(c)
		v, ok := buckets.Load(key)
		if !ok {
			v, _ = buckets.LoadOrStore(key, rate.NewLimiter(rate.Limit(rps), burst))
		}
		if !v.(*rate.Limiter).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
