package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/customdomains/internal/identity"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to. An empty key bypasses
// the limiter.
type KeyFunc func(c *gin.Context) string

// ByClientIP charges requests to the client IP.
func ByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByOwner charges requests to the authenticated owner, falling back to the
// client IP. Mount it after identity.RequireOwner.
func ByOwner(c *gin.Context) string {
	if owner := identity.OwnerFromCtx(c); owner != "" {
		return "owner:" + owner
	}
	return c.ClientIP()
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter returns a Gin middleware that enforces token-bucket rate
// limiting per key. rps is the steady-state requests per second; burst is
// the maximum burst size. Buckets idle for ten minutes are dropped.
func RateLimiter(rps, burst int, key KeyFunc) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*bucket)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			mu.Lock()
			for k, b := range buckets {
				if time.Since(b.lastSeen) > 10*time.Minute {
					delete(buckets, k)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		k := key(c)
		if k == "" {
			c.Next()
			return
		}

		mu.Lock()
		b, ok := buckets[k]
		if !ok {
			b = &bucket{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			buckets[k] = b
		}
		b.lastSeen = time.Now()
		mu.Unlock()

		if !b.limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
