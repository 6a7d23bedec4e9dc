package server

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/brooklin-io/taskassign/pkg/metrics"
)

// metricsMiddleware records every request's outcome and latency against
// the process-wide HTTP metrics, scraped at /metrics alongside the
// rebalance-cycle metrics in internal/assignment/adapters/metrics.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.RecordHTTPRequest("coordinator", c.Request.Method, path, strconv.Itoa(c.Writer.Status()))
		metrics.RecordHTTPDuration("coordinator", c.Request.Method, path, time.Since(start).Seconds())
	}
}

// authMiddleware validates the bearer token and stashes the operator
// subject and roles in the gin context for requirePermission to consume.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}

		claims, err := s.jwt.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("subject", claims.Subject)
		c.Set("roles", claims.Roles)
		c.Next()
	}
}

// perSubjectLimiter hands out one in-process token-bucket limiter
// (rate.NewLimiter) per operator subject.
type perSubjectLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newPerSubjectLimiter(rps int, burst int) *perSubjectLimiter {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &perSubjectLimiter{rps: rate.Limit(rps), burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (l *perSubjectLimiter) allow(subject string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[subject]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[subject] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// rateLimitMiddleware throttles mutating requests per authenticated
// subject, so a misbehaving client can't drive the coordination store
// into repeated writes faster than it can keep up.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, _ := c.Get("subject")
		subjectStr, _ := subject.(string)
		if subjectStr == "" {
			subjectStr = c.ClientIP()
		}
		if !s.limiter.allow(subjectStr) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// requirePermission checks the authenticated subject's roles against the
// RBAC enforcer for (resource, action).
func (s *Server) requirePermission(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, _ := c.Get("subject")
		subjectStr, _ := subject.(string)
		if subjectStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			c.Abort()
			return
		}

		allowed, err := s.enforcer.Check(subjectStr, resource, action)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "permission check failed"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied", "resource": resource, "action": action})
			c.Abort()
			return
		}
		c.Next()
	}
}
