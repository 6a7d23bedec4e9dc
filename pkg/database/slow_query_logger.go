package database

import (
	"sync"
	"time"

	"github.com/brooklin-io/taskassign/pkg/logger"
)

// SlowQueryThreshold defines the threshold for slow queries
const SlowQueryThreshold = 100 * time.Millisecond

// SlowQueryLogger logs and tracks slow queries
type SlowQueryLogger struct {
	logger     logger.Logger
	queries    []SlowQueryInfo
	maxQueries int
	mu         sync.RWMutex
}

// SlowQueryInfo contains information about a slow query
type SlowQueryInfo struct {
	Query     string        `json:"query"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewSlowQueryLogger creates a new slow query logger
func NewSlowQueryLogger(log logger.Logger) *SlowQueryLogger {
	return &SlowQueryLogger{
		logger:     log,
		maxQueries: 100,
		queries:    make([]SlowQueryInfo, 0, 100),
	}
}

// Log logs a slow query
func (l *SlowQueryLogger) Log(query string, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Warn("slow query detected", "query", query, "duration", duration, "threshold", SlowQueryThreshold)

	l.queries = append(l.queries, SlowQueryInfo{Query: query, Duration: duration, Timestamp: time.Now()})

	if len(l.queries) > l.maxQueries {
		l.queries = l.queries[len(l.queries)-l.maxQueries:]
	}
}

// GetRecent returns recent slow queries, most recent last.
func (l *SlowQueryLogger) GetRecent(limit int) []SlowQueryInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.queries) {
		limit = len(l.queries)
	}

	start := len(l.queries) - limit
	if start < 0 {
		start = 0
	}

	result := make([]SlowQueryInfo, limit)
	copy(result, l.queries[start:])

	return result
}
