package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"

	"github.com/brooklin-io/taskassign/pkg/logger"
)

// DBMonitor watches the audit database's connection pool and query
// latency, recording them as Prometheus gauges/counters and flagging
// queries over SlowQueryThreshold to the SlowQueryLogger.
type DBMonitor struct {
	db              *gorm.DB
	sqlDB           *sql.DB
	logger          logger.Logger
	metrics         *DBMetrics
	slowQueryLogger *SlowQueryLogger
	mu              sync.RWMutex
	running         bool
	stopChan        chan struct{}
}

// DBMetrics contains Prometheus metrics for database monitoring
type DBMetrics struct {
	ConnectionsActive prometheus.Gauge
	ConnectionsIdle   prometheus.Gauge
	ConnectionsMax    prometheus.Gauge
	ConnectionsWait   prometheus.Gauge
	QueriesTotal      prometheus.Counter
	QueryDuration     prometheus.Histogram
	SlowQueries       prometheus.Counter
	ErrorsTotal       prometheus.Counter
}

// NewDBMonitor creates a new database monitor, registering its metrics
// against reg. Pass prometheus.DefaultRegisterer in production, or a
// fresh prometheus.NewRegistry() in tests to avoid collisions between
// tests that each construct their own monitor.
func NewDBMonitor(db *gorm.DB, log logger.Logger, reg prometheus.Registerer) (*DBMonitor, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	factory := promauto.With(reg)
	metrics := &DBMetrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		}),
		ConnectionsIdle: factory.NewGauge(prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		}),
		ConnectionsMax: factory.NewGauge(prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		}),
		ConnectionsWait: factory.NewGauge(prometheus.GaugeOpts{
			Name: "database_connections_wait",
			Help: "Number of connections waiting",
		}),
		QueriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries",
		}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		SlowQueries: factory.NewCounter(prometheus.CounterOpts{
			Name: "database_slow_queries_total",
			Help: "Total number of slow queries",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "database_errors_total",
			Help: "Total number of database errors",
		}),
	}

	monitor := &DBMonitor{
		db:              db,
		sqlDB:           sqlDB,
		logger:          log,
		metrics:         metrics,
		slowQueryLogger: NewSlowQueryLogger(log),
		stopChan:        make(chan struct{}),
	}

	monitor.registerCallbacks()

	return monitor, nil
}

// registerCallbacks registers GORM callbacks for monitoring
func (m *DBMonitor) registerCallbacks() {
	m.db.Callback().Query().Before("gorm:query").Register("monitor:before_query", func(db *gorm.DB) {
		db.InstanceSet("query_start", time.Now())
	})

	m.db.Callback().Query().After("gorm:query").Register("monitor:after_query", func(db *gorm.DB) {
		m.recordQuery(db)

		if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
			m.metrics.ErrorsTotal.Inc()
			m.logger.Error("database error", "error", db.Error, "sql", db.Statement.SQL.String())
		}
	})
}

// recordQuery records query metrics
func (m *DBMonitor) recordQuery(db *gorm.DB) {
	if startTime, ok := db.InstanceGet("query_start"); ok {
		duration := time.Since(startTime.(time.Time))

		m.metrics.QueriesTotal.Inc()
		m.metrics.QueryDuration.Observe(duration.Seconds())

		if duration > SlowQueryThreshold {
			m.metrics.SlowQueries.Inc()
			m.slowQueryLogger.Log(db.Statement.SQL.String(), duration)
		}
	}
}

// Start begins the periodic connection pool sample loop.
func (m *DBMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	m.running = true
	m.mu.Unlock()

	go m.monitor(ctx)

	return nil
}

// Stop stops the sample loop.
func (m *DBMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		close(m.stopChan)
		m.running = false
	}
}

func (m *DBMonitor) monitor(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.collectMetrics()
		}
	}
}

func (m *DBMonitor) collectMetrics() {
	stats := m.sqlDB.Stats()
	m.metrics.ConnectionsActive.Set(float64(stats.InUse))
	m.metrics.ConnectionsIdle.Set(float64(stats.Idle))
	m.metrics.ConnectionsMax.Set(float64(stats.MaxOpenConnections))
	m.metrics.ConnectionsWait.Set(float64(stats.WaitCount))
}

// GetSlowQueries returns recent slow queries
func (m *DBMonitor) GetSlowQueries(limit int) []SlowQueryInfo {
	return m.slowQueryLogger.GetRecent(limit)
}

// GetConnectionPoolStats returns connection pool statistics
func (m *DBMonitor) GetConnectionPoolStats() sql.DBStats {
	return m.sqlDB.Stats()
}

// HealthCheck performs a database health check
func (m *DBMonitor) HealthCheck(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Timestamp: time.Now(),
		Healthy:   true,
	}

	if err := m.sqlDB.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Issues = append(status.Issues, fmt.Sprintf("connection failed: %v", err))
	}

	stats := m.sqlDB.Stats()
	if stats.OpenConnections > 0 && float64(stats.InUse)/float64(stats.OpenConnections) > 0.9 {
		status.Warnings = append(status.Warnings, "connection pool utilization > 90%")
	}

	status.ConnectionPool = stats

	return status
}

// HealthStatus represents database health status
type HealthStatus struct {
	Timestamp      time.Time   `json:"timestamp"`
	Healthy        bool        `json:"healthy"`
	Issues         []string    `json:"issues,omitempty"`
	Warnings       []string    `json:"warnings,omitempty"`
	ConnectionPool sql.DBStats `json:"connectionPool"`
}
