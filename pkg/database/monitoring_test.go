package database

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brooklin-io/taskassign/pkg/logger"
)

type recordModel struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestSlowQueryLogger_LogsAndTrimsToMaxQueries(t *testing.T) {
	l := NewSlowQueryLogger(logger.NewNop())
	l.maxQueries = 2

	l.Log("select 1", 10*time.Millisecond)
	l.Log("select 2", 20*time.Millisecond)
	l.Log("select 3", 30*time.Millisecond)

	recent := l.GetRecent(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "select 2", recent[0].Query)
	assert.Equal(t, "select 3", recent[1].Query)
}

func TestSlowQueryLogger_GetRecentRespectsLimit(t *testing.T) {
	l := NewSlowQueryLogger(logger.NewNop())
	l.Log("a", time.Millisecond)
	l.Log("b", time.Millisecond)
	l.Log("c", time.Millisecond)

	recent := l.GetRecent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "c", recent[0].Query)
}

func TestDBMonitor_RecordsQueriesAndFlagsSlowOnes(t *testing.T) {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&recordModel{}))

	monitor, err := NewDBMonitor(gormDB, logger.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, gormDB.Create(&recordModel{Name: "a"}).Error)

	var out recordModel
	require.NoError(t, gormDB.First(&out).Error)

	assert.Equal(t, float64(1), testutil.ToFloat64(monitor.metrics.QueriesTotal))
}

func TestDBMonitor_HealthCheckReportsHealthyConnection(t *testing.T) {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	monitor, err := NewDBMonitor(gormDB, logger.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)

	status := monitor.HealthCheck(context.Background())
	assert.True(t, status.Healthy)
}
