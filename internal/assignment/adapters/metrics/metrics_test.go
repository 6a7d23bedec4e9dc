package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_GroupRebalanced_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.GroupRebalanced("cluster1", "orders", 3, 10*time.Millisecond, nil)
	r.GroupRebalanced("cluster1", "orders", 0, 5*time.Millisecond, errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.rebalancesTotal.WithLabelValues("cluster1", "orders", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.rebalancesTotal.WithLabelValues("cluster1", "orders", "failure")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.rebalanceTaskCount.WithLabelValues("cluster1", "orders")))
}

func TestRecorder_GroupMoved_IgnoredCountOnlyOnSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.GroupMoved("cluster1", "orders", 2, time.Millisecond, nil)
	assert.Equal(t, float64(2), testutil.ToFloat64(r.moveIgnoredCount.WithLabelValues("cluster1", "orders")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.movesTotal.WithLabelValues("cluster1", "orders", "success")))
}
