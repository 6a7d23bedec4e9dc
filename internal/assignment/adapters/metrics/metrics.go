// Package metrics implements orchestrator.Observer with Prometheus
// counters and histograms, scoped to this domain's rebalance and move
// cycles.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records rebalance and move cycle outcomes as Prometheus metrics.
// The zero value is not usable; build one with NewRecorder.
type Recorder struct {
	rebalancesTotal    *prometheus.CounterVec
	rebalanceDuration  *prometheus.HistogramVec
	rebalanceTaskCount *prometheus.GaugeVec
	movesTotal         *prometheus.CounterVec
	moveDuration       *prometheus.HistogramVec
	moveIgnoredCount   *prometheus.GaugeVec
}

// NewRecorder registers this domain's metrics against reg. Pass
// prometheus.DefaultRegisterer for the process-global registry, as
// promhttp.Handler() (used by internal/server) scrapes by default, or a
// fresh prometheus.NewRegistry() in tests to avoid collisions between
// parallel test binaries registering the same metric names twice.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		rebalancesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskassign_rebalances_total",
				Help: "Total number of group rebalance cycles, by outcome",
			},
			[]string{"cluster", "group", "outcome"},
		),
		rebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskassign_rebalance_duration_seconds",
				Help:    "Group rebalance cycle duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"cluster", "group"},
		),
		rebalanceTaskCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "taskassign_group_task_count",
				Help: "Number of tasks assigned to a group after its last rebalance",
			},
			[]string{"cluster", "group"},
		),
		movesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskassign_moves_total",
				Help: "Total number of operator-directed move cycles, by outcome",
			},
			[]string{"cluster", "group", "outcome"},
		),
		moveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskassign_move_duration_seconds",
				Help:    "Operator-directed move cycle duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"cluster", "group"},
		),
		moveIgnoredCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "taskassign_move_ignored_partitions",
				Help: "Number of operator-named partitions ignored by the last move",
			},
			[]string{"cluster", "group"},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// GroupRebalanced implements orchestrator.Observer.
func (r *Recorder) GroupRebalanced(cluster, group string, taskCount int, duration time.Duration, err error) {
	r.rebalancesTotal.WithLabelValues(cluster, group, outcome(err)).Inc()
	r.rebalanceDuration.WithLabelValues(cluster, group).Observe(duration.Seconds())
	if err == nil {
		r.rebalanceTaskCount.WithLabelValues(cluster, group).Set(float64(taskCount))
	}
}

// GroupMoved implements orchestrator.Observer.
func (r *Recorder) GroupMoved(cluster, group string, ignoredCount int, duration time.Duration, err error) {
	r.movesTotal.WithLabelValues(cluster, group, outcome(err)).Inc()
	r.moveDuration.WithLabelValues(cluster, group).Observe(duration.Seconds())
	if err == nil {
		r.moveIgnoredCount.WithLabelValues(cluster, group).Set(float64(ignoredCount))
	}
}
