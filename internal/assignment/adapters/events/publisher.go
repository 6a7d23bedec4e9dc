// Package events implements orchestrator.Observer by publishing rebalance
// and move lifecycle events onto pkg/events' event bus, so downstream
// consumers (audit trails, alerting) can subscribe without the
// orchestrator knowing about them.
package events

import (
	"context"
	"time"

	"github.com/brooklin-io/taskassign/pkg/events"
	"github.com/brooklin-io/taskassign/pkg/logger"
	"github.com/brooklin-io/taskassign/pkg/metrics"
)

// Event types this package publishes.
const (
	TypeGroupRebalanced = "group.rebalanced"
	TypeGroupMoved      = "group.moved"
)

const aggregateType = "datastream_group"

// Publisher adapts an events.EventBus to orchestrator.Observer.
type Publisher struct {
	bus events.EventBus
	log logger.Logger
}

func NewPublisher(bus events.EventBus, log logger.Logger) *Publisher {
	return &Publisher{bus: bus, log: log}
}

// GroupRebalanced implements orchestrator.Observer.
func (p *Publisher) GroupRebalanced(cluster, group string, taskCount int, duration time.Duration, err error) {
	p.publish(TypeGroupRebalanced, cluster, group, map[string]interface{}{
		"taskCount":  taskCount,
		"durationMs": duration.Milliseconds(),
	}, err)
}

// GroupMoved implements orchestrator.Observer.
func (p *Publisher) GroupMoved(cluster, group string, ignoredCount int, duration time.Duration, err error) {
	p.publish(TypeGroupMoved, cluster, group, map[string]interface{}{
		"ignoredCount": ignoredCount,
		"durationMs":   duration.Milliseconds(),
	}, err)
}

func (p *Publisher) publish(eventType, cluster, group string, payload map[string]interface{}, cycleErr error) {
	builder := events.NewEventBuilder(eventType).
		WithAggregateID(cluster + "/" + group).
		WithAggregateType(aggregateType)
	for k, v := range payload {
		builder = builder.WithPayload(k, v)
	}
	builder = builder.WithPayload("cluster", cluster).WithPayload("group", group)
	if cycleErr != nil {
		builder = builder.WithPayload("error", cycleErr.Error())
	}

	if err := p.bus.Publish(context.Background(), builder.Build()); err != nil {
		p.log.Error("failed to publish rebalance lifecycle event", "type", eventType, "cluster", cluster, "group", group, "error", err)
		return
	}
	metrics.RecordEventPublished(eventType)
}
