package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brooklin-io/taskassign/pkg/events"
	"github.com/brooklin-io/taskassign/pkg/logger"
)

type fakeBus struct {
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}

func (f *fakeBus) Subscribe(string, events.EventHandler) error { return nil }
func (f *fakeBus) Close() error                                { return nil }

func TestPublisher_GroupRebalanced_PublishesSuccessEvent(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, logger.NewNop())

	p.GroupRebalanced("cluster1", "orders", 3, 10*time.Millisecond, nil)

	require.Len(t, bus.published, 1)
	evt := bus.published[0]
	assert.Equal(t, TypeGroupRebalanced, evt.Type)
	assert.Equal(t, "cluster1/orders", evt.AggregateID)
	assert.Equal(t, 3, evt.Payload["taskCount"])
	assert.NotContains(t, evt.Payload, "error")
}

func TestPublisher_GroupMoved_PublishesFailureEventWithError(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, logger.NewNop())

	p.GroupMoved("cluster1", "orders", 0, time.Millisecond, errors.New("boom"))

	require.Len(t, bus.published, 1)
	evt := bus.published[0]
	assert.Equal(t, TypeGroupMoved, evt.Type)
	assert.Equal(t, "boom", evt.Payload["error"])
}
