package etcdstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
)

func TestMemoryStore_WriteThenRead(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	a := domain.Assignment{"i1": {&domain.Task{Name: "ds_0_a", GroupPrefix: "ds", LockOwner: "i1"}}}
	require.NoError(t, m.WriteAssignment(ctx, "cluster1", "ds", a))

	got, err := m.ReadAssignment(ctx, "cluster1", "ds")
	require.NoError(t, err)
	assert.Len(t, got["i1"], 1)
	assert.Equal(t, "ds_0_a", got["i1"][0].Name)
}

func TestMemoryStore_RemoveTasks(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	a := domain.Assignment{"i1": {&domain.Task{Name: "ds_0_a", GroupPrefix: "ds", LockOwner: "i1"}}}
	require.NoError(t, m.WriteAssignment(ctx, "cluster1", "ds", a))
	require.NoError(t, m.RemoveTasks(ctx, "cluster1", map[string][]string{"i1": {"ds_0_a"}}))

	got, err := m.ReadAssignment(ctx, "cluster1", "ds")
	require.NoError(t, err)
	assert.Empty(t, got["i1"])
}

func TestMemoryStore_LiveInstancesRoundTrip(t *testing.T) {
	m := NewMemoryStore()
	m.SetLiveInstances("cluster1", []string{"i1", "i2"})

	instances, err := m.LiveInstances(context.Background(), "cluster1")
	require.NoError(t, err)
	assert.Equal(t, []string{"i1", "i2"}, instances)
}

func TestMemoryStore_WatchNotifiesOnWrite(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	ch, err := m.Watch(ctx, "cluster1")
	require.NoError(t, err)

	require.NoError(t, m.WriteAssignment(ctx, "cluster1", "ds", domain.Assignment{}))

	select {
	case <-ch:
	default:
		t.Fatal("expected a tick after WriteAssignment")
	}
}
