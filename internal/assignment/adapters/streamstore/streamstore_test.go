package streamstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
)

func TestGroupByTaskPrefix_GroupsByMetadataKey(t *testing.T) {
	streams := []*domain.Datastream{
		{Name: "orders-a", Status: domain.StatusReady, Metadata: map[string]string{"taskPrefix": "orders"}},
		{Name: "orders-b", Status: domain.StatusReady, Metadata: map[string]string{"taskPrefix": "orders", "numTasks": "3"}},
		{Name: "solo", Status: domain.StatusReady},
		{Name: "deleted", Status: domain.StatusDeleting, Metadata: map[string]string{"taskPrefix": "orders"}},
	}

	groups, err := groupByTaskPrefix(streams)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "orders", groups[0].TaskPrefix)
	assert.Len(t, groups[0].Datastreams, 2)
	assert.Equal(t, 3, groups[0].NumTasks)

	assert.Equal(t, "solo", groups[1].TaskPrefix)
	assert.Len(t, groups[1].Datastreams, 1)
}

func TestGroupByTaskPrefix_ShardedFlag(t *testing.T) {
	streams := []*domain.Datastream{
		{Name: "a", Status: domain.StatusReady, Metadata: map[string]string{"taskPrefix": "p", "sharded": "true"}},
	}
	groups, err := groupByTaskPrefix(streams)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.True(t, groups[0].Sharded)
}

func TestGroupByTaskPrefix_EmptyInputYieldsNoGroups(t *testing.T) {
	groups, err := groupByTaskPrefix(nil)
	require.NoError(t, err)
	assert.Empty(t, groups)
}
