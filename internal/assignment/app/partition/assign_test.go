package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
)

func groupFixture(prefix string) *domain.DatastreamGroup {
	return &domain.DatastreamGroup{
		TaskPrefix:  prefix,
		Datastreams: []*domain.Datastream{{Name: prefix + "-ds", Status: domain.StatusReady}},
	}
}

func lockedTask(name, prefix, owner string, partitions ...string) *domain.Task {
	return &domain.Task{
		Name: name, TaskPrefix: prefix, GroupPrefix: prefix,
		Partitions: partitions, LockOwner: owner,
	}
}

func TestAssignPartitions_FreshSpread(t *testing.T) {
	group := groupFixture("ds")
	current := domain.Assignment{
		"instance1": {
			lockedTask("ds_0_a", "ds", "instance1"),
			lockedTask("ds_0_b", "ds", "instance1"),
			lockedTask("ds_0_c", "ds", "instance1"),
		},
	}
	snapshot := domain.NewPartitionSnapshot([]string{"t-0", "t-1", "t1-0"})

	s := New(Config{})
	next, err := s.AssignPartitions(current, group, snapshot)
	require.NoError(t, err)

	tasks := next.TasksForGroup("ds")
	require.Len(t, tasks, 3)
	union := map[string]struct{}{}
	for _, gt := range tasks {
		assert.Len(t, gt.Task.Partitions, 1)
		union[gt.Task.Partitions[0]] = struct{}{}
	}
	assert.Len(t, union, 3)
}

func TestAssignPartitions_Growth(t *testing.T) {
	group := groupFixture("ds")
	current := domain.Assignment{
		"instance1": {
			lockedTask("ds_0_a", "ds", "instance1", "t-0"),
			lockedTask("ds_0_b", "ds", "instance1", "t-1"),
			lockedTask("ds_0_c", "ds", "instance1", "t1-0"),
		},
	}
	snapshot := domain.NewPartitionSnapshot([]string{"t-0", "t-1", "t1-0", "t2-0", "t2-1", "t2-2"})

	s := New(Config{})
	next, err := s.AssignPartitions(current, group, snapshot)
	require.NoError(t, err)

	tasks := next.TasksForGroup("ds")
	require.Len(t, tasks, 3)
	for _, gt := range tasks {
		assert.Len(t, gt.Task.Partitions, 2)
	}
}

func TestAssignPartitions_Shrink(t *testing.T) {
	group := groupFixture("ds")
	current := domain.Assignment{
		"instance1": {
			lockedTask("ds_0_a", "ds", "instance1", "t-0", "t-1", "t-2"),
			lockedTask("ds_0_b", "ds", "instance1", "t-3", "t-4"),
			lockedTask("ds_0_c", "ds", "instance1", "t-5", "t-6"),
		},
	}
	snapshot := domain.NewPartitionSnapshot([]string{"t-1", "t-3", "t-4", "t-6"})

	s := New(Config{})
	next, err := s.AssignPartitions(current, group, snapshot)
	require.NoError(t, err)

	tasks := next.TasksForGroup("ds")
	require.Len(t, tasks, 3)
	union := map[string]struct{}{}
	total := 0
	for _, gt := range tasks {
		total += len(gt.Task.Partitions)
		for _, p := range gt.Task.Partitions {
			union[p] = struct{}{}
		}
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, map[string]struct{}{"t-1": {}, "t-3": {}, "t-4": {}, "t-6": {}}, union)
}

func TestAssignPartitions_UnlockedTaskBlocksRebalance(t *testing.T) {
	group := groupFixture("ds")
	t1 := lockedTask("ds_0_a", "ds", "instance1", "t-0")
	t1.LockOwner = "" // not locked
	current := domain.Assignment{
		"instance1": {
			t1,
			lockedTask("ds_0_b", "ds", "instance1", "t-1"),
			lockedTask("ds_0_c", "ds", "instance1", "t1-0"),
		},
	}
	snapshot := domain.NewPartitionSnapshot([]string{"t-0", "t-1", "t1-0"})

	s := New(Config{})
	_, err := s.AssignPartitions(current, group, snapshot)
	require.Error(t, err)
	var unlocked *domain.UnlockedTaskError
	assert.ErrorAs(t, err, &unlocked)
}

func TestAssignPartitions_NoTasksIsError(t *testing.T) {
	group := groupFixture("ds")
	current := domain.Assignment{}
	snapshot := domain.NewPartitionSnapshot([]string{"t-0"})

	s := New(Config{})
	_, err := s.AssignPartitions(current, group, snapshot)
	require.Error(t, err)
	var noTasks *domain.NoTasksError
	assert.ErrorAs(t, err, &noTasks)
}

func TestAssignPartitions_EmptySnapshotLeavesTasksWithNoPartitions(t *testing.T) {
	group := groupFixture("ds")
	current := domain.Assignment{
		"instance1": {lockedTask("ds_0_a", "ds", "instance1", "t-0")},
	}
	snapshot := domain.NewPartitionSnapshot(nil)

	s := New(Config{})
	next, err := s.AssignPartitions(current, group, snapshot)
	require.NoError(t, err)

	tasks := next.TasksForGroup("ds")
	require.Len(t, tasks, 1)
	assert.Empty(t, tasks[0].Task.Partitions)
}

func TestAssignPartitions_CapExceeded(t *testing.T) {
	group := groupFixture("ds")
	current := domain.Assignment{
		"instance1": {lockedTask("ds_0_a", "ds", "instance1")},
	}
	snapshot := domain.NewPartitionSnapshot([]string{"t-0", "t-1", "t-2"})

	s := New(Config{MaxPartitionsPerTask: 2})
	_, err := s.AssignPartitions(current, group, snapshot)
	require.Error(t, err)
	var capErr *domain.PartitionCapExceededError
	assert.ErrorAs(t, err, &capErr)
}

func TestAssignPartitions_DeterministicAcrossRuns(t *testing.T) {
	group := groupFixture("ds")
	build := func() domain.Assignment {
		return domain.Assignment{
			"instance1": {
				lockedTask("ds_0_a", "ds", "instance1"),
				lockedTask("ds_0_b", "ds", "instance1"),
			},
		}
	}
	snapshot := domain.NewPartitionSnapshot([]string{"t-0", "t-1", "t-2", "t-3"})

	s := New(Config{})
	first, err := s.AssignPartitions(build(), group, snapshot)
	require.NoError(t, err)
	second, err := s.AssignPartitions(build(), group, snapshot)
	require.NoError(t, err)

	firstTasks, secondTasks := first.TasksForGroup("ds"), second.TasksForGroup("ds")
	require.Len(t, firstTasks, len(secondTasks))
	for i := range firstTasks {
		assert.Equal(t, firstTasks[i].Task.Partitions, secondTasks[i].Task.Partitions)
	}
}
