package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskNameRoundTrip(t *testing.T) {
	name, gen, err := BuildTaskName("ds-group", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, gen)

	prefix, generation, suffix, err := ParseTaskName(name)
	require.NoError(t, err)
	assert.Equal(t, "ds-group", prefix)
	assert.Equal(t, 3, generation)
	assert.NotEmpty(t, suffix)
}

func TestParseTaskName_PrefixWithUnderscores(t *testing.T) {
	// taskPrefix itself may contain underscores; parsing must split on the
	// last two from the right.
	prefix, gen, suffix, err := ParseTaskName("my_ds_group_7_abc123")
	require.NoError(t, err)
	assert.Equal(t, "my_ds_group", prefix)
	assert.Equal(t, 7, gen)
	assert.Equal(t, "abc123", suffix)
}

func TestParseTaskName_Malformed(t *testing.T) {
	cases := []string{"noUnderscores", "only_one", "prefix__abc", "prefix_notanumber_abc"}
	for _, c := range cases {
		_, _, _, err := ParseTaskName(c)
		assert.Error(t, err, c)
	}
}

func TestTaskStatusEquality_IsAND(t *testing.T) {
	a := TaskStatus{Code: TaskOK, Message: "running"}
	b := TaskStatus{Code: TaskOK, Message: "different"}
	c := TaskStatus{Code: TaskComplete, Message: "running"}
	d := TaskStatus{Code: TaskOK, Message: "running"}

	assert.False(t, a.Equal(b), "same code, different message must not be equal")
	assert.False(t, a.Equal(c), "same message, different code must not be equal")
	assert.True(t, a.Equal(d))
}

func TestTaskStatusValidate(t *testing.T) {
	assert.NoError(t, TaskStatus{Code: TaskError, Message: ""}.Validate())
	assert.Error(t, TaskStatus{Code: TaskOK, Message: ""}.Validate())
	assert.NoError(t, TaskStatus{Code: TaskComplete, Message: "done"}.Validate())
}

func TestTaskSuccessor(t *testing.T) {
	parent := &Task{
		Name:        "g_0_aaa",
		TaskPrefix:  "g",
		Generation:  0,
		GroupPrefix: "g",
		Partitions:  []string{"t-0"},
		LockOwner:   "instance1",
		CreatedAt:   time.Now(),
	}

	succ, err := parent.Successor([]string{"t-0", "t-1"}, "instance2", "source-task")
	require.NoError(t, err)

	assert.NotEqual(t, parent.Name, succ.Name)
	assert.True(t, succ.DependsOn(parent.Name))
	assert.True(t, succ.DependsOn("source-task"))
	assert.Equal(t, []string{"t-0", "t-1"}, succ.Partitions)
	assert.Equal(t, "instance2", succ.LockOwner)

	// predecessor must never be mutated in place.
	assert.Equal(t, []string{"t-0"}, parent.Partitions)
}

func TestSamePartitions(t *testing.T) {
	task := &Task{Partitions: []string{"a", "b", "c"}}
	assert.True(t, task.SamePartitions([]string{"c", "b", "a"}))
	assert.False(t, task.SamePartitions([]string{"a", "b"}))
	assert.False(t, task.SamePartitions([]string{"a", "b", "d"}))
}
