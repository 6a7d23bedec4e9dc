package domain

import "sort"

// Assignment is a mapping from instance name to the set of tasks currently
// owned by that instance. A task belongs to at most one instance at any
// given committed assignment (invariant: uniqueness of ownership).
type Assignment map[string][]*Task

// Instances returns the assignment's instance names in sorted order, so
// callers that iterate for placement decisions get deterministic order.
func (a Assignment) Instances() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TasksForGroup returns every task belonging to groupPrefix across all
// instances, paired with the owning instance name, sorted by task name.
func (a Assignment) TasksForGroup(groupPrefix string) []GroupTask {
	var out []GroupTask
	for _, instance := range a.Instances() {
		for _, t := range a[instance] {
			if t.GroupPrefix == groupPrefix {
				out = append(out, GroupTask{Instance: instance, Task: t})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task.Name < out[j].Task.Name })
	return out
}

// GroupTask pairs a task with the instance that currently owns it.
type GroupTask struct {
	Instance string
	Task     *Task
}

// TaskCount returns the number of tasks owned by instance.
func (a Assignment) TaskCount(instance string) int {
	return len(a[instance])
}

// AllTaskNames returns the set of every task name present anywhere in the
// assignment, used by the cleanup planner to decide which dependencies have
// already been retired.
func (a Assignment) AllTaskNames() map[string]struct{} {
	set := make(map[string]struct{})
	for _, tasks := range a {
		for _, t := range tasks {
			set[t.Name] = struct{}{}
		}
	}
	return set
}

// Clone returns a shallow copy-on-write snapshot: a new top-level map with
// new per-instance slices, but the same *Task pointers. Strategies must
// never mutate a *Task in place (invariant 7); they replace slice entries.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for instance, tasks := range a {
		cp := make([]*Task, len(tasks))
		copy(cp, tasks)
		out[instance] = cp
	}
	return out
}

// ReplaceTask swaps the task named oldName on instance for newTask. If
// oldName is not found, newTask is appended.
func (a Assignment) ReplaceTask(instance, oldName string, newTask *Task) {
	tasks := a[instance]
	for i, t := range tasks {
		if t.Name == oldName {
			tasks[i] = newTask
			a[instance] = tasks
			return
		}
	}
	a[instance] = append(tasks, newTask)
}

// RemoveTask deletes the named task from instance, if present. Used by
// strategies that drop tasks outright rather than replace them.
func (a Assignment) RemoveTask(instance, name string) {
	tasks := a[instance]
	for i, t := range tasks {
		if t.Name == name {
			a[instance] = append(tasks[:i], tasks[i+1:]...)
			return
		}
	}
}

// PartitionSnapshot is the current set of source partition identifiers for a
// group, as observed by the connector.
type PartitionSnapshot map[string]struct{}

// NewPartitionSnapshot builds a snapshot from a partition ID list.
func NewPartitionSnapshot(partitions []string) PartitionSnapshot {
	s := make(PartitionSnapshot, len(partitions))
	for _, p := range partitions {
		s[p] = struct{}{}
	}
	return s
}

// Sorted returns the snapshot's partition IDs in sorted order, for
// deterministic iteration and for hashing into a shuffle seed.
func (s PartitionSnapshot) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s PartitionSnapshot) Contains(p string) bool {
	_, ok := s[p]
	return ok
}

func (s PartitionSnapshot) Len() int { return len(s) }

// OperatorTarget is a mapping from instance name to the set of partition
// identifiers the operator wishes to relocate onto that instance.
type OperatorTarget map[string][]string

// Flatten returns every partition named anywhere in the target, deduplicated.
func (t OperatorTarget) Flatten() map[string]struct{} {
	out := make(map[string]struct{})
	for _, partitions := range t {
		for _, p := range partitions {
			out[p] = struct{}{}
		}
	}
	return out
}
