// Package partition implements the sticky partition strategy: distributing
// source partitions across a group's tasks, realizing operator-directed
// moves, and the invariant checks that gate every mutation produced here.
package partition

import (
	"sort"
	"strings"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
)

// Config bounds the partition strategy's output.
type Config struct {
	// MaxPartitionsPerTask caps the working set of any single task. Zero
	// means unbounded.
	MaxPartitionsPerTask int
}

// Strategy is the sticky partition strategy.
type Strategy struct {
	cfg Config
}

func New(cfg Config) *Strategy {
	return &Strategy{cfg: cfg}
}

// AssignPartitions folds snapshot onto the group's current tasks with
// minimum mutation. It never mutates a task in place: tasks whose working
// set changed are replaced by a freshly minted successor carrying the
// predecessor as a dependency.
func (s *Strategy) AssignPartitions(current domain.Assignment, group *domain.DatastreamGroup, snapshot domain.PartitionSnapshot) (domain.Assignment, error) {
	groupName := group.TaskPrefix
	existing := current.TasksForGroup(groupName)
	if len(existing) == 0 {
		return nil, domain.NewNoTasksError(groupName)
	}
	for _, gt := range existing {
		if !gt.Task.Locked(gt.Instance) {
			return nil, domain.NewUnlockedTaskError(groupName, gt.Task.Name)
		}
	}

	assigned := make(map[string]struct{})
	for _, gt := range existing {
		for _, p := range gt.Task.Partitions {
			assigned[p] = struct{}{}
		}
	}

	var unassignedSorted []string
	for p := range snapshot {
		if _, ok := assigned[p]; !ok {
			unassignedSorted = append(unassignedSorted, p)
		}
	}
	sort.Strings(unassignedSorted)
	unassigned := seededShuffle(unassignedSorted, groupName+"|"+strings.Join(snapshot.Sorted(), ","))

	totalTasks := len(existing)
	base := snapshot.Len() / totalTasks
	remainder := snapshot.Len() % totalTasks

	next := current.Clone()
	cursor := 0

	for i, gt := range existing {
		allowance := base
		if i < remainder {
			allowance++
		}

		working := make([]string, 0, len(gt.Task.Partitions))
		for _, p := range gt.Task.Partitions {
			if snapshot.Contains(p) {
				working = append(working, p)
			}
		}

		for len(working) < allowance && cursor < len(unassigned) {
			working = append(working, unassigned[cursor])
			cursor++
		}

		if s.cfg.MaxPartitionsPerTask > 0 && len(working) > s.cfg.MaxPartitionsPerTask {
			return nil, domain.NewPartitionCapExceededError(groupName, gt.Task.Name, s.cfg.MaxPartitionsPerTask, len(working))
		}

		if gt.Task.SamePartitions(working) {
			continue
		}

		succ, err := gt.Task.Successor(working, gt.Instance)
		if err != nil {
			return nil, err
		}
		next.ReplaceTask(gt.Instance, gt.Task.Name, succ)
	}

	if err := CheckInvariants(groupName, next, snapshot, s.cfg.MaxPartitionsPerTask); err != nil {
		return nil, err
	}
	return next, nil
}
