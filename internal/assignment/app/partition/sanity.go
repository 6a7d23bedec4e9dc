package partition

import (
	"sort"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
)

// CheckInvariants runs the final invariant checks against a candidate
// assignment for one group: coverage, count and cap. It is run after every
// mutation produced by this package, and aborts the rebalance (no partial
// state is returned to the caller) on the first violation.
func CheckInvariants(groupName string, a domain.Assignment, snapshot domain.PartitionSnapshot, maxPartitionsPerTask int) error {
	tasks := a.TasksForGroup(groupName)

	seen := make(map[string]struct{})
	var extra []string
	total := 0
	for _, gt := range tasks {
		total += len(gt.Task.Partitions)
		if maxPartitionsPerTask > 0 && len(gt.Task.Partitions) > maxPartitionsPerTask {
			return domain.NewPartitionCapExceededError(groupName, gt.Task.Name, maxPartitionsPerTask, len(gt.Task.Partitions))
		}
		for _, p := range gt.Task.Partitions {
			if !snapshot.Contains(p) {
				extra = append(extra, p)
				continue
			}
			seen[p] = struct{}{}
		}
	}

	var missing []string
	for _, p := range snapshot.Sorted() {
		if _, ok := seen[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(extra)
		return domain.NewCoverageError(groupName, missing, extra)
	}

	if total != snapshot.Len() {
		return domain.NewCountMismatchError(groupName, snapshot.Len(), total)
	}

	return nil
}
