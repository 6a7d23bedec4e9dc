// Package cleanup implements the dependency-gated tombstone planner: it
// decides which predecessor tasks are safe to remove from the coordination
// store once a rebalance has committed a new assignment.
package cleanup

import "github.com/brooklin-io/taskassign/internal/assignment/domain"

// Plan compares the assignment as currently persisted in the store (which
// may still carry predecessor tasks left behind by a leader that crashed
// mid-commit) against the newly committed assignment, and returns the
// per-instance set of task names safe to delete.
//
// A task T is removable iff it is named in the dependency set of some task
// T' that appears in the new assignment, and T itself no longer appears in
// the new assignment. This is what lets the destination task from an
// operator move, or a successor from a multicast rebalance, become active
// with the moved/retained partitions before its predecessor is torn down.
func Plan(stored, next domain.Assignment) map[string][]string {
	stillPresent := next.AllTaskNames()

	referenced := make(map[string]struct{})
	for _, instance := range next.Instances() {
		for _, t := range next[instance] {
			for dep := range t.Dependencies {
				referenced[dep] = struct{}{}
			}
		}
	}

	removable := make(map[string][]string)
	for _, instance := range stored.Instances() {
		for _, t := range stored[instance] {
			if _, present := stillPresent[t.Name]; present {
				continue
			}
			if _, ok := referenced[t.Name]; !ok {
				continue
			}
			removable[instance] = append(removable[instance], t.Name)
		}
	}
	return removable
}
