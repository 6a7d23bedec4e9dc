package partition

import (
	"sort"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
)

// MoveResult carries the new assignment plus any operator-named partitions
// that could not be honored because they are not in the group's snapshot.
// These are reported back to the caller rather than failing the move.
type MoveResult struct {
	Assignment domain.Assignment
	Ignored    []string
}

// MovePartitions realizes a best-effort operator-directed move as a single
// atomic rebalance. Partitions not owned by any task or absent from the
// snapshot are ignored; no-op moves are dropped before any task is touched.
func (s *Strategy) MovePartitions(current domain.Assignment, group *domain.DatastreamGroup, target domain.OperatorTarget, snapshot domain.PartitionSnapshot) (*MoveResult, error) {
	groupName := group.TaskPrefix

	requested := target.Flatten()
	var ignored []string
	allToReassign := make(map[string]struct{}, len(requested))
	for p := range requested {
		if snapshot.Contains(p) {
			allToReassign[p] = struct{}{}
		} else {
			ignored = append(ignored, p)
		}
	}
	sort.Strings(ignored)

	instances := instanceUnion(current, target)

	noOpRemoved := make(map[string]map[string]struct{})
	confirmed := make(map[string][]string)
	partitionToSourceTask := make(map[string]string)

	for _, instance := range instances {
		wanted := toSet(target[instance])
		for _, t := range current[instance] {
			if t.GroupPrefix != groupName {
				continue
			}
			for _, p := range t.Partitions {
				partitionToSourceTask[p] = t.Name
				if _, want := wanted[p]; want {
					if noOpRemoved[instance] == nil {
						noOpRemoved[instance] = make(map[string]struct{})
					}
					noOpRemoved[instance][p] = struct{}{}
					continue
				}
				if _, reassign := allToReassign[p]; reassign {
					confirmed[t.Name] = append(confirmed[t.Name], p)
				}
			}
		}
	}

	for _, noOps := range noOpRemoved {
		for p := range noOps {
			delete(allToReassign, p)
		}
	}

	confirmedValues := make(map[string]struct{})
	for _, ps := range confirmed {
		for _, p := range ps {
			confirmedValues[p] = struct{}{}
		}
	}

	processedTarget := make(map[string]map[string]struct{}, len(instances))
	for _, instance := range instances {
		set := make(map[string]struct{})
		for _, p := range target[instance] {
			if _, wasNoOp := noOpRemoved[instance][p]; wasNoOp {
				continue
			}
			if _, stillToReassign := allToReassign[p]; stillToReassign {
				set[p] = struct{}{}
			}
		}
		processedTarget[instance] = set
	}

	next := current.Clone()

	for _, instance := range instances {
		toAdd := sortedIntersection(processedTarget[instance], confirmedValues)

		groupTasks := groupTasksOn(next, instance, groupName)
		if len(toAdd) > 0 && len(groupTasks) == 0 {
			return nil, domain.NewNoTargetTaskError(groupName, instance)
		}
		if len(groupTasks) == 0 {
			continue
		}

		targetTask := fewestPartitions(groupTasks)

		for _, t := range groupTasks {
			released, hasRelease := confirmed[t.Name]
			isTarget := t.Name == targetTask.Name
			if !hasRelease && !(isTarget && len(toAdd) > 0) {
				continue
			}

			working := subtract(t.Partitions, released)
			var extraDeps []string
			if isTarget {
				working = append(working, toAdd...)
				for _, p := range toAdd {
					if src, ok := partitionToSourceTask[p]; ok && src != t.Name {
						extraDeps = append(extraDeps, src)
					}
				}
			}

			succ, err := t.Successor(working, instance, extraDeps...)
			if err != nil {
				return nil, err
			}
			next.ReplaceTask(instance, t.Name, succ)
		}
	}

	if err := CheckInvariants(groupName, next, snapshot, s.cfg.MaxPartitionsPerTask); err != nil {
		return nil, err
	}

	return &MoveResult{Assignment: next, Ignored: ignored}, nil
}

func instanceUnion(current domain.Assignment, target domain.OperatorTarget) []string {
	set := make(map[string]struct{})
	for _, inst := range current.Instances() {
		set[inst] = struct{}{}
	}
	for inst := range target {
		set[inst] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for inst := range set {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, i := range items {
		set[i] = struct{}{}
	}
	return set
}

func sortedIntersection(a, b map[string]struct{}) []string {
	var out []string
	for p := range a {
		if _, ok := b[p]; ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func subtract(items []string, remove []string) []string {
	drop := toSet(remove)
	out := make([]string, 0, len(items))
	for _, p := range items {
		if _, ok := drop[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

func groupTasksOn(a domain.Assignment, instance, groupName string) []*domain.Task {
	var out []*domain.Task
	for _, t := range a[instance] {
		if t.GroupPrefix == groupName {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func fewestPartitions(tasks []*domain.Task) *domain.Task {
	best := tasks[0]
	for _, t := range tasks[1:] {
		if len(t.Partitions) < len(best.Partitions) || (len(t.Partitions) == len(best.Partitions) && t.Name < best.Name) {
			best = t
		}
	}
	return best
}
