// Package multicast implements the sticky multicast task-count strategy:
// it decides how many tasks a group should have and how they are spread
// across live instances, independent of partition content.
package multicast

import (
	"sort"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
)

// Config controls the strategy's balance tolerance.
type Config struct {
	// ImbalanceThreshold is the maximum allowed difference in per-instance
	// task count between any pair of eligible instances. Defaults to 1 when
	// zero.
	ImbalanceThreshold int
}

func (c Config) threshold() int {
	if c.ImbalanceThreshold <= 0 {
		return 1
	}
	return c.ImbalanceThreshold
}

// Strategy is the sticky multicast strategy. The orchestrator holds it next
// to the sticky partition strategy and runs it before AssignPartitions;
// partition.Strategy neither holds nor calls it.
type Strategy struct {
	cfg Config
}

func New(cfg Config) *Strategy {
	return &Strategy{cfg: cfg}
}

// Rebalance produces a new assignment for group, spread across
// liveInstances with minimum mutations: classify kept vs orphaned tasks,
// drop surplus, mint fresh tasks to reach target, then enforce balance.
// Tasks belonging to other groups are left untouched.
func (s *Strategy) Rebalance(current domain.Assignment, group *domain.DatastreamGroup, liveInstances []string, maxTasks int) (domain.Assignment, error) {
	next := current.Clone()

	live := make(map[string]bool, len(liveInstances))
	for _, inst := range liveInstances {
		live[inst] = true
	}

	target := group.EffectiveNumTasks(maxTasks)
	if !group.Sharded {
		target = clamp(target, 1, max(len(liveInstances), 1))
	}

	existing := next.TasksForGroup(group.TaskPrefix)

	var kept []domain.GroupTask
	for _, gt := range existing {
		if live[gt.Instance] && gt.Task.Locked(gt.Instance) {
			kept = append(kept, gt)
		} else {
			// Orphaned: owner gone or lock not held. Drop it outright; it
			// carries no successor because nothing replaces its identity.
			next.RemoveTask(gt.Instance, gt.Task.Name)
		}
	}

	if len(kept) > target {
		kept = dropSurplus(next, kept, len(kept)-target)
	}

	if len(kept) < target {
		kept = createFresh(next, group, liveInstances, kept, target-len(kept))
	}

	kept = s.enforceBalance(next, group, liveInstances, kept)
	_ = kept

	return next, nil
}

// dropSurplus removes (count) tasks starting from the most-loaded instance.
func dropSurplus(a domain.Assignment, kept []domain.GroupTask, count int) []domain.GroupTask {
	remaining := append([]domain.GroupTask(nil), kept...)
	for i := 0; i < count && len(remaining) > 0; i++ {
		sort.SliceStable(remaining, func(i, j int) bool {
			li, lj := a.TaskCount(remaining[i].Instance), a.TaskCount(remaining[j].Instance)
			if li != lj {
				return li > lj
			}
			return remaining[i].Instance < remaining[j].Instance
		})
		victim := remaining[0]
		a.RemoveTask(victim.Instance, victim.Task.Name)
		remaining = remaining[1:]
	}
	return remaining
}

// createFresh mints count new tasks, one at a time, always placing the next
// one on the currently least-loaded eligible instance (ties broken by
// instance name).
func createFresh(a domain.Assignment, group *domain.DatastreamGroup, liveInstances []string, kept []domain.GroupTask, count int) []domain.GroupTask {
	out := append([]domain.GroupTask(nil), kept...)
	sorted := append([]string(nil), liveInstances...)
	sort.Strings(sorted)

	for i := 0; i < count; i++ {
		target := leastLoaded(a, group.TaskPrefix, sorted)
		if target == "" {
			break // no eligible instance at all; caller surfaces empty roster upstream
		}
		name, generation, err := domain.FirstGeneration(group.TaskPrefix)
		if err != nil {
			continue
		}
		task := &domain.Task{
			Name:        name,
			TaskPrefix:  group.TaskPrefix,
			Generation:  generation,
			GroupPrefix: group.TaskPrefix,
			LockOwner:   target,
		}
		a[target] = append(a[target], task)
		out = append(out, domain.GroupTask{Instance: target, Task: task})
	}
	return out
}

// enforceBalance moves tasks from the heaviest to the lightest instance
// until the per-instance task count for the group differs by at most the
// configured threshold. Each move mints a successor task on the lighter
// instance and records the predecessor as its dependency.
func (s *Strategy) enforceBalance(a domain.Assignment, group *domain.DatastreamGroup, liveInstances []string, kept []domain.GroupTask) []domain.GroupTask {
	sorted := append([]string(nil), liveInstances...)
	sort.Strings(sorted)
	if len(sorted) == 0 {
		return kept
	}

	for {
		heaviest, lightest := extremeInstances(a, group.TaskPrefix, sorted)
		if heaviest == "" || lightest == "" {
			break
		}
		heavyLoad, lightLoad := groupLoad(a, group.TaskPrefix, heaviest), groupLoad(a, group.TaskPrefix, lightest)
		if heavyLoad-lightLoad <= s.cfg.threshold() {
			break
		}

		victim := pickMovable(a, heaviest, group.TaskPrefix)
		if victim == nil {
			break
		}
		succ, err := victim.Successor(victim.Partitions, lightest)
		if err != nil {
			break
		}
		a.RemoveTask(heaviest, victim.Name)
		a[lightest] = append(a[lightest], succ)

		for i, gt := range kept {
			if gt.Task.Name == victim.Name {
				kept[i] = domain.GroupTask{Instance: lightest, Task: succ}
			}
		}
	}
	return kept
}

func pickMovable(a domain.Assignment, instance, groupPrefix string) *domain.Task {
	var candidate *domain.Task
	for _, t := range a[instance] {
		if t.GroupPrefix == groupPrefix {
			if candidate == nil || t.Name < candidate.Name {
				candidate = t
			}
		}
	}
	return candidate
}

func leastLoaded(a domain.Assignment, groupPrefix string, instances []string) string {
	best := ""
	bestLoad := -1
	for _, inst := range instances {
		load := groupLoad(a, groupPrefix, inst)
		if bestLoad == -1 || load < bestLoad || (load == bestLoad && inst < best) {
			best = inst
			bestLoad = load
		}
	}
	return best
}

func extremeInstances(a domain.Assignment, groupPrefix string, instances []string) (heaviest, lightest string) {
	maxLoad, minLoad := -1, -1
	for _, inst := range instances {
		load := groupLoad(a, groupPrefix, inst)
		if maxLoad == -1 || load > maxLoad || (load == maxLoad && inst < heaviest) {
			maxLoad = load
			heaviest = inst
		}
		if minLoad == -1 || load < minLoad || (load == minLoad && inst < lightest) {
			minLoad = load
			lightest = inst
		}
	}
	return heaviest, lightest
}

func groupLoad(a domain.Assignment, groupPrefix, instance string) int {
	count := 0
	for _, t := range a[instance] {
		if t.GroupPrefix == groupPrefix {
			count++
		}
	}
	return count
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
