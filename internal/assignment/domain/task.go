package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatusCode is the health code recorded on a task.
type TaskStatusCode string

const (
	TaskOK       TaskStatusCode = "OK"
	TaskError    TaskStatusCode = "ERROR"
	TaskComplete TaskStatusCode = "COMPLETE"
	TaskPaused   TaskStatusCode = "PAUSED"
)

// TaskStatus is the (code, message, timestamp, host) tuple attached to a
// task. Non-ERROR codes require a non-empty message.
type TaskStatus struct {
	Code      TaskStatusCode
	Message   string
	Timestamp time.Time
	Host      string
}

// Validate enforces that non-ERROR codes carry a message.
func (s TaskStatus) Validate() error {
	if s.Code != TaskError && s.Message == "" {
		return fmt.Errorf("task status %s requires a non-empty message", s.Code)
	}
	return nil
}

// Equal compares two task statuses, requiring both code and message to
// match (see DESIGN.md for why this uses AND rather than OR).
func (s TaskStatus) Equal(other TaskStatus) bool {
	return s.Code == other.Code && s.Message == other.Message
}

// Task is a unit of work produced by a strategy.
type Task struct {
	Name         string
	TaskPrefix   string
	Generation   int
	GroupPrefix  string
	Partitions   []string
	Dependencies map[string]struct{}
	LockOwner    string
	Status       TaskStatus
	CreatedAt    time.Time
}

// NewDependencySet builds a dependency set from variadic task names.
func NewDependencySet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Locked reports whether the task is currently lock-held by the given
// instance, per invariant 5 (lock discipline).
func (t *Task) Locked(by string) bool {
	return t.LockOwner != "" && t.LockOwner == by
}

// DependsOn reports whether name is among the task's recorded dependencies.
func (t *Task) DependsOn(name string) bool {
	_, ok := t.Dependencies[name]
	return ok
}

// PartitionSet returns the task's partitions as a set for membership tests.
func (t *Task) PartitionSet() map[string]struct{} {
	set := make(map[string]struct{}, len(t.Partitions))
	for _, p := range t.Partitions {
		set[p] = struct{}{}
	}
	return set
}

// SamePartitions reports whether the task's current partition list is
// identical (as a set) to other, used to decide whether a successor is
// actually needed.
func (t *Task) SamePartitions(other []string) bool {
	if len(t.Partitions) != len(other) {
		return false
	}
	mine := t.PartitionSet()
	for _, p := range other {
		if _, ok := mine[p]; !ok {
			return false
		}
	}
	return true
}

// Successor builds a freshly named task that supersedes t, carrying t as a
// dependency alongside any extra dependencies supplied (e.g. source tasks of
// moved partitions). The predecessor is never mutated in place, per
// invariant 7 (single mutation).
func (t *Task) Successor(partitions []string, owner string, extraDeps ...string) (*Task, error) {
	name, generation, err := BuildTaskName(t.TaskPrefix, t.Generation+1)
	if err != nil {
		return nil, err
	}
	deps := NewDependencySet(t.Name)
	for _, d := range extraDeps {
		deps[d] = struct{}{}
	}
	out := make([]string, len(partitions))
	copy(out, partitions)
	return &Task{
		Name:         name,
		TaskPrefix:   t.TaskPrefix,
		Generation:   generation,
		GroupPrefix:  t.GroupPrefix,
		Partitions:   out,
		Dependencies: deps,
		LockOwner:    owner,
		Status:       TaskStatus{Code: TaskOK, Message: "created", Timestamp: time.Now().UTC(), Host: owner},
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// BuildTaskName mints a new task name following the
// <taskPrefix>_<generationCounter>_<randomSuffix> grammar.
func BuildTaskName(taskPrefix string, generation int) (string, int, error) {
	if taskPrefix == "" {
		return "", 0, fmt.Errorf("task prefix must not be empty")
	}
	if generation < 0 {
		return "", 0, fmt.Errorf("generation must not be negative")
	}
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", taskPrefix, generation, suffix), generation, nil
}

// ParseTaskName splits a task name on the last two underscores from the
// right, matching the grammar BuildTaskName produces.
func ParseTaskName(name string) (taskPrefix string, generation int, suffix string, err error) {
	lastUnderscore := strings.LastIndex(name, "_")
	if lastUnderscore < 0 {
		return "", 0, "", fmt.Errorf("task name %q does not match <prefix>_<generation>_<suffix>", name)
	}
	suffix = name[lastUnderscore+1:]
	rest := name[:lastUnderscore]

	secondLast := strings.LastIndex(rest, "_")
	if secondLast < 0 {
		return "", 0, "", fmt.Errorf("task name %q does not match <prefix>_<generation>_<suffix>", name)
	}
	genStr := rest[secondLast+1:]
	taskPrefix = rest[:secondLast]

	generation, convErr := strconv.Atoi(genStr)
	if convErr != nil {
		return "", 0, "", fmt.Errorf("task name %q has non-numeric generation %q: %w", name, genStr, convErr)
	}
	if taskPrefix == "" || suffix == "" {
		return "", 0, "", fmt.Errorf("task name %q has an empty prefix or suffix", name)
	}
	return taskPrefix, generation, suffix, nil
}

// FirstGeneration mints the initial task name for a prefix, generation 0.
func FirstGeneration(taskPrefix string) (string, int, error) {
	return BuildTaskName(taskPrefix, 0)
}
