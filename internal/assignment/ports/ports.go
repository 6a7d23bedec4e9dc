// Package ports declares the collaborators the core strategies and the
// rebalance orchestrator consume but never implement themselves: the
// coordination store, the live-instance roster, the stream registry and the
// partition-metadata provider. Concrete implementations live under
// internal/assignment/adapters.
package ports

import (
	"context"
	"time"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
)

// CoordinationStore is the hierarchical, watch-capable metadata store. The
// core only consumes the operations named here - wire protocol, connection
// pooling and retries are the adapter's concern.
type CoordinationStore interface {
	// ReadAssignment returns the committed assignment for a group.
	ReadAssignment(ctx context.Context, cluster, groupPrefix string) (domain.Assignment, error)

	// WriteAssignment commits a new assignment for a group as a single
	// transaction where the store supports it, or an idempotent ordered
	// sequence otherwise.
	WriteAssignment(ctx context.Context, cluster, groupPrefix string, next domain.Assignment) error

	// RemoveTasks deletes the named tasks (dependency-gated tombstones) from
	// the instances that currently hold them.
	RemoveTasks(ctx context.Context, cluster string, perInstance map[string][]string) error

	// LockTask acquires the ephemeral lock node for a task on behalf of
	// owner. The orchestrator does not call it.
	LockTask(ctx context.Context, cluster, groupPrefix, taskName, owner string) error
}

// InstanceRoster reports the set of currently live worker instances,
// refreshed from ephemeral nodes.
type InstanceRoster interface {
	LiveInstances(ctx context.Context, cluster string) ([]string, error)
}

// StreamRegistry holds the current set of datastream definitions and their
// grouping.
type StreamRegistry interface {
	Groups(ctx context.Context, cluster string) ([]*domain.DatastreamGroup, error)
}

// PartitionMetadataProvider returns, for a group, the authoritative set of
// source partition identifiers as observed by the connector.
type PartitionMetadataProvider interface {
	Snapshot(ctx context.Context, group *domain.DatastreamGroup) (domain.PartitionSnapshot, error)
}

// ChangeNotifier surfaces the coordination store's change-notification tick
// (a timestamp write under /{cluster}/dms) as a channel of tick times, one
// per rebalance pass the cluster needs.
type ChangeNotifier interface {
	Watch(ctx context.Context, cluster string) (<-chan time.Time, error)
}
