// Package orchestrator implements the leader-owned rebalance driver: it
// reads the collaborators named in ports, invokes the strategies in
// multicast/partition/cleanup, and persists the result. One group
// rebalances at a time on its own goroutine; different groups run
// concurrently, each a cooperative sequential executor.
package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brooklin-io/taskassign/internal/assignment/app/cleanup"
	"github.com/brooklin-io/taskassign/internal/assignment/app/multicast"
	"github.com/brooklin-io/taskassign/internal/assignment/app/partition"
	"github.com/brooklin-io/taskassign/internal/assignment/domain"
	"github.com/brooklin-io/taskassign/internal/assignment/ports"
	"github.com/brooklin-io/taskassign/pkg/logger"
	"github.com/brooklin-io/taskassign/pkg/resilience"
)

// Config bounds the orchestrator's behavior. The zero value is usable.
type Config struct {
	MaxTasks             int
	ImbalanceThreshold   int
	MaxPartitionsPerTask int
	SoftDeadline         time.Duration
	Retry                resilience.RetryConfig
	CircuitBreaker       resilience.CircuitBreakerConfig
}

func (c Config) withDefaults() Config {
	if c.MaxTasks <= 0 {
		c.MaxTasks = 1
	}
	if c.SoftDeadline <= 0 {
		c.SoftDeadline = 60 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = resilience.DefaultRetryConfig()
		c.Retry.MaxDelay = 5 * time.Minute
	}
	if c.CircuitBreaker.MaxRequests == 0 {
		c.CircuitBreaker = resilience.DefaultCircuitBreakerConfig("coordination-store")
	}
	return c
}

// Observer receives a notification after each rebalance or move cycle
// completes, successfully or not. Implementations must not block; the
// orchestrator calls them synchronously on the cycle's own goroutine.
type Observer interface {
	GroupRebalanced(cluster, group string, taskCount int, duration time.Duration, err error)
	GroupMoved(cluster, group string, ignoredCount int, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) GroupRebalanced(string, string, int, time.Duration, error) {}
func (noopObserver) GroupMoved(string, string, int, time.Duration, error)      {}

// MultiObserver fans a notification out to every observer in the slice, in
// order. A nil entry is skipped.
type MultiObserver []Observer

func (m MultiObserver) GroupRebalanced(cluster, group string, taskCount int, duration time.Duration, err error) {
	for _, o := range m {
		if o != nil {
			o.GroupRebalanced(cluster, group, taskCount, duration, err)
		}
	}
}

func (m MultiObserver) GroupMoved(cluster, group string, ignoredCount int, duration time.Duration, err error) {
	for _, o := range m {
		if o != nil {
			o.GroupMoved(cluster, group, ignoredCount, duration, err)
		}
	}
}

// Orchestrator wires the strategies to the coordination-store-backed ports.
type Orchestrator struct {
	cfg Config

	store     ports.CoordinationStore
	instances ports.InstanceRoster
	streams   ports.StreamRegistry
	snapshots ports.PartitionMetadataProvider
	observer  Observer

	multicastStrategy *multicast.Strategy
	partitionStrategy *partition.Strategy
	breakers          *resilience.CircuitBreakerRegistry

	log logger.Logger
}

func New(
	cfg Config,
	store ports.CoordinationStore,
	instances ports.InstanceRoster,
	streams ports.StreamRegistry,
	snapshots ports.PartitionMetadataProvider,
	log logger.Logger,
) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:               cfg,
		store:             store,
		instances:         instances,
		streams:           streams,
		snapshots:         snapshots,
		observer:          noopObserver{},
		multicastStrategy: multicast.New(multicast.Config{ImbalanceThreshold: cfg.ImbalanceThreshold}),
		partitionStrategy: partition.New(partition.Config{MaxPartitionsPerTask: cfg.MaxPartitionsPerTask}),
		breakers:          resilience.NewCircuitBreakerRegistry(cfg.CircuitBreaker),
		log:               log,
	}
}

// WithObserver attaches an Observer that is notified after every group
// rebalance and move cycle. Replaces any previously attached observer; pass
// a MultiObserver to fan out to more than one.
func (o *Orchestrator) WithObserver(observer Observer) *Orchestrator {
	if observer != nil {
		o.observer = observer
	}
	return o
}

// RebalanceCluster rebalances every group for cluster concurrently, one
// goroutine per group, and returns once all have either committed or
// failed. A single group's failure does not abort its siblings.
func (o *Orchestrator) RebalanceCluster(ctx context.Context, cluster string) error {
	groups, err := o.readWithRetry(ctx, "streams.Groups", func(ctx context.Context) (any, error) {
		return o.streams.Groups(ctx, cluster)
	})
	if err != nil {
		return err
	}
	groupList := groups.([]*domain.DatastreamGroup)

	live, err := o.readWithRetry(ctx, "instances.LiveInstances", func(ctx context.Context) (any, error) {
		return o.instances.LiveInstances(ctx, cluster)
	})
	if err != nil {
		return err
	}
	liveInstances := live.([]string)

	var g errgroup.Group
	for _, group := range groupList {
		group := group
		g.Go(func() error {
			if err := o.rebalanceGroup(ctx, cluster, group, liveInstances); err != nil {
				o.log.Error("group rebalance failed", "cluster", cluster, "group", group.TaskPrefix, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// rebalanceGroup runs one group's full pipeline: multicast -> partition
// fold -> cleanup plan -> persist. It is the cooperative sequential
// executor for that one group; suspension only happens at the named
// coordination-store calls.
func (o *Orchestrator) rebalanceGroup(ctx context.Context, cluster string, group *domain.DatastreamGroup, liveInstances []string) (err error) {
	start := time.Now()
	taskCount := 0
	defer func() {
		o.observer.GroupRebalanced(cluster, group.TaskPrefix, taskCount, time.Since(start), err)
	}()

	deadline := time.Now().Add(o.cfg.SoftDeadline)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	stored, err := o.readWithRetry(ctx, "store.ReadAssignment", func(ctx context.Context) (any, error) {
		return o.store.ReadAssignment(ctx, cluster, group.TaskPrefix)
	})
	if err != nil {
		return err
	}
	current := stored.(domain.Assignment)

	snap, err := o.readWithRetry(ctx, "snapshots.Snapshot", func(ctx context.Context) (any, error) {
		return o.snapshots.Snapshot(ctx, group)
	})
	if err != nil {
		return err
	}
	snapshot := snap.(domain.PartitionSnapshot)

	withTaskCounts, err := o.multicastStrategy.Rebalance(current, group, liveInstances, o.cfg.MaxTasks)
	if err != nil {
		return err
	}

	if limit := o.cfg.MaxPartitionsPerTask; limit > 0 {
		tasks := len(withTaskCounts.TasksForGroup(group.TaskPrefix))
		if tasks*limit < snapshot.Len() {
			return domain.NewErrCapInfeasible(group.TaskPrefix, limit, tasks, snapshot.Len())
		}
	}

	next, err := o.partitionStrategy.AssignPartitions(withTaskCounts, group, snapshot)
	if err != nil {
		return err
	}
	taskCount = len(next.TasksForGroup(group.TaskPrefix))

	if ctx.Err() != nil {
		return &domain.LeadershipLost{Cluster: cluster}
	}

	removable := cleanup.Plan(current, next)

	if err := o.writeWithRetry(ctx, "store.WriteAssignment", func(ctx context.Context) error {
		return o.store.WriteAssignment(ctx, cluster, group.TaskPrefix, next)
	}); err != nil {
		return err
	}

	if len(removable) > 0 {
		if err := o.writeWithRetry(ctx, "store.RemoveTasks", func(ctx context.Context) error {
			return o.store.RemoveTasks(ctx, cluster, removable)
		}); err != nil {
			o.log.Warn("cleanup removal failed after commit", "cluster", cluster, "group", group.TaskPrefix, "error", err)
		}
	}

	return nil
}

// MoveGroupPartitions realizes an operator-directed move for one group, as
// its own rebalance cycle. Returns the operator-named partitions that are
// absent from the group's snapshot and were therefore ignored.
func (o *Orchestrator) MoveGroupPartitions(ctx context.Context, cluster string, group *domain.DatastreamGroup, target domain.OperatorTarget) (ignored []string, err error) {
	start := time.Now()
	defer func() {
		o.observer.GroupMoved(cluster, group.TaskPrefix, len(ignored), time.Since(start), err)
	}()

	stored, err := o.readWithRetry(ctx, "store.ReadAssignment", func(ctx context.Context) (any, error) {
		return o.store.ReadAssignment(ctx, cluster, group.TaskPrefix)
	})
	if err != nil {
		return nil, err
	}
	current := stored.(domain.Assignment)

	snap, err := o.readWithRetry(ctx, "snapshots.Snapshot", func(ctx context.Context) (any, error) {
		return o.snapshots.Snapshot(ctx, group)
	})
	if err != nil {
		return nil, err
	}
	snapshot := snap.(domain.PartitionSnapshot)

	result, err := o.partitionStrategy.MovePartitions(current, group, target, snapshot)
	if err != nil {
		return nil, err
	}

	removable := cleanup.Plan(current, result.Assignment)

	if err := o.writeWithRetry(ctx, "store.WriteAssignment", func(ctx context.Context) error {
		return o.store.WriteAssignment(ctx, cluster, group.TaskPrefix, result.Assignment)
	}); err != nil {
		return nil, err
	}

	if len(removable) > 0 {
		if err := o.writeWithRetry(ctx, "store.RemoveTasks", func(ctx context.Context) error {
			return o.store.RemoveTasks(ctx, cluster, removable)
		}); err != nil {
			o.log.Warn("cleanup removal failed after move commit", "cluster", cluster, "group", group.TaskPrefix, "error", err)
		}
	}

	return result.Ignored, nil
}

// readWithRetry and writeWithRetry each run fn behind both a retry loop and
// a per-operation circuit breaker: once op's failure ratio trips its
// breaker, further attempts fail fast without reaching the coordination
// store until the breaker's cooldown elapses, instead of retrying against
// a backend that is already down.
func (o *Orchestrator) readWithRetry(ctx context.Context, op string, fn func(context.Context) (any, error)) (any, error) {
	breaker := o.breakers.Get(op)
	return resilience.RetryWithResult(ctx, o.cfg.Retry, func() (any, error) {
		v, err := breaker.ExecuteWithContext(ctx, fn)
		if err != nil {
			return nil, classify(op, err)
		}
		return v, nil
	})
}

func (o *Orchestrator) writeWithRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	breaker := o.breakers.Get(op)
	return resilience.Retry(ctx, o.cfg.Retry, func() error {
		_, err := breaker.ExecuteWithContext(ctx, func(ctx context.Context) (any, error) {
			return nil, fn(ctx)
		})
		if err != nil {
			return classify(op, err)
		}
		return nil
	})
}

// classify wraps a raw store error as StoreTransient unless it is already
// one of the typed errors this package understands. Nothing here escalates
// a StoreTransient to StoreFatal: once the retry loop exhausts its attempts
// (or the breaker rejects them), the caller of RebalanceCluster receives
// the last StoreTransient that resilience.Retry returns.
func classify(op string, err error) error {
	switch err.(type) {
	case *domain.StoreTransient, *domain.StoreFatal, *domain.LeadershipLost:
		return err
	default:
		return &domain.StoreTransient{Op: op, Err: err}
	}
}
