// Package etcdstore implements the coordination-store-backed ports against
// real etcd.
package etcdstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
	"github.com/brooklin-io/taskassign/pkg/logger"
)

// Store implements ports.CoordinationStore, ports.InstanceRoster and
// ports.ChangeNotifier against a shared etcd client: JSON-encoded values,
// leases for ephemeral lock nodes, WithPrefix gets, and a single-key watch
// on /{cluster}/dms.
type Store struct {
	client *clientv3.Client
	log    logger.Logger

	instanceLeaseTTL time.Duration
}

func New(client *clientv3.Client, instanceLeaseTTL time.Duration, log logger.Logger) *Store {
	if instanceLeaseTTL <= 0 {
		instanceLeaseTTL = 30 * time.Second
	}
	return &Store{client: client, log: log, instanceLeaseTTL: instanceLeaseTTL}
}

func instancesPrefix(cluster string) string { return fmt.Sprintf("/%s/instances/", cluster) }

func assignmentKey(cluster, instance, taskName string) string {
	return fmt.Sprintf("/%s/instances/%s/assignments/%s", cluster, instance, taskName)
}

func lockKey(cluster, instance, taskName string) string {
	return fmt.Sprintf("/%s/instances/%s/locks/%s", cluster, instance, taskName)
}

func liveInstancesPrefix(cluster string) string { return fmt.Sprintf("/%s/liveinstances/", cluster) }

func dmsTickKey(cluster string) string { return fmt.Sprintf("/%s/dms", cluster) }

// ReadAssignment lists every assignments/* node under the cluster's
// instances and returns the tasks belonging to groupPrefix, keyed by their
// owning instance.
func (s *Store) ReadAssignment(ctx context.Context, cluster, groupPrefix string) (domain.Assignment, error) {
	resp, err := s.client.Get(ctx, instancesPrefix(cluster), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("read assignment: %w", err)
	}

	out := make(domain.Assignment)
	for _, kv := range resp.Kvs {
		instance, ok := instanceFromAssignmentKey(cluster, string(kv.Key))
		if !ok {
			continue
		}
		var task domain.Task
		if err := json.Unmarshal(kv.Value, &task); err != nil {
			s.log.Warn("skipping malformed task record", "key", string(kv.Key), "error", err)
			continue
		}
		if task.GroupPrefix != groupPrefix {
			continue
		}
		out[instance] = append(out[instance], &task)
	}
	return out, nil
}

// instanceFromAssignmentKey extracts the instance name from
// /{cluster}/instances/{instance}/assignments/{taskName}.
func instanceFromAssignmentKey(cluster, key string) (string, bool) {
	prefix := instancesPrefix(cluster)
	rest := strings.TrimPrefix(key, prefix)
	if rest == key {
		return "", false
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 || parts[1] != "assignments" {
		return "", false
	}
	return parts[0], true
}

// WriteAssignment commits next as a single etcd transaction: every task in
// next is put (idempotent on task name), and every task that belonged to
// groupPrefix before but no longer appears in next is deleted.
func (s *Store) WriteAssignment(ctx context.Context, cluster, groupPrefix string, next domain.Assignment) error {
	current, err := s.ReadAssignment(ctx, cluster, groupPrefix)
	if err != nil {
		return err
	}

	keep := make(map[string]struct{})
	var ops []clientv3.Op
	for _, instance := range next.Instances() {
		for _, t := range next[instance] {
			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("marshal task %s: %w", t.Name, err)
			}
			ops = append(ops, clientv3.OpPut(assignmentKey(cluster, instance, t.Name), string(data)))
			keep[t.Name] = struct{}{}
		}
	}
	for _, instance := range current.Instances() {
		for _, t := range current[instance] {
			if _, ok := keep[t.Name]; !ok {
				ops = append(ops, clientv3.OpDelete(assignmentKey(cluster, instance, t.Name)))
			}
		}
	}

	if len(ops) == 0 {
		return nil
	}
	if _, err := s.client.Txn(ctx).Then(ops...).Commit(); err != nil {
		return fmt.Errorf("write assignment: %w", err)
	}
	return nil
}

// RemoveTasks deletes the named tombstoned tasks from their instances.
func (s *Store) RemoveTasks(ctx context.Context, cluster string, perInstance map[string][]string) error {
	var ops []clientv3.Op
	for instance, names := range perInstance {
		for _, name := range names {
			ops = append(ops, clientv3.OpDelete(assignmentKey(cluster, instance, name)))
		}
	}
	if len(ops) == 0 {
		return nil
	}
	if _, err := s.client.Txn(ctx).Then(ops...).Commit(); err != nil {
		return fmt.Errorf("remove tasks: %w", err)
	}
	return nil
}

// LockTask grants a lease-backed ephemeral lock node for taskName on owner.
// The lock expires with the lease if the owning instance disappears
// without releasing it.
func (s *Store) LockTask(ctx context.Context, cluster, groupPrefix, taskName, owner string) error {
	lease, err := s.client.Grant(ctx, int64(s.instanceLeaseTTL.Seconds()))
	if err != nil {
		return fmt.Errorf("grant lock lease: %w", err)
	}
	if _, err := s.client.Put(ctx, lockKey(cluster, owner, taskName), owner, clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("lock task %s: %w", taskName, err)
	}
	return nil
}

// LiveInstances returns the instance names registered under
// /{cluster}/liveinstances/{seq}.
func (s *Store) LiveInstances(ctx context.Context, cluster string) ([]string, error) {
	resp, err := s.client.Get(ctx, liveInstancesPrefix(cluster), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("list live instances: %w", err)
	}
	seen := make(map[string]struct{}, len(resp.Kvs))
	var out []string
	for _, kv := range resp.Kvs {
		name := string(kv.Value)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

// Watch surfaces writes to /{cluster}/dms as rebalance ticks.
func (s *Store) Watch(ctx context.Context, cluster string) (<-chan time.Time, error) {
	ticks := make(chan time.Time, 1)
	watchCh := s.client.Watch(ctx, dmsTickKey(cluster))

	go func() {
		defer close(ticks)
		for resp := range watchCh {
			if resp.Err() != nil {
				s.log.Error("dms watch error", "cluster", cluster, "error", resp.Err())
				return
			}
			for range resp.Events {
				select {
				case ticks <- time.Now():
				case <-ctx.Done():
					return
				default:
					// coalesce: a tick is already pending; the consumer
					// applies the debounce interval.
				}
			}
		}
	}()

	return ticks, nil
}
