// Package cache wraps a ports.PartitionMetadataProvider with a read-through
// cache backed by pkg/cache.Cache (cache-aside pattern, cache.RedisCache
// implementation): partition snapshots change far less often than they're
// read, so a short TTL spares the transport a dial on every rebalance tick.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
	"github.com/brooklin-io/taskassign/internal/assignment/ports"
	"github.com/brooklin-io/taskassign/pkg/cache"
	"github.com/brooklin-io/taskassign/pkg/logger"
	"github.com/brooklin-io/taskassign/pkg/metrics"
)

const cacheName = "partition-snapshot"

// SnapshotProvider decorates another PartitionMetadataProvider with a
// cache.Cache read-through layer, keyed by group task prefix only; the
// cluster name is not part of the key.
type SnapshotProvider struct {
	next  ports.PartitionMetadataProvider
	cache cache.Cache
	ttl   time.Duration
	log   logger.Logger
}

func NewSnapshotProvider(next ports.PartitionMetadataProvider, c cache.Cache, ttl time.Duration, log logger.Logger) *SnapshotProvider {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SnapshotProvider{next: next, cache: c, ttl: ttl, log: log}
}

func snapshotKey(group *domain.DatastreamGroup) string {
	return fmt.Sprintf("partition-snapshot:%s", group.TaskPrefix)
}

// Snapshot implements ports.PartitionMetadataProvider. A cache read or
// write failure is logged and falls through to next rather than failing
// the rebalance cycle - the cache is an optimization, not a source of
// truth.
func (p *SnapshotProvider) Snapshot(ctx context.Context, group *domain.DatastreamGroup) (domain.PartitionSnapshot, error) {
	key := snapshotKey(group)

	var ids []string
	if err := p.cache.Get(ctx, key, &ids); err == nil {
		metrics.RecordCacheHit(cacheName)
		return domain.NewPartitionSnapshot(ids), nil
	} else if err != cache.ErrCacheMiss {
		p.log.Warn("partition snapshot cache read failed", "group", group.TaskPrefix, "error", err)
	}
	metrics.RecordCacheMiss(cacheName)

	snapshot, err := p.next.Snapshot(ctx, group)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, key, snapshot.Sorted(), p.ttl); err != nil {
		p.log.Warn("partition snapshot cache write failed", "group", group.TaskPrefix, "error", err)
	}

	return snapshot, nil
}
