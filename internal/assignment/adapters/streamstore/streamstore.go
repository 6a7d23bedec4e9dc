// Package streamstore implements ports.StreamRegistry against etcd:
// datastream definitions live as JSON-encoded nodes under
// /{cluster}/datastream/{name}, grouped into domain.DatastreamGroup by the
// "taskPrefix" metadata key (defaulting to the datastream's own name when
// unset, so an ungrouped stream gets a group of its own).
package streamstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
	"github.com/brooklin-io/taskassign/pkg/logger"
)

const taskPrefixMetadataKey = "taskPrefix"

type Store struct {
	client *clientv3.Client
	log    logger.Logger
}

func New(client *clientv3.Client, log logger.Logger) *Store {
	return &Store{client: client, log: log}
}

func datastreamPrefix(cluster string) string { return fmt.Sprintf("/%s/datastream/", cluster) }

// Groups returns every live datastream grouped by task prefix, sorted by
// prefix for deterministic iteration downstream.
func (s *Store) Groups(ctx context.Context, cluster string) ([]*domain.DatastreamGroup, error) {
	resp, err := s.client.Get(ctx, datastreamPrefix(cluster), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("list datastreams: %w", err)
	}

	var streams []*domain.Datastream
	for _, kv := range resp.Kvs {
		var ds domain.Datastream
		if err := json.Unmarshal(kv.Value, &ds); err != nil {
			s.log.Warn("skipping malformed datastream record", "key", string(kv.Key), "error", err)
			continue
		}
		streams = append(streams, &ds)
	}

	return groupByTaskPrefix(streams)
}

// groupByTaskPrefix folds a flat list of datastreams into groups keyed by
// the "taskPrefix" metadata value (defaulting to the stream's own name),
// skipping streams in StatusDeleting. Sorted by prefix for deterministic
// iteration downstream.
func groupByTaskPrefix(streams []*domain.Datastream) ([]*domain.DatastreamGroup, error) {
	byPrefix := make(map[string][]*domain.Datastream)
	numTasks := make(map[string]int)
	sharded := make(map[string]bool)

	for _, ds := range streams {
		if ds.Status == domain.StatusDeleting {
			continue
		}
		prefix := ds.Metadata[taskPrefixMetadataKey]
		if prefix == "" {
			prefix = ds.Name
		}
		byPrefix[prefix] = append(byPrefix[prefix], ds)
		if n := ds.Metadata["numTasks"]; n != "" {
			var parsed int
			if _, err := fmt.Sscanf(n, "%d", &parsed); err == nil {
				numTasks[prefix] = parsed
			}
		}
		if ds.Metadata["sharded"] == "true" {
			sharded[prefix] = true
		}
	}

	prefixes := make([]string, 0, len(byPrefix))
	for prefix := range byPrefix {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	groups := make([]*domain.DatastreamGroup, 0, len(prefixes))
	for _, prefix := range prefixes {
		group, err := domain.NewDatastreamGroup(prefix, byPrefix[prefix])
		if err != nil {
			return nil, err
		}
		group.NumTasks = numTasks[prefix]
		group.Sharded = sharded[prefix]
		groups = append(groups, group)
	}
	return groups, nil
}
