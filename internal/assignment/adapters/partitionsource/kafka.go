// Package partitionsource implements ports.PartitionMetadataProvider by
// querying the transport named in a group's first datastream's source
// connection string for its authoritative partition list.
package partitionsource

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
	"github.com/brooklin-io/taskassign/pkg/logger"
)

type KafkaProvider struct {
	log logger.Logger
}

func NewKafkaProvider(log logger.Logger) *KafkaProvider {
	return &KafkaProvider{log: log}
}

// Snapshot connects to the first live broker named in the group's leading
// datastream and lists the topic's partitions by number, formatted as
// decimal strings to match domain.PartitionSnapshot's string-keyed set.
// All datastreams in a group are expected to share a source topic; picking
// the first is sufficient and matches how the multicast/partition
// strategies already treat the group as a single partitioned unit.
func (p *KafkaProvider) Snapshot(ctx context.Context, group *domain.DatastreamGroup) (domain.PartitionSnapshot, error) {
	if len(group.Datastreams) == 0 {
		return domain.NewPartitionSnapshot(nil), fmt.Errorf("group %s has no datastreams", group.TaskPrefix)
	}

	cs, err := domain.Parse(group.Datastreams[0].SourceConnectionString)
	if err != nil {
		return nil, fmt.Errorf("parse source connection string for group %s: %w", group.TaskPrefix, err)
	}
	if len(cs.Brokers) == 0 {
		return nil, fmt.Errorf("group %s: source connection string has no brokers", group.TaskPrefix)
	}

	var lastErr error
	for _, broker := range cs.Brokers {
		addr := broker.Host
		if broker.Port != 0 {
			addr = fmt.Sprintf("%s:%d", broker.Host, broker.Port)
		}

		conn, err := kafkago.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		partitions, err := conn.ReadPartitions(cs.Topic)
		conn.Close()
		if err != nil {
			lastErr = err
			continue
		}

		ids := make([]string, len(partitions))
		for i, part := range partitions {
			ids[i] = fmt.Sprintf("%d", part.ID)
		}
		return domain.NewPartitionSnapshot(ids), nil
	}

	return nil, fmt.Errorf("group %s: could not reach any broker for topic %s: %w", group.TaskPrefix, cs.Topic, lastErr)
}
