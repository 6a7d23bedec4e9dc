// Package searchindex writes one searchable document per rebalance/move
// cycle to Elasticsearch, following the same observer-adapter shape as
// adapters/metrics and adapters/events. Where adapters/audit gives
// operators a structured table to query by cluster/group, this gives them
// full-text search over error messages across every cluster.
package searchindex

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/brooklin-io/taskassign/pkg/logger"
)

// Indexer implements orchestrator.Observer.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{client: client, index: index, log: log}
}

type cycleDocument struct {
	Cluster      string    `json:"cluster"`
	Group        string    `json:"group"`
	Kind         string    `json:"kind"`
	TaskCount    int       `json:"task_count,omitempty"`
	IgnoredCount int       `json:"ignored_count,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	Outcome      string    `json:"outcome"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func (ix *Indexer) GroupRebalanced(cluster, group string, taskCount int, duration time.Duration, err error) {
	ix.record(cluster, group, "rebalance", cycleDocument{TaskCount: taskCount}, duration, err)
}

func (ix *Indexer) GroupMoved(cluster, group string, ignoredCount int, duration time.Duration, err error) {
	ix.record(cluster, group, "move", cycleDocument{IgnoredCount: ignoredCount}, duration, err)
}

func (ix *Indexer) record(cluster, group, kind string, doc cycleDocument, duration time.Duration, cycleErr error) {
	doc.Cluster = cluster
	doc.Group = group
	doc.Kind = kind
	doc.DurationMs = duration.Milliseconds()
	doc.Outcome = "success"
	if cycleErr != nil {
		doc.Outcome = "failure"
		doc.Error = cycleErr.Error()
	}
	doc.Timestamp = time.Now().UTC()

	body, err := json.Marshal(doc)
	if err != nil {
		ix.log.Warn("searchindex: failed to marshal document", "cluster", cluster, "group", group, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req := esapi.IndexRequest{
		Index: ix.index,
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		ix.log.Warn("searchindex: failed to index document", "cluster", cluster, "group", group, "error", err)
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		ix.log.Warn("searchindex: index request rejected", "cluster", cluster, "group", group, "status", res.Status())
	}
}
