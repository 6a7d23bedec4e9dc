package searchindex

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brooklin-io/taskassign/pkg/logger"
)

func newTestIndexer(t *testing.T, handler http.HandlerFunc) (*Indexer, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewIndexer(client, "rebalance-cycles", logger.NewNop()), srv.Close
}

func TestIndexer_GroupRebalanced_SendsDocument(t *testing.T) {
	var received cycleDocument
	var calls int32
	idx, closeSrv := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})
	defer closeSrv()

	idx.GroupRebalanced("cluster1", "orders", 4, 5*time.Millisecond, nil)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "cluster1", received.Cluster)
	assert.Equal(t, "orders", received.Group)
	assert.Equal(t, "rebalance", received.Kind)
	assert.Equal(t, 4, received.TaskCount)
	assert.Equal(t, "success", received.Outcome)
}

func TestIndexer_GroupMoved_RecordsFailureOutcome(t *testing.T) {
	var received cycleDocument
	idx, closeSrv := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})
	defer closeSrv()

	idx.GroupMoved("cluster1", "orders", 2, time.Millisecond, errors.New("target offline"))

	assert.Equal(t, "move", received.Kind)
	assert.Equal(t, 2, received.IgnoredCount)
	assert.Equal(t, "failure", received.Outcome)
	assert.Equal(t, "target offline", received.Error)
}

func TestIndexer_GroupRebalanced_LogsOnServerError(t *testing.T) {
	idx, closeSrv := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})
	defer closeSrv()

	// Must not panic even though the server rejects the write.
	idx.GroupRebalanced("cluster1", "orders", 1, time.Millisecond, nil)
}
