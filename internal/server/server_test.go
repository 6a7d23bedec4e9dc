package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brooklin-io/taskassign/internal/assignment/adapters/etcdstore"
	"github.com/brooklin-io/taskassign/internal/assignment/app/orchestrator"
	"github.com/brooklin-io/taskassign/internal/assignment/domain"
	"github.com/brooklin-io/taskassign/internal/server/auth"
	"github.com/brooklin-io/taskassign/pkg/config"
	"github.com/brooklin-io/taskassign/pkg/logger"
)

type fakeRegistry struct{ groups []*domain.DatastreamGroup }

func (f *fakeRegistry) Groups(_ context.Context, _ string) ([]*domain.DatastreamGroup, error) {
	return f.groups, nil
}

type fakeSnapshots struct{ snapshot domain.PartitionSnapshot }

func (f *fakeSnapshots) Snapshot(_ context.Context, _ *domain.DatastreamGroup) (domain.PartitionSnapshot, error) {
	return f.snapshot, nil
}

func newTestServer(t *testing.T) (*Server, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := etcdstore.NewMemoryStore()
	store.SetLiveInstances("cluster1", []string{"i1"})

	group := &domain.DatastreamGroup{
		TaskPrefix:  "ds",
		Datastreams: []*domain.Datastream{{Name: "ds-1", Status: domain.StatusReady}},
	}
	registry := &fakeRegistry{groups: []*domain.DatastreamGroup{group}}
	snapshots := &fakeSnapshots{snapshot: domain.NewPartitionSnapshot([]string{"p-0", "p-1"})}

	orch := orchestrator.New(orchestrator.Config{MaxTasks: 1}, store, store, registry, snapshots, logger.NewNop())

	enforcer, err := auth.NewEnforcer(nil, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, enforcer.AssignRole("alice", auth.RoleOperator))
	require.NoError(t, enforcer.AssignRole("bob", auth.RoleViewer))

	jwtManager, err := auth.NewManager(config.JWTConfig{SecretKey: "test-secret", ExpiryHours: 1})
	require.NoError(t, err)

	cfg := &config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 0}}
	srv := New(cfg, logger.NewNop(), orch, registry, store, enforcer, jwtManager, nil, nil)
	return srv, jwtManager
}

func TestServer_RebalanceRequiresOperatorRole(t *testing.T) {
	srv, jwtManager := newTestServer(t)
	router := srv.setupRouter()

	viewerToken, err := jwtManager.Issue("bob", []string{auth.RoleViewer})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clusters/cluster1/rebalance", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServer_RebalanceCommitsAssignment(t *testing.T) {
	srv, jwtManager := newTestServer(t)
	router := srv.setupRouter()

	opToken, err := jwtManager.Issue("alice", []string{auth.RoleOperator})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clusters/cluster1/rebalance", nil)
	req.Header.Set("Authorization", "Bearer "+opToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/clusters/cluster1/groups/ds/assignment", nil)
	req2.Header.Set("Authorization", "Bearer "+opToken)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	var body struct {
		Tasks []taskView `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &body))
	assert.Len(t, body.Tasks, 1)
	assert.Len(t, body.Tasks[0].Partitions, 2)
}

func TestServer_HostHealthReportsResourceUsage(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/host", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		MemoryPercent float64 `json:"memoryPercent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.GreaterOrEqual(t, body.MemoryPercent, 0.0)
}

func TestServer_MissingTokenRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clusters/cluster1/groups/ds/assignment", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
