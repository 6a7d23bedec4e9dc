package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brooklin-io/taskassign/pkg/database"
	"github.com/brooklin-io/taskassign/pkg/logger"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	return &database.DB{DB: gormDB}
}

func TestRepository_CreateThenListByGroup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, logger.NewNop())
	require.NoError(t, repo.Migrate())

	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &RebalanceRecord{
		Cluster: "cluster1", Group: "orders", Kind: "rebalance", TaskCount: 3, Outcome: "success",
	}))
	require.NoError(t, repo.Create(ctx, &RebalanceRecord{
		Cluster: "cluster1", Group: "orders", Kind: "move", IgnoredCount: 1, Outcome: "failure", Error: "boom",
	}))
	require.NoError(t, repo.Create(ctx, &RebalanceRecord{
		Cluster: "cluster1", Group: "other", Kind: "rebalance", Outcome: "success",
	}))

	records, err := repo.ListByGroup(ctx, "cluster1", "orders", 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "orders", r.Group)
		assert.NotEmpty(t, r.ID)
	}
}

func TestObserver_GroupRebalanced_PersistsOutcome(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, logger.NewNop())
	require.NoError(t, repo.Migrate())
	obs := NewObserver(repo, logger.NewNop())

	obs.GroupRebalanced("cluster1", "orders", 5, 10*time.Millisecond, nil)
	obs.GroupMoved("cluster1", "orders", 2, time.Millisecond, errors.New("timeout"))

	records, err := repo.ListByGroup(context.Background(), "cluster1", "orders", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byKind := map[string]RebalanceRecord{}
	for _, r := range records {
		byKind[r.Kind] = r
	}
	assert.Equal(t, "success", byKind["rebalance"].Outcome)
	assert.Equal(t, 5, byKind["rebalance"].TaskCount)
	assert.Equal(t, "failure", byKind["move"].Outcome)
	assert.Equal(t, "timeout", byKind["move"].Error)
}
