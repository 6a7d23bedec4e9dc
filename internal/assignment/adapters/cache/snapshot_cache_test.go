package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
	"github.com/brooklin-io/taskassign/pkg/cache"
	"github.com/brooklin-io/taskassign/pkg/logger"
)

type fakeProvider struct {
	calls     int
	snapshot  domain.PartitionSnapshot
	returnErr error
}

func (f *fakeProvider) Snapshot(_ context.Context, _ *domain.DatastreamGroup) (domain.PartitionSnapshot, error) {
	f.calls++
	if f.returnErr != nil {
		return nil, f.returnErr
	}
	return f.snapshot, nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestSnapshotProvider_CachesAfterFirstCall(t *testing.T) {
	client := newTestRedis(t)
	redisCache := cache.NewRedisCache(client, nil)
	underlying := &fakeProvider{snapshot: domain.NewPartitionSnapshot([]string{"p-0", "p-1"})}

	provider := NewSnapshotProvider(underlying, redisCache, time.Minute, logger.NewNop())
	group := &domain.DatastreamGroup{TaskPrefix: "orders"}

	snap1, err := provider.Snapshot(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, 2, snap1.Len())
	assert.Equal(t, 1, underlying.calls)

	snap2, err := provider.Snapshot(context.Background(), group)
	require.NoError(t, err)
	assert.Equal(t, 2, snap2.Len())
	assert.Equal(t, 1, underlying.calls, "second call should be served from cache")
}

func TestSnapshotProvider_FallsThroughOnUnderlyingError(t *testing.T) {
	client := newTestRedis(t)
	redisCache := cache.NewRedisCache(client, nil)
	underlying := &fakeProvider{returnErr: errors.New("broker unreachable")}

	provider := NewSnapshotProvider(underlying, redisCache, time.Minute, logger.NewNop())
	group := &domain.DatastreamGroup{TaskPrefix: "orders"}

	_, err := provider.Snapshot(context.Background(), group)
	assert.Error(t, err)
}
