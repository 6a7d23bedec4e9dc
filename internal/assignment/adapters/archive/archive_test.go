package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
	"github.com/brooklin-io/taskassign/pkg/logger"
)

type fakeUploader struct {
	calls int
	last  *s3manager.UploadInput
	err   error
}

func (f *fakeUploader) UploadWithContext(_ context.Context, input *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	f.calls++
	f.last = input
	if f.err != nil {
		return nil, f.err
	}
	return &s3manager.UploadOutput{}, nil
}

type fakeStore struct {
	assignment domain.Assignment
	err        error
}

func (f *fakeStore) ReadAssignment(context.Context, string, string) (domain.Assignment, error) {
	return f.assignment, f.err
}
func (f *fakeStore) WriteAssignment(context.Context, string, string, domain.Assignment) error {
	return nil
}
func (f *fakeStore) RemoveTasks(context.Context, string, map[string][]string) error { return nil }
func (f *fakeStore) LockTask(context.Context, string, string, string, string) error { return nil }

func TestArchiver_GroupRebalanced_UploadsSnapshotOnSuccess(t *testing.T) {
	assignment := domain.Assignment{"instance-1": {{Name: "orders-0", GroupPrefix: "orders"}}}
	store := &fakeStore{assignment: assignment}
	up := &fakeUploader{}
	a := newArchiver(up, store, "bucket", "snapshots", logger.NewNop())

	a.GroupRebalanced("cluster1", "orders", 1, time.Millisecond, nil)

	require.Equal(t, 1, up.calls)
	assert.Contains(t, *up.last.Key, "snapshots/cluster1/orders/")

	body, err := io.ReadAll(up.last.Body)
	require.NoError(t, err)
	var snap assignmentSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, "cluster1", snap.Cluster)
	assert.Equal(t, "rebalance", snap.Kind)
}

func TestArchiver_GroupMoved_SkipsUploadOnFailure(t *testing.T) {
	store := &fakeStore{}
	up := &fakeUploader{}
	a := newArchiver(up, store, "bucket", "snapshots", logger.NewNop())

	a.GroupMoved("cluster1", "orders", 0, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 0, up.calls)
}

func TestArchiver_GroupRebalanced_SkipsUploadWhenReadFails(t *testing.T) {
	store := &fakeStore{err: errors.New("unavailable")}
	up := &fakeUploader{}
	a := newArchiver(up, store, "bucket", "snapshots", logger.NewNop())

	a.GroupRebalanced("cluster1", "orders", 1, time.Millisecond, nil)

	assert.Equal(t, 0, up.calls)
}
