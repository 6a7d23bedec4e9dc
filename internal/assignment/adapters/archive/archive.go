// Package archive snapshots every successfully committed assignment to S3
// for cold storage, independent of the coordination store's own retention,
// following the same observer-adapter shape as adapters/metrics and
// adapters/events.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/brooklin-io/taskassign/internal/assignment/domain"
	"github.com/brooklin-io/taskassign/internal/assignment/ports"
	"github.com/brooklin-io/taskassign/pkg/logger"
)

// uploader is the narrow s3manager surface the archiver depends on, so
// tests can substitute a fake instead of talking to S3.
type uploader interface {
	UploadWithContext(ctx context.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// Archiver implements orchestrator.Observer by writing the committed
// assignment for a group to S3 after every successful rebalance or move
// cycle. A failed cycle has nothing new to archive and is skipped.
type Archiver struct {
	store  ports.CoordinationStore
	upload uploader
	bucket string
	prefix string
	log    logger.Logger
}

// NewArchiver builds an Archiver uploading through an s3manager.Uploader
// backed by sess, writing objects under bucket/prefix.
func NewArchiver(sess *session.Session, store ports.CoordinationStore, bucket, prefix string, log logger.Logger) *Archiver {
	return newArchiver(s3manager.NewUploader(sess), store, bucket, prefix, log)
}

func newArchiver(upload uploader, store ports.CoordinationStore, bucket, prefix string, log logger.Logger) *Archiver {
	return &Archiver{store: store, upload: upload, bucket: bucket, prefix: prefix, log: log}
}

func (a *Archiver) GroupRebalanced(cluster, group string, _ int, _ time.Duration, err error) {
	a.archive(cluster, group, "rebalance", err)
}

func (a *Archiver) GroupMoved(cluster, group string, _ int, _ time.Duration, err error) {
	a.archive(cluster, group, "move", err)
}

type assignmentSnapshot struct {
	Cluster    string            `json:"cluster"`
	Group      string            `json:"group"`
	Kind       string            `json:"kind"`
	Assignment domain.Assignment `json:"assignment"`
	ArchivedAt time.Time         `json:"archived_at"`
}

func (a *Archiver) archive(cluster, group, kind string, cycleErr error) {
	if cycleErr != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	assignment, err := a.store.ReadAssignment(ctx, cluster, group)
	if err != nil {
		a.log.Warn("archive: failed to read committed assignment", "cluster", cluster, "group", group, "error", err)
		return
	}

	body, err := json.Marshal(assignmentSnapshot{
		Cluster:    cluster,
		Group:      group,
		Kind:       kind,
		Assignment: assignment,
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		a.log.Warn("archive: failed to marshal snapshot", "cluster", cluster, "group", group, "error", err)
		return
	}

	key := fmt.Sprintf("%s/%s/%s/%d.json", a.prefix, cluster, group, time.Now().UnixNano())
	if _, err := a.upload.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}); err != nil {
		a.log.Warn("archive: failed to upload snapshot", "cluster", cluster, "group", group, "key", key, "error", err)
	}
}
