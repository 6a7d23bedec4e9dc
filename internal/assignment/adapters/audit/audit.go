// Package audit persists a durable record of every rebalance and move
// cycle with gorm: a gorm model, a thin repository wrapping database.DB,
// and AutoMigrate-backed sqlite tests standing in for postgres.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/brooklin-io/taskassign/pkg/database"
	"github.com/brooklin-io/taskassign/pkg/logger"
)

// RebalanceRecord is one durable entry in the rebalance/move audit trail.
type RebalanceRecord struct {
	ID           string `gorm:"primaryKey"`
	Cluster      string `gorm:"index"`
	Group        string `gorm:"index"`
	Kind         string // "rebalance" or "move"
	TaskCount    int
	IgnoredCount int
	DurationMs   int64
	Outcome      string // "success" or "failure"
	Error        string
	CreatedAt    time.Time
}

func (RebalanceRecord) TableName() string { return "rebalance_audit_log" }

// Repository persists and queries RebalanceRecord rows.
type Repository struct {
	db  *database.DB
	log logger.Logger
}

func NewRepository(db *database.DB, log logger.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// Migrate creates or updates the audit table's schema.
func (r *Repository) Migrate() error {
	return r.db.Migrate(&RebalanceRecord{})
}

func (r *Repository) Create(ctx context.Context, record *RebalanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return r.db.Create(ctx, record)
}

// ListByGroup returns the most recent audit records for a cluster/group
// pair, newest first, bounded by limit.
func (r *Repository) ListByGroup(ctx context.Context, cluster, group string, limit int) ([]RebalanceRecord, error) {
	var records []RebalanceRecord
	query := r.db.WithContext(ctx).
		Where("cluster = ? AND \"group\" = ?", cluster, group).
		Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Observer adapts a Repository to orchestrator.Observer: every cycle, good
// or bad, becomes one audit row. A write failure is logged, not returned -
// a broken audit trail must never block a rebalance.
type Observer struct {
	repo *Repository
	log  logger.Logger
}

func NewObserver(repo *Repository, log logger.Logger) *Observer {
	return &Observer{repo: repo, log: log}
}

func (o *Observer) GroupRebalanced(cluster, group string, taskCount int, duration time.Duration, err error) {
	o.record(cluster, group, "rebalance", taskCount, 0, duration, err)
}

func (o *Observer) GroupMoved(cluster, group string, ignoredCount int, duration time.Duration, err error) {
	o.record(cluster, group, "move", 0, ignoredCount, duration, err)
}

func (o *Observer) record(cluster, group, kind string, taskCount, ignoredCount int, duration time.Duration, cycleErr error) {
	rec := &RebalanceRecord{
		Cluster:      cluster,
		Group:        group,
		Kind:         kind,
		TaskCount:    taskCount,
		IgnoredCount: ignoredCount,
		DurationMs:   duration.Milliseconds(),
		Outcome:      "success",
	}
	if cycleErr != nil {
		rec.Outcome = "failure"
		rec.Error = cycleErr.Error()
	}

	if err := o.repo.Create(context.Background(), rec); err != nil {
		o.log.Error("failed to persist rebalance audit record", "cluster", cluster, "group", group, "kind", kind, "error", err)
	}
}
