package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// AuditEventCleaner provides the ability to delete old audit events.
type AuditEventCleaner interface {
	DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error)
}

// ImportRunCleaner deletes finished import progress rows.
type ImportRunCleaner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupHistoryTask removes audit events and finished import runs older than the retention period.
type CleanupHistoryTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for history cleanup tasks.
func (t CleanupHistoryTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_history",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupHistoryProcessor creates a processor function for CleanupHistoryTask.
// runs may be nil.
func CleanupHistoryProcessor(events AuditEventCleaner, runs ImportRunCleaner, logger *zap.Logger) backlite.QueueProcessor[CleanupHistoryTask] {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("tasks")

	return func(ctx context.Context, task CleanupHistoryTask) error {
		if events == nil {
			return fmt.Errorf("audit event cleaner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = 30
		}
		retention := time.Duration(retentionDays) * 24 * time.Hour

		deleted, err := events.DeleteOldEvents(ctx, retention)
		if err != nil {
			return fmt.Errorf("cleanup audit events: %w", err)
		}

		var deletedRuns int64
		if runs != nil {
			deletedRuns, err = runs.DeleteOlderThan(ctx, time.Now().Add(-retention))
			if err != nil {
				return fmt.Errorf("cleanup import runs: %w", err)
			}
		}

		logger.Info("Cleaned up import history",
			zap.Int64("audit_events", deleted),
			zap.Int64("import_runs", deletedRuns),
			zap.Int("retention_days", retentionDays),
		)
		return nil
	}
}

// NewCleanupHistoryQueue creates a backlite queue for history cleanup tasks.
func NewCleanupHistoryQueue(events AuditEventCleaner, runs ImportRunCleaner, logger *zap.Logger) backlite.Queue {
	return backlite.NewQueue(CleanupHistoryProcessor(events, runs, logger))
}
