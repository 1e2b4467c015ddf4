// Package imports stores the latest progress snapshot of each import run.
//
// The Repository implements progress.Reporter, so a run's tracker can write straight into
// the database and the status endpoint can poll the same row.
//
// # Interface Implementation
//
//	var _ progress.Reporter = (*Repository)(nil)
//
// # Usage
//
//	repo := imports.NewRepository(db)
//	tracker := progress.NewTracker(importID, courseID, repo, logger)
//	run, err := repo.Get(ctx, importID)
package imports

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/courseimport/internal/entities"
	"github.com/mrlokans/courseimport/internal/progress"
)

// StaleAfter is how long a running import may go without a snapshot before it is considered dead
const StaleAfter = 10 * time.Minute

var _ progress.Reporter = (*Repository)(nil)

// Repository handles import progress database operations.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new import progress repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Report upserts the row of snap.ImportID with the snapshot contents.
func (r *Repository) Report(ctx context.Context, snap progress.Snapshot) error {
	row, err := toRow(snap, r.now())
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "import_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"course_id", "folder_id", "status", "phase", "current_step", "current_item",
			"total_modules", "processed_modules", "total_subjects", "processed_subjects",
			"total_lessons", "processed_lessons", "percentage", "errors", "error",
			"completed", "updated_at", "completed_at",
		}),
	}).Create(row).Error
}

// Start records a queued run before any worker picks it up
func (r *Repository) Start(ctx context.Context, importID, courseID string) error {
	return r.Report(ctx, progress.Snapshot{ImportID: importID, CourseID: courseID})
}

// Get returns the progress of an import, nil when unknown
func (r *Repository) Get(ctx context.Context, importID string) (*entities.ImportProgress, error) {
	var row entities.ImportProgress
	err := r.db.WithContext(ctx).Where("import_id = ?", importID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByCourse returns the most recent runs of a course, newest first
func (r *Repository) ListByCourse(ctx context.Context, courseID string, limit int) ([]entities.ImportProgress, error) {
	var rows []entities.ImportProgress
	q := r.db.WithContext(ctx).Where("course_id = ?", courseID).Order("started_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// IsRunning reports whether the course has an import in progress.
// A run is considered stale if not updated in StaleAfter; stale runs are marked failed.
func (r *Repository) IsRunning(ctx context.Context, courseID string) (bool, error) {
	var row entities.ImportProgress
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND status = ?", courseID, entities.ImportStatusRunning).
		Order("updated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := r.now()
	if row.UpdatedAt.Before(now.Add(-StaleAfter)) {
		err := r.db.WithContext(ctx).Model(&entities.ImportProgress{}).
			Where("id = ?", row.ID).
			Updates(map[string]any{
				"status":       entities.ImportStatusFailed,
				"error":        "import was interrupted",
				"completed":    true,
				"updated_at":   now,
				"completed_at": now,
			}).Error
		return false, err
	}

	return true, nil
}

// DeleteOlderThan removes finished runs completed before cutoff
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("completed = ? AND completed_at < ?", true, cutoff).
		Delete(&entities.ImportProgress{})
	return result.RowsAffected, result.Error
}

func toRow(snap progress.Snapshot, now time.Time) (*entities.ImportProgress, error) {
	errs := ""
	if len(snap.Errors) > 0 {
		data, err := json.Marshal(snap.Errors)
		if err != nil {
			return nil, err
		}
		errs = string(data)
	}

	status := entities.ImportStatusRunning
	var completedAt *time.Time
	if snap.Completed {
		status = entities.ImportStatusCompleted
		if snap.Phase == progress.PhaseFailed {
			status = entities.ImportStatusFailed
		}
		completedAt = &now
	}

	return &entities.ImportProgress{
		ImportID:          snap.ImportID,
		CourseID:          snap.CourseID,
		FolderID:          snap.FolderID,
		Status:            status,
		Phase:             string(snap.Phase),
		CurrentStep:       snap.CurrentStep,
		CurrentItem:       snap.CurrentItem,
		TotalModules:      snap.Totals.Modules,
		ProcessedModules:  snap.Processed.Modules,
		TotalSubjects:     snap.Totals.Subjects,
		ProcessedSubjects: snap.Processed.Subjects,
		TotalLessons:      snap.Totals.Lessons,
		ProcessedLessons:  snap.Processed.Lessons,
		Percentage:        snap.Percentage,
		Errors:            errs,
		Error:             snap.Error,
		Completed:         snap.Completed,
		StartedAt:         now,
		UpdatedAt:         now,
		CompletedAt:       completedAt,
	}, nil
}

// DecodeErrors returns the per-item error messages stored on a row
func DecodeErrors(row *entities.ImportProgress) []string {
	if row == nil || row.Errors == "" {
		return nil
	}
	var errs []string
	if err := json.Unmarshal([]byte(row.Errors), &errs); err != nil {
		return []string{row.Errors}
	}
	return errs
}
