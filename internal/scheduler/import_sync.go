// Package scheduler re-imports the default Drive folder and purges old history on cron schedules.
// Jobs only enqueue tasks; the task queue does the work.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/config"
	"github.com/mrlokans/courseimport/internal/tasks"
)

// RunTracker knows which imports are in progress
type RunTracker interface {
	IsRunning(ctx context.Context, courseID string) (bool, error)
	Start(ctx context.Context, importID, courseID string) error
}

// Settings selects what the scheduler runs
type Settings struct {
	Enabled         bool
	Schedule        string
	FolderURLOrID   string
	CourseID        string
	CleanupSchedule string // Empty disables the cleanup job
	RetentionDays   int
}

// SettingsFrom builds the scheduler settings from the application config
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		Enabled:         cfg.ImportSync.Enabled,
		Schedule:        cfg.ImportSync.Schedule,
		FolderURLOrID:   cfg.Drive.DefaultFolder,
		CourseID:        cfg.Drive.DefaultCourseID,
		CleanupSchedule: cfg.Audit.CleanupSchedule,
		RetentionDays:   int(cfg.Audit.Retention / (24 * time.Hour)),
	}
}

// ImportSyncScheduler manages periodic imports of the default folder
type ImportSyncScheduler struct {
	settings Settings
	queue    tasks.Enqueuer
	runs     RunTracker
	logger   *zap.Logger

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	lastID    string
}

// NewImportSyncScheduler creates a new scheduler instance
func NewImportSyncScheduler(settings Settings, queue tasks.Enqueuer, runs RunTracker, logger *zap.Logger) *ImportSyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportSyncScheduler{
		settings: settings,
		queue:    queue,
		runs:     runs,
		logger:   logger.Named("scheduler"),
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// Start begins the scheduler. Nothing is scheduled when both jobs are disabled.
func (s *ImportSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	scheduled := false
	if s.settings.Enabled {
		if s.settings.FolderURLOrID == "" || s.settings.CourseID == "" {
			s.logger.Warn("Import sync: default folder or course not configured, skipping")
		} else {
			if err := ValidateCronSchedule(s.settings.Schedule); err != nil {
				return fmt.Errorf("invalid cron schedule '%s': %w", s.settings.Schedule, err)
			}
			entryID, err := s.cron.AddFunc(s.settings.Schedule, func() {
				_, _ = s.enqueueImport(context.Background())
			})
			if err != nil {
				return fmt.Errorf("failed to schedule import job: %w", err)
			}
			s.entryID = entryID
			scheduled = true

			next, _ := NextRunTime(s.settings.Schedule, time.Now())
			s.logger.Info("Import sync: scheduled",
				zap.String("schedule", s.settings.Schedule),
				zap.String("description", CronDescription(s.settings.Schedule)),
				zap.Time("next_run", next),
			)
		}
	} else {
		s.logger.Info("Import sync: disabled")
	}

	if s.settings.CleanupSchedule != "" {
		if err := ValidateCronSchedule(s.settings.CleanupSchedule); err != nil {
			return fmt.Errorf("invalid cleanup schedule '%s': %w", s.settings.CleanupSchedule, err)
		}
		if _, err := s.cron.AddFunc(s.settings.CleanupSchedule, s.enqueueCleanup); err != nil {
			return fmt.Errorf("failed to schedule cleanup job: %w", err)
		}
		scheduled = true
	}

	if !scheduled {
		return nil
	}

	s.cron.Start()
	s.isRunning = true

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler
func (s *ImportSyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	// Stop accepting new jobs and wait for running ones
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.logger.Info("Import sync: stopped")
}

// RunNow enqueues an import of the default folder immediately and returns its import ID
func (s *ImportSyncScheduler) RunNow(ctx context.Context) (string, error) {
	if s.settings.FolderURLOrID == "" || s.settings.CourseID == "" {
		return "", fmt.Errorf("default folder or course not configured")
	}
	return s.enqueueImport(ctx)
}

// IsRunning returns whether the scheduler is active
func (s *ImportSyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next import will be enqueued, nil when not scheduled
func (s *ImportSyncScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || s.entryID == 0 {
		return nil
	}
	entry := s.cron.Entry(s.entryID)
	if !entry.Valid() {
		return nil
	}
	next := entry.Next
	return &next
}

// LastImportID returns the import ID of the last enqueued run
func (s *ImportSyncScheduler) LastImportID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastID
}

// enqueueImport queues a scheduled import unless one is already in progress for the course
func (s *ImportSyncScheduler) enqueueImport(ctx context.Context) (string, error) {
	log := s.logger.With(zap.String("course_id", s.settings.CourseID))

	if s.runs != nil {
		running, err := s.runs.IsRunning(ctx, s.settings.CourseID)
		if err != nil {
			log.Error("Import sync: failed to check running imports", zap.Error(err))
			return "", err
		}
		if running {
			log.Info("Import sync: skipped (already importing)")
			return "", nil
		}
	}

	importID := uuid.New().String()
	if s.runs != nil {
		if err := s.runs.Start(ctx, importID, s.settings.CourseID); err != nil {
			log.Error("Import sync: failed to record run", zap.Error(err))
			return "", err
		}
	}

	_, err := tasks.EnqueueImport(s.queue, tasks.ImportDriveTask{
		ImportID:      importID,
		CourseID:      s.settings.CourseID,
		FolderURLOrID: s.settings.FolderURLOrID,
		Scheduled:     true,
	}, 0)
	if err != nil {
		log.Error("Import sync: failed to enqueue", zap.Error(err))
		return "", err
	}

	s.mu.Lock()
	s.lastID = importID
	s.mu.Unlock()

	log.Info("Import sync: enqueued", zap.String("import_id", importID))
	return importID, nil
}

func (s *ImportSyncScheduler) enqueueCleanup() {
	if _, err := s.queue.Add(tasks.CleanupHistoryTask{RetentionDays: s.settings.RetentionDays}).Save(); err != nil {
		s.logger.Error("Cleanup: failed to enqueue", zap.Error(err))
	}
}
