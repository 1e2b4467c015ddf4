package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/drivewalk"
	"github.com/mrlokans/courseimport/internal/importers"
)

// importQueue is the queue configuration of ImportDriveTask; NewImportDriveQueue applies the settings
var importQueue = queueConfigFor(DefaultConfig())

// ImportDriveTask imports one Drive folder tree into a course.
// Retries reuse ImportID, so every attempt reports into the same progress row.
type ImportDriveTask struct {
	ImportID      string `json:"import_id"`
	CourseID      string `json:"course_id"`
	FolderURLOrID string `json:"folder"`
	Scheduled     bool   `json:"scheduled"`
}

// Config returns the queue configuration for import tasks.
func (t ImportDriveTask) Config() backlite.QueueConfig {
	return importQueue
}

func queueConfigFor(cfg Config) backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "import_drive",
		MaxAttempts: cfg.MaxRetries,
		Backoff:     cfg.RetryDelay,
		Timeout:     cfg.TaskTimeout,
		Retention: &backlite.Retention{
			Duration:   cfg.RetentionDuration,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Runner runs one import
type Runner interface {
	Run(ctx context.Context, req importers.Request) (*importers.Result, error)
}

// ImportDriveProcessor creates a processor function for ImportDriveTask.
// Errors that another attempt cannot fix are logged and swallowed so the task is not retried.
func ImportDriveProcessor(runner Runner, logger *zap.Logger) backlite.QueueProcessor[ImportDriveTask] {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("tasks")

	return func(ctx context.Context, task ImportDriveTask) error {
		if runner == nil {
			return fmt.Errorf("importer not configured")
		}

		log := logger.With(
			zap.String("import_id", task.ImportID),
			zap.String("course_id", task.CourseID),
		)

		result, err := runner.Run(ctx, importers.Request{
			ImportID:      task.ImportID,
			CourseID:      task.CourseID,
			FolderURLOrID: task.FolderURLOrID,
			Scheduled:     task.Scheduled,
		})
		if err != nil {
			if isPermanent(err) {
				log.Error("Import failed permanently", zap.Error(err))
				return nil
			}
			return fmt.Errorf("import %s: %w", task.ImportID, err)
		}

		log.Info("Import finished",
			zap.Int("modules", result.Write.Modules),
			zap.Int("subjects", result.Write.Subjects),
			zap.Int("lessons", result.Write.Lessons),
			zap.Int("tests", result.Write.Tests),
			zap.Int("errors", len(result.Errors)),
			zap.Duration("duration", result.Duration),
		)
		return nil
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, importers.ErrInvalidFolder) ||
		errors.Is(err, importers.ErrMissingCourse) ||
		errors.Is(err, drivewalk.ErrNoModules)
}

// NewImportDriveQueue creates a backlite queue for import tasks.
func NewImportDriveQueue(runner Runner, cfg Config, logger *zap.Logger) backlite.Queue {
	importQueue = queueConfigFor(cfg)
	return backlite.NewQueue(ImportDriveProcessor(runner, logger))
}

// Enqueuer adds tasks to the queue
type Enqueuer interface {
	Add(tasks ...backlite.Task) *backlite.TaskAddOp
}

// EnqueueImport queues an import and returns the backlite task ID.
// wait delays the first attempt.
func EnqueueImport(q Enqueuer, task ImportDriveTask, wait time.Duration) (string, error) {
	op := q.Add(task)
	if wait > 0 {
		op = op.Wait(wait)
	}
	ids, err := op.Save()
	if err != nil {
		return "", fmt.Errorf("enqueue import %s: %w", task.ImportID, err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("enqueue import %s: no task id returned", task.ImportID)
	}
	return ids[0], nil
}
