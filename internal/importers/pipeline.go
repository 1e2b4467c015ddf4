package importers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/course"
	"github.com/mrlokans/courseimport/internal/drivewalk"
	"github.com/mrlokans/courseimport/internal/entities"
	"github.com/mrlokans/courseimport/internal/progress"
	"github.com/mrlokans/courseimport/internal/remote"
	"github.com/mrlokans/courseimport/internal/storage"
)

// ErrAuthentication wraps a rejected provider authentication. ErrMissingCourse rejects a request without destination.
var (
	ErrAuthentication = errors.New("failed to authenticate with the remote provider")
	ErrMissingCourse  = errors.New("course id is required")
)

// Request starts one import run. An empty ImportID is generated.
type Request struct {
	ImportID      string
	CourseID      string
	FolderURLOrID string
	Scheduled     bool
}

// Result is the outcome of a finished run
type Result struct {
	ImportID string        `json:"import_id" yaml:"import_id"`
	CourseID string        `json:"course_id" yaml:"course_id"`
	FolderID string        `json:"folder_id" yaml:"folder_id"`
	Found    course.Counts `json:"found" yaml:"found"`
	Write    *WriteResult  `json:"write,omitempty" yaml:"write,omitempty"`
	Errors   []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Structure is the walked tree; kept for dry runs
	Structure *course.Structure `json:"-" yaml:"-"`
}

// StructureWalker lists a folder tree into a course structure
//
// Implementations:
//   - drivewalk.Walker (internal/drivewalk) - Google Drive folder layout
type StructureWalker interface {
	Walk(ctx context.Context, rootFolderID, courseID string, existing drivewalk.ExistingState, tracker *progress.Tracker) (*course.Structure, error)
}

// AuditLogger records finished runs
type AuditLogger interface {
	LogImport(eventType entities.AuditEventType, importID, courseID, folderID string, summary any, err error)
}

// Importer runs the whole import: authenticate, index, walk, write.
type Importer struct {
	client   storage.Client
	exec     *remote.Executor
	store    Store
	walker   StructureWalker
	writer   *Writer
	reporter progress.Reporter
	audit    AuditLogger
	logger   *zap.Logger
}

// NewImporter wires an importer. reporter and audit may be nil.
func NewImporter(client storage.Client, exec *remote.Executor, store Store, walker StructureWalker, reporter progress.Reporter, audit AuditLogger, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		client:   client,
		exec:     exec,
		store:    store,
		walker:   walker,
		writer:   NewWriter(store, logger),
		reporter: reporter,
		audit:    audit,
		logger:   logger.Named("importer"),
	}
}

// Run imports the folder tree into the course.
// Item-level problems are returned in Result.Errors; the error return is reserved for
// failures that stop the run (bad folder, rejected credentials, unreadable tree, no modules).
func (i *Importer) Run(ctx context.Context, req Request) (*Result, error) {
	return i.run(ctx, req, false)
}

// DryRun walks the tree and reports what would be written without writing it
func (i *Importer) DryRun(ctx context.Context, req Request) (*Result, error) {
	return i.run(ctx, req, true)
}

func (i *Importer) run(ctx context.Context, req Request, dryRun bool) (*Result, error) {
	started := time.Now()
	if req.ImportID == "" {
		req.ImportID = uuid.New().String()
	}

	tracker := progress.NewTracker(req.ImportID, req.CourseID, i.reporter, i.logger)
	result := &Result{ImportID: req.ImportID, CourseID: req.CourseID}
	logger := i.logger.With(zap.String("import_id", req.ImportID), zap.String("course_id", req.CourseID))

	fail := func(err error) (*Result, error) {
		tracker.Fail(ctx, err)
		result.Errors = tracker.Snapshot().Errors
		result.Duration = time.Since(started)
		logger.Error("import failed", zap.Error(err))
		if !dryRun {
			i.logAudit(req, result, err)
		}
		return result, err
	}

	if req.CourseID == "" {
		return fail(ErrMissingCourse)
	}
	folderID, err := ExtractFolderID(req.FolderURLOrID)
	if err != nil {
		return fail(err)
	}
	result.FolderID = folderID
	tracker.Update(ctx, func(s *progress.Snapshot) { s.FolderID = folderID })

	logger.Info("import started", zap.String("folder_id", folderID), zap.Bool("dry_run", dryRun))

	tracker.Phase(ctx, progress.PhaseAuthenticating, "Autenticando")
	if err := i.exec.Execute(ctx, "authenticate", i.client.Authenticate, remote.WithRetries(2)); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrAuthentication, err))
	}

	index, err := BuildIndex(ctx, i.store, req.CourseID)
	if err != nil {
		return fail(err)
	}
	modules, lessons, tests := index.Counts()
	logger.Debug("existing state loaded",
		zap.Int("modules", modules),
		zap.Int("lessons", lessons),
		zap.Int("tests", tests),
	)

	structure, err := i.walker.Walk(ctx, folderID, req.CourseID, index, tracker)
	if err != nil {
		return fail(err)
	}
	result.Structure = structure
	result.Found = structure.Counts()

	if dryRun {
		result.Errors = tracker.Snapshot().Errors
		result.Duration = time.Since(started)
		tracker.Complete(ctx, "Simulação concluída")
		return result, nil
	}

	written, err := i.writer.Write(ctx, structure, req.CourseID, tracker)
	if err != nil {
		return fail(err)
	}
	result.Write = written
	result.Errors = tracker.Snapshot().Errors
	result.Duration = time.Since(started)

	tracker.Complete(ctx, "Importação concluída")
	logger.Info("import completed",
		zap.Int("modules", written.Modules),
		zap.Int("subjects", written.Subjects),
		zap.Int("lessons", written.Lessons),
		zap.Int("tests", written.Tests),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration),
	)
	i.logAudit(req, result, nil)
	return result, nil
}

func (i *Importer) logAudit(req Request, result *Result, err error) {
	if i.audit == nil {
		return
	}
	eventType := entities.AuditEventImport
	if req.Scheduled {
		eventType = entities.AuditEventScheduledImport
	}
	i.audit.LogImport(eventType, req.ImportID, req.CourseID, result.FolderID, result, err)
}
