package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/database/imports"
	"github.com/mrlokans/courseimport/internal/entities"
	"github.com/mrlokans/courseimport/internal/importers"
	"github.com/mrlokans/courseimport/internal/tasks"
)

// ImportRunStore tracks import runs
type ImportRunStore interface {
	Start(ctx context.Context, importID, courseID string) error
	Get(ctx context.Context, importID string) (*entities.ImportProgress, error)
	IsRunning(ctx context.Context, courseID string) (bool, error)
	ListByCourse(ctx context.Context, courseID string, limit int) ([]entities.ImportProgress, error)
}

// SyncTrigger enqueues an import of the configured default folder
type SyncTrigger interface {
	RunNow(ctx context.Context) (string, error)
}

// ImportsController starts imports and reports their progress.
type ImportsController struct {
	runs   ImportRunStore
	queue  tasks.Enqueuer
	sync   SyncTrigger
	logger *zap.Logger
}

func NewImportsController(runs ImportRunStore, queue tasks.Enqueuer, sync SyncTrigger, logger *zap.Logger) *ImportsController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportsController{runs: runs, queue: queue, sync: sync, logger: logger.Named("http")}
}

// StartImportRequest is the body of POST /api/imports
type StartImportRequest struct {
	FolderURL string `json:"folder_url" form:"folder_url"` // Folder URL or bare ID
	CourseID  string `json:"course_id" form:"course_id"`
}

// StartImportResponse identifies an enqueued import
type StartImportResponse struct {
	ImportID  string `json:"import_id"`
	TaskID    string `json:"task_id"`
	StatusURL string `json:"status_url"`
}

// ImportStatusResponse is the polled state of an import
type ImportStatusResponse struct {
	ImportID    string                `json:"import_id"`
	CourseID    string                `json:"course_id"`
	FolderID    string                `json:"folder_id,omitempty"`
	Status      entities.ImportStatus `json:"status"`
	Phase       string                `json:"phase,omitempty"`
	CurrentStep string                `json:"current_step,omitempty"`
	CurrentItem string                `json:"current_item,omitempty"`
	Percentage  int                   `json:"percentage"`
	Totals      LevelCounts           `json:"totals"`
	Processed   LevelCounts           `json:"processed"`
	Errors      []string              `json:"errors"`
	Error       string                `json:"error,omitempty"`
	Completed   bool                  `json:"completed"`
	StartedAt   time.Time             `json:"started_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
}

// LevelCounts counts modules, subjects and lessons (tests included)
type LevelCounts struct {
	Modules  int `json:"modules"`
	Subjects int `json:"subjects"`
	Lessons  int `json:"lessons"`
}

func newImportStatusResponse(run *entities.ImportProgress) ImportStatusResponse {
	errs := imports.DecodeErrors(run)
	if errs == nil {
		errs = []string{}
	}
	return ImportStatusResponse{
		ImportID:    run.ImportID,
		CourseID:    run.CourseID,
		FolderID:    run.FolderID,
		Status:      run.Status,
		Phase:       run.Phase,
		CurrentStep: run.CurrentStep,
		CurrentItem: run.CurrentItem,
		Percentage:  run.Percentage,
		Totals:      LevelCounts{Modules: run.TotalModules, Subjects: run.TotalSubjects, Lessons: run.TotalLessons},
		Processed:   LevelCounts{Modules: run.ProcessedModules, Subjects: run.ProcessedSubjects, Lessons: run.ProcessedLessons},
		Errors:      errs,
		Error:       run.Error,
		Completed:   run.Completed,
		StartedAt:   run.StartedAt,
		UpdatedAt:   run.UpdatedAt,
		CompletedAt: run.CompletedAt,
	}
}

// StartImport handles POST /api/imports
// Validates the folder, records the run and enqueues it. One import per course at a time.
func (ic *ImportsController) StartImport(c *gin.Context) {
	var req StartImportRequest
	if err := c.ShouldBind(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.CourseID == "" {
		respondBadRequest(c, "course_id is required")
		return
	}
	if _, err := importers.ExtractFolderID(req.FolderURL); err != nil {
		respondError(c, http.StatusBadRequest, err.Error(), "invalid_folder")
		return
	}
	if ic.queue == nil {
		respondError(c, http.StatusServiceUnavailable, "task queue is disabled", "queue_disabled")
		return
	}

	ctx := c.Request.Context()
	running, err := ic.runs.IsRunning(ctx, req.CourseID)
	if err != nil {
		respondInternalError(c, ic.logger, err, "check running imports")
		return
	}
	if running {
		respondError(c, http.StatusConflict, "an import is already running for this course", "import_running")
		return
	}

	importID := uuid.New().String()
	if err := ic.runs.Start(ctx, importID, req.CourseID); err != nil {
		respondInternalError(c, ic.logger, err, "record import")
		return
	}

	taskID, err := tasks.EnqueueImport(ic.queue, tasks.ImportDriveTask{
		ImportID:      importID,
		CourseID:      req.CourseID,
		FolderURLOrID: req.FolderURL,
	}, 0)
	if err != nil {
		respondInternalError(c, ic.logger, err, "enqueue import")
		return
	}

	ic.logger.Info("Import enqueued",
		zap.String("import_id", importID),
		zap.String("course_id", req.CourseID),
		zap.String("task_id", taskID),
	)
	respondAccepted(c, "import enqueued", StartImportResponse{
		ImportID:  importID,
		TaskID:    taskID,
		StatusURL: "/api/imports/" + importID,
	})
}

// GetImport handles GET /api/imports/:id
func (ic *ImportsController) GetImport(c *gin.Context) {
	run, err := ic.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondInternalError(c, ic.logger, err, "load import")
		return
	}
	if run == nil {
		respondNotFound(c, "import")
		return
	}
	c.JSON(http.StatusOK, newImportStatusResponse(run))
}

// ListImports handles GET /api/imports?course_id=...&limit=...
func (ic *ImportsController) ListImports(c *gin.Context) {
	courseID, ok := requireQuery(c, "course_id")
	if !ok {
		return
	}
	limit, _ := parsePagination(c)

	runs, err := ic.runs.ListByCourse(c.Request.Context(), courseID, limit)
	if err != nil {
		respondInternalError(c, ic.logger, err, "list imports")
		return
	}

	out := make([]ImportStatusResponse, 0, len(runs))
	for i := range runs {
		out = append(out, newImportStatusResponse(&runs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"imports": out})
}

// SyncNow handles POST /api/imports/sync
// Enqueues an import of the default folder into the default course.
func (ic *ImportsController) SyncNow(c *gin.Context) {
	if ic.sync == nil {
		respondError(c, http.StatusServiceUnavailable, "scheduled import is not configured", "sync_disabled")
		return
	}
	importID, err := ic.sync.RunNow(c.Request.Context())
	if err != nil {
		respondInternalError(c, ic.logger, err, "sync now")
		return
	}
	if importID == "" {
		respondError(c, http.StatusConflict, "an import is already running for this course", "import_running")
		return
	}
	respondAccepted(c, "import enqueued", StartImportResponse{
		ImportID:  importID,
		StatusURL: "/api/imports/" + importID,
	})
}
