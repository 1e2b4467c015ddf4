package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/database/audit"
	"github.com/mrlokans/courseimport/internal/entities"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	archive *Auditor
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewService creates a new audit service. archive may be nil, in which case full import
// summaries are not written to disk.
func NewService(repo *audit.Repository, archive *Auditor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, archive: archive, logger: logger.Named("audit")}
}

// Log records a generic audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(context.Background(), event); err != nil {
			s.logger.Error("Failed to log audit event",
				zap.String("import_id", event.ImportID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until pending async events are written
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogImport records the outcome of an import run. summary is stored as JSON metadata.
func (s *Service) LogImport(eventType entities.AuditEventType, importID, courseID, folderID string, summary any, err error) {
	event := &entities.AuditEvent{
		ImportID:    importID,
		CourseID:    courseID,
		FolderID:    folderID,
		EventType:   eventType,
		Description: describe(eventType, courseID, err),
		Status:      entities.AuditStatusSuccess,
	}

	metadata := map[string]any{}
	if summary != nil {
		metadata["summary"] = summary
	}
	if s.archive != nil && summary != nil {
		filename, archiveErr := s.archive.SaveReport(importID, summary)
		if archiveErr != nil {
			s.logger.Warn("Failed to archive import report", zap.String("import_id", importID), zap.Error(archiveErr))
		} else {
			metadata["report_file"] = filename
		}
	}
	if len(metadata) > 0 {
		if mdBytes, e := json.Marshal(metadata); e == nil {
			event.Metadata = string(mdBytes)
		}
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events of a course.
func (s *Service) GetEvents(ctx context.Context, courseID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, courseID, limit, offset)
}

// GetEventsByType retrieves audit events filtered by type.
func (s *Service) GetEventsByType(ctx context.Context, eventType entities.AuditEventType, courseID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEventsByType(ctx, eventType, courseID, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func describe(eventType entities.AuditEventType, courseID string, err error) string {
	kind := "Import"
	if eventType == entities.AuditEventScheduledImport {
		kind = "Scheduled import"
	}
	if err != nil {
		return fmt.Sprintf("%s into course %s failed", kind, courseID)
	}
	return fmt.Sprintf("%s into course %s completed", kind, courseID)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
