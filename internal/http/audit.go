package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/entities"
)

// AuditHistory lists finished import events
type AuditHistory interface {
	GetEvents(ctx context.Context, courseID string, limit, offset int) ([]entities.AuditEvent, int64, error)
	GetEventsByType(ctx context.Context, eventType entities.AuditEventType, courseID string, limit, offset int) ([]entities.AuditEvent, int64, error)
}

type AuditController struct {
	history AuditHistory
	logger  *zap.Logger
}

func NewAuditController(history AuditHistory, logger *zap.Logger) *AuditController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditController{history: history, logger: logger.Named("http")}
}

// ListEvents handles GET /api/audit?course_id=...&type=...&limit=...&offset=...
func (ac *AuditController) ListEvents(c *gin.Context) {
	limit, offset := parsePagination(c)
	courseID := c.Query("course_id")
	eventType := c.Query("type")

	var events []entities.AuditEvent
	var total int64
	var err error

	if eventType != "" {
		events, total, err = ac.history.GetEventsByType(c.Request.Context(), entities.AuditEventType(eventType), courseID, limit, offset)
	} else {
		events, total, err = ac.history.GetEvents(c.Request.Context(), courseID, limit, offset)
	}
	if err != nil {
		respondInternalError(c, ac.logger, err, "list audit events")
		return
	}

	if events == nil {
		events = []entities.AuditEvent{}
	}
	c.JSON(http.StatusOK, newPaginatedResponse(events, total, limit, offset))
}
