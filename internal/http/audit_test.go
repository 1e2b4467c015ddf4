package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/courseimport/internal/entities"
)

type fakeHistory struct {
	events   []entities.AuditEvent
	err      error
	lastType entities.AuditEventType
	course   string
}

func (f *fakeHistory) GetEvents(ctx context.Context, courseID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	f.course = courseID
	return f.events, int64(len(f.events)), f.err
}

func (f *fakeHistory) GetEventsByType(ctx context.Context, eventType entities.AuditEventType, courseID string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	f.lastType = eventType
	f.course = courseID
	return f.events, int64(len(f.events)), f.err
}

func TestListAuditEvents(t *testing.T) {
	history := &fakeHistory{events: []entities.AuditEvent{
		{ImportID: "imp-1", CourseID: "course-1", EventType: entities.AuditEventImport, Status: entities.AuditStatusSuccess},
	}}
	router := NewRouter(RouterConfig{Audit: history})

	w := doJSON(router, "GET", "/api/audit?course_id=course-1&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data  []entities.AuditEvent `json:"data"`
		Total int64                 `json:"total"`
		Limit int                   `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "imp-1", resp.Data[0].ImportID)
	assert.Equal(t, int64(1), resp.Total)
	assert.Equal(t, 10, resp.Limit)
	assert.Equal(t, "course-1", history.course)

	w = doJSON(router, "GET", "/api/audit?type=scheduled_import", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entities.AuditEventScheduledImport, history.lastType)
}

func TestListAuditEvents_Empty(t *testing.T) {
	router := NewRouter(RouterConfig{Audit: &fakeHistory{}})

	w := doJSON(router, "GET", "/api/audit", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestListAuditEvents_Error(t *testing.T) {
	router := NewRouter(RouterConfig{Audit: &fakeHistory{err: errors.New("boom")}})

	w := doJSON(router, "GET", "/api/audit", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
