package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mrlokans/courseimport/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	return db
}

func TestRepository_LogEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	event := &entities.AuditEvent{
		ImportID:    "imp-1",
		CourseID:    "course-1",
		EventType:   entities.AuditEventImport,
		Description: "Import into course course-1 completed",
		Status:      entities.AuditStatusSuccess,
	}

	err := repo.LogEvent(context.Background(), event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestRepository_GetEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		event := &entities.AuditEvent{
			CourseID:  "course-1",
			EventType: entities.AuditEventImport,
			Status:    entities.AuditStatusSuccess,
			CreatedAt: time.Now().Add(time.Duration(-i) * time.Hour),
		}
		require.NoError(t, repo.LogEvent(ctx, event))
	}

	// Events of another course
	for i := 0; i < 5; i++ {
		event := &entities.AuditEvent{
			CourseID:  "course-2",
			EventType: entities.AuditEventScheduledImport,
			Status:    entities.AuditStatusFailed,
		}
		require.NoError(t, repo.LogEvent(ctx, event))
	}

	t.Run("get all events", func(t *testing.T) {
		events, total, err := repo.GetEvents(ctx, "", 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(20), total)
		assert.Len(t, events, 20)
	})

	t.Run("get course events", func(t *testing.T) {
		events, total, err := repo.GetEvents(ctx, "course-1", 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 15)
	})

	t.Run("pagination", func(t *testing.T) {
		events, total, err := repo.GetEvents(ctx, "course-1", 5, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 5)

		events2, _, err := repo.GetEvents(ctx, "course-1", 5, 5)
		require.NoError(t, err)
		assert.Len(t, events2, 5)
		assert.NotEqual(t, events[0].ID, events2[0].ID)
	})

	t.Run("default limit", func(t *testing.T) {
		events, _, err := repo.GetEvents(ctx, "", 0, -1)
		require.NoError(t, err)
		assert.Len(t, events, 20)
	})

	t.Run("order by created_at desc", func(t *testing.T) {
		events, _, err := repo.GetEvents(ctx, "course-1", 10, 0)
		require.NoError(t, err)
		for i := 1; i < len(events); i++ {
			assert.False(t, events[i-1].CreatedAt.Before(events[i].CreatedAt))
		}
	})
}

func TestRepository_GetEventsByType(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{CourseID: "course-1", EventType: entities.AuditEventImport}))
	require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{CourseID: "course-1", EventType: entities.AuditEventScheduledImport}))
	require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{CourseID: "course-1", EventType: entities.AuditEventImport}))
	require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{CourseID: "course-2", EventType: entities.AuditEventImport}))

	events, total, err := repo.GetEventsByType(ctx, entities.AuditEventImport, "course-1", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, entities.AuditEventImport, e.EventType)
	}

	_, total, err = repo.GetEventsByType(ctx, entities.AuditEventImport, "", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestRepository_GetEventsByImport(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{ImportID: "imp-1", CourseID: "course-1"}))
	require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{ImportID: "imp-2", CourseID: "course-1"}))

	events, err := repo.GetEventsByImport(ctx, "imp-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "imp-1", events[0].ImportID)
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now()

	oldEvent := &entities.AuditEvent{
		ImportID:  "old",
		EventType: entities.AuditEventImport,
		Status:    entities.AuditStatusSuccess,
		CreatedAt: now.Add(-48 * time.Hour),
	}
	newEvent := &entities.AuditEvent{
		ImportID:  "new",
		EventType: entities.AuditEventScheduledImport,
		Status:    entities.AuditStatusSuccess,
		CreatedAt: now.Add(-1 * time.Hour),
	}

	require.NoError(t, repo.LogEvent(ctx, oldEvent))
	require.NoError(t, repo.LogEvent(ctx, newEvent))

	deleted, err := repo.DeleteOldEvents(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, total, err := repo.GetEvents(ctx, "", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].ImportID)
}
