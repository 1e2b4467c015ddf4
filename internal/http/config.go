package http

import (
	"go.uber.org/zap"

	"github.com/mrlokans/courseimport/internal/database"
	"github.com/mrlokans/courseimport/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	Database *database.Database
	Runs     ImportRunStore
	Audit    AuditHistory // optional

	// Task queue (optional). Without it imports cannot be started over HTTP.
	Queue       tasks.Enqueuer
	TaskStatus  TaskStatusReader
	SyncTrigger SyncTrigger // optional

	// Dependencies are reported by /health next to the database
	Dependencies []Dependency

	Version string
	Logger  *zap.Logger
}
