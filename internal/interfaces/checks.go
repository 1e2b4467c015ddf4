package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/courseimport/internal/audit"
	"github.com/mrlokans/courseimport/internal/database"
	"github.com/mrlokans/courseimport/internal/database/courses"
	"github.com/mrlokans/courseimport/internal/database/imports"
	"github.com/mrlokans/courseimport/internal/drivewalk"
	"github.com/mrlokans/courseimport/internal/http"
	"github.com/mrlokans/courseimport/internal/importers"
	"github.com/mrlokans/courseimport/internal/objectstore/memstore"
	"github.com/mrlokans/courseimport/internal/objectstore/s3store"
	"github.com/mrlokans/courseimport/internal/objectstore/sftpstore"
	"github.com/mrlokans/courseimport/internal/progress"
	"github.com/mrlokans/courseimport/internal/progress/mongosink"
	"github.com/mrlokans/courseimport/internal/progress/redissink"
	"github.com/mrlokans/courseimport/internal/scheduler"
	"github.com/mrlokans/courseimport/internal/storage"
	"github.com/mrlokans/courseimport/internal/storage/providers/gdrive"
	"github.com/mrlokans/courseimport/internal/storage/providers/memory"
	"github.com/mrlokans/courseimport/internal/tasks"
	"github.com/mrlokans/courseimport/internal/transfer"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// Store implementations
var _ importers.Store = (*courses.Repository)(nil)

// ImportRunStore implementations
var _ http.ImportRunStore = (*imports.Repository)(nil)
var _ scheduler.RunTracker = (*imports.Repository)(nil)
var _ tasks.ImportRunCleaner = (*imports.Repository)(nil)

// AuditHistory implementations
var _ http.AuditHistory = (*audit.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ importers.AuditLogger = (*audit.Service)(nil)

// =============================================================================
// External Services
// =============================================================================

// Client implementations
var _ storage.Client = (*gdrive.Client)(nil)
var _ storage.Client = (*memory.Client)(nil)

// ObjectStore implementations
var _ transfer.ObjectStore = (*s3store.Store)(nil)
var _ transfer.ObjectStore = (*sftpstore.Store)(nil)
var _ transfer.ObjectStore = (*memstore.Store)(nil)

// =============================================================================
// Progress Tracking
// =============================================================================

// Reporter implementations
var _ progress.Reporter = (*imports.Repository)(nil)
var _ progress.Reporter = (*redissink.Sink)(nil)
var _ progress.Reporter = (*mongosink.Sink)(nil)

// =============================================================================
// Import Pipeline
// =============================================================================

var _ importers.StructureWalker = (*drivewalk.Walker)(nil)
var _ drivewalk.Transferer = (*transfer.Manager)(nil)
var _ tasks.Runner = (*importers.Importer)(nil)
var _ tasks.Enqueuer = (*tasks.Client)(nil)
var _ http.TaskStatusReader = (*tasks.Client)(nil)
var _ http.SyncTrigger = (*scheduler.ImportSyncScheduler)(nil)
var _ http.Pinger = (*tasks.Client)(nil)
var _ http.Pinger = (*database.Database)(nil)
var _ http.Pinger = http.PingFunc(nil)
