// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Remote Sources
//
//   - storage.Client: folder listing, download and export (internal/storage/client.go)
//     implemented by gdrive.Client and the in-memory memory.Client used in tests
//   - storage.CallFunc: how listings are routed through remote.Executor
//
// ## Import Pipeline
//
//   - importers.StructureWalker: builds a course.Structure from a folder tree (drivewalk.Walker)
//   - drivewalk.Transferer: streams large or binary files to object storage (transfer.Manager)
//   - transfer.ObjectStore: S3, SFTP or in-memory object storage
//   - importers.Store: course reads and writes (database/courses.Repository)
//   - importers.AuditLogger: records finished imports (audit.Service)
//
// ## Progress Tracking
//
//   - progress.Reporter: receives snapshots from progress.Tracker
//     implemented by the run table, the redis publisher and the mongo job log
//
// ## Background Work
//
//   - tasks.Runner, tasks.Enqueuer: the import_drive queue
//   - scheduler.RunTracker: active-run check before scheduled imports
//   - http.ImportRunStore, http.TaskStatusReader, http.SyncTrigger: HTTP API dependencies
//
// # Adding a New Object Store
//
//  1. Create a package under internal/objectstore/ with a Store type:
//
//     func (s *Store) EnsureBucket(ctx context.Context) error
//     func (s *Store) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) error
//     func (s *Store) UploadResumable(ctx context.Context, objectPath string, r io.ReaderAt, size int64, contentType string) error
//     func (s *Store) PublicURL(objectPath string) string
//
//  2. Add a backend constant in internal/config/constants.go and a case in entrypoint.objectStore
//
//  3. Add the compile-time check to checks.go
//
// # Adding a New Progress Sink
//
//  1. Implement progress.Reporter:
//
//     func (s *Sink) Report(ctx context.Context, snap progress.Snapshot) error
//
//  2. Connect it in entrypoint.reporter; a sink that cannot connect is logged and skipped
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go.
package interfaces
