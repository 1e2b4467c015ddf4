// Package tasks runs imports and housekeeping in the background on a backlite queue.
//
// The queue lives in its own SQLite database next to the main one ("course-import-tasks.db"),
// even when the course tables are on MySQL.
//
// Queues:
//
//   - import_drive: one ImportDriveTask per requested import, retried up to Config.MaxRetries times
//   - cleanup_history: purges old audit events and finished import runs
package tasks
