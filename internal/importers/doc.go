// Package importers imports a remote folder tree into a course.
//
// # Architecture
//
// One run follows a fixed flow:
//
//	Folder URL → ExtractFolderID → Authenticate → BuildIndex → Walker → course.Structure → Writer → Store
//
// BuildIndex loads what the course already holds (modules by name, subjects by code and by name,
// lesson and test content URLs) once per run. The walker consults it to skip files that were
// imported before, so they are never downloaded again. The Writer then stores what is left in
// dependency order and looks every row up before inserting it; running the same import twice
// creates nothing new.
//
// # Progress
//
// Every run owns a progress.Tracker. The phases go authenticating → scanning → saving and end in
// completed or failed. Snapshots are delivered to the configured progress.Reporter.
//
// # Errors
//
// Run returns an error only for failures that stop the run: an unreadable folder input,
// rejected credentials, a folder listing that keeps failing, or a root without module folders
// (drivewalk.ErrNoModules). Everything else is collected in Result.Errors.
//
// # Example Usage
//
//	walker := drivewalk.New(client, exec, transferManager, drivewalk.ConfigFrom(cfg.Transfer), logger)
//	importer := importers.NewImporter(client, exec, courseRepo, walker, reporter, auditService, logger)
//
//	result, err := importer.Run(ctx, importers.Request{
//		CourseID:      "course-1",
//		FolderURLOrID: "https://drive.google.com/drive/folders/1AbC",
//	})
package importers
