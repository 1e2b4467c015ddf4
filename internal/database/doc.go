// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup (sqlite or mysql) and migrations
//	├── courses/         # Modules, subjects, lessons, tests, answer keys
//	├── imports/         # Import run progress, one row per run
//	└── audit/           # Audit event log
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.NewDatabase(cfg.Database, logger)
//
//	coursesRepo := courses.NewRepository(db.DB)
//	runs := imports.NewRepository(db.DB)
//
//	modules, err := coursesRepo.ListModules(ctx, "redes-2024")
//	running, err := runs.IsRunning(ctx, "redes-2024")
//
// # Interface Implementations
//
//   - courses.Repository: implements importers.Store
//   - imports.Repository: implements progress.Reporter, http.ImportRunStore, scheduler.RunTracker
//   - audit.Repository: backs audit.Service
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Implement the required interface
//  5. Add compile-time interface check in internal/interfaces
package database
