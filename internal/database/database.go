package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/courseimport/internal/config"
	"github.com/mrlokans/courseimport/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the configured database and migrates the schema
func NewDatabase(cfg config.Database, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Named("database").Info("database initialized",
		zap.String("driver", string(cfg.Driver)),
		zap.String("path", cfg.Path),
	)

	return &Database{DB: db}, nil
}

// Migrate creates or updates every table used by the importer
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entities.Module{},
		&entities.Subject{},
		&entities.ModuleSubject{},
		&entities.Lesson{},
		&entities.SubjectLesson{},
		&entities.Test{},
		&entities.AnswerKey{},
		&entities.ImportProgress{},
		&entities.AuditEvent{},
	)
}

func dialectorFor(cfg config.Database) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DatabaseDriverSQLite, "":
		path := cfg.Path
		if path == "" {
			path = config.DefaultDatabasePath
		}
		return sqlite.Open(path), nil
	case config.DatabaseDriverMySQL:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("database driver %q requires DATABASE_DSN", cfg.Driver)
		}
		return mysql.New(mysql.Config{
			DSN:               cfg.DSN,
			DefaultStringSize: 191,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Ping checks that the underlying connection is usable
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
